// Package config defines service configuration structures and loading hooks.
package config

import (
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`

	// LogFormat selects the log encoding: json or text.
	LogFormat string `koanf:"log_format" validate:"oneof=json text"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr" validate:"required"`

	// QueueSize bounds the in-memory game submission queue.
	QueueSize int `koanf:"queue_size" validate:"gt=0"`

	// WorkerCount sets the number of recording workers.
	WorkerCount int `koanf:"worker_count" validate:"gt=0"`

	// DedupeSize sets the size of the submission deduplication cache.
	DedupeSize int `koanf:"dedupe_size" validate:"gt=0"`

	// LeaderboardGameCap is how many of a player's earliest games count
	// toward their leaderboard score.
	LeaderboardGameCap int `koanf:"leaderboard_game_cap" validate:"gt=0"`

	// ContestCacheTTL is how long a contest reference stays resolved.
	ContestCacheTTL time.Duration `koanf:"contest_cache_ttl" validate:"gt=0"`

	// WriteRateLimit and WriteRateBurst shape the write route token bucket.
	WriteRateLimit float64 `koanf:"write_rate_limit" validate:"gt=0"`
	WriteRateBurst int     `koanf:"write_rate_burst" validate:"gt=0"`

	// CORSOrigins lists allowed origins. Comma separated in env.
	CORSOrigins []string `koanf:"cors_origins" validate:"min=1"`

	Store StoreConfig `koanf:"store"`
	Auth  AuthConfig  `koanf:"auth"`
}

// StoreConfig selects and locates the backing store.
type StoreConfig struct {
	Driver string `koanf:"driver" validate:"oneof=memory postgres bolt"`
	DSN    string `koanf:"dsn" validate:"required_if=Driver postgres"`
	Path   string `koanf:"path" validate:"required_if=Driver bolt"`
}

// AuthConfig configures bearer token checks on write routes. Write routes
// are disabled while PublicKeyPath is empty.
type AuthConfig struct {
	PublicKeyPath string `koanf:"public_key_path"`
	Audience      string `koanf:"audience"`
	Issuer        string `koanf:"issuer"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "json",
		Addr:               ":9080",
		QueueSize:          1024,
		WorkerCount:        runtime.NumCPU(),
		DedupeSize:         50_000,
		LeaderboardGameCap: 5,
		ContestCacheTTL:    time.Minute,
		WriteRateLimit:     10,
		WriteRateBurst:     20,
		CORSOrigins:        []string{"*"},
		Store:              StoreConfig{Driver: "memory"},
	}
}
