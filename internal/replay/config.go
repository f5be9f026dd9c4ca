// Package replay drives a running standings API with the games of a
// fixture and checks the standings it serves against ones computed locally.
package replay

import (
	"errors"
	"time"
)

// Defaults for Config fields left zero.
const (
	defaultWorkers = 8
	defaultTimeout = 10 * time.Second
	defaultSettle  = 30 * time.Second
	pollInterval   = 250 * time.Millisecond
)

// Sentinel errors.
var (
	ErrUnhealthy = errors.New("service unhealthy")
	ErrMismatch  = errors.New("standings mismatch")
	ErrFixture   = errors.New("fixture not replayable")
)

// Config holds configuration for a replay run.
type Config struct {
	BaseURL string        // Base URL of the service
	Token   string        // Bearer token for POST /games
	Workers int           // Number of concurrent submitters
	Timeout time.Duration // HTTP request timeout
	Settle  time.Duration // How long to wait for the served standings to converge
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.Settle <= 0 {
		c.Settle = defaultSettle
	}
	return c
}

// Stats summarises a run.
type Stats struct {
	Submitted  int64         `json:"submitted"`
	Queued     int64         `json:"queued"`
	Duplicates int64         `json:"duplicates"`
	Failed     int64         `json:"failed"`
	Contests   int           `json:"contests"`
	Verified   int           `json:"verified"`
	Duration   time.Duration `json:"duration"`
}
