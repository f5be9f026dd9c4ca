// Package metrics provides Prometheus metrics for the riichi standings service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Standings and leaderboard computation
	standingsComputations   *prometheus.CounterVec
	standingsDuration       prometheus.Histogram
	sessionsEmitted         prometheus.Counter
	leaderboardComputations *prometheus.CounterVec
	leaderboardDuration     prometheus.Histogram
	resolutionErrors        *prometheus.CounterVec

	// Game recording pipeline
	gamesRecorded  prometheus.Counter
	gamesRejected  *prometheus.CounterVec
	gamesDuplicate prometheus.Counter
	queueSize      prometheus.Gauge
	queueCapacity  prometheus.Gauge
	workerCount    prometheus.Gauge

	// Store access
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec

	// Process
	memoryAlloc prometheus.Gauge
	goroutines  prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // private registry without default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "riichi",
		subsystem:        "standings",
		histogramBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of collector definitions
	auto := promauto.With(m.registry)

	m.standingsComputations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "computations_total",
		Help:      "Standings timelines computed, by outcome",
	}, []string{"outcome"})

	m.standingsDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "computation_duration_milliseconds",
		Help:      "Time spent producing a full standings timeline",
		Buckets:   m.histogramBuckets,
	})

	m.sessionsEmitted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sessions_emitted_total",
		Help:      "Standings records emitted to consumers",
	})

	m.leaderboardComputations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "leaderboard_computations_total",
		Help:      "Player leaderboards computed, by outcome",
	}, []string{"outcome"})

	m.leaderboardDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "leaderboard_duration_milliseconds",
		Help:      "Time spent producing a player leaderboard",
		Buckets:   m.histogramBuckets,
	})

	m.resolutionErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "resolution_errors_total",
		Help:      "Game participants that could not be matched to a team or player",
	}, []string{"kind"})

	m.gamesRecorded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "games_recorded_total",
		Help:      "Games written to the store",
	})

	m.gamesRejected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "games_rejected_total",
		Help:      "Games refused by the recording pipeline, by reason",
	}, []string{"reason"})

	m.gamesDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "games_duplicate_total",
		Help:      "Games skipped because they were already seen or recorded",
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_size",
		Help:      "Games waiting in the recording queue",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_capacity",
		Help:      "Capacity of the recording queue",
	})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_count",
		Help:      "Recording workers running",
	})

	m.storeLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_latency_milliseconds",
		Help:      "Latency of store calls by operation",
		Buckets:   m.histogramBuckets,
	}, []string{"op"})

	m.storeErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_errors_total",
		Help:      "Failed store calls by operation",
	}, []string{"op"})

	m.memoryAlloc = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "memory_alloc_bytes",
		Help:      "Bytes of allocated heap objects",
	})

	m.goroutines = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "goroutines",
		Help:      "Number of live goroutines",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request latency by route, method and status",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
}

// RecordStandings records one finished (or aborted) standings computation.
func RecordStandings(outcome string, durationMs float64) {
	globalManager.standingsComputations.WithLabelValues(outcome).Inc()
	globalManager.standingsDuration.Observe(durationMs)
}

// RecordSessionEmitted increments the emitted standings records counter.
func RecordSessionEmitted() {
	globalManager.sessionsEmitted.Inc()
}

// RecordLeaderboard records one leaderboard computation.
func RecordLeaderboard(outcome string, durationMs float64) {
	globalManager.leaderboardComputations.WithLabelValues(outcome).Inc()
	globalManager.leaderboardDuration.Observe(durationMs)
}

// RecordResolutionError counts an unresolvable participant; kind is "team" or "player".
func RecordResolutionError(kind string) {
	globalManager.resolutionErrors.WithLabelValues(kind).Inc()
}

// RecordGameRecorded increments the recorded games counter.
func RecordGameRecorded() {
	globalManager.gamesRecorded.Inc()
}

// RecordGameRejected counts a game the pipeline refused.
func RecordGameRejected(reason string) {
	globalManager.gamesRejected.WithLabelValues(reason).Inc()
}

// RecordGameDuplicate increments the duplicate games counter.
func RecordGameDuplicate() {
	globalManager.gamesDuplicate.Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordStoreCall records the latency of a store call and whether it failed.
func RecordStoreCall(op string, latencyMs float64, failed bool) {
	globalManager.storeLatency.WithLabelValues(op).Observe(latencyMs)
	if failed {
		globalManager.storeErrors.WithLabelValues(op).Inc()
	}
}

// UpdateRuntime sets the process memory and goroutine gauges.
func UpdateRuntime(allocBytes uint64, goroutines int) {
	globalManager.memoryAlloc.Set(float64(allocBytes))
	globalManager.goroutines.Set(float64(goroutines))
}

// RecordHTTPRequest records an HTTP request and its duration.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
