// Package metrics provides Prometheus metrics for the critreview service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch outcomes used as the "outcome" label value.
const (
	OutcomeOK          = "ok"
	OutcomeFetchError  = "fetch_error"
	OutcomeDecodeError = "decode_error"
)

// Manager manages all Prometheus metrics for the critreview service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Cache metrics
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	cacheWrites      prometheus.Counter
	cacheWriteErrors prometheus.Counter
	cacheCorrupt     prometheus.Counter
	coalescedCalls   prometheus.Counter
	snapshotEntries  prometheus.Gauge

	// Remote API metrics
	fetchRequests *prometheus.CounterVec
	fetchLatency  *prometheus.HistogramVec

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "critreview",
		subsystem: "scores",
		// Fetch latency is dominated by a single cloud function call.
		histogramBuckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		enabled:          true,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.cacheHits = m.counter("cache_hits_total", "Snapshot reads served from the cache")
	m.cacheMisses = m.counter("cache_misses_total", "Snapshot reads that required a fetch")
	m.cacheWrites = m.counter("cache_writes_total", "Snapshots written to the cache")
	m.cacheWriteErrors = m.counter("cache_write_errors_total", "Snapshot writes that failed")
	m.cacheCorrupt = m.counter("cache_corrupt_total", "Cached snapshots that failed to decode")
	m.coalescedCalls = m.counter("coalesced_calls_total", "Callers that shared another caller's in-flight fetch")

	m.snapshotEntries = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("snapshot_entries"),
		Help:        "Number of courses in the most recent snapshot",
		ConstLabels: m.customLabels,
	})

	m.fetchRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("fetch_requests_total"),
			Help:        "Review API calls by request kind and outcome",
			ConstLabels: m.customLabels,
		},
		[]string{"kind", "outcome"},
	)

	m.fetchLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("fetch_latency_milliseconds"),
			Help:        "Review API call latency in milliseconds",
			Buckets:     m.histogramBuckets,
			ConstLabels: m.customLabels,
		},
		[]string{"kind"},
	)

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("http_requests_total"),
			Help:        "Total number of HTTP requests by endpoint and method",
			ConstLabels: m.customLabels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("http_request_duration_milliseconds"),
			Help:        "HTTP request duration in milliseconds",
			Buckets:     m.histogramBuckets,
			ConstLabels: m.customLabels,
		},
		[]string{"endpoint", "method", "status_code"},
	)
}

// RecordCacheHit increments the cache hit counter.
func (m *Manager) RecordCacheHit() {
	if m.enabled {
		m.cacheHits.Inc()
	}
}

// RecordCacheMiss increments the cache miss counter.
func (m *Manager) RecordCacheMiss() {
	if m.enabled {
		m.cacheMisses.Inc()
	}
}

// RecordCacheWrite counts a snapshot write and records its size.
func (m *Manager) RecordCacheWrite(entries int) {
	if m.enabled {
		m.cacheWrites.Inc()
		m.snapshotEntries.Set(float64(entries))
	}
}

// RecordCacheWriteError increments the failed write counter.
func (m *Manager) RecordCacheWriteError() {
	if m.enabled {
		m.cacheWriteErrors.Inc()
	}
}

// RecordCacheCorrupt increments the undecodable cache entry counter.
func (m *Manager) RecordCacheCorrupt() {
	if m.enabled {
		m.cacheCorrupt.Inc()
	}
}

// RecordCoalesced increments the shared in-flight fetch counter.
func (m *Manager) RecordCoalesced() {
	if m.enabled {
		m.coalescedCalls.Inc()
	}
}

// RecordFetch counts an API call and observes its latency.
func (m *Manager) RecordFetch(kind, outcome string, latencyMs float64) {
	if m.enabled {
		m.fetchRequests.WithLabelValues(kind, outcome).Inc()
		m.fetchLatency.WithLabelValues(kind).Observe(latencyMs)
	}
}

// RecordHTTPRequest records an HTTP request and its duration.
func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	if m.enabled {
		m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
		m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
	}
}

// RecordCacheHit increments the global cache hit counter.
func RecordCacheHit() { globalManager.RecordCacheHit() }

// RecordCacheMiss increments the global cache miss counter.
func RecordCacheMiss() { globalManager.RecordCacheMiss() }

// RecordCacheWrite counts a global snapshot write.
func RecordCacheWrite(entries int) { globalManager.RecordCacheWrite(entries) }

// RecordCacheWriteError increments the global failed write counter.
func RecordCacheWriteError() { globalManager.RecordCacheWriteError() }

// RecordCacheCorrupt increments the global corrupt entry counter.
func RecordCacheCorrupt() { globalManager.RecordCacheCorrupt() }

// RecordCoalesced increments the global coalesced call counter.
func RecordCoalesced() { globalManager.RecordCoalesced() }

// RecordFetch records a global API call.
func RecordFetch(kind, outcome string, latencyMs float64) {
	globalManager.RecordFetch(kind, outcome, latencyMs)
}

// RecordHTTPRequest records a global HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.RecordHTTPRequest(endpoint, method, statusCode, durationMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
