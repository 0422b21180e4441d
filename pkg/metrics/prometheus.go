// Package metrics provides Prometheus metrics for the devrank scoring engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the devrank service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	registry         prometheus.Registerer

	// Provider Metrics - outbound calls to GitHub/GitLab/Bitbucket
	providerRequests        *prometheus.CounterVec
	providerRequestDuration *prometheus.HistogramVec
	providerRetries         *prometheus.CounterVec

	// Acquisition Metrics - the commit-counting cascade
	cascadeStageRuns *prometheus.CounterVec
	cascadeResolved  *prometheus.CounterVec

	// Refresh Metrics - batch and per-user refresh outcomes
	refreshUsers         *prometheus.CounterVec
	refreshBatchDuration prometheus.Histogram
	refreshUserDuration  prometheus.Histogram

	// Rate Limit Metrics
	limiterWait prometheus.Histogram

	// Store Metrics
	storeWrites      *prometheus.CounterVec
	storeWriteErrors *prometheus.CounterVec

	// Ranking Metrics
	rankedUsers prometheus.Gauge
	resetsTotal prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "devrank",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	m.providerRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "provider_requests_total",
			Help:      "Total number of outbound provider API requests by provider, endpoint and status",
		},
		[]string{"provider", "endpoint", "status"},
	)

	m.providerRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "provider_request_duration_milliseconds",
			Help:      "Outbound provider API request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"provider", "endpoint"},
	)

	m.providerRetries = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "provider_retries_total",
			Help:      "Total number of transient-failure retries by provider and endpoint",
		},
		[]string{"provider", "endpoint"},
	)

	m.cascadeStageRuns = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "cascade_stage_runs_total",
			Help:      "Commit-count cascade stage executions by stage and outcome",
		},
		[]string{"stage", "outcome"},
	)

	m.cascadeResolved = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "cascade_resolved_total",
			Help:      "Commit counts resolved by the cascade, labeled by the source that won",
		},
		[]string{"source"},
	)

	m.refreshUsers = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "refresh_users_total",
			Help:      "Per-user refresh outcomes (succeeded, failed, skipped)",
		},
		[]string{"result"},
	)

	m.refreshBatchDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "refresh_batch_duration_milliseconds",
		Help:      "Duration of one refresh batch in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.refreshUserDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "refresh_user_duration_milliseconds",
		Help:      "Duration of a single user refresh (full cascade plus merge and score)",
		Buckets:   m.histogramBuckets,
	})

	m.limiterWait = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "limiter_wait_milliseconds",
		Help:      "Time spent waiting on the shared provider rate-limit budget",
		Buckets:   m.histogramBuckets,
	})

	m.storeWrites = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "store_writes_total",
			Help:      "Whole-record store writes by record type",
		},
		[]string{"record"},
	)

	m.storeWriteErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "store_write_errors_total",
			Help:      "Failed store writes by record type",
		},
		[]string{"record"},
	)

	m.rankedUsers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ranked_users",
		Help:      "Number of users currently carrying a score record",
	})

	m.resetsTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "resets_total",
		Help:      "Total number of executed contribution resets",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)
}

// Provider Metrics Functions.

// RecordProviderRequest records an outbound provider API request.
func RecordProviderRequest(provider, endpoint, status string) {
	globalManager.providerRequests.WithLabelValues(provider, endpoint, status).Inc()
}

// RecordProviderRequestDuration records provider request duration.
func RecordProviderRequestDuration(provider, endpoint string, durationMs float64) {
	globalManager.providerRequestDuration.WithLabelValues(provider, endpoint).Observe(durationMs)
}

// RecordProviderRetry increments the retry counter for a provider endpoint.
func RecordProviderRetry(provider, endpoint string) {
	globalManager.providerRetries.WithLabelValues(provider, endpoint).Inc()
}

// Acquisition Metrics Functions.

// RecordCascadeStage records one cascade stage execution with its outcome.
func RecordCascadeStage(stage, outcome string) {
	globalManager.cascadeStageRuns.WithLabelValues(stage, outcome).Inc()
}

// RecordCascadeResolved records which source finally produced the commit count.
func RecordCascadeResolved(source string) {
	globalManager.cascadeResolved.WithLabelValues(source).Inc()
}

// Refresh Metrics Functions.

// RecordRefreshUser records a per-user refresh outcome.
func RecordRefreshUser(result string) {
	globalManager.refreshUsers.WithLabelValues(result).Inc()
}

// RecordRefreshBatchDuration records the duration of one refresh batch.
func RecordRefreshBatchDuration(durationMs float64) {
	globalManager.refreshBatchDuration.Observe(durationMs)
}

// RecordRefreshUserDuration records the duration of a single user refresh.
func RecordRefreshUserDuration(durationMs float64) {
	globalManager.refreshUserDuration.Observe(durationMs)
}

// RecordLimiterWait records time spent waiting on the shared rate-limit budget.
func RecordLimiterWait(durationMs float64) {
	globalManager.limiterWait.Observe(durationMs)
}

// Store Metrics Functions.

// RecordStoreWrite records a whole-record store write.
func RecordStoreWrite(record string) {
	globalManager.storeWrites.WithLabelValues(record).Inc()
}

// RecordStoreWriteError records a failed store write.
func RecordStoreWriteError(record string) {
	globalManager.storeWriteErrors.WithLabelValues(record).Inc()
}

// Ranking Metrics Functions.

// UpdateRankedUsers sets the number of users carrying a score record.
func UpdateRankedUsers(count int) {
	globalManager.rankedUsers.Set(float64(count))
}

// RecordReset increments the executed resets counter.
func RecordReset() {
	globalManager.resetsTotal.Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
