// Package metrics provides Prometheus metrics for the quotaboard service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
	OutcomeReplay  = "replay"
)

// Manager manages all Prometheus metrics for the quotaboard service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Dashboard builds
	dashboardBuilds       *prometheus.CounterVec
	dashboardBuildLatency prometheus.Histogram
	dashboardRows         prometheus.Gauge
	dashboardWarnings     *prometheus.CounterVec

	// CRM queries
	sourceQueryLatency *prometheus.HistogramVec
	sourceQueryErrors  *prometheus.CounterVec

	// OAuth
	oauthExchanges *prometheus.CounterVec
	oauthRefreshes *prometheus.CounterVec
	activeSessions prometheus.Gauge

	// Snapshot history
	snapshotSaves   *prometheus.CounterVec
	snapshotLatency prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
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
		namespace:        "quotaboard",
		subsystem:        "dashboard",
		histogramBuckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
		Buckets:     m.histogramBuckets,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
		Buckets:     m.histogramBuckets,
	})
}

func (m *Manager) initializeMetrics() {
	m.dashboardBuilds = m.counterVec("builds_total",
		"Total number of dashboard builds by outcome", "outcome")
	m.dashboardBuildLatency = m.histogram("build_latency_milliseconds",
		"Dashboard build latency in milliseconds, including CRM queries")
	m.dashboardRows = m.gauge("rows",
		"Number of rows in the most recent dashboard build")
	m.dashboardWarnings = m.counterVec("source_warnings_total",
		"Optional sources that failed during a build", "source")

	m.sourceQueryLatency = m.histogramVec("source_query_latency_milliseconds",
		"CRM query latency in milliseconds by source", "source")
	m.sourceQueryErrors = m.counterVec("source_query_errors_total",
		"CRM query errors by source", "source")

	m.oauthExchanges = m.counterVec("oauth_exchanges_total",
		"Authorization code exchanges by outcome", "outcome")
	m.oauthRefreshes = m.counterVec("oauth_refreshes_total",
		"Access token refreshes by outcome", "outcome")
	m.activeSessions = m.gauge("active_sessions",
		"Number of authenticated browser sessions")

	m.snapshotSaves = m.counterVec("snapshot_saves_total",
		"Dashboard snapshot saves by outcome", "outcome")
	m.snapshotLatency = m.histogram("snapshot_save_latency_milliseconds",
		"Dashboard snapshot save latency in milliseconds")

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.errorRateByComponent = m.counterVec("errors_by_component_total",
		"Total number of errors by component", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap memory in use in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordDashboardBuild increments the build counter for outcome.
func RecordDashboardBuild(outcome string) {
	globalManager.dashboardBuilds.WithLabelValues(outcome).Inc()
}

// RecordDashboardBuildLatency records build latency in milliseconds.
func RecordDashboardBuildLatency(latencyMs float64) {
	globalManager.dashboardBuildLatency.Observe(latencyMs)
}

// UpdateDashboardRows sets the row count of the latest build.
func UpdateDashboardRows(count int) {
	globalManager.dashboardRows.Set(float64(count))
}

// RecordSourceWarning counts an optional source that failed.
func RecordSourceWarning(source string) {
	globalManager.dashboardWarnings.WithLabelValues(source).Inc()
}

// RecordSourceQueryLatency records a CRM query latency in milliseconds.
func RecordSourceQueryLatency(source string, latencyMs float64) {
	globalManager.sourceQueryLatency.WithLabelValues(source).Observe(latencyMs)
}

// RecordSourceQueryError counts a failed CRM query.
func RecordSourceQueryError(source string) {
	globalManager.sourceQueryErrors.WithLabelValues(source).Inc()
}

// RecordOAuthExchange counts a code exchange.
func RecordOAuthExchange(outcome string) {
	globalManager.oauthExchanges.WithLabelValues(outcome).Inc()
}

// RecordOAuthRefresh counts a token refresh.
func RecordOAuthRefresh(outcome string) {
	globalManager.oauthRefreshes.WithLabelValues(outcome).Inc()
}

// UpdateActiveSessions sets the authenticated session count.
func UpdateActiveSessions(count int) {
	globalManager.activeSessions.Set(float64(count))
}

// RecordSnapshotSave counts a snapshot save.
func RecordSnapshotSave(outcome string) {
	globalManager.snapshotSaves.WithLabelValues(outcome).Inc()
}

// RecordSnapshotLatency records a snapshot save latency in milliseconds.
func RecordSnapshotLatency(latencyMs float64) {
	globalManager.snapshotLatency.Observe(latencyMs)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the heap memory in use.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
