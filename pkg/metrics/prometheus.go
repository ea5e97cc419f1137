// Package metrics provides Prometheus metrics for the GenieIQ scanner service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Scan pipeline
	scansTotal       *prometheus.CounterVec
	scanLatency      prometheus.Histogram
	scanScore        prometheus.Histogram
	degradedStages   *prometheus.CounterVec
	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec

	// Table enricher cache
	tableCacheHits   prometheus.Counter
	tableCacheMisses prometheus.Counter
	tableCacheSize   prometheus.Gauge

	// Persistence
	storageMode        prometheus.Gauge
	credentialFailures *prometheus.CounterVec
	poolsCached        prometheus.Gauge
	schemaInits        *prometheus.CounterVec
	storageLatency     *prometheus.HistogramVec

	// Bulk jobs
	jobsRunning       prometheus.Gauge
	jobUnitsProcessed *prometheus.CounterVec
	jobQueueDepth     prometheus.Gauge
	workerCount       prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // private registry without default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "genieiq",
		subsystem:        "scanner",
		histogramBuckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.scansTotal = auto.NewCounterVec(m.counterOpts("scans_total", "Space scans by outcome (ok, skipped, error)"), []string{"mode", "outcome"})
	m.scanLatency = auto.NewHistogram(m.histogramOpts("scan_latency_milliseconds", "End-to-end latency of one space scan", m.histogramBuckets))
	m.scanScore = auto.NewHistogram(m.histogramOpts("scan_score", "Distribution of total scores", []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}))
	m.degradedStages = auto.NewCounterVec(m.counterOpts("degraded_stages_total", "Best-effort stages that failed and were skipped"), []string{"stage"})
	m.upstreamRequests = auto.NewCounterVec(m.counterOpts("upstream_requests_total", "Upstream REST calls by operation and status"), []string{"op", "status"})
	m.upstreamLatency = auto.NewHistogramVec(m.histogramOpts("upstream_latency_milliseconds", "Upstream REST call latency", m.histogramBuckets), []string{"op"})

	m.tableCacheHits = auto.NewCounter(m.counterOpts("table_cache_hits_total", "Catalog metadata lookups served from cache"))
	m.tableCacheMisses = auto.NewCounter(m.counterOpts("table_cache_misses_total", "Catalog metadata lookups that went upstream"))
	m.tableCacheSize = auto.NewGauge(m.gaugeOpts("table_cache_entries", "Entries held by the catalog metadata cache"))

	m.storageMode = auto.NewGauge(m.gaugeOpts("storage_mode", "Active persistence mode (0 = sql, 1 = memory fallback)"))
	m.credentialFailures = auto.NewCounterVec(m.counterOpts("credential_failures_total", "Credential candidates that failed to authenticate"), []string{"candidate"})
	m.poolsCached = auto.NewGauge(m.gaugeOpts("connection_pools_cached", "Connection pools held by the connection manager"))
	m.schemaInits = auto.NewCounterVec(m.counterOpts("schema_inits_total", "Schema setup runs by result"), []string{"result"})
	m.storageLatency = auto.NewHistogramVec(m.histogramOpts("storage_latency_milliseconds", "Persistence operation latency", m.histogramBuckets), []string{"op"})

	m.jobsRunning = auto.NewGauge(m.gaugeOpts("jobs_running", "Bulk scan jobs currently running"))
	m.jobUnitsProcessed = auto.NewCounterVec(m.counterOpts("job_units_total", "Bulk scan units by result and reason"), []string{"result", "reason"})
	m.jobQueueDepth = auto.NewGauge(m.gaugeOpts("job_queue_depth", "Space ids waiting in bulk scan cursors"))
	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Bulk scan workers currently running"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration", m.histogramBuckets), []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total", "Errors by component"), []string{"component", "error_type"})
	m.errorRateByType = auto.NewCounterVec(m.counterOpts("errors_by_type_total", "Errors by type"), []string{"error_type", "severity"})
	m.errorRateByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total", "Errors by endpoint"), []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap memory in use"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_time_milliseconds", "Average GC pause", []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100}))
}

// RecordScan counts one finished scan. mode is "single" or "bulk".
func RecordScan(mode, outcome string) {
	globalManager.scansTotal.WithLabelValues(mode, outcome).Inc()
}

// RecordScanLatency records scan latency in milliseconds.
func RecordScanLatency(latencyMs float64) {
	globalManager.scanLatency.Observe(latencyMs)
}

// RecordScanScore records the total score of a finished scan.
func RecordScanScore(score int) {
	globalManager.scanScore.Observe(float64(score))
}

// RecordDegradedStage counts a best-effort stage that failed.
func RecordDegradedStage(stage string) {
	globalManager.degradedStages.WithLabelValues(stage).Inc()
}

// RecordUpstreamRequest counts one upstream call.
func RecordUpstreamRequest(op, status string, latencyMs float64) {
	globalManager.upstreamRequests.WithLabelValues(op, status).Inc()
	globalManager.upstreamLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordTableCacheHit counts a cache hit in the table enricher.
func RecordTableCacheHit() {
	globalManager.tableCacheHits.Inc()
}

// RecordTableCacheMiss counts a cache miss in the table enricher.
func RecordTableCacheMiss() {
	globalManager.tableCacheMisses.Inc()
}

// UpdateTableCacheSize sets the current number of cache entries.
func UpdateTableCacheSize(n int64) {
	globalManager.tableCacheSize.Set(float64(n))
}

// UpdateStorageMode sets the persistence mode gauge.
func UpdateStorageMode(memory bool) {
	if memory {
		globalManager.storageMode.Set(1)
		return
	}
	globalManager.storageMode.Set(0)
}

// RecordCredentialFailure counts a failed credential candidate.
func RecordCredentialFailure(candidate string) {
	globalManager.credentialFailures.WithLabelValues(candidate).Inc()
}

// UpdatePoolsCached sets the number of cached connection pools.
func UpdatePoolsCached(n int) {
	globalManager.poolsCached.Set(float64(n))
}

// RecordSchemaInit counts a schema setup run ("ok" or "error").
func RecordSchemaInit(result string) {
	globalManager.schemaInits.WithLabelValues(result).Inc()
}

// RecordStorageLatency records persistence latency in milliseconds.
func RecordStorageLatency(op string, latencyMs float64) {
	globalManager.storageLatency.WithLabelValues(op).Observe(latencyMs)
}

// UpdateJobsRunning sets the running-jobs gauge.
func UpdateJobsRunning(n int) {
	globalManager.jobsRunning.Set(float64(n))
}

// RecordJobUnit counts one processed bulk unit.
func RecordJobUnit(result, reason string) {
	globalManager.jobUnitsProcessed.WithLabelValues(result, reason).Inc()
}

// AddJobQueueDepth adjusts the pending-units gauge by delta.
func AddJobQueueDepth(delta int) {
	globalManager.jobQueueDepth.Add(float64(delta))
}

// AddWorkerCount adjusts the live worker gauge by delta.
func AddWorkerCount(delta int) {
	globalManager.workerCount.Add(float64(delta))
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

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the private Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
