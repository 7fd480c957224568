// Package metrics provides Prometheus metrics for the readiness service.
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

	// Query path
	queriesTotal  *prometheus.CounterVec
	queryLatency  *prometheus.HistogramVec
	lowConfidence *prometheus.CounterVec
	alertsEmitted *prometheus.CounterVec

	// Result cache
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	cacheInvalidations prometheus.Counter
	cacheEntries       prometheus.Gauge

	// Ingestion
	recordsIngested  *prometheus.CounterVec
	batchesDuplicate prometheus.Counter
	batchesRejected  prometheus.Counter

	// Metric store
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Batch refresh job
	refreshRuns     *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	refreshPlayers  prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRateLimited     *prometheus.CounterVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "readiness",
		subsystem:        "core",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(auto promauto.Factory, name, help string) prometheus.Counter {
	return auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(auto promauto.Factory, name, help string, labels ...string) *prometheus.CounterVec {
	return auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(auto promauto.Factory, name, help string) prometheus.Gauge {
	return auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(auto promauto.Factory, name, help string) prometheus.Histogram {
	return auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(auto promauto.Factory, name, help string, labels ...string) *prometheus.HistogramVec {
	return auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.queriesTotal = m.counterVec(auto, "queries_total", "Queries served by operation and outcome", "operation", "outcome")
	m.queryLatency = m.histogramVec(auto, "query_latency_milliseconds", "Query latency in milliseconds", "operation")
	m.lowConfidence = m.counterVec(auto, "low_confidence_results_total", "Results flagged as low confidence by component", "component")
	m.alertsEmitted = m.counterVec(auto, "alerts_emitted_total", "Alerts produced by type and severity", "type", "severity")

	m.cacheHits = m.counterVec(auto, "cache_hits_total", "Result cache hits by kind", "kind")
	m.cacheMisses = m.counterVec(auto, "cache_misses_total", "Result cache misses by kind", "kind")
	m.cacheInvalidations = m.counter(auto, "cache_invalidations_total", "Per-player cache invalidations")
	m.cacheEntries = m.gauge(auto, "cache_entries", "Entries currently held by the result cache")

	m.recordsIngested = m.counterVec(auto, "records_ingested_total", "Raw records written by kind", "kind")
	m.batchesDuplicate = m.counter(auto, "batches_duplicate_total", "Ingestion batches dropped as duplicates")
	m.batchesRejected = m.counter(auto, "batches_rejected_total", "Ingestion batches rejected by backpressure")

	m.storeLatency = m.histogramVec(auto, "store_latency_milliseconds", "Metric store call latency in milliseconds", "operation")
	m.storeErrors = m.counterVec(auto, "store_errors_total", "Metric store failures by operation", "operation")

	m.queueSize = m.gauge(auto, "queue_size", "Batches waiting in the ingestion queue")
	m.queueCapacity = m.gauge(auto, "queue_capacity", "Ingestion queue capacity")
	m.queueUtilization = m.gauge(auto, "queue_utilization_ratio", "Ingestion queue fill ratio")
	m.queueEnqueued = m.counter(auto, "queue_enqueued_total", "Batches enqueued")
	m.queueDequeued = m.counter(auto, "queue_dequeued_total", "Batches dequeued")
	m.queueEnqueueErrors = m.counter(auto, "queue_enqueue_errors_total", "Enqueue attempts refused")

	m.workerCount = m.gauge(auto, "worker_count", "Configured ingestion workers")
	m.workerActiveCount = m.gauge(auto, "worker_active_count", "Ingestion workers currently applying a batch")
	m.workerProcessingLatency = m.histogram(auto, "worker_processing_latency_milliseconds", "Time to apply one batch in milliseconds")
	m.workerErrors = m.counter(auto, "worker_errors_total", "Batches that failed to apply")

	m.refreshRuns = m.counterVec(auto, "refresh_runs_total", "Batch refresh runs by outcome", "outcome")
	m.refreshDuration = m.histogram(auto, "refresh_duration_seconds", "Batch refresh duration in seconds")
	m.refreshPlayers = m.gauge(auto, "refresh_players", "Players covered by the last batch refresh")

	m.httpRequests = m.counterVec(auto, "http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec(auto, "http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")
	m.httpRateLimited = m.counterVec(auto, "http_rate_limited_total", "Requests refused by the rate limiter", "endpoint")

	m.errorRateByComponent = m.counterVec(auto, "errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.errorRateByEndpoint = m.counterVec(auto, "errors_by_endpoint_total", "Errors by endpoint, method and type", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge(auto, "system_memory_bytes", "Heap bytes in use")
	m.systemGoroutineCount = m.gauge(auto, "system_goroutines", "Number of goroutines")
	m.systemGCPauseTime = m.histogram(auto, "system_gc_pause_milliseconds", "Last GC pause in milliseconds")
}

// Query path.

// RecordQuery counts one query and its latency.
func RecordQuery(operation, outcome string, latencyMs float64) {
	globalManager.queriesTotal.WithLabelValues(operation, outcome).Inc()
	globalManager.queryLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordLowConfidence counts a result flagged as low confidence.
func RecordLowConfidence(component string) {
	globalManager.lowConfidence.WithLabelValues(component).Inc()
}

// RecordAlert counts an emitted alert.
func RecordAlert(alertType, severity string) {
	globalManager.alertsEmitted.WithLabelValues(alertType, severity).Inc()
}

// Cache.

// RecordCacheHit counts a cache hit.
func RecordCacheHit(kind string) {
	globalManager.cacheHits.WithLabelValues(kind).Inc()
}

// RecordCacheMiss counts a cache miss.
func RecordCacheMiss(kind string) {
	globalManager.cacheMisses.WithLabelValues(kind).Inc()
}

// RecordCacheInvalidation counts a per-player invalidation.
func RecordCacheInvalidation() {
	globalManager.cacheInvalidations.Inc()
}

// UpdateCacheEntries sets the cache size.
func UpdateCacheEntries(n int) {
	globalManager.cacheEntries.Set(float64(n))
}

// Ingestion.

// RecordRecordsIngested adds written raw records.
func RecordRecordsIngested(kind string, n int) {
	globalManager.recordsIngested.WithLabelValues(kind).Add(float64(n))
}

// RecordBatchDuplicate counts a batch dropped by the deduper.
func RecordBatchDuplicate() {
	globalManager.batchesDuplicate.Inc()
}

// RecordBatchRejected counts a batch refused because the queue was full.
func RecordBatchRejected() {
	globalManager.batchesRejected.Inc()
}

// Store.

// RecordStoreLatency observes one store call.
func RecordStoreLatency(operation string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordStoreError counts a failed store call.
func RecordStoreError(operation string) {
	globalManager.storeErrors.WithLabelValues(operation).Inc()
}

// Queue.

// UpdateQueueSize sets the current queue length.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue fill ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue counts an enqueue.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue counts a dequeue.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError counts a refused enqueue.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// Workers.

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency observes how long a batch took to apply.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError counts a failed batch.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// Refresh job.

// RecordRefreshRun records one batch refresh run.
func RecordRefreshRun(outcome string, seconds float64, players int) {
	globalManager.refreshRuns.WithLabelValues(outcome).Inc()
	globalManager.refreshDuration.Observe(seconds)
	globalManager.refreshPlayers.Set(float64(players))
}

// HTTP.

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordRateLimited counts a request refused by the limiter.
func RecordRateLimited(endpoint string) {
	globalManager.httpRateLimited.WithLabelValues(endpoint).Inc()
}

// Errors.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System.

// UpdateSystemMemoryUsage sets heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime observes a GC pause in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
