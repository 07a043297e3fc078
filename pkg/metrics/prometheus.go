// Package metrics provides Prometheus metrics for the fetal health service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the fetal health service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	trainingBuckets  []float64
	registry         prometheus.Registerer

	// Training pipeline
	trainingRuns     *prometheus.CounterVec
	trainingDuration prometheus.Histogram
	stageDuration    *prometheus.HistogramVec
	gridPoints       prometheus.Counter
	cvFits           prometheus.Counter
	selectedModel    *prometheus.CounterVec
	macroF1          *prometheus.GaugeVec

	// Inference and data
	predictions          *prometheus.CounterVec
	predictionErrors     prometheus.Counter
	predictionLatency    prometheus.Histogram
	observationsInserted prometheus.Counter
	observationsRejected prometheus.Counter
	datasetRows          prometheus.Gauge
	repositoryLatency    *prometheus.HistogramVec

	// Artifact store
	artifactOps  *prometheus.CounterVec
	artifactSize prometheus.Gauge

	// Sessions
	activeSessions prometheus.Gauge
	logins         *prometheus.CounterVec

	// Queue and workers
	queueSize               prometheus.Gauge
	queueCapacity           prometheus.Gauge
	queueEnqueued           prometheus.Counter
	queueRejected           prometheus.Counter
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter
	jobsByState             *prometheus.GaugeVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec

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
		namespace:        "fetalhealth",
		subsystem:        "service",
		histogramBuckets: prometheus.DefBuckets,
		trainingBuckets:  []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1200},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets,
	})
}

func (m *Manager) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	m.trainingRuns = m.counterVec("training_runs_total", "Training runs by outcome", "outcome")
	m.trainingDuration = m.histogram("training_duration_seconds", "Wall time of a full training run", m.trainingBuckets)
	m.stageDuration = m.histogramVec("training_stage_duration_seconds", "Wall time of each training stage", m.trainingBuckets, "stage")
	m.gridPoints = m.counter("grid_points_evaluated_total", "Hyperparameter combinations cross-validated")
	m.cvFits = m.counter("cv_fits_total", "Cross-validation fits performed")
	m.selectedModel = m.counterVec("model_selected_total", "Selections by winning model kind", "kind")
	m.macroF1 = m.gaugeVec("macro_f1", "Held-out macro F1 of the last evaluated model by kind", "kind")

	m.predictions = m.counterVec("predictions_total", "Predictions by predicted label", "label")
	m.predictionErrors = m.counter("prediction_errors_total", "Predictions that could not be served")
	m.predictionLatency = m.histogram("prediction_latency_milliseconds", "Prediction latency in milliseconds", m.histogramBuckets)
	m.observationsInserted = m.counter("observations_inserted_total", "Observations appended to the datastore")
	m.observationsRejected = m.counter("observations_rejected_total", "Observations rejected by validation")
	m.datasetRows = m.gauge("dataset_rows", "Rows in the most recently loaded dataset")
	m.repositoryLatency = m.histogramVec("repository_latency_milliseconds", "Datastore operation latency in milliseconds", m.histogramBuckets, "operation")

	m.artifactOps = m.counterVec("artifact_operations_total", "Model artifact operations by kind and result", "operation", "result")
	m.artifactSize = m.gauge("artifact_size_bytes", "Size of the current model artifact on disk")

	m.activeSessions = m.gauge("active_sessions", "Open operator sessions")
	m.logins = m.counterVec("logins_total", "Login attempts by result", "result")

	m.queueSize = m.gauge("queue_size", "Training jobs waiting in the queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queued training jobs")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Training jobs accepted by the queue")
	m.queueRejected = m.counter("queue_rejected_total", "Training jobs rejected because the queue was full or closed")
	m.workerCount = m.gauge("worker_count", "Training workers started")
	m.workerActiveCount = m.gauge("worker_active_count", "Training workers currently running a job")
	m.workerProcessingLatency = m.histogram("worker_job_duration_seconds", "Time a worker spent on one job", m.trainingBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Jobs that finished with an error")
	m.jobsByState = m.gaugeVec("jobs", "Tracked training jobs by state", "state")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds",
		m.histogramBuckets, "endpoint", "method", "status_code")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by endpoint, method and type", "endpoint", "method", "error_type")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// Training metrics.

// RecordTrainingRun counts a finished training run and observes its duration.
func RecordTrainingRun(outcome string, seconds float64) {
	globalManager.trainingRuns.WithLabelValues(outcome).Inc()
	globalManager.trainingDuration.Observe(seconds)
}

// RecordStageDuration observes how long one pipeline stage took.
func RecordStageDuration(stage string, seconds float64) {
	globalManager.stageDuration.WithLabelValues(stage).Observe(seconds)
}

// RecordGridPoint counts a cross-validated hyperparameter combination.
func RecordGridPoint() {
	globalManager.gridPoints.Inc()
}

// RecordCVFit counts one cross-validation fit.
func RecordCVFit() {
	globalManager.cvFits.Inc()
}

// RecordSelection counts the winning model kind.
func RecordSelection(kind string) {
	globalManager.selectedModel.WithLabelValues(kind).Inc()
}

// UpdateMacroF1 sets the held-out macro F1 of a model kind.
func UpdateMacroF1(kind string, score float64) {
	globalManager.macroF1.WithLabelValues(kind).Set(score)
}

// Inference and data metrics.

// RecordPrediction counts a served prediction.
func RecordPrediction(label string, latencyMs float64) {
	globalManager.predictions.WithLabelValues(label).Inc()
	globalManager.predictionLatency.Observe(latencyMs)
}

// RecordPredictionError counts a prediction that failed.
func RecordPredictionError() {
	globalManager.predictionErrors.Inc()
}

// RecordObservationInserted counts a stored observation.
func RecordObservationInserted() {
	globalManager.observationsInserted.Inc()
}

// RecordObservationRejected counts an observation rejected by validation.
func RecordObservationRejected() {
	globalManager.observationsRejected.Inc()
}

// UpdateDatasetRows sets the size of the last loaded dataset.
func UpdateDatasetRows(count int) {
	globalManager.datasetRows.Set(float64(count))
}

// RecordRepositoryLatency observes a datastore operation latency.
func RecordRepositoryLatency(operation string, latencyMs float64) {
	globalManager.repositoryLatency.WithLabelValues(operation).Observe(latencyMs)
}

// Artifact metrics.

// RecordArtifactOperation counts an artifact save or load by result.
func RecordArtifactOperation(operation, result string) {
	globalManager.artifactOps.WithLabelValues(operation, result).Inc()
}

// UpdateArtifactSize sets the on-disk artifact size.
func UpdateArtifactSize(bytes int64) {
	globalManager.artifactSize.Set(float64(bytes))
}

// Session metrics.

// UpdateActiveSessions sets the number of open sessions.
func UpdateActiveSessions(count int) {
	globalManager.activeSessions.Set(float64(count))
}

// RecordLogin counts a login attempt.
func RecordLogin(result string) {
	globalManager.logins.WithLabelValues(result).Inc()
}

// Queue metrics.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueEnqueueError increments the rejected enqueue counter.
func RecordQueueEnqueueError() {
	globalManager.queueRejected.Inc()
}

// Worker metrics.

// UpdateWorkerCount sets the number of started workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency observes how long a job took in seconds.
func RecordWorkerProcessingLatency(seconds float64) {
	globalManager.workerProcessingLatency.Observe(seconds)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// UpdateJobsByState sets how many tracked jobs are in a state.
func UpdateJobsByState(state string, count int) {
	globalManager.jobsByState.WithLabelValues(state).Set(float64(count))
}

// HTTP metrics.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// System metrics.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
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
