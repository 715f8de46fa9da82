// Package observability provides logging, metrics, and tracing.
//
// It integrates with OpenTelemetry for system monitoring.
// The package provides comprehensive observability features
// including metrics collection, distributed tracing, and logging.
package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequestsTotal counts HTTP requests by route, method, and status label.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	// HTTPRequestDuration records request durations by route and method.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	// LLMRequestsTotal counts LLM content-generation calls by model and outcome.
	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_requests_total",
			Help: "Total number of LLM content generation requests",
		},
		[]string{"model", "event_type", "outcome"},
	)
	// LLMRequestDuration records durations of LLM calls by model.
	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "LLM request duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		},
		[]string{"model"},
	)

	// JobsEnqueuedTotal counts jobs enqueued by type.
	JobsEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_enqueued_total",
			Help: "Total number of jobs enqueued",
		},
		[]string{"type"},
	)
	// JobsProcessing is a gauge of the number of currently processing jobs by type.
	JobsProcessing = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jobs_processing",
			Help: "Number of jobs currently processing",
		},
		[]string{"type"},
	)
	// JobsCompletedTotal counts jobs completed by type.
	JobsCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_completed_total",
			Help: "Total number of jobs completed",
		},
		[]string{"type"},
	)
	// JobsFailedTotal counts jobs failed by type, split by whether the job fell back
	// (e.g. SMS exhausted retries and fell back to email) or simply failed.
	JobsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_failed_total",
			Help: "Total number of jobs failed",
		},
		[]string{"type", "terminal_status"},
	)

	// ProviderSendsTotal counts outbound sends per provider, channel and outcome.
	ProviderSendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_sends_total",
			Help: "Total number of provider send attempts",
		},
		[]string{"provider", "channel", "outcome"},
	)
	// ProviderSendDuration records provider send call durations.
	ProviderSendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_send_duration_seconds",
			Help:    "Provider send duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"provider", "channel"},
	)

	// CircuitBreakerStatus tracks circuit breaker state.
	CircuitBreakerStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_status",
			Help: "Circuit breaker status (0=closed, 1=open, 2=half-open)",
		},
		[]string{"service", "operation"},
	)

	// SchedulerRunsTotal counts scheduler sweep runs by task name and outcome.
	SchedulerRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_runs_total",
			Help: "Total number of scheduler task runs",
		},
		[]string{"task", "outcome"},
	)
	// SchedulerQueueItemsCreated counts queue items created by scheduler tasks.
	SchedulerQueueItemsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_queue_items_created_total",
			Help: "Total number of queue items created by scheduler tasks",
		},
		[]string{"task"},
	)

	// TenantPoolsActive is a gauge of currently open per-tenant database pools.
	TenantPoolsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tenant_pools_active",
			Help: "Number of currently open per-tenant database connection pools",
		},
	)
)

// InitMetrics registers all Prometheus metrics with the default registry.
func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(LLMRequestsTotal)
	prometheus.MustRegister(LLMRequestDuration)
	prometheus.MustRegister(JobsEnqueuedTotal)
	prometheus.MustRegister(JobsProcessing)
	prometheus.MustRegister(JobsCompletedTotal)
	prometheus.MustRegister(JobsFailedTotal)
	prometheus.MustRegister(ProviderSendsTotal)
	prometheus.MustRegister(ProviderSendDuration)
	prometheus.MustRegister(CircuitBreakerStatus)
	prometheus.MustRegister(SchedulerRunsTotal)
	prometheus.MustRegister(SchedulerQueueItemsCreated)
	prometheus.MustRegister(TenantPoolsActive)
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			// fallback when route pattern is unavailable
			route = r.URL.Path
		}
		method := r.Method
		status := ww.Status()
		HTTPRequestsTotal.WithLabelValues(route, method, http.StatusText(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, method).Observe(dur)
	})
}

// EnqueueJob increments the enqueued jobs counter for the given type.
func EnqueueJob(jobType string) {
	JobsEnqueuedTotal.WithLabelValues(jobType).Inc()
}

// StartProcessingJob increments the processing gauge for the given type.
func StartProcessingJob(jobType string) {
	JobsProcessing.WithLabelValues(jobType).Inc()
}

// CompleteJob marks a job complete by decrementing processing gauge and incrementing completed counter.
func CompleteJob(jobType string) {
	JobsProcessing.WithLabelValues(jobType).Dec()
	JobsCompletedTotal.WithLabelValues(jobType).Inc()
}

// FailJob marks a job failed by decrementing processing gauge and incrementing failed counter,
// tagged with its terminal status (failed or failed_fallback_email).
func FailJob(jobType, terminalStatus string) {
	JobsProcessing.WithLabelValues(jobType).Dec()
	JobsFailedTotal.WithLabelValues(jobType, terminalStatus).Inc()
}

// RecordLLMRequest records the outcome and duration of an LLM content generation call.
func RecordLLMRequest(model, eventType, outcome string, dur time.Duration) {
	LLMRequestsTotal.WithLabelValues(model, eventType, outcome).Inc()
	LLMRequestDuration.WithLabelValues(model).Observe(dur.Seconds())
}

// RecordProviderSend records the outcome and duration of a provider send attempt.
func RecordProviderSend(provider, channel, outcome string, dur time.Duration) {
	ProviderSendsTotal.WithLabelValues(provider, channel, outcome).Inc()
	ProviderSendDuration.WithLabelValues(provider, channel).Observe(dur.Seconds())
}

// RecordCircuitBreakerStatus records circuit breaker state.
func RecordCircuitBreakerStatus(service, operation string, status int) {
	CircuitBreakerStatus.WithLabelValues(service, operation).Set(float64(status))
}

// RecordSchedulerRun records the outcome of a scheduler task sweep.
func RecordSchedulerRun(task, outcome string) {
	SchedulerRunsTotal.WithLabelValues(task, outcome).Inc()
}

// RecordSchedulerQueueItemsCreated increments the number of queue items a scheduler task created.
func RecordSchedulerQueueItemsCreated(task string, count int) {
	SchedulerQueueItemsCreated.WithLabelValues(task).Add(float64(count))
}
