// Package metrics promotes the teacher's hand-rolled atomic-counter
// config/metrics.go into real Prometheus collectors
// (github.com/prometheus/client_golang), injected via a *Metrics value
// instead of the teacher's package-level appMetrics singleton.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ragbendra/distributed-job-queue/internal/model"
)

// Metrics holds every collector the process exposes at GET /metrics.
// Constructed once per process and passed to the components that record
// against it.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	jobsSubmitted  *prometheus.CounterVec
	jobsCompleted  *prometheus.CounterVec
	jobsFailed     *prometheus.CounterVec
	jobsRetried    *prometheus.CounterVec
	jobsDeadLetter *prometheus.CounterVec

	rateLimitRejections prometheus.Counter
	activeWorkers        prometheus.Gauge
}

// New registers and returns the full collector set against a fresh
// registry, so multiple processes in the same test binary never collide on
// the default global registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		httpRequestsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "jobqueue_http_requests_total",
			Help: "Total HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jobqueue_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		jobsSubmitted: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "jobqueue_jobs_submitted_total",
			Help: "Jobs submitted, by job_type and priority.",
		}, []string{"job_type", "priority"}),
		jobsCompleted: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "jobqueue_jobs_completed_total",
			Help: "Jobs completed, by job_type.",
		}, []string{"job_type"}),
		jobsFailed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "jobqueue_jobs_failed_total",
			Help: "Job execution attempts that failed, by job_type.",
		}, []string{"job_type"}),
		jobsRetried: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "jobqueue_jobs_retried_total",
			Help: "Failures that resulted in a retry decision, by job_type.",
		}, []string{"job_type"}),
		jobsDeadLetter: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "jobqueue_jobs_dead_lettered_total",
			Help: "Failures that exhausted retries, by job_type.",
		}, []string{"job_type"}),
		rateLimitRejections: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "jobqueue_rate_limit_rejections_total",
			Help: "REST requests rejected by the per-client rate limiter.",
		}),
		activeWorkers: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "jobqueue_active_workers",
			Help: "Worker processes with a live heartbeat.",
		}),
	}
	return m
}

// Handler returns the gin.HandlerFunc for GET /metrics.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}

// Middleware records request count and latency for every REST call.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(m.httpRequestDuration.WithLabelValues(c.Request.Method, c.FullPath()))
		c.Next()
		timer.ObserveDuration()
		m.httpRequestsTotal.WithLabelValues(c.Request.Method, c.FullPath(), statusLabel(c.Writer.Status())).Inc()
	}
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// RecordSubmitted increments the submitted counter for jobType/priority.
func (m *Metrics) RecordSubmitted(jobType model.JobType, priority model.Priority) {
	m.jobsSubmitted.WithLabelValues(string(jobType), string(priority)).Inc()
}

// RecordCompleted increments the completed counter for jobType.
func (m *Metrics) RecordCompleted(jobType model.JobType) {
	m.jobsCompleted.WithLabelValues(string(jobType)).Inc()
}

// RecordFailure increments the failed counter, and either the retried or
// dead-lettered counter depending on the Retry Controller's decision.
func (m *Metrics) RecordFailure(jobType model.JobType, deadLettered bool) {
	m.jobsFailed.WithLabelValues(string(jobType)).Inc()
	if deadLettered {
		m.jobsDeadLetter.WithLabelValues(string(jobType)).Inc()
	} else {
		m.jobsRetried.WithLabelValues(string(jobType)).Inc()
	}
}

// RecordRateLimitRejection increments the rate-limit rejection counter.
func (m *Metrics) RecordRateLimitRejection() {
	m.rateLimitRejections.Inc()
}

// SetActiveWorkers sets the active-workers gauge to the latest heartbeat
// count (advisory, mirrored from the Status Cache).
func (m *Metrics) SetActiveWorkers(n int) {
	m.activeWorkers.Set(float64(n))
}
