package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ragbendra/distributed-job-queue/internal/broker"
	"github.com/ragbendra/distributed-job-queue/internal/health"
	"github.com/ragbendra/distributed-job-queue/internal/metrics"
	"github.com/ragbendra/distributed-job-queue/internal/model"
	"github.com/ragbendra/distributed-job-queue/internal/retry"
	"github.com/ragbendra/distributed-job-queue/internal/store"
	"github.com/ragbendra/distributed-job-queue/internal/tracing"
)

// Publisher is the narrow broker surface the API needs to publish a
// newly-submitted or retried job, so tests can substitute a fake.
type Publisher interface {
	Publish(ctx context.Context, msg broker.Message) error
}

// Limiter is the narrow ratelimit surface the API needs, keyed per
// X-Client-Id (SPEC_FULL.md §10).
type Limiter interface {
	Allow(ctx context.Context, clientID string) bool
	Remaining(ctx context.Context, clientID string) int
}

// StatusCache is the narrow Status Cache surface the REST surface reads
// from: ActiveWorkers for the /stats endpoint's advisory worker count, and
// GetStatus for GET /jobs/{id}'s advisory cached_status field (spec.md §2:
// "consumed by read APIs" — never the authoritative value, which always
// comes from the Store row).
type StatusCache interface {
	ActiveWorkers(ctx context.Context) (int, error)
	GetStatus(ctx context.Context, jobID uuid.UUID) (model.Status, bool)
}

// API holds every dependency the REST surface needs, injected explicitly —
// no package-level globals, grounded in the teacher's JobController but
// generalized past its two-service constructor into the full component
// graph SPEC_FULL.md §9 describes.
type API struct {
	store       *store.Store
	controller  *retry.Controller
	publisher   Publisher
	limiter     Limiter
	statusCache StatusCache
	metrics     *metrics.Metrics
	tracer      *tracing.Provider
	health      *health.Checker
	logger      *zap.Logger
}

// New builds an API. tracer and limiter may be nil: a nil tracer skips
// trace middleware, a nil limiter disables rate limiting entirely (distinct
// from ratelimit.Limiter's own enabled=false no-op, for callers wiring the
// API without Redis at all).
func New(s *store.Store, controller *retry.Controller, publisher Publisher, limiter Limiter, statusCache StatusCache, m *metrics.Metrics, tracer *tracing.Provider, checker *health.Checker, logger *zap.Logger) *API {
	return &API{
		store:       s,
		controller:  controller,
		publisher:   publisher,
		limiter:     limiter,
		statusCache: statusCache,
		metrics:     m,
		tracer:      tracer,
		health:      checker,
		logger:      logger,
	}
}

// Router builds the full Gin engine: middleware chain, health/metrics
// probes, and the /api/v1 route group for jobs, dead-letters and
// scheduled-jobs.
func (a *API) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), RecoveryMiddleware(a.logger))
	if a.tracer != nil {
		r.Use(a.tracer.GinMiddleware())
	}
	if a.metrics != nil {
		r.Use(a.metrics.Middleware())
		r.GET("/metrics", a.metrics.Handler())
	}
	if a.health != nil {
		r.GET("/healthz", a.health.Handler())
	}
	if a.limiter != nil {
		r.Use(a.rateLimitMiddleware())
	}

	v1 := r.Group("/api/v1")
	v1.POST("/jobs", a.createJob)
	v1.GET("/jobs", a.listJobs)
	v1.GET("/jobs/:id", a.getJob)
	v1.DELETE("/jobs/:id", a.cancelJob)
	v1.GET("/stats", a.getStats)
	v1.GET("/dead-letters", a.listDeadLetters)
	v1.GET("/dead-letters/:id", a.getDeadLetter)
	v1.DELETE("/dead-letters/:id", a.deleteDeadLetter)
	v1.POST("/dead-letters/:id/retry", a.retryDeadLetter)
	v1.POST("/scheduled-jobs", a.createScheduledJob)
	v1.GET("/scheduled-jobs", a.listScheduledJobs)
	v1.DELETE("/scheduled-jobs/:id", a.deleteScheduledJob)
	v1.PATCH("/scheduled-jobs/:id/toggle", a.toggleScheduledJob)

	return r
}

// rateLimitMiddleware enforces the per-client fixed-window budget, keyed on
// X-Client-Id (falling back to the remote address for unauthenticated
// callers), mirroring the teacher's JobController request-header handling
// and X-RateLimit-* response headers.
func (a *API) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := c.GetHeader("X-Client-Id")
		if clientID == "" {
			clientID = c.ClientIP()
		}

		if !a.limiter.Allow(c.Request.Context(), clientID) {
			remaining := a.limiter.Remaining(c.Request.Context(), clientID)
			if a.metrics != nil {
				a.metrics.RecordRateLimitRejection()
			}
			c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
			c.JSON(http.StatusTooManyRequests, newErrorResponse(
				http.StatusTooManyRequests, "Too Many Requests", "rate limit exceeded for client "+clientID))
			c.Abort()
			return
		}

		remaining := a.limiter.Remaining(c.Request.Context(), clientID)
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Next()
	}
}
