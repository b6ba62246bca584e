package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/ragbendra/distributed-job-queue/internal/model"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/metrics", m.Handler())
	engine.ServeHTTP(w, req)
	require.Equal(t, 200, w.Code)
	return w.Body.String()
}

func TestRecordSubmitted_AppearsInScrape(t *testing.T) {
	m := New()
	m.RecordSubmitted(model.TypeSendEmail, model.PriorityHigh)

	body := scrape(t, m)
	require.Contains(t, body, `jobqueue_jobs_submitted_total{job_type="send_email",priority="high"} 1`)
}

func TestRecordFailure_DeadLetteredIncrementsDeadLetterCounter(t *testing.T) {
	m := New()
	m.RecordFailure(model.TypeProcessVideo, true)

	body := scrape(t, m)
	require.Contains(t, body, `jobqueue_jobs_failed_total{job_type="process_video"} 1`)
	require.Contains(t, body, `jobqueue_jobs_dead_lettered_total{job_type="process_video"} 1`)
	require.NotContains(t, body, `jobqueue_jobs_retried_total{job_type="process_video"} 1`)
}

func TestRecordFailure_RetriedIncrementsRetriedCounter(t *testing.T) {
	m := New()
	m.RecordFailure(model.TypeProcessVideo, false)

	body := scrape(t, m)
	require.Contains(t, body, `jobqueue_jobs_retried_total{job_type="process_video"} 1`)
}

func TestSetActiveWorkers_ReflectsLatestValue(t *testing.T) {
	m := New()
	m.SetActiveWorkers(3)

	body := scrape(t, m)
	require.True(t, strings.Contains(body, "jobqueue_active_workers 3"))
}

func TestMiddleware_RecordsRequestCount(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()
	engine := gin.New()
	engine.Use(m.Middleware())
	engine.GET("/ping", func(c *gin.Context) { c.Status(200) })

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest("GET", "/ping", nil))
	require.Equal(t, 200, w.Code)

	body := scrape(t, m)
	require.Contains(t, body, `jobqueue_http_requests_total{method="GET",route="/ping",status="2xx"} 1`)
}
