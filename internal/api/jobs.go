package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ragbendra/distributed-job-queue/internal/broker"
	"github.com/ragbendra/distributed-job-queue/internal/model"
	"github.com/ragbendra/distributed-job-queue/internal/store"
)

// createJob handles POST /jobs: submits the job to the Store, and —
// unless scheduled_for is in the future — publishes it immediately, per
// spec.md §6's table.
func (a *API) createJob(c *gin.Context) {
	var req SubmitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	job, err := a.store.Submit(store.SubmitSpec{
		JobType:      req.JobType,
		Priority:     req.Priority,
		Payload:      req.Payload,
		MaxRetries:   req.MaxRetries,
		ScheduledFor: req.ScheduledFor,
	}, a.controller)
	if err != nil {
		writeError(c, err)
		return
	}

	if a.metrics != nil {
		a.metrics.RecordSubmitted(job.JobType, job.Priority)
	}

	if job.ScheduledFor == nil || !job.ScheduledFor.After(time.Now().UTC()) {
		msg := broker.Message{JobID: job.ID.String(), JobType: job.JobType, Priority: job.Priority, Payload: job.Payload}
		if err := a.publisher.Publish(c.Request.Context(), msg); err != nil {
			a.logger.Error("api: publish submitted job", zap.String("job_id", job.ID.String()), zap.Error(err))
			writeError(c, err)
			return
		}
	}

	c.JSON(http.StatusCreated, SubmitJobResponse{JobID: job.ID, Status: job.Status, CreatedAt: job.CreatedAt})
}

// getJob handles GET /jobs/{id}.
func (a *API) getJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, newErrorResponse(http.StatusBadRequest, "Validation Failed", "invalid job id"))
		return
	}

	job, err := a.store.GetJob(id)
	if err != nil {
		writeError(c, err)
		return
	}

	detail := jobWithRetriesFrom(job)
	if a.statusCache != nil {
		if cached, ok := a.statusCache.GetStatus(c.Request.Context(), id); ok {
			detail.CachedStatus = &cached
		}
	}

	c.JSON(http.StatusOK, detail)
}

// listJobs handles GET /jobs with status/priority/job_type/limit/offset
// filters, per spec.md §6.
func (a *API) listJobs(c *gin.Context) {
	filter := store.JobFilter{
		Status:   model.Status(c.Query("status")),
		Priority: model.Priority(c.Query("priority")),
		JobType:  model.JobType(c.Query("job_type")),
	}
	paging := store.Paging{
		Limit:  parseIntQuery(c, "limit", 1000),
		Offset: parseIntQuery(c, "offset", 0),
	}

	jobs, err := a.store.ListJobs(filter, paging)
	if err != nil {
		writeError(c, err)
		return
	}

	details := make([]JobDetail, 0, len(jobs))
	for i := range jobs {
		details = append(details, jobDetailFrom(&jobs[i]))
	}
	c.JSON(http.StatusOK, details)
}

// cancelJob handles DELETE /jobs/{id}.
func (a *API) cancelJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, newErrorResponse(http.StatusBadRequest, "Validation Failed", "invalid job id"))
		return
	}

	if err := a.store.Cancel(id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// getStats handles GET /stats: per-status counters, per-priority
// breakdown, and the Status Cache's advisory active_workers count.
func (a *API) getStats(c *gin.Context) {
	statuses := []model.Status{
		model.StatusPending, model.StatusRunning, model.StatusCompleted,
		model.StatusFailed, model.StatusCancelled, model.StatusRetrying,
	}
	priorities := []model.Priority{model.PriorityHigh, model.PriorityMedium, model.PriorityLow}

	resp := StatsResponse{
		ByStatus:   make(map[model.Status]int64, len(statuses)),
		ByPriority: make(map[model.Priority]int64, len(priorities)),
	}

	for _, status := range statuses {
		count, err := a.store.CountByStatus(status)
		if err != nil {
			writeError(c, err)
			return
		}
		resp.ByStatus[status] = count
	}
	for _, priority := range priorities {
		count, err := a.store.CountByPriority(priority)
		if err != nil {
			writeError(c, err)
			return
		}
		resp.ByPriority[priority] = count
	}

	if a.statusCache != nil {
		n, err := a.statusCache.ActiveWorkers(c.Request.Context())
		if err != nil {
			a.logger.Warn("api: active workers lookup", zap.Error(err))
		} else {
			resp.ActiveWorkers = n
		}
	}

	c.JSON(http.StatusOK, resp)
}

func parseIntQuery(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
