package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ragbendra/distributed-job-queue/internal/store"
)

// createScheduledJob handles POST /scheduled-jobs: validates the cron
// expression and rejects a duplicate name, per spec.md §6.
func (a *API) createScheduledJob(c *gin.Context) {
	var req CreateScheduledJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	def, err := a.store.CreateScheduledJob(store.ScheduledJobSpec{
		Name:           req.Name,
		JobType:        req.JobType,
		CronExpression: req.CronExpression,
		Payload:        req.Payload,
		Priority:       req.Priority,
		IsActive:       isActive,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, scheduledJobDetailFrom(def))
}

// listScheduledJobs handles GET /scheduled-jobs.
func (a *API) listScheduledJobs(c *gin.Context) {
	defs, err := a.store.ListScheduledJobs()
	if err != nil {
		writeError(c, err)
		return
	}

	details := make([]ScheduledJobDetail, 0, len(defs))
	for i := range defs {
		details = append(details, scheduledJobDetailFrom(&defs[i]))
	}
	c.JSON(http.StatusOK, details)
}

// deleteScheduledJob handles DELETE /scheduled-jobs/{id}.
func (a *API) deleteScheduledJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, newErrorResponse(http.StatusBadRequest, "Validation Failed", "invalid scheduled job id"))
		return
	}

	if err := a.store.DeleteScheduledJob(id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// toggleScheduledJob handles PATCH /scheduled-jobs/{id}/toggle: flips
// is_active.
func (a *API) toggleScheduledJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, newErrorResponse(http.StatusBadRequest, "Validation Failed", "invalid scheduled job id"))
		return
	}

	def, err := a.store.ToggleScheduledJob(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, scheduledJobDetailFrom(def))
}
