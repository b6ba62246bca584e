package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ragbendra/distributed-job-queue/internal/broker"
	"github.com/ragbendra/distributed-job-queue/internal/model"
	"github.com/ragbendra/distributed-job-queue/internal/store"
)

// listDeadLetters handles GET /dead-letters.
func (a *API) listDeadLetters(c *gin.Context) {
	filter := store.DeadLetterFilter{JobType: model.JobType(c.Query("job_type"))}
	paging := store.Paging{
		Limit:  parseIntQuery(c, "limit", 500),
		Offset: parseIntQuery(c, "offset", 0),
	}

	dls, err := a.store.ListDeadLetters(filter, paging)
	if err != nil {
		writeError(c, err)
		return
	}

	details := make([]DeadLetterDetail, 0, len(dls))
	for i := range dls {
		details = append(details, deadLetterDetailFrom(&dls[i]))
	}
	c.JSON(http.StatusOK, details)
}

// getDeadLetter handles GET /dead-letters/{id}.
func (a *API) getDeadLetter(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, newErrorResponse(http.StatusBadRequest, "Validation Failed", "invalid dead letter id"))
		return
	}

	dl, err := a.store.GetDeadLetter(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, deadLetterDetailFrom(dl))
}

// deleteDeadLetter handles DELETE /dead-letters/{id}.
func (a *API) deleteDeadLetter(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, newErrorResponse(http.StatusBadRequest, "Validation Failed", "invalid dead letter id"))
		return
	}

	if err := a.store.DeleteDeadLetter(id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// retryDeadLetter handles POST /dead-letters/{id}/retry: resets the job's
// counters via the Store and republishes it at its original priority, per
// spec.md §6's table.
func (a *API) retryDeadLetter(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, newErrorResponse(http.StatusBadRequest, "Validation Failed", "invalid dead letter id"))
		return
	}

	job, err := a.store.Retry(id)
	if err != nil {
		writeError(c, err)
		return
	}

	msg := broker.Message{JobID: job.ID.String(), JobType: job.JobType, Priority: job.Priority, Payload: job.Payload}
	if err := a.publisher.Publish(c.Request.Context(), msg); err != nil {
		a.logger.Error("api: publish retried dead letter", zap.String("job_id", job.ID.String()), zap.Error(err))
		writeError(c, err)
		return
	}

	c.Status(http.StatusAccepted)
}
