// Package api is the REST surface (spec.md §6): a Gin router over the Job
// Store, Retry Controller and Broker Adapter. Grounded in the teacher's
// controller/JobController.go + dto package, generalized from a single
// client-scoped job feed into the full jobs/dead-letters/scheduled-jobs
// surface the spec describes, and from package-level services to an
// explicit dependency struct.
package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/ragbendra/distributed-job-queue/internal/model"
)

// SubmitJobRequest is the request body for POST /jobs.
type SubmitJobRequest struct {
	JobType      model.JobType  `json:"job_type" binding:"required"`
	Priority     model.Priority `json:"priority"`
	Payload      model.Payload  `json:"payload" binding:"required"`
	MaxRetries   *int           `json:"max_retries"`
	ScheduledFor *time.Time     `json:"scheduled_for"`
}

// SubmitJobResponse is the 201 body for POST /jobs.
type SubmitJobResponse struct {
	JobID     uuid.UUID   `json:"job_id"`
	Status    model.Status `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}

// RetryAttemptDetail is one entry in JobWithRetries.RetryAttempts.
type RetryAttemptDetail struct {
	AttemptNumber  int        `json:"attempt_number"`
	StartedAt      time.Time  `json:"started_at"`
	FailedAt       time.Time  `json:"failed_at"`
	ErrorMessage   string     `json:"error_message"`
	ErrorTraceback string     `json:"error_traceback,omitempty"`
	NextRetryAt    *time.Time `json:"next_retry_at,omitempty"`
}

// JobDetail is the GET /jobs list row shape.
type JobDetail struct {
	ID           uuid.UUID      `json:"id"`
	JobType      model.JobType  `json:"job_type"`
	Priority     model.Priority `json:"priority"`
	Status       model.Status   `json:"status"`
	Payload      model.Payload  `json:"payload"`
	MaxRetries   int            `json:"max_retries"`
	RetryCount   int            `json:"retry_count"`
	CreatedAt    time.Time      `json:"created_at"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	ScheduledFor *time.Time     `json:"scheduled_for,omitempty"`
	WorkerID     *string        `json:"worker_id,omitempty"`
	ErrorMessage *string        `json:"error_message,omitempty"`
	// CachedStatus is the Status Cache's advisory mirror, set only by
	// GET /jobs/{id}, and only when a cache is configured and holds a
	// (possibly stale) entry for this job; GET /jobs list rows omit it.
	// Status above is always the authoritative value read from the Store row.
	CachedStatus *model.Status `json:"cached_status,omitempty"`
}

// JobWithRetries is the GET /jobs/{id} response shape: JobDetail plus its
// full retry history.
type JobWithRetries struct {
	JobDetail
	RetryAttempts []RetryAttemptDetail `json:"retry_attempts"`
}

func jobDetailFrom(j *model.Job) JobDetail {
	return JobDetail{
		ID:           j.ID,
		JobType:      j.JobType,
		Priority:     j.Priority,
		Status:       j.Status,
		Payload:      j.Payload,
		MaxRetries:   j.MaxRetries,
		RetryCount:   j.RetryCount,
		CreatedAt:    j.CreatedAt,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
		ScheduledFor: j.ScheduledFor,
		WorkerID:     j.WorkerID,
		ErrorMessage: j.ErrorMessage,
	}
}

func jobWithRetriesFrom(j *model.Job) JobWithRetries {
	attempts := make([]RetryAttemptDetail, 0, len(j.RetryAttempts))
	for _, a := range j.RetryAttempts {
		attempts = append(attempts, RetryAttemptDetail{
			AttemptNumber:  a.AttemptNumber,
			StartedAt:      a.StartedAt,
			FailedAt:       a.FailedAt,
			ErrorMessage:   a.ErrorMessage,
			ErrorTraceback: a.ErrorTraceback,
			NextRetryAt:    a.NextRetryAt,
		})
	}
	return JobWithRetries{JobDetail: jobDetailFrom(j), RetryAttempts: attempts}
}

// DeadLetterDetail is the GET /dead-letters list/detail row shape.
type DeadLetterDetail struct {
	ID               uuid.UUID      `json:"id"`
	JobID            uuid.UUID      `json:"job_id"`
	JobType          model.JobType  `json:"job_type"`
	Payload          model.Payload  `json:"payload"`
	TotalAttempts    int            `json:"total_attempts"`
	FirstAttemptAt   time.Time      `json:"first_attempt_at"`
	FinalFailureAt   time.Time      `json:"final_failure_at"`
	FailureReason    string         `json:"failure_reason"`
	AllErrorMessages model.StringList `json:"all_error_messages"`
}

func deadLetterDetailFrom(dl *model.DeadLetter) DeadLetterDetail {
	return DeadLetterDetail{
		ID:               dl.ID,
		JobID:            dl.JobID,
		JobType:          dl.JobType,
		Payload:          dl.Payload,
		TotalAttempts:    dl.TotalAttempts,
		FirstAttemptAt:   dl.FirstAttemptAt,
		FinalFailureAt:   dl.FinalFailureAt,
		FailureReason:    dl.FailureReason,
		AllErrorMessages: dl.AllErrorMessages,
	}
}

// StatsResponse is the GET /stats body: counters by status plus a priority
// breakdown and the advisory active-worker count mirrored from the Status
// Cache.
type StatsResponse struct {
	ByStatus      map[model.Status]int64   `json:"by_status"`
	ByPriority    map[model.Priority]int64 `json:"by_priority"`
	ActiveWorkers int                      `json:"active_workers"`
}

// CreateScheduledJobRequest is the request body for POST /scheduled-jobs.
type CreateScheduledJobRequest struct {
	Name           string         `json:"name" binding:"required"`
	JobType        model.JobType  `json:"job_type" binding:"required"`
	CronExpression string         `json:"cron_expression" binding:"required"`
	Payload        model.Payload  `json:"payload" binding:"required"`
	Priority       model.Priority `json:"priority"`
	IsActive       *bool          `json:"is_active"`
}

// ScheduledJobDetail is the response shape for scheduled-job endpoints.
type ScheduledJobDetail struct {
	ID             uuid.UUID      `json:"id"`
	Name           string         `json:"name"`
	JobType        model.JobType  `json:"job_type"`
	CronExpression string         `json:"cron_expression"`
	Payload        model.Payload  `json:"payload"`
	Priority       model.Priority `json:"priority"`
	IsActive       bool           `json:"is_active"`
	LastRunAt      *time.Time     `json:"last_run_at,omitempty"`
	NextRunAt      time.Time      `json:"next_run_at"`
	CreatedAt      time.Time      `json:"created_at"`
}

func scheduledJobDetailFrom(sj *model.ScheduledJob) ScheduledJobDetail {
	return ScheduledJobDetail{
		ID:             sj.ID,
		Name:           sj.Name,
		JobType:        sj.JobType,
		CronExpression: sj.CronExpression,
		Payload:        sj.Payload,
		Priority:       sj.Priority,
		IsActive:       sj.IsActive,
		LastRunAt:      sj.LastRunAt,
		NextRunAt:      sj.NextRunAt,
		CreatedAt:      sj.CreatedAt,
	}
}
