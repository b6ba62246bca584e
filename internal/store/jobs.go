package store

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ragbendra/distributed-job-queue/internal/apperror"
	"github.com/ragbendra/distributed-job-queue/internal/model"
	"github.com/ragbendra/distributed-job-queue/internal/retry"
)

// SubmitSpec is the input to Submit: a new job's type, priority, payload,
// optional max_retries override, and optional future scheduling.
type SubmitSpec struct {
	JobType      model.JobType
	Priority     model.Priority
	Payload      model.Payload
	MaxRetries   *int
	ScheduledFor *time.Time
}

// Submit inserts a new Job in PENDING status, atomically, and returns it.
// If ScheduledFor is in the future, no broker publish occurs — that is
// caller policy, not the store's concern.
func (s *Store) Submit(spec SubmitSpec, controller *retry.Controller) (*model.Job, error) {
	if !model.KnownJobTypes[spec.JobType] {
		return nil, apperror.New(apperror.KindValidation, "unknown job_type: "+string(spec.JobType))
	}
	priority := spec.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}

	maxRetries := controller.ResolveMaxRetries(spec.JobType, spec.MaxRetries)
	if maxRetries < 0 {
		return nil, apperror.New(apperror.KindValidation, "max_retries must be non-negative")
	}

	job := model.NewJob(spec.JobType, priority, spec.Payload, maxRetries, spec.ScheduledFor)

	if err := s.db.Create(job).Error; err != nil {
		return nil, apperror.Wrap(apperror.KindTransient, "submit job", err)
	}
	s.mirrorStatus(job)
	return job, nil
}

// Cancel transitions PENDING|RETRYING → CANCELLED. Any other source state
// fails with InvalidTransition and never mutates status (P4).
func (s *Store) Cancel(jobID uuid.UUID) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		job, err := lockJob(tx, jobID)
		if err != nil {
			return err
		}
		if !canTransition(job.Status, model.StatusCancelled) {
			return apperror.New(apperror.KindInvalidTransition,
				"cannot cancel job in status "+string(job.Status))
		}
		job.Status = model.StatusCancelled
		if err := tx.Save(job).Error; err != nil {
			return err
		}
		s.mirrorStatus(job)
		return nil
	})
}

// ClaimRunning transitions PENDING|RETRYING → RUNNING, stamping started_at
// (first time only) and worker_id. Re-claiming by the same worker while
// already RUNNING is a harmless no-op (duplicate delivery tolerance per
// spec.md §4.5); claiming by a different worker, or from any other source
// status, fails with InvalidTransition.
func (s *Store) ClaimRunning(jobID uuid.UUID, workerID string) (*model.Job, error) {
	var claimed *model.Job
	err := s.db.Transaction(func(tx *gorm.DB) error {
		job, err := lockJob(tx, jobID)
		if err != nil {
			return err
		}

		if job.Status == model.StatusRunning {
			if job.WorkerID != nil && *job.WorkerID == workerID {
				claimed = job
				return nil
			}
			return apperror.New(apperror.KindInvalidTransition,
				"job already running on another worker")
		}

		if !canTransition(job.Status, model.StatusRunning) {
			return apperror.New(apperror.KindInvalidTransition,
				"cannot claim job in status "+string(job.Status))
		}

		now := time.Now().UTC()
		if job.StartedAt == nil {
			job.StartedAt = &now
		}
		job.WorkerID = &workerID
		job.Status = model.StatusRunning

		if err := tx.Save(job).Error; err != nil {
			return err
		}
		claimed = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.mirrorStatus(claimed)
	return claimed, nil
}

// MarkCompleted transitions RUNNING → COMPLETED, stamping completed_at and
// clearing error_message.
func (s *Store) MarkCompleted(jobID uuid.UUID) error {
	var completed *model.Job
	err := s.db.Transaction(func(tx *gorm.DB) error {
		job, err := lockJob(tx, jobID)
		if err != nil {
			return err
		}
		if !canTransition(job.Status, model.StatusCompleted) {
			return apperror.New(apperror.KindInvalidTransition,
				"cannot complete job in status "+string(job.Status))
		}
		now := time.Now().UTC()
		job.Status = model.StatusCompleted
		job.CompletedAt = &now
		job.ErrorMessage = nil
		if err := tx.Save(job).Error; err != nil {
			return err
		}
		completed = job
		return nil
	})
	if err != nil {
		return err
	}
	s.mirrorStatus(completed)
	return nil
}

// FailureInput is one reported execution failure.
type FailureInput struct {
	ErrorMessage   string
	ErrorTraceback string
}

// RecordFailure atomically appends a RetryAttempt, increments retry_count,
// and — per the Retry Controller's Decision — either sets RETRYING with a
// next_retry_at or FAILED plus a DeadLetter row. The Decision is derived
// inside this single transaction so two concurrent failure reports for the
// same job_id cannot both decide "retry" off stale counts (P6).
func (s *Store) RecordFailure(jobID uuid.UUID, in FailureInput, controller *retry.Controller) (*retry.Decision, error) {
	var decision retry.Decision
	var failedJob *model.Job
	err := s.db.Transaction(func(tx *gorm.DB) error {
		job, err := lockJob(tx, jobID)
		if err != nil {
			return err
		}
		if job.Status.Terminal() {
			return apperror.New(apperror.KindInvalidTransition,
				"cannot record failure for job in terminal status "+string(job.Status))
		}

		now := time.Now().UTC()
		attemptNumber := job.RetryCount + 1

		startedAt := now
		if job.StartedAt != nil {
			startedAt = *job.StartedAt
		}

		attempt := model.RetryAttempt{
			ID:            uuid.New(),
			JobID:         job.ID,
			AttemptNumber: attemptNumber,
			StartedAt:     startedAt,
			FailedAt:      now,
			ErrorMessage:  in.ErrorMessage,
			ErrorTraceback: in.ErrorTraceback,
		}

		job.RetryCount = attemptNumber
		job.ErrorMessage = &in.ErrorMessage

		decision = controller.Decide(job.JobType, job.MaxRetries, job.RetryCount, now)

		switch decision.Kind {
		case retry.KindRetry:
			nextRetryAt := decision.NextRetryAt
			attempt.NextRetryAt = &nextRetryAt
			job.Status = model.StatusRetrying
		case retry.KindDeadLetter:
			job.Status = model.StatusFailed
			job.CompletedAt = &now
		}

		if err := tx.Create(&attempt).Error; err != nil {
			return err
		}
		if err := tx.Save(job).Error; err != nil {
			return err
		}
		failedJob = job

		if decision.Kind == retry.KindDeadLetter {
			var priorAttempts []model.RetryAttempt
			if err := tx.Where("job_id = ?", job.ID).Order("attempt_number ASC").Find(&priorAttempts).Error; err != nil {
				return err
			}
			allMessages := make(model.StringList, 0, len(priorAttempts))
			for _, a := range priorAttempts {
				allMessages = append(allMessages, a.ErrorMessage)
			}

			dl := model.DeadLetter{
				ID:               uuid.New(),
				JobID:            job.ID,
				JobType:          job.JobType,
				Payload:          job.Payload,
				TotalAttempts:    job.RetryCount,
				FirstAttemptAt:   job.CreatedAt,
				FinalFailureAt:   now,
				FailureReason:    in.ErrorMessage,
				AllErrorMessages: allMessages,
			}
			if err := tx.Create(&dl).Error; err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	s.mirrorStatus(failedJob)
	return &decision, nil
}

// Retry deletes the DeadLetter, resets the Job for a fresh lifecycle pass
// (retry_count := 0, error_message cleared, status PENDING) and removes its
// prior RetryAttempt rows so invariant 2's prefix (1..retry_count) holds
// with retry_count == 0. Publishing the re-enqueued message is the caller's
// responsibility.
func (s *Store) Retry(deadLetterID uuid.UUID) (*model.Job, error) {
	var job *model.Job
	err := s.db.Transaction(func(tx *gorm.DB) error {
		dlQuery := tx
		if tx.Dialector.Name() != "sqlite" {
			dlQuery = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var dl model.DeadLetter
		if err := dlQuery.First(&dl, "id = ?", deadLetterID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.New(apperror.KindNotFound, "dead letter not found")
			}
			return err
		}

		loaded, err := lockJob(tx, dl.JobID)
		if err != nil {
			return err
		}

		if err := tx.Delete(&model.DeadLetter{}, "id = ?", dl.ID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&model.RetryAttempt{}, "job_id = ?", dl.JobID).Error; err != nil {
			return err
		}

		loaded.RetryCount = 0
		loaded.ErrorMessage = nil
		loaded.Status = model.StatusPending
		loaded.StartedAt = nil
		loaded.CompletedAt = nil
		loaded.WorkerID = nil

		if err := tx.Save(loaded).Error; err != nil {
			return err
		}
		job = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.mirrorStatus(job)
	return job, nil
}

// GetJob fetches a job with its retry history, ordered by attempt_number.
func (s *Store) GetJob(jobID uuid.UUID) (*model.Job, error) {
	var job model.Job
	err := s.db.Preload("RetryAttempts", func(db *gorm.DB) *gorm.DB {
		return db.Order("attempt_number ASC")
	}).First(&job, "id = ?", jobID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.New(apperror.KindNotFound, "job not found")
		}
		return nil, err
	}
	return &job, nil
}

// JobFilter narrows ListJobs; zero-value fields are unfiltered.
type JobFilter struct {
	Status   model.Status
	Priority model.Priority
	JobType  model.JobType
}

// Paging bounds ListJobs/ListDeadLetters results.
type Paging struct {
	Limit  int
	Offset int
}

// ListJobs returns jobs matching filters, newest first, per spec.md §6.
func (s *Store) ListJobs(filter JobFilter, paging Paging) ([]model.Job, error) {
	query := s.db.Model(&model.Job{})
	query = applyJobFilter(query, filter)

	limit := paging.Limit
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}

	var jobs []model.Job
	err := query.Order("created_at DESC").Limit(limit).Offset(paging.Offset).Find(&jobs).Error
	return jobs, err
}

func applyJobFilter(query *gorm.DB, filter JobFilter) *gorm.DB {
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Priority != "" {
		query = query.Where("priority = ?", filter.Priority)
	}
	if filter.JobType != "" {
		query = query.Where("job_type = ?", filter.JobType)
	}
	return query
}

// CountByStatus returns the number of jobs in a given status, for the
// /stats endpoint.
func (s *Store) CountByStatus(status model.Status) (int64, error) {
	var count int64
	err := s.db.Model(&model.Job{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

// CountByPriority returns the number of jobs in a given priority band,
// whatever their status, for the /stats endpoint's priority breakdown.
func (s *Store) CountByPriority(priority model.Priority) (int64, error) {
	var count int64
	err := s.db.Model(&model.Job{}).Where("priority = ?", priority).Count(&count).Error
	return count, err
}

// lockJob fetches a Job row with a row-level lock, scoped to tx, so the
// rest of the caller's transaction observes a consistent snapshot. SQLite
// (used by the test suite) has no SELECT ... FOR UPDATE syntax — its own
// single-writer transaction semantics already serialize these reads, so the
// clause is only added for dialects that support it.
func lockJob(tx *gorm.DB, jobID uuid.UUID) (*model.Job, error) {
	query := tx
	if tx.Dialector.Name() != "sqlite" {
		query = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var job model.Job
	err := query.First(&job, "id = ?", jobID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.New(apperror.KindNotFound, "job not found")
		}
		return nil, err
	}
	return &job, nil
}
