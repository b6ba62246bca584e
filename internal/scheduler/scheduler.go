// Package scheduler is the Cron Scheduler (component F): a poll loop that
// finds due ScheduledJob definitions and fires each one, per spec.md §4.3.
// Grounded in the teacher's service/JobScheduler.go — same fixed-delay poll
// loop plus a periodic statistics-logging loop — generalized from Kafka
// publish + in-memory job mutation to Store-owned transactional fires, and
// from the teacher's package-level log.Printf to an injected zap logger.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ragbendra/distributed-job-queue/internal/broker"
	"github.com/ragbendra/distributed-job-queue/internal/model"
	"github.com/ragbendra/distributed-job-queue/internal/retry"
	"github.com/ragbendra/distributed-job-queue/internal/store"
)

// Publisher is the narrow broker surface the scheduler needs, so tests can
// substitute a fake.
type Publisher interface {
	Publish(ctx context.Context, msg broker.Message) error
}

// Scheduler polls the Job Store for due recurring definitions and
// materializes each fire into a Job row plus a broker publish.
type Scheduler struct {
	store        *store.Store
	controller   *retry.Controller
	publisher    Publisher
	pollInterval time.Duration
	logger       *zap.Logger
}

// New builds a Scheduler. pollInterval comes from the
// scheduler_poll_interval_seconds config key; defaults to 60s in
// internal/config.
func New(s *store.Store, controller *retry.Controller, publisher Publisher, pollInterval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		store:        s,
		controller:   controller,
		publisher:    publisher,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// Run polls on a fixed delay until ctx is cancelled. Fixed delay (poll,
// wait, poll) rather than a fixed-rate ticker, matching the teacher's
// JobScheduler.Start — so one slow poll never queues up a backlog of
// overlapping poll cycles.
func (s *Scheduler) Run(ctx context.Context) {
	statsTicker := time.NewTicker(60 * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-statsTicker.C:
			s.logStatistics(ctx)
		default:
		}

		s.pollOnce(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.pollInterval):
		}
	}
}

// pollOnce fires every due scheduled job, committing per-row so one bad
// definition (an expired cron parse, a lost CAS race) never blocks the
// rest, per spec.md §4.3 step 3.
func (s *Scheduler) pollOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler: recovered from panic in poll cycle", zap.Any("panic", r))
		}
	}()

	now := time.Now().UTC()
	due, err := s.store.DueScheduledJobs(now)
	if err != nil {
		s.logger.Error("scheduler: list due scheduled jobs", zap.Error(err))
		return
	}
	if len(due) == 0 {
		return
	}

	s.logger.Info("scheduler: firing due scheduled jobs", zap.Int("count", len(due)))
	for _, def := range due {
		s.fireOne(ctx, def)
	}
}

func (s *Scheduler) fireOne(ctx context.Context, def model.ScheduledJob) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler: recovered firing scheduled job", zap.String("name", def.Name), zap.Any("panic", r))
		}
	}()

	job, err := s.store.FireScheduledJob(def, s.controller, time.Now().UTC())
	if err != nil {
		s.logger.Error("scheduler: fire scheduled job", zap.String("name", def.Name), zap.Error(err))
		return
	}
	if job == nil {
		// Another scheduler instance already won this fire's CAS.
		return
	}

	msg := broker.Message{
		JobID:    job.ID.String(),
		JobType:  job.JobType,
		Priority: job.Priority,
		Payload:  job.Payload,
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.logger.Error("scheduler: publish materialized job", zap.String("job_id", job.ID.String()), zap.Error(err))
		return
	}

	s.logger.Info("scheduler: materialized scheduled job",
		zap.String("name", def.Name), zap.String("job_id", job.ID.String()))
}

// logStatistics logs per-status job counts every poll-stats tick, echoing
// the teacher's JobScheduler.LogStatistics.
func (s *Scheduler) logStatistics(ctx context.Context) {
	statuses := []model.Status{
		model.StatusPending, model.StatusRunning, model.StatusCompleted,
		model.StatusFailed, model.StatusCancelled, model.StatusRetrying,
	}
	fields := make([]zap.Field, 0, len(statuses))
	for _, status := range statuses {
		count, err := s.store.CountByStatus(status)
		if err != nil {
			s.logger.Warn("scheduler: count by status", zap.String("status", string(status)), zap.Error(err))
			continue
		}
		fields = append(fields, zap.Int64(string(status), count))
	}
	s.logger.Info("scheduler: job statistics", fields...)
}
