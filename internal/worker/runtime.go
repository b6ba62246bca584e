// Package worker is the Worker Runtime (component E): consumes messages
// from the three priority queues and drives each job through Store +
// handler calls per spec.md §4.5's per-message loop. The per-priority-queue
// consumer fan-out is grounded in the teacher's service/JobWorker.go
// (concurrency goroutines sharing one Kafka reader, generalized here to one
// AMQP channel per goroutine since amqp091.Channel is not safe for
// concurrent use — spec.md §5's shared-resources note).
package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ragbendra/distributed-job-queue/internal/apperror"
	"github.com/ragbendra/distributed-job-queue/internal/broker"
	"github.com/ragbendra/distributed-job-queue/internal/handlers"
	"github.com/ragbendra/distributed-job-queue/internal/model"
	"github.com/ragbendra/distributed-job-queue/internal/retry"
	"github.com/ragbendra/distributed-job-queue/internal/store"
)

// Consumer is the narrow broker surface the runtime needs to start
// per-queue consumption, so tests can substitute a fake.
type Consumer interface {
	Consume(ctx context.Context, queue string, prefetch int, handler broker.Handler) error
}

// Publisher is the narrow broker surface the runtime needs to re-enqueue a
// retried job.
type Publisher interface {
	PublishDelayed(ctx context.Context, msg broker.Message, delay time.Duration) error
}

// Heartbeater is the narrow cache surface the runtime needs for liveness.
type Heartbeater interface {
	Heartbeat(ctx context.Context, workerID string) error
}

var priorityQueues = []model.Priority{model.PriorityHigh, model.PriorityMedium, model.PriorityLow}

// Tracer is the narrow tracing surface the runtime needs to span one
// message's processing. A nil Tracer (the zero value of *tracing.Provider
// held behind this interface) is never passed in — callers that don't want
// tracing construct a Runtime with WithTracer omitted instead.
type Tracer interface {
	StartMessageSpan(ctx context.Context, jobID, jobType, workerID string) (context.Context, trace.Span)
}

// Runtime ties a Store, a Retry Controller, a handler Registry and a broker
// together into the loop spec.md §4.5 describes.
type Runtime struct {
	store      *store.Store
	controller *retry.Controller
	registry   handlers.Registry
	consumer   Consumer
	publisher  Publisher
	cache      Heartbeater
	tracer     Tracer
	workerID   string
	prefetch   int
	logger     *zap.Logger
}

// New builds a Runtime. prefetch bounds per-queue concurrency (spec.md
// §4.5/§5: "prefetch is the slot count").
func New(s *store.Store, controller *retry.Controller, registry handlers.Registry, consumer Consumer, publisher Publisher, cache Heartbeater, workerID string, prefetch int, logger *zap.Logger) *Runtime {
	return &Runtime{
		store:      s,
		controller: controller,
		registry:   registry,
		consumer:   consumer,
		publisher:  publisher,
		cache:      cache,
		workerID:   workerID,
		prefetch:   prefetch,
		logger:     logger,
	}
}

// WithTracer attaches a span-per-message tracer, grounded in
// internal/tracing.Provider.StartMessageSpan. Optional: a Runtime built
// without it just skips span creation.
func (r *Runtime) WithTracer(tracer Tracer) *Runtime {
	r.tracer = tracer
	return r
}

// Start registers prefetch consumers for each priority queue (each with its
// own channel and a per-channel prefetch of 1, so prefetch is the queue's
// handler slot count) and begins the heartbeat loop. It returns once
// consumers are registered; message handling continues on the goroutines
// broker.Consume spawns internally.
func (r *Runtime) Start(ctx context.Context) error {
	slots := r.prefetch
	if slots < 1 {
		slots = 1
	}
	for _, p := range priorityQueues {
		queue := p.Queue()
		for i := 0; i < slots; i++ {
			if err := r.consumer.Consume(ctx, queue, 1, r.handleMessage); err != nil {
				return err
			}
		}
	}

	go r.heartbeatLoop(ctx)
	return nil
}

// heartbeatLoop writes a liveness key at least every 30s, well inside the
// Status Cache's 60s TTL (spec.md §4.5).
func (r *Runtime) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()

	if err := r.cache.Heartbeat(ctx, r.workerID); err != nil {
		r.logger.Warn("worker: initial heartbeat", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.cache.Heartbeat(ctx, r.workerID); err != nil {
				r.logger.Warn("worker: heartbeat", zap.Error(err))
			}
		}
	}
}

// handleMessage implements spec.md §4.5's per-message loop. Returning a
// non-nil error tells the broker adapter to NACK-without-requeue;
// returning nil tells it to ACK. Every branch below explicitly chooses one
// of those two outcomes — there is no third option, matching the spec's
// ACK/NACK-no-requeue-only contract.
func (r *Runtime) handleMessage(ctx context.Context, msg broker.Message) error {
	jobID, err := uuid.Parse(msg.JobID)
	if err != nil {
		r.logger.Error("worker: unparseable job id, dropping", zap.String("raw_job_id", msg.JobID), zap.Error(err))
		return err
	}

	handler, ok := r.registry.Resolve(msg.JobType)
	if !ok {
		r.logger.Error("worker: no handler registered for job type", zap.String("job_type", string(msg.JobType)))
		_, failErr := r.store.RecordFailure(jobID, store.FailureInput{
			ErrorMessage: "no handler registered for job_type " + string(msg.JobType),
		}, r.controller)
		if failErr != nil {
			r.logger.Error("worker: record failure for unhandled job type", zap.String("job_id", msg.JobID), zap.Error(failErr))
		}
		return nil
	}

	if r.tracer != nil {
		var span trace.Span
		ctx, span = r.tracer.StartMessageSpan(ctx, msg.JobID, string(msg.JobType), r.workerID)
		defer span.End()
	}

	job, err := r.store.ClaimRunning(jobID, r.workerID)
	if err != nil {
		r.logger.Info("worker: could not claim job, dropping message",
			zap.String("job_id", msg.JobID), zap.Error(err))
		return nil
	}

	execErr := handler.Handle(ctx, job.Payload)
	if execErr == nil {
		if err := r.store.MarkCompleted(jobID); err != nil {
			r.logger.Error("worker: mark completed", zap.String("job_id", msg.JobID), zap.Error(err))
			return err
		}
		return nil
	}

	decision, failErr := r.store.RecordFailure(jobID, store.FailureInput{
		ErrorMessage: execErr.Error(),
	}, r.controller)
	if failErr != nil {
		if apperror.Is(failErr, apperror.KindInvalidTransition) {
			// Job moved on (e.g. cancelled) while the handler was running.
			return nil
		}
		r.logger.Error("worker: record failure", zap.String("job_id", msg.JobID), zap.Error(failErr))
		return failErr
	}

	if decision.Kind == retry.KindRetry {
		retryMsg := broker.Message{
			JobID:    msg.JobID,
			JobType:  msg.JobType,
			Priority: msg.Priority,
			Payload:  job.Payload,
			// job.RetryCount was read before RecordFailure incremented it;
			// the message's RetryCount is informational, so reflect the
			// post-failure count directly rather than re-fetching the row.
			RetryCount: job.RetryCount + 1,
		}
		if err := r.publisher.PublishDelayed(ctx, retryMsg, decision.Delay); err != nil {
			r.logger.Error("worker: publish retry", zap.String("job_id", msg.JobID), zap.Error(err))
			return err
		}
	}
	return nil
}
