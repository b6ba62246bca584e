package worker

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ragbendra/distributed-job-queue/internal/broker"
	"github.com/ragbendra/distributed-job-queue/internal/handlers"
	"github.com/ragbendra/distributed-job-queue/internal/model"
	"github.com/ragbendra/distributed-job-queue/internal/retry"
	"github.com/ragbendra/distributed-job-queue/internal/store"
)

type fakeConsumer struct{}

func (fakeConsumer) Consume(ctx context.Context, queue string, prefetch int, handler broker.Handler) error {
	return nil
}

type fakePublisher struct {
	published []broker.Message
	delays    []time.Duration
}

func (f *fakePublisher) PublishDelayed(ctx context.Context, msg broker.Message, delay time.Duration) error {
	f.published = append(f.published, msg)
	f.delays = append(f.delays, delay)
	return nil
}

type fakeHeartbeater struct{ calls int }

func (f *fakeHeartbeater) Heartbeat(ctx context.Context, workerID string) error {
	f.calls++
	return nil
}

type stubHandler struct{ err error }

func (s stubHandler) Handle(ctx context.Context, payload model.Payload) error { return s.err }

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dsn := "file:" + uuid.New().String() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	s := store.New(db)
	require.NoError(t, s.Migrate())
	return s
}

func testController() *retry.Controller {
	return retry.NewController(
		retry.TypeConfig{BaseDelay: time.Second, MaxDelay: 10 * time.Second, MaxRetries: 3},
		retry.WithRand(rand.New(rand.NewSource(3))),
	)
}

// TestHandleMessage_SuccessCompletesJob covers spec.md §4.5 steps 3-5.
func TestHandleMessage_SuccessCompletesJob(t *testing.T) {
	s := newTestStore(t)
	ctrl := testController()
	job, err := s.Submit(store.SubmitSpec{JobType: model.TypeSendEmail, Payload: model.Payload(`{}`)}, ctrl)
	require.NoError(t, err)

	registry := handlers.Registry{model.TypeSendEmail: stubHandler{}}
	pub := &fakePublisher{}
	rt := New(s, ctrl, registry, fakeConsumer{}, pub, &fakeHeartbeater{}, "worker-1", 4, zap.NewNop())

	err = rt.handleMessage(context.Background(), broker.Message{
		JobID: job.ID.String(), JobType: model.TypeSendEmail, Priority: model.PriorityMedium, Payload: job.Payload,
	})
	require.NoError(t, err)

	got, err := s.GetJob(job.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusCompleted, got.Status)
	require.Empty(t, pub.published)
}

// TestHandleMessage_FailureWithinBudgetPublishesRetry covers step 6.
func TestHandleMessage_FailureWithinBudgetPublishesRetry(t *testing.T) {
	s := newTestStore(t)
	ctrl := testController()
	job, err := s.Submit(store.SubmitSpec{JobType: model.TypeSendEmail, Payload: model.Payload(`{}`)}, ctrl)
	require.NoError(t, err)

	registry := handlers.Registry{model.TypeSendEmail: stubHandler{err: errors.New("smtp down")}}
	pub := &fakePublisher{}
	rt := New(s, ctrl, registry, fakeConsumer{}, pub, &fakeHeartbeater{}, "worker-1", 4, zap.NewNop())

	err = rt.handleMessage(context.Background(), broker.Message{
		JobID: job.ID.String(), JobType: model.TypeSendEmail, Priority: model.PriorityMedium, Payload: job.Payload,
	})
	require.NoError(t, err)

	got, err := s.GetJob(job.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusRetrying, got.Status)
	require.Len(t, pub.published, 1)
	require.Equal(t, job.ID.String(), pub.published[0].JobID)
}

// TestHandleMessage_UnknownHandlerDeadLettersWithoutInvokingAnything covers
// step 2.
func TestHandleMessage_UnknownHandlerDeadLettersWithoutInvokingAnything(t *testing.T) {
	s := newTestStore(t)
	ctrl := testController()
	maxRetries := 0
	job, err := s.Submit(store.SubmitSpec{JobType: model.TypeSendEmail, Payload: model.Payload(`{}`), MaxRetries: &maxRetries}, ctrl)
	require.NoError(t, err)

	rt := New(s, ctrl, handlers.Registry{}, fakeConsumer{}, &fakePublisher{}, &fakeHeartbeater{}, "worker-1", 4, zap.NewNop())

	err = rt.handleMessage(context.Background(), broker.Message{
		JobID: job.ID.String(), JobType: model.TypeSendEmail, Priority: model.PriorityMedium, Payload: job.Payload,
	})
	require.NoError(t, err)

	got, err := s.GetJob(job.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusFailed, got.Status)
}

// TestHandleMessage_UnparseableJobIDIsDropped covers step 1.
func TestHandleMessage_UnparseableJobIDIsDropped(t *testing.T) {
	s := newTestStore(t)
	ctrl := testController()
	rt := New(s, ctrl, handlers.Registry{}, fakeConsumer{}, &fakePublisher{}, &fakeHeartbeater{}, "worker-1", 4, zap.NewNop())

	err := rt.handleMessage(context.Background(), broker.Message{JobID: "not-a-uuid", JobType: model.TypeSendEmail})
	require.Error(t, err)
}

// TestHandleMessage_ClaimFailureDropsMessage covers step 3's already-claimed
// path: a job claimed by another worker never reaches the handler.
func TestHandleMessage_ClaimFailureDropsMessage(t *testing.T) {
	s := newTestStore(t)
	ctrl := testController()
	job, err := s.Submit(store.SubmitSpec{JobType: model.TypeSendEmail, Payload: model.Payload(`{}`)}, ctrl)
	require.NoError(t, err)
	_, err = s.ClaimRunning(job.ID, "other-worker")
	require.NoError(t, err)

	registry := handlers.Registry{model.TypeSendEmail: stubHandler{err: errors.New("should never run")}}
	rt := New(s, ctrl, registry, fakeConsumer{}, &fakePublisher{}, &fakeHeartbeater{}, "worker-1", 4, zap.NewNop())

	err = rt.handleMessage(context.Background(), broker.Message{
		JobID: job.ID.String(), JobType: model.TypeSendEmail, Priority: model.PriorityMedium, Payload: job.Payload,
	})
	require.NoError(t, err)
}

func TestStart_RegistersAllPriorityQueuesAndHeartbeats(t *testing.T) {
	s := newTestStore(t)
	ctrl := testController()
	hb := &fakeHeartbeater{}
	rt := New(s, ctrl, handlers.Registry{}, fakeConsumer{}, &fakePublisher{}, hb, "worker-1", 4, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, rt.Start(ctx))

	require.Eventually(t, func() bool { return hb.calls >= 1 }, time.Second, 10*time.Millisecond)
}
