package store

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ragbendra/distributed-job-queue/internal/apperror"
	"github.com/ragbendra/distributed-job-queue/internal/model"
	"github.com/ragbendra/distributed-job-queue/internal/retry"
)

// newTestStore opens a fresh in-memory SQLite database per test, migrated
// and ready to use. ":memory:" alone is shared per-connection by
// mattn/go-sqlite3, so each test gets its own unique DSN to stay isolated
// under parallel runs.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := "file:" + uuid.New().String() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	s := New(db)
	require.NoError(t, s.Migrate())
	return s
}

func testController() *retry.Controller {
	return retry.NewController(
		retry.TypeConfig{BaseDelay: 2 * time.Second, MaxDelay: 300 * time.Second, MaxRetries: 3},
		retry.WithRand(rand.New(rand.NewSource(7))),
	)
}

func TestSubmit_RejectsUnknownJobType(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Submit(SubmitSpec{JobType: "not_a_type", Payload: model.Payload(`{}`)}, testController())
	require.Error(t, err)
	kind, ok := apperror.KindOf(err)
	require.True(t, ok)
	require.Equal(t, apperror.KindValidation, kind)
}

// TestScenario_HappyPath: submit, claim, complete.
func TestScenario_HappyPath(t *testing.T) {
	s := newTestStore(t)
	job, err := s.Submit(SubmitSpec{JobType: model.TypeSendEmail, Payload: model.Payload(`{"to":"a@b.com"}`)}, testController())
	require.NoError(t, err)
	require.Equal(t, model.StatusPending, job.Status)
	require.Equal(t, 3, job.MaxRetries)

	claimed, err := s.ClaimRunning(job.ID, "worker-1")
	require.NoError(t, err)
	require.Equal(t, model.StatusRunning, claimed.Status)
	require.NotNil(t, claimed.StartedAt)

	require.NoError(t, s.MarkCompleted(job.ID))

	got, err := s.GetJob(job.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	require.Nil(t, got.ErrorMessage)
}

// TestScenario_RetryThenSucceed: a job fails once (within budget), retries,
// then completes.
func TestScenario_RetryThenSucceed(t *testing.T) {
	s := newTestStore(t)
	ctrl := testController()
	job, err := s.Submit(SubmitSpec{JobType: model.TypeSendEmail, Payload: model.Payload(`{}`)}, ctrl)
	require.NoError(t, err)

	_, err = s.ClaimRunning(job.ID, "worker-1")
	require.NoError(t, err)

	decision, err := s.RecordFailure(job.ID, FailureInput{ErrorMessage: "smtp timeout"}, ctrl)
	require.NoError(t, err)
	require.Equal(t, retry.KindRetry, decision.Kind)

	got, err := s.GetJob(job.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusRetrying, got.Status)
	require.Equal(t, 1, got.RetryCount)
	require.Len(t, got.RetryAttempts, 1)
	require.Equal(t, 1, got.RetryAttempts[0].AttemptNumber)

	_, err = s.ClaimRunning(job.ID, "worker-2")
	require.NoError(t, err)
	require.NoError(t, s.MarkCompleted(job.ID))

	got, err = s.GetJob(job.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusCompleted, got.Status)
}

// TestScenario_ExhaustRetries: a max_retries=1 job fails twice (attempt 1
// within budget, attempt 2 exhausts it per the strict boundary rule — N+1
// total attempts) and lands in the dead letter table.
func TestScenario_ExhaustRetries(t *testing.T) {
	s := newTestStore(t)
	ctrl := testController()
	maxRetries := 1
	job, err := s.Submit(SubmitSpec{JobType: model.TypeSendEmail, Payload: model.Payload(`{}`), MaxRetries: &maxRetries}, ctrl)
	require.NoError(t, err)

	_, err = s.ClaimRunning(job.ID, "worker-1")
	require.NoError(t, err)
	decision, err := s.RecordFailure(job.ID, FailureInput{ErrorMessage: "first failure"}, ctrl)
	require.NoError(t, err)
	require.Equal(t, retry.KindRetry, decision.Kind)

	_, err = s.ClaimRunning(job.ID, "worker-1")
	require.NoError(t, err)
	decision, err = s.RecordFailure(job.ID, FailureInput{ErrorMessage: "second failure"}, ctrl)
	require.NoError(t, err)
	require.Equal(t, retry.KindDeadLetter, decision.Kind)

	got, err := s.GetJob(job.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusFailed, got.Status)
	require.Equal(t, 2, got.RetryCount)
	require.Len(t, got.RetryAttempts, 2)

	var dls []model.DeadLetter
	require.NoError(t, s.db.Find(&dls).Error)
	require.Len(t, dls, 1)
	require.Equal(t, job.ID, dls[0].JobID)
	require.Equal(t, 2, dls[0].TotalAttempts)
	require.Equal(t, []string{"first failure", "second failure"}, []string(dls[0].AllErrorMessages))
}

// TestScenario_CancellationRace: cancelling a RUNNING job is rejected; a
// PENDING job can still be cancelled.
func TestScenario_CancellationRace(t *testing.T) {
	s := newTestStore(t)
	ctrl := testController()

	job, err := s.Submit(SubmitSpec{JobType: model.TypeSendEmail, Payload: model.Payload(`{}`)}, ctrl)
	require.NoError(t, err)
	require.NoError(t, s.Cancel(job.ID))

	got, err := s.GetJob(job.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusCancelled, got.Status)

	job2, err := s.Submit(SubmitSpec{JobType: model.TypeSendEmail, Payload: model.Payload(`{}`)}, ctrl)
	require.NoError(t, err)
	_, err = s.ClaimRunning(job2.ID, "worker-1")
	require.NoError(t, err)

	err = s.Cancel(job2.ID)
	require.Error(t, err)
	kind, ok := apperror.KindOf(err)
	require.True(t, ok)
	require.Equal(t, apperror.KindInvalidTransition, kind)
}

// TestScenario_DeadLetterRetry: retrying a dead-lettered job resets it for a
// fresh lifecycle pass, clearing prior retry history.
func TestScenario_DeadLetterRetry(t *testing.T) {
	s := newTestStore(t)
	ctrl := testController()
	maxRetries := 0
	job, err := s.Submit(SubmitSpec{JobType: model.TypeSendEmail, Payload: model.Payload(`{}`), MaxRetries: &maxRetries}, ctrl)
	require.NoError(t, err)

	_, err = s.ClaimRunning(job.ID, "worker-1")
	require.NoError(t, err)
	decision, err := s.RecordFailure(job.ID, FailureInput{ErrorMessage: "boom"}, ctrl)
	require.NoError(t, err)
	require.Equal(t, retry.KindDeadLetter, decision.Kind)

	var dls []model.DeadLetter
	require.NoError(t, s.db.Find(&dls).Error)
	require.Len(t, dls, 1)

	resurrected, err := s.Retry(dls[0].ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusPending, resurrected.Status)
	require.Equal(t, 0, resurrected.RetryCount)
	require.Nil(t, resurrected.ErrorMessage)
	require.Nil(t, resurrected.StartedAt)

	_, err = s.GetDeadLetter(dls[0].ID)
	require.Error(t, err)

	got, err := s.GetJob(job.ID)
	require.NoError(t, err)
	require.Empty(t, got.RetryAttempts)
}

// TestScenario_ClaimIdempotency: re-claiming by the same worker is a
// harmless no-op; a different worker is rejected.
func TestScenario_ClaimIdempotency(t *testing.T) {
	s := newTestStore(t)
	ctrl := testController()
	job, err := s.Submit(SubmitSpec{JobType: model.TypeSendEmail, Payload: model.Payload(`{}`)}, ctrl)
	require.NoError(t, err)

	first, err := s.ClaimRunning(job.ID, "worker-1")
	require.NoError(t, err)

	again, err := s.ClaimRunning(job.ID, "worker-1")
	require.NoError(t, err)
	require.Equal(t, first.StartedAt, again.StartedAt)

	_, err = s.ClaimRunning(job.ID, "worker-2")
	require.Error(t, err)
	kind, ok := apperror.KindOf(err)
	require.True(t, ok)
	require.Equal(t, apperror.KindInvalidTransition, kind)
}

// TestRecordFailure_RejectsTerminalJob covers invariant P4: a terminal job
// never mutates status again.
func TestRecordFailure_RejectsTerminalJob(t *testing.T) {
	s := newTestStore(t)
	ctrl := testController()
	job, err := s.Submit(SubmitSpec{JobType: model.TypeSendEmail, Payload: model.Payload(`{}`)}, ctrl)
	require.NoError(t, err)
	_, err = s.ClaimRunning(job.ID, "worker-1")
	require.NoError(t, err)
	require.NoError(t, s.MarkCompleted(job.ID))

	_, err = s.RecordFailure(job.ID, FailureInput{ErrorMessage: "too late"}, ctrl)
	require.Error(t, err)
	kind, ok := apperror.KindOf(err)
	require.True(t, ok)
	require.Equal(t, apperror.KindInvalidTransition, kind)
}

func TestListJobs_FiltersAndCapsLimit(t *testing.T) {
	s := newTestStore(t)
	ctrl := testController()
	for i := 0; i < 3; i++ {
		_, err := s.Submit(SubmitSpec{JobType: model.TypeSendEmail, Priority: model.PriorityHigh, Payload: model.Payload(`{}`)}, ctrl)
		require.NoError(t, err)
	}
	_, err := s.Submit(SubmitSpec{JobType: model.TypeProcessVideo, Priority: model.PriorityLow, Payload: model.Payload(`{}`)}, ctrl)
	require.NoError(t, err)

	jobs, err := s.ListJobs(JobFilter{Priority: model.PriorityHigh}, Paging{})
	require.NoError(t, err)
	require.Len(t, jobs, 3)

	jobs, err = s.ListJobs(JobFilter{}, Paging{Limit: 2})
	require.NoError(t, err)
	require.Len(t, jobs, 2)
}

func TestScheduledJob_CreateValidatesCronAndRejectsDuplicateName(t *testing.T) {
	s := newTestStore(t)
	def, err := s.CreateScheduledJob(ScheduledJobSpec{
		Name:           "nightly-report",
		JobType:        model.TypeSendEmail,
		CronExpression: "0 2 * * *",
		Payload:        model.Payload(`{}`),
		IsActive:       true,
	})
	require.NoError(t, err)
	require.True(t, def.NextRunAt.After(time.Now().UTC().Add(-time.Minute)))

	_, err = s.CreateScheduledJob(ScheduledJobSpec{
		Name:           "nightly-report",
		JobType:        model.TypeSendEmail,
		CronExpression: "0 2 * * *",
		Payload:        model.Payload(`{}`),
	})
	require.Error(t, err)

	_, err = s.CreateScheduledJob(ScheduledJobSpec{
		Name:           "bad-cron",
		JobType:        model.TypeSendEmail,
		CronExpression: "not a cron",
		Payload:        model.Payload(`{}`),
	})
	require.Error(t, err)
}

// TestScenario_CronMaterialization: firing a due scheduled job inserts a Job
// row and advances next_run_at monotonically (invariant 4); a second fire
// against the stale observed row loses the compare-and-set race.
func TestScenario_CronMaterialization(t *testing.T) {
	s := newTestStore(t)
	ctrl := testController()
	def, err := s.CreateScheduledJob(ScheduledJobSpec{
		Name:           "every-minute",
		JobType:        model.TypeScrapeWebsite,
		CronExpression: "* * * * *",
		Payload:        model.Payload(`{"url":"https://example.com"}`),
		IsActive:       true,
	})
	require.NoError(t, err)

	// Force it due now.
	past := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, s.db.Model(&model.ScheduledJob{}).Where("id = ?", def.ID).Update("next_run_at", past).Error)
	def.NextRunAt = past

	due, err := s.DueScheduledJobs(time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, due, 1)

	job, err := s.FireScheduledJob(due[0], ctrl, time.Now().UTC())
	require.NoError(t, err)
	require.NotNil(t, job)
	require.Equal(t, model.TypeScrapeWebsite, job.JobType)

	updated, err := s.GetScheduledJob(def.ID)
	require.NoError(t, err)
	require.True(t, updated.NextRunAt.After(past))

	// Racing against the now-stale observed row loses the CAS.
	stale, err := s.FireScheduledJob(due[0], ctrl, time.Now().UTC())
	require.NoError(t, err)
	require.Nil(t, stale)
}

func TestCountByStatusAndPriority(t *testing.T) {
	s := newTestStore(t)
	ctrl := testController()
	_, err := s.Submit(SubmitSpec{JobType: model.TypeSendEmail, Priority: model.PriorityHigh, Payload: model.Payload(`{}`)}, ctrl)
	require.NoError(t, err)

	count, err := s.CountByStatus(model.StatusPending)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	count, err = s.CountByPriority(model.PriorityHigh)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}
