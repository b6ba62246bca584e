package retry

import (
	"math/rand"
	"testing"
	"time"

	"github.com/ragbendra/distributed-job-queue/internal/model"
	"github.com/stretchr/testify/require"
)

func newTestController() *Controller {
	return NewController(
		TypeConfig{BaseDelay: 2 * time.Second, MaxDelay: 300 * time.Second, MaxRetries: 3},
		WithRand(rand.New(rand.NewSource(42))),
	)
}

func TestDecide_RetriesWithinBudget(t *testing.T) {
	c := newTestController()
	now := time.Now()

	d := c.Decide(model.TypeSendEmail, 3, 1, now)
	require.Equal(t, KindRetry, d.Kind)
	require.InDelta(t, 1.5, d.Delay.Seconds(), 0.5) // base 2s ±20%, floored: 1s or 2s
	require.WithinDuration(t, now.Add(d.Delay), d.NextRetryAt, time.Millisecond)

	d = c.Decide(model.TypeSendEmail, 3, 2, now)
	require.Equal(t, KindRetry, d.Kind)
	require.InDelta(t, 4, d.Delay.Seconds(), 0.4*4)
}

func TestDecide_ExhaustionIsStrictBoundary(t *testing.T) {
	c := newTestController()
	now := time.Now()

	// max_retries=3: up to 4 total attempts (initial + 3). The 4th failure
	// leaves retry_count=4, which has exhausted its budget and must
	// dead-letter, never see a 5th run.
	d := c.Decide(model.TypeSendEmail, 3, 4, now)
	require.Equal(t, KindDeadLetter, d.Kind)
	require.Zero(t, d.Delay)
}

func TestBackoff_NeverExceedsMaxDelay(t *testing.T) {
	c := newTestController()
	now := time.Now()
	// process_video: base=5s, max=3600s — after enough attempts the raw
	// exponential blows past max and must clamp.
	d := c.Decide(model.TypeProcessVideo, 100, 20, now)
	require.Equal(t, KindRetry, d.Kind)
	require.LessOrEqual(t, d.Delay, 3600*time.Second)
	require.GreaterOrEqual(t, d.Delay, time.Duration(0))
}

func TestBackoff_PropertyDelayBoundsAndDoubling(t *testing.T) {
	c := NewController(TypeConfig{BaseDelay: 2 * time.Second, MaxDelay: 300 * time.Second, MaxRetries: 10})

	for n := 1; n <= 6; n++ {
		d := c.Decide(model.TypeSendEmail, 10, n, time.Now())
		require.Equal(t, KindRetry, d.Kind)
		require.GreaterOrEqual(t, d.Delay, time.Duration(0))
		require.LessOrEqual(t, d.Delay, 300*time.Second)

		// expected delay doubles per attempt: base*2^(n-1) ±20%, plus up to
		// 1s lost to flooring.
		raw := float64(int64(2) << (n - 1))
		require.InDelta(t, raw, d.Delay.Seconds(), 0.2*raw+1)
	}
}

func TestResolveMaxRetries_OverrideWinsOverTypeDefault(t *testing.T) {
	c := newTestController()

	override := 7
	require.Equal(t, 7, c.ResolveMaxRetries(model.TypeSendEmail, &override))
	require.Equal(t, 3, c.ResolveMaxRetries(model.TypeSendEmail, nil))
	require.Equal(t, 5, c.ResolveMaxRetries(model.TypeProcessVideo, nil))
}

func TestResolveMaxRetries_UnknownTypeFallsBackToFallback(t *testing.T) {
	c := newTestController()
	require.Equal(t, 3, c.ResolveMaxRetries(model.JobType("unregistered"), nil))
}
