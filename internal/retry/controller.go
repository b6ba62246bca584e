// Package retry implements the Retry Controller (component D): given a job
// type and the retry_count left after a just-reported failure, it decides
// whether the job retries (and when, under exponential backoff with
// jitter) or is dead-lettered, per spec.md §4.2.
package retry

import (
	"math"
	"math/rand"
	"time"

	"github.com/ragbendra/distributed-job-queue/internal/model"
)

// TypeConfig is the per-job-type retry policy from spec.md §4.2's table.
type TypeConfig struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	MaxRetries int
}

// DefaultConfigs is the built-in policy table for the fixed job type
// registry.
var DefaultConfigs = map[model.JobType]TypeConfig{
	model.TypeSendEmail:     {BaseDelay: 2 * time.Second, MaxDelay: 300 * time.Second, MaxRetries: 3},
	model.TypeProcessVideo:  {BaseDelay: 5 * time.Second, MaxDelay: 3600 * time.Second, MaxRetries: 5},
	model.TypeScrapeWebsite: {BaseDelay: 10 * time.Second, MaxDelay: 600 * time.Second, MaxRetries: 3},
}

// Kind distinguishes the two possible outcomes of a Decision.
type Kind string

const (
	// KindRetry means the job should be re-enqueued after Delay.
	KindRetry Kind = "retry"
	// KindDeadLetter means retries are exhausted; no publish occurs.
	KindDeadLetter Kind = "dead_letter"
)

// Decision is the outcome of RecordFailure's call into the controller,
// returned so the Store can persist it and the caller can act on it.
type Decision struct {
	Kind        Kind
	Delay       time.Duration
	NextRetryAt time.Time
}

// Controller computes retry Decisions. The zero value is not usable; build
// one with NewController.
type Controller struct {
	configs  map[model.JobType]TypeConfig
	fallback TypeConfig
	rng      *rand.Rand
}

// Option configures a Controller at construction.
type Option func(*Controller)

// WithRand overrides the jitter source, for deterministic tests.
func WithRand(rng *rand.Rand) Option {
	return func(c *Controller) { c.rng = rng }
}

// WithTypeConfigs overrides (merges into) the built-in per-type policy
// table.
func WithTypeConfigs(configs map[model.JobType]TypeConfig) Option {
	return func(c *Controller) {
		for jt, cfg := range configs {
			c.configs[jt] = cfg
		}
	}
}

// NewController builds a Controller seeded with DefaultConfigs and a
// fallback policy used for any job type absent from the table (configurable
// via the default_retry_base_delay/default_retry_max_delay/
// default_max_retries environment keys).
func NewController(fallback TypeConfig, opts ...Option) *Controller {
	c := &Controller{
		configs:  make(map[model.JobType]TypeConfig, len(DefaultConfigs)),
		fallback: fallback,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for jt, cfg := range DefaultConfigs {
		c.configs[jt] = cfg
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ConfigFor returns the effective policy for a job type, falling back to the
// controller's default policy if the type is unregistered.
func (c *Controller) ConfigFor(jobType model.JobType) TypeConfig {
	if cfg, ok := c.configs[jobType]; ok {
		return cfg
	}
	return c.fallback
}

// Decide implements the backoff formula and decision rule of spec.md §4.2.
//
// maxRetries is the Job's own (already-resolved) max_retries — the type
// policy's MaxRetries is only used as the default at submission time, never
// consulted again here. retryCount is the value AFTER the just-reported
// failure was recorded; it doubles as the 1-based attempt number n in the
// backoff formula.
func (c *Controller) Decide(jobType model.JobType, maxRetries, retryCount int, now time.Time) Decision {
	if retryCount <= maxRetries {
		delay := c.backoff(jobType, retryCount)
		return Decision{
			Kind:        KindRetry,
			Delay:       delay,
			NextRetryAt: now.Add(delay),
		}
	}
	return Decision{Kind: KindDeadLetter}
}

// backoff computes the delay before the n-th retry (n = retryCount, the
// attempt number that just failed): raw = base*2^(n-1), jitter = raw*0.2*
// U(-1,+1), delay = min(max, raw+jitter), floored to whole seconds and
// never negative.
func (c *Controller) backoff(jobType model.JobType, n int) time.Duration {
	cfg := c.ConfigFor(jobType)

	baseSeconds := cfg.BaseDelay.Seconds()
	raw := baseSeconds * math.Pow(2, float64(n-1))

	jitter := raw * 0.2 * (2*c.rng.Float64() - 1)
	delaySeconds := raw + jitter

	if maxSeconds := cfg.MaxDelay.Seconds(); delaySeconds > maxSeconds {
		delaySeconds = maxSeconds
	}
	if delaySeconds < 0 {
		delaySeconds = 0
	}

	return time.Duration(math.Floor(delaySeconds)) * time.Second
}

// ResolveMaxRetries picks the effective max_retries for a new Job: the
// caller's explicit override if given, else the job type's policy, else the
// controller's fallback default. Called once, at submission time, so every
// later Decide call works off the already-resolved Job.MaxRetries.
func (c *Controller) ResolveMaxRetries(jobType model.JobType, override *int) int {
	if override != nil {
		return *override
	}
	return c.ConfigFor(jobType).MaxRetries
}
