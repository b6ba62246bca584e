package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_AppliesDefaultsWithNoEnvironment(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "worker-1", cfg.WorkerID)
	require.Equal(t, 4, cfg.WorkerConcurrency)
	require.Equal(t, 3, cfg.DefaultMaxRetries)
	require.Equal(t, 60*time.Second, cfg.SchedulerPollInterval)
	require.True(t, cfg.RateLimitEnabled)
	require.False(t, cfg.TracingEnabled)
}

func TestLoad_EnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("WORKER_ID", "worker-custom")
	t.Setenv("DEFAULT_MAX_RETRIES", "7")
	t.Setenv("SCHEDULER_POLL_INTERVAL_SECONDS", "15")
	t.Setenv("TRACING_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "worker-custom", cfg.WorkerID)
	require.Equal(t, 7, cfg.DefaultMaxRetries)
	require.Equal(t, 15*time.Second, cfg.SchedulerPollInterval)
	require.True(t, cfg.TracingEnabled)
}

func TestLoad_RateLimitCanBeDisabled(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	cfg, err := Load()
	require.NoError(t, err)
	require.False(t, cfg.RateLimitEnabled)
}

