package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/ragbendra/distributed-job-queue/internal/model"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	return NewWithClient(client)
}

func TestSetStatus_RoundTrips(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	jobID := uuid.New()

	require.NoError(t, c.SetStatus(ctx, jobID, model.StatusRunning))

	got, ok := c.GetStatus(ctx, jobID)
	require.True(t, ok)
	require.Equal(t, model.StatusRunning, got)
}

func TestGetStatus_MissReturnsFalse(t *testing.T) {
	c := newTestCache(t)
	_, ok := c.GetStatus(context.Background(), uuid.New())
	require.False(t, ok)
}

func TestHeartbeat_CountsTowardActiveWorkers(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Heartbeat(ctx, "worker-1"))
	require.NoError(t, c.Heartbeat(ctx, "worker-2"))

	n, err := c.ActiveWorkers(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestPing_SucceedsAgainstLiveServer(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Ping(context.Background()))
}
