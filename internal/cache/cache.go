// Package cache is the Status Cache (component C): a short-TTL, advisory-only
// mirror of job status and worker liveness, per spec.md §5's "never
// consulted for correctness decisions" rule. Built on github.com/redis/go-redis/v9,
// generalizing the teacher's CacheService away from its package-level
// context.Background() global and its job-object caching into a narrower
// status+heartbeat mirror — the Job Store, not this cache, is authoritative.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ragbendra/distributed-job-queue/internal/model"
)

const (
	statusTTL    = 5 * time.Minute
	heartbeatTTL = 60 * time.Second
)

// Cache wraps a Redis client. Constructed once per process and injected,
// not a package-level singleton.
type Cache struct {
	client *redis.Client
}

// New parses url (e.g. "redis://localhost:6379/0") and returns a Cache.
func New(url string) (*Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("cache: parse url: %w", err)
	}
	return &Cache{client: redis.NewClient(opts)}, nil
}

// NewWithClient wraps an already-constructed client, for tests that stand up
// a miniredis server rather than parsing a URL.
func NewWithClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Ping verifies connectivity, for the health check and startup probes.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}

// SetStatus mirrors a job's current status with a short TTL. Callers write
// this after every Store-confirmed transition; readers (e.g. a dashboard)
// may use it for a cheap status glance, never as the basis for a decision.
func (c *Cache) SetStatus(ctx context.Context, jobID uuid.UUID, status model.Status) error {
	return c.client.Set(ctx, statusKey(jobID), string(status), statusTTL).Err()
}

// GetStatus returns the mirrored status, or ("", false) on a cache miss —
// callers must fall back to the Store, never treat a miss as a signal.
func (c *Cache) GetStatus(ctx context.Context, jobID uuid.UUID) (model.Status, bool) {
	val, err := c.client.Get(ctx, statusKey(jobID)).Result()
	if err != nil {
		return "", false
	}
	return model.Status(val), true
}

// Heartbeat refreshes a worker's liveness key with a 60s TTL, per spec.md
// §4.5. Expiry (no heartbeat in 60s) means the worker is presumed dead, but
// this signal is advisory — it does not reclaim or reassign that worker's
// RUNNING jobs.
func (c *Cache) Heartbeat(ctx context.Context, workerID string) error {
	return c.client.Set(ctx, heartbeatKey(workerID), time.Now().UTC().Format(time.RFC3339), heartbeatTTL).Err()
}

// ActiveWorkers counts live heartbeat keys, for the /stats endpoint's
// active_workers field.
func (c *Cache) ActiveWorkers(ctx context.Context) (int, error) {
	keys, err := c.client.Keys(ctx, "heartbeat:*").Result()
	if err != nil {
		return 0, fmt.Errorf("cache: list heartbeats: %w", err)
	}
	return len(keys), nil
}

func statusKey(jobID uuid.UUID) string {
	return "status:" + jobID.String()
}

func heartbeatKey(workerID string) string {
	return "heartbeat:" + workerID
}
