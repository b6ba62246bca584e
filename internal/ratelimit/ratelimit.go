// Package ratelimit supplements the REST surface with a per-client
// fixed-window request counter scoped to X-Client-Id (SPEC_FULL.md §10 — the original spec.md is
// silent on abuse protection; kept minimal and optional via config).
// Adapted from the teacher's RateLimitService: same Redis hash-based bucket
// shape, now constructed with an injected context.Context per call instead
// of a package-level var ctx = context.Background().
package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter enforces a fixed-window request budget per client.
type Limiter struct {
	client        *redis.Client
	enabled       bool
	maxRequests   int
	windowSeconds int
}

// New builds a Limiter. When enabled is false, Allow always returns true —
// the limiter becomes a no-op without the caller needing to branch.
func New(client *redis.Client, enabled bool, maxRequests, windowSeconds int) *Limiter {
	return &Limiter{
		client:        client,
		enabled:       enabled,
		maxRequests:   maxRequests,
		windowSeconds: windowSeconds,
	}
}

// Allow reports whether clientID may make another request in the current
// window, incrementing its counter as a side effect. On a Redis error, it
// fails open — an unreachable cache must not block the REST surface.
func (l *Limiter) Allow(ctx context.Context, clientID string) bool {
	if !l.enabled {
		return true
	}

	key := rateLimitKey(clientID)
	now := time.Now().Unix()

	count, errCount := l.client.HGet(ctx, key, "count").Int()
	resetTime, errReset := l.client.HGet(ctx, key, "reset_time").Int64()

	if errCount != nil || errReset != nil || now >= resetTime {
		pipe := l.client.Pipeline()
		pipe.HSet(ctx, key, "count", 1)
		pipe.HSet(ctx, key, "reset_time", now+int64(l.windowSeconds))
		pipe.Expire(ctx, key, time.Duration(l.windowSeconds+10)*time.Second)
		if _, err := pipe.Exec(ctx); err != nil {
			return true
		}
		return true
	}

	if count < l.maxRequests {
		if err := l.client.HIncrBy(ctx, key, "count", 1).Err(); err != nil {
			return true
		}
		return true
	}

	return false
}

// Remaining returns the requests left for clientID in the current window.
func (l *Limiter) Remaining(ctx context.Context, clientID string) int {
	if !l.enabled {
		return l.maxRequests
	}

	key := rateLimitKey(clientID)
	now := time.Now().Unix()

	count, errCount := l.client.HGet(ctx, key, "count").Int()
	resetTime, errReset := l.client.HGet(ctx, key, "reset_time").Int64()
	if errCount != nil || errReset != nil || now >= resetTime {
		return l.maxRequests
	}

	remaining := l.maxRequests - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

func rateLimitKey(clientID string) string {
	return "rate_limit:" + clientID
}
