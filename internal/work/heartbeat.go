package work

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// failureStreakTTL bounds how long an idle failure streak is remembered.
const failureStreakTTL = 24 * time.Hour

// HeartbeatKey is the Redis key holding a job's last successful run (unix millis).
func HeartbeatKey(job string) string { return "job:heartbeat:" + job }

// FailureStreakKey is the Redis key counting consecutive failures of a job.
func FailureStreakKey(job string) string { return "job:failures:" + job }

// HeartbeatTracker stores heartbeats and failure streaks in Redis so every node
// and the external health probe see the same liveness data.
type HeartbeatTracker struct {
	rdb redis.Cmdable
}

// NewHeartbeatTracker creates a tracker over the shared cache store.
func NewHeartbeatTracker(rdb redis.Cmdable) *HeartbeatTracker {
	return &HeartbeatTracker{rdb: rdb}
}

// WriteHeartbeat implements HeartbeatStore.
func (t *HeartbeatTracker) WriteHeartbeat(ctx context.Context, job string, at time.Time, ttl time.Duration) error {
	if err := t.rdb.Set(ctx, HeartbeatKey(job), at.UnixMilli(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to write heartbeat for %s: %w", job, err)
	}
	return nil
}

// RecordFailure implements HeartbeatStore.
func (t *HeartbeatTracker) RecordFailure(ctx context.Context, job string) error {
	pipe := t.rdb.TxPipeline()
	pipe.Incr(ctx, FailureStreakKey(job))
	pipe.Expire(ctx, FailureStreakKey(job), failureStreakTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record failure for %s: %w", job, err)
	}
	return nil
}

// ResetFailures implements HeartbeatStore.
func (t *HeartbeatTracker) ResetFailures(ctx context.Context, job string) error {
	if err := t.rdb.Del(ctx, FailureStreakKey(job)).Err(); err != nil {
		return fmt.Errorf("failed to reset failures for %s: %w", job, err)
	}
	return nil
}

// LastRun returns when the job last succeeded and whether a heartbeat exists.
func (t *HeartbeatTracker) LastRun(ctx context.Context, job string) (time.Time, bool, error) {
	raw, err := t.rdb.Get(ctx, HeartbeatKey(job)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read heartbeat for %s: %w", job, err)
	}

	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid heartbeat for %s: %w", job, err)
	}
	return time.UnixMilli(ms), true, nil
}

// Failures returns the current consecutive-failure count.
func (t *HeartbeatTracker) Failures(ctx context.Context, job string) (int64, error) {
	n, err := t.rdb.Get(ctx, FailureStreakKey(job)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read failures for %s: %w", job, err)
	}
	return n, nil
}
