// Package lock provides fleet-wide mutual exclusion over named Redis leases.
//
// A lease is a key set with NX and a TTL whose value is a random owner token.
// Release deletes the key only while the token still matches, so a node never
// releases a lease that expired and was taken by another node.
//
// There is no lease renewal. If an action outlives its lease, another node can
// acquire the same key while the first is still running. Callers size the lease
// above the action's worst-case duration and accept the residual race.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultRetryInterval is the polling interval for bounded-wait acquisition.
const DefaultRetryInterval = 50 * time.Millisecond

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Coordinator acquires and releases leases on a Redis store.
type Coordinator struct {
	rdb           redis.Cmdable
	log           zerolog.Logger
	retryInterval time.Duration
}

// NewCoordinator creates a lease coordinator over the given Redis client.
func NewCoordinator(rdb redis.Cmdable, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		rdb:           rdb,
		log:           log.With().Str("component", "lock_coordinator").Logger(),
		retryInterval: DefaultRetryInterval,
	}
}

// SetRetryInterval changes the polling interval used when waitTime > 0.
func (c *Coordinator) SetRetryInterval(d time.Duration) {
	if d > 0 {
		c.retryInterval = d
	}
}

// Handle is a held lease. Release it exactly where the work ends; extra calls are no-ops.
type Handle struct {
	c     *Coordinator
	key   string
	token string

	once sync.Once
	err  error
}

// Key returns the lease key.
func (h *Handle) Key() string { return h.key }

// Token returns the owner token stored under the key.
func (h *Handle) Token() string { return h.token }

// Release deletes the lease if this handle still owns it.
func (h *Handle) Release(ctx context.Context) error {
	h.once.Do(func() {
		h.err = h.c.release(ctx, h.key, h.token)
	})
	return h.err
}

// TryAcquire attempts to take the lease on key. With waitTime 0 it makes a single
// attempt; otherwise it polls until waitTime elapses. It returns (nil, nil) when the
// lease is held by someone else.
func (c *Coordinator) TryAcquire(ctx context.Context, key string, waitTime, leaseTime time.Duration) (*Handle, error) {
	if leaseTime <= 0 {
		return nil, fmt.Errorf("lease time must be positive, got %s", leaseTime)
	}

	token := uuid.NewString()
	deadline := time.Now().Add(waitTime)

	for {
		ok, err := c.rdb.SetNX(ctx, key, token, leaseTime).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lease %s: %w", key, err)
		}
		if ok {
			return &Handle{c: c, key: key, token: token}, nil
		}

		remaining := time.Until(deadline)
		if waitTime <= 0 || remaining <= 0 {
			return nil, nil
		}

		sleep := c.retryInterval
		if remaining < sleep {
			sleep = remaining
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("interrupted while waiting for lease %s: %w", key, ctx.Err())
		case <-timer.C:
		}
	}
}

func (c *Coordinator) release(ctx context.Context, key, token string) error {
	deleted, err := releaseScript.Run(ctx, c.rdb, []string{key}, token).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to release lease %s: %w", key, err)
	}
	if deleted == 0 {
		c.log.Warn().Str("key", key).Msg("Lease expired before release; it may now belong to another node")
	}
	return nil
}

// WithLock runs action while holding the lease on key.
//
// The action runs at most once and only after the lease is granted. The lease is
// released on every exit path, including a panic inside action, which is recovered
// and reported as an error. WithLock never panics and never returns a bare error:
// every outcome is a Result.
func WithLock[T any](
	ctx context.Context,
	c *Coordinator,
	key string,
	waitTime, leaseTime time.Duration,
	action func(ctx context.Context) (T, error),
) (res Result[T]) {
	h, err := c.TryAcquire(ctx, key, waitTime, leaseTime)
	if err != nil {
		return Failed[T](err)
	}
	if h == nil {
		return NotAcquiredResult[T]()
	}

	defer func() {
		if r := recover(); r != nil {
			res = Failed[T](fmt.Errorf("panic while holding lease %s: %v", key, r))
		}
		// Release must survive a cancelled caller context.
		if err := h.Release(context.WithoutCancel(ctx)); err != nil {
			res = Failed[T](err)
		}
	}()

	v, err := action(ctx)
	if err != nil {
		return Failed[T](err)
	}
	return Success(v)
}
