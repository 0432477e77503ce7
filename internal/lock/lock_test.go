package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCoordinator(t *testing.T) (*Coordinator, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	c := NewCoordinator(rdb, zerolog.Nop())
	c.SetRetryInterval(5 * time.Millisecond)
	return c, mr
}

func TestWithLock_RunsActionOnceAndReleases(t *testing.T) {
	c, mr := setupCoordinator(t)
	calls := 0

	res := WithLock(context.Background(), c, "lock:job:a", 0, time.Second, func(ctx context.Context) (string, error) {
		calls++
		assert.True(t, mr.Exists("lock:job:a"), "lease must be held while the action runs")
		return "done", nil
	})

	require.True(t, res.IsSuccess())
	assert.Equal(t, "done", res.Value)
	assert.Equal(t, 1, calls)
	assert.False(t, mr.Exists("lock:job:a"))
}

func TestWithLock_NotAcquired(t *testing.T) {
	c, mr := setupCoordinator(t)
	require.NoError(t, mr.Set("lock:job:a", "someone-else"))

	called := false
	res := WithLock(context.Background(), c, "lock:job:a", 0, time.Second, func(ctx context.Context) (int, error) {
		called = true
		return 1, nil
	})

	assert.True(t, res.IsNotAcquired())
	assert.False(t, called)
	// The other owner's lease is untouched.
	got, err := mr.Get("lock:job:a")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestWithLock_ActionErrorReleases(t *testing.T) {
	c, mr := setupCoordinator(t)
	boom := errors.New("boom")

	res := WithLock(context.Background(), c, "lock:job:a", 0, time.Second, func(ctx context.Context) (int, error) {
		return 0, boom
	})

	require.True(t, res.IsError())
	assert.ErrorIs(t, res.Err, boom)
	assert.False(t, mr.Exists("lock:job:a"))
}

func TestWithLock_PanicIsCapturedAndReleases(t *testing.T) {
	c, mr := setupCoordinator(t)

	res := WithLock(context.Background(), c, "lock:job:a", 0, time.Second, func(ctx context.Context) (int, error) {
		panic("unexpected")
	})

	require.True(t, res.IsError())
	assert.Contains(t, res.Err.Error(), "unexpected")
	assert.False(t, mr.Exists("lock:job:a"))
}

func TestWithLock_StoreErrorIsCaptured(t *testing.T) {
	c, mr := setupCoordinator(t)
	mr.Close()

	res := WithLock(context.Background(), c, "lock:job:a", 0, time.Second, func(ctx context.Context) (int, error) {
		t.Fatal("action must not run")
		return 0, nil
	})

	assert.True(t, res.IsError())
	assert.Error(t, res.Err)
}

func TestWithLock_ConcurrentCallersExactlyOneWins(t *testing.T) {
	c, _ := setupCoordinator(t)

	start := make(chan struct{})
	release := make(chan struct{})
	results := make(chan Result[string], 2)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			results <- WithLock(context.Background(), c, "lock:job:race", 0, 5*time.Second, func(ctx context.Context) (string, error) {
				<-release
				return "winner", nil
			})
		}()
	}

	close(start)
	first := <-results
	close(release)
	second := <-results
	wg.Wait()

	successes, denied := 0, 0
	for _, r := range []Result[string]{first, second} {
		switch {
		case r.IsSuccess():
			successes++
		case r.IsNotAcquired():
			denied++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, denied)
	assert.True(t, first.IsNotAcquired(), "the loser returns while the winner still holds the lease")
}

func TestTryAcquire_BoundedWait(t *testing.T) {
	c, mr := setupCoordinator(t)
	ctx := context.Background()

	held, err := c.TryAcquire(ctx, "lock:job:a", 0, time.Second)
	require.NoError(t, err)
	require.NotNil(t, held)

	t.Run("gives up after wait time", func(t *testing.T) {
		begin := time.Now()
		h, err := c.TryAcquire(ctx, "lock:job:a", 30*time.Millisecond, time.Second)
		require.NoError(t, err)
		assert.Nil(t, h)
		assert.GreaterOrEqual(t, time.Since(begin), 30*time.Millisecond)
	})

	t.Run("acquires once released during the wait", func(t *testing.T) {
		go func() {
			time.Sleep(20 * time.Millisecond)
			_ = held.Release(ctx)
		}()
		h, err := c.TryAcquire(ctx, "lock:job:a", time.Second, time.Second)
		require.NoError(t, err)
		require.NotNil(t, h)
		assert.True(t, mr.Exists("lock:job:a"))
		require.NoError(t, h.Release(ctx))
	})

	t.Run("cancelled context is an error", func(t *testing.T) {
		require.NoError(t, mr.Set("lock:job:b", "other"))
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		h, err := c.TryAcquire(cctx, "lock:job:b", time.Second, time.Second)
		assert.Nil(t, h)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestHandle_ReleaseOnlyIfOwned(t *testing.T) {
	c, mr := setupCoordinator(t)
	ctx := context.Background()

	h, err := c.TryAcquire(ctx, "lock:job:a", 0, time.Second)
	require.NoError(t, err)
	require.NotNil(t, h)

	// Lease expires and another node takes it.
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("lock:job:a", "other-node"))

	require.NoError(t, h.Release(ctx))
	got, err := mr.Get("lock:job:a")
	require.NoError(t, err)
	assert.Equal(t, "other-node", got)

	// Repeated release is a no-op.
	require.NoError(t, h.Release(ctx))
}

func TestTryAcquire_SetsLeaseTTL(t *testing.T) {
	c, mr := setupCoordinator(t)

	h, err := c.TryAcquire(context.Background(), "lock:job:a", 0, 3*time.Second)
	require.NoError(t, err)
	require.NotNil(t, h)

	assert.Equal(t, 3*time.Second, mr.TTL("lock:job:a"))
	got, err := mr.Get("lock:job:a")
	require.NoError(t, err)
	assert.Equal(t, h.Token(), got)
	assert.Equal(t, "lock:job:a", h.Key())
}

func TestTryAcquire_RejectsNonPositiveLease(t *testing.T) {
	c, _ := setupCoordinator(t)

	h, err := c.TryAcquire(context.Background(), "lock:job:a", 0, 0)
	assert.Nil(t, h)
	assert.Error(t, err)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "acquired", StatusAcquired.String())
	assert.Equal(t, "not_acquired", StatusNotAcquired.String())
	assert.Equal(t, "error", StatusError.String())
	assert.Equal(t, "unknown", Status(42).String())
}
