package work

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTracker(t *testing.T) (*HeartbeatTracker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewHeartbeatTracker(rdb), mr
}

func TestHeartbeatTracker_WriteAndRead(t *testing.T) {
	tr, mr := setupTracker(t)
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, tr.WriteHeartbeat(ctx, "fx-ingest", at, 10*time.Minute))

	raw, err := mr.Get("job:heartbeat:fx-ingest")
	require.NoError(t, err)
	assert.Equal(t, "1714564800000", raw)
	assert.Equal(t, 10*time.Minute, mr.TTL("job:heartbeat:fx-ingest"))

	last, ok, err := tr.LastRun(ctx, "fx-ingest")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, at.Equal(last))
}

func TestHeartbeatTracker_LastRunMissing(t *testing.T) {
	tr, _ := setupTracker(t)

	_, ok, err := tr.LastRun(context.Background(), "never-ran")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHeartbeatTracker_FailureStreak(t *testing.T) {
	tr, mr := setupTracker(t)
	ctx := context.Background()

	n, err := tr.Failures(ctx, "ticker-ingest")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	require.NoError(t, tr.RecordFailure(ctx, "ticker-ingest"))
	require.NoError(t, tr.RecordFailure(ctx, "ticker-ingest"))
	require.NoError(t, tr.RecordFailure(ctx, "ticker-ingest"))

	n, err = tr.Failures(ctx, "ticker-ingest")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, 24*time.Hour, mr.TTL("job:failures:ticker-ingest"))

	require.NoError(t, tr.ResetFailures(ctx, "ticker-ingest"))
	n, err = tr.Failures(ctx, "ticker-ingest")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestHeartbeatTracker_InvalidValue(t *testing.T) {
	tr, mr := setupTracker(t)
	require.NoError(t, mr.Set("job:heartbeat:broken", "not-a-number"))

	_, _, err := tr.LastRun(context.Background(), "broken")
	assert.Error(t, err)
}

func TestHeartbeatTracker_StoreDown(t *testing.T) {
	tr, mr := setupTracker(t)
	mr.Close()

	err := tr.WriteHeartbeat(context.Background(), "fx-ingest", time.Now(), time.Minute)
	assert.Error(t, err)
	_, err = tr.Failures(context.Background(), "fx-ingest")
	assert.Error(t, err)
}
