package storage

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geonyeop123/premium-spread-sub000/internal/domain"
)

func TestPruneJob_Run(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

	old := now.Add(-40 * 24 * time.Hour)
	recent := now.Add(-time.Hour)
	require.NoError(t, repo.UpsertPremiumAggregate(ctx, "BTC", domain.UnitMinute, testAggregation(old, "1", 1)))
	require.NoError(t, repo.UpsertPremiumAggregate(ctx, "BTC", domain.UnitMinute, testAggregation(recent, "1", 1)))
	require.NoError(t, repo.UpsertTickerAggregate(ctx, "upbit", "BTC", domain.UnitHour, testAggregation(old, "1", 1)))
	require.NoError(t, repo.InsertFxRate(ctx, &domain.FxPoint{BaseCurrency: "USD", QuoteCurrency: "KRW", Rate: decimal.NewFromInt(1400), ObservedAt: old}))

	job := NewPruneJob(repo, DefaultRetention(), zerolog.Nop())
	job.SetClock(func() time.Time { return now })

	res := job.Run(ctx)

	assert.True(t, res.IsSuccess())
	assert.Equal(t, 1, countRows(t, db, "premium_aggregates"))
	assert.Equal(t, 1, countRows(t, db, "ticker_aggregates"), "hour buckets are kept for a year")
	assert.Equal(t, 1, countRows(t, db, "fx_rates"))
}

func TestPruneJob_ZeroRetentionKeepsEverything(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.UpsertPremiumAggregate(ctx, "BTC", domain.UnitMinute, testAggregation(now.AddDate(-2, 0, 0), "1", 1)))

	job := NewPruneJob(repo, Retention{}, zerolog.Nop())
	job.SetClock(func() time.Time { return now })

	assert.True(t, job.Run(ctx).IsSuccess())
	assert.Equal(t, 1, countRows(t, db, "premium_aggregates"))
}

func TestPruneJob_FailsOnClosedDatabase(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	require.NoError(t, db.Close())

	res := NewPruneJob(repo, DefaultRetention(), zerolog.Nop()).Run(context.Background())
	assert.True(t, res.IsFailure())
}
