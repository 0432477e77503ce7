package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geonyeop123/premium-spread-sub000/internal/domain"
	testingpkg "github.com/geonyeop123/premium-spread-sub000/internal/testing"
)

// Runs the repository against the driver and pragmas the server uses.
func TestRepository_ProductionDriver(t *testing.T) {
	db := testingpkg.NewTestDB(t)
	repo := NewRepository(db.Conn())
	ctx := context.Background()
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		from := start.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.UpsertTickerAggregate(ctx, "upbit", "BTC", domain.UnitMinute,
			testingpkg.Bucket(domain.UnitMinute, from, "95000000", 60)))
	}
	require.NoError(t, repo.InsertFxRate(ctx, testingpkg.USDKRW("1380.25", start)))

	latest, err := repo.LatestTickerAggregate(ctx, "upbit", "BTC", domain.UnitMinute)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, latest.From.Equal(start.Add(2*time.Minute)))
	assert.True(t, latest.Close.Equal(testingpkg.Dec("95000000")))

	fx, err := repo.LatestFxRate(ctx, domain.CurrencyUSD, domain.CurrencyKRW)
	require.NoError(t, err)
	require.NotNil(t, fx)
	assert.True(t, fx.Rate.Equal(testingpkg.Dec("1380.25")))
}
