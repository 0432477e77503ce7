package aggregation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geonyeop123/premium-spread-sub000/internal/cache"
	"github.com/geonyeop123/premium-spread-sub000/internal/domain"
	"github.com/geonyeop123/premium-spread-sub000/internal/metrics"
	"github.com/geonyeop123/premium-spread-sub000/internal/work"
)

// fakeSummaryTiers serves fixed data and can be told to break one source.
type fakeSummaryTiers struct {
	mu        sync.Mutex
	current   *domain.PremiumPoint
	seconds   []domain.PremiumPoint
	minutes   []domain.Aggregation
	hours     []domain.Aggregation
	failUnit  domain.TimeUnit
	panicUnit domain.TimeUnit
	saved     map[string]*domain.Summary
}

func (f *fakeSummaryTiers) Premium(ctx context.Context, symbol string) (*domain.PremiumPoint, error) {
	return f.current, nil
}

func (f *fakeSummaryTiers) PremiumSeconds(ctx context.Context, symbol string, from, to time.Time) ([]domain.PremiumPoint, error) {
	return f.seconds, nil
}

func (f *fakeSummaryTiers) Aggregations(ctx context.Context, series cache.Series, unit domain.TimeUnit, from, to time.Time) ([]domain.Aggregation, error) {
	if unit == f.panicUnit {
		panic("corrupt bucket")
	}
	if unit == f.failUnit {
		return nil, errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")
	}
	if unit == domain.UnitHour {
		return f.hours, nil
	}
	return f.minutes, nil
}

func (f *fakeSummaryTiers) SaveSummary(ctx context.Context, symbol string, sum *domain.Summary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saved == nil {
		f.saved = make(map[string]*domain.Summary)
	}
	f.saved[sum.Interval] = sum
	return nil
}

var summaryNow = time.Date(2024, 5, 1, 12, 0, 5, 0, time.UTC)

func populatedTiers() *fakeSummaryTiers {
	minuteStart := summaryNow.Add(-2 * time.Minute).Truncate(time.Minute)
	hourStart := summaryNow.Add(-2 * time.Hour).Truncate(time.Hour)
	return &fakeSummaryTiers{
		seconds: []domain.PremiumPoint{
			{PremiumRate: d("1.1"), ObservedAt: summaryNow.Add(-20 * time.Second)},
			{PremiumRate: d("1.3"), ObservedAt: summaryNow.Add(-10 * time.Second)},
		},
		minutes: []domain.Aggregation{
			{From: minuteStart, To: minuteStart.Add(time.Minute), Open: d("1"), High: d("1.6"), Low: d("0.8"), Close: d("1.2"), Avg: d("1.1"), Count: 60},
		},
		hours: []domain.Aggregation{
			{From: hourStart, To: hourStart.Add(time.Hour), Open: d("1"), High: d("2.1"), Low: d("0.4"), Close: d("1.5"), Avg: d("1.2"), Count: 3600},
		},
	}
}

func newTestSummaryJob(tiers SummaryTiers) (*SummaryJob, *metrics.Recorder) {
	rec := metrics.NewRecorder()
	j := NewSummaryJob("BTC", tiers, rec, zerolog.Nop())
	j.SetClock(fixedClock(summaryNow))
	return j, rec
}

func TestSummaryJob_AllIntervals(t *testing.T) {
	tiers := populatedTiers()
	tiers.current = &domain.PremiumPoint{PremiumRate: d("1.28"), ObservedAt: summaryNow.Add(-time.Second)}
	j, _ := newTestSummaryJob(tiers)

	res := j.Run(context.Background())

	require.True(t, res.IsSuccess())
	require.Len(t, tiers.saved, 4)

	oneMin := tiers.saved["1m"]
	assert.True(t, oneMin.High.Equal(d("1.3")))
	assert.True(t, oneMin.Low.Equal(d("1.1")))
	assert.True(t, oneMin.Current.Equal(d("1.28")), "current comes from the premium point")
	assert.True(t, oneMin.UpdatedAt.Equal(summaryNow))

	day := tiers.saved["1d"]
	assert.True(t, day.High.Equal(d("2.1")))
	assert.True(t, day.Low.Equal(d("0.4")))
}

func TestSummaryJob_CurrentFallsBackToLastSample(t *testing.T) {
	tiers := populatedTiers()
	j, _ := newTestSummaryJob(tiers)

	require.True(t, j.Run(context.Background()).IsSuccess())

	oneMin := tiers.saved["1m"]
	assert.True(t, oneMin.Current.Equal(d("1.3")))
	assert.True(t, oneMin.CurrentTimestamp.Equal(summaryNow.Add(-10*time.Second)))
	assert.True(t, tiers.saved["10m"].Current.Equal(d("1.2")))
}

func TestSummaryJob_OneIntervalFailureIsIsolated(t *testing.T) {
	t.Run("error", func(t *testing.T) {
		tiers := populatedTiers()
		tiers.failUnit = domain.UnitHour
		j, rec := newTestSummaryJob(tiers)

		res := j.Run(context.Background())

		assert.True(t, res.IsSuccess())
		assert.Len(t, tiers.saved, 3)
		assert.NotContains(t, tiers.saved, "1d")
		for _, name := range []string{"1m", "10m", "1h"} {
			assert.Contains(t, tiers.saved, name)
		}
		assert.Equal(t, int64(1), rec.Count(MetricSummaryInterval, map[string]string{"symbol": "BTC", "interval": "1d", "outcome": "failure"}))
	})

	t.Run("panic", func(t *testing.T) {
		tiers := populatedTiers()
		tiers.panicUnit = domain.UnitHour
		j, _ := newTestSummaryJob(tiers)

		res := j.Run(context.Background())

		assert.True(t, res.IsSuccess())
		assert.Len(t, tiers.saved, 3)
		assert.NotContains(t, tiers.saved, "1d")
	})
}

func TestSummaryJob_NoData(t *testing.T) {
	j, _ := newTestSummaryJob(&fakeSummaryTiers{})

	assert.Equal(t, work.Skip(work.ReasonNoData), j.Run(context.Background()))
}

func TestSummaryJob_AllFailed(t *testing.T) {
	tiers := &fakeSummaryTiers{failUnit: domain.UnitMinute}
	j, _ := newTestSummaryJob(tiers)
	j.SetIntervals([]SummaryInterval{
		{Name: "10m", Span: 10 * time.Minute, Source: SourceMinute},
		{Name: "1h", Span: time.Hour, Source: SourceMinute},
	})

	res := j.Run(context.Background())

	require.True(t, res.IsFailure())
	assert.Contains(t, res.Err.Error(), "interval 10m")
	assert.Contains(t, res.Err.Error(), "interval 1h")
}
