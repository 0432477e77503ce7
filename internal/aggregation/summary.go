package aggregation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/geonyeop123/premium-spread-sub000/internal/cache"
	"github.com/geonyeop123/premium-spread-sub000/internal/domain"
	"github.com/geonyeop123/premium-spread-sub000/internal/metrics"
	"github.com/geonyeop123/premium-spread-sub000/internal/work"
)

// MetricSummaryInterval counts per-interval summary outcomes.
const MetricSummaryInterval = "summary.interval"

// SummarySource is the tier a summary interval is computed from.
type SummarySource string

const (
	SourceSeconds SummarySource = "seconds"
	SourceMinute  SummarySource = "minute"
	SourceHour    SummarySource = "hour"
)

// SummaryInterval is one named rollup over the trailing Span.
type SummaryInterval struct {
	Name   string
	Span   time.Duration
	Source SummarySource
}

// DefaultSummaryIntervals returns 1m, 10m, 1h and 1d.
func DefaultSummaryIntervals() []SummaryInterval {
	return []SummaryInterval{
		{Name: "1m", Span: time.Minute, Source: SourceSeconds},
		{Name: "10m", Span: 10 * time.Minute, Source: SourceMinute},
		{Name: "1h", Span: time.Hour, Source: SourceMinute},
		{Name: "1d", Span: 24 * time.Hour, Source: SourceHour},
	}
}

// SummaryTiers is the part of the cache the summary job uses.
type SummaryTiers interface {
	Premium(ctx context.Context, symbol string) (*domain.PremiumPoint, error)
	PremiumSeconds(ctx context.Context, symbol string, from, to time.Time) ([]domain.PremiumPoint, error)
	Aggregations(ctx context.Context, series cache.Series, unit domain.TimeUnit, from, to time.Time) ([]domain.Aggregation, error)
	SaveSummary(ctx context.Context, symbol string, sum *domain.Summary) error
}

// SummaryJob recomputes every interval of one symbol. Intervals are isolated:
// an error or panic in one is logged and counted and the rest still run.
type SummaryJob struct {
	symbol    string
	intervals []SummaryInterval
	tiers     SummaryTiers
	metrics   metrics.Collector
	log       zerolog.Logger
	now       func() time.Time
}

// NewSummaryJob creates a summary job over the default intervals.
func NewSummaryJob(symbol string, tiers SummaryTiers, collector metrics.Collector, log zerolog.Logger) *SummaryJob {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &SummaryJob{
		symbol:    symbol,
		intervals: DefaultSummaryIntervals(),
		tiers:     tiers,
		metrics:   collector,
		log:       log.With().Str("component", "summary").Str("symbol", symbol).Logger(),
		now:       time.Now,
	}
}

// SetIntervals replaces the computed intervals.
func (j *SummaryJob) SetIntervals(intervals []SummaryInterval) {
	j.intervals = intervals
}

// SetClock replaces the time source.
func (j *SummaryJob) SetClock(now func() time.Time) {
	j.now = now
}

// Run implements work.Runner. Success if at least one interval was saved,
// Failure if none was saved and at least one failed, otherwise Skipped("no_data").
func (j *SummaryJob) Run(ctx context.Context) work.Result {
	return work.Guard(ctx, j.run)
}

func (j *SummaryJob) run(ctx context.Context) work.Result {
	now := j.now().UTC()

	current, err := j.tiers.Premium(ctx, j.symbol)
	if err != nil {
		j.log.Warn().Err(err).Msg("Failed to read current premium, using last sample")
	}

	var (
		saved int
		errs  []error
	)
	for _, iv := range j.intervals {
		ok, err := j.computeAndSave(ctx, iv, current, now)
		outcome := "no_data"
		switch {
		case err != nil:
			outcome = "failure"
			errs = append(errs, fmt.Errorf("interval %s: %w", iv.Name, err))
			j.log.Error().Err(err).Str("interval", iv.Name).Msg("Summary interval failed")
		case ok:
			outcome = "saved"
			saved++
		}
		j.metrics.IncCounter(MetricSummaryInterval, map[string]string{
			"symbol":   j.symbol,
			"interval": iv.Name,
			"outcome":  outcome,
		})
	}

	switch {
	case saved > 0:
		return work.Succeeded()
	case len(errs) > 0:
		return work.Fail(errors.Join(errs...))
	default:
		return work.Skip(work.ReasonNoData)
	}
}

func (j *SummaryJob) computeAndSave(ctx context.Context, iv SummaryInterval, current *domain.PremiumPoint, now time.Time) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("panic: %v", r)
		}
	}()

	sum, err := j.compute(ctx, iv, current, now)
	if err != nil || sum == nil {
		return false, err
	}
	if err := j.tiers.SaveSummary(ctx, j.symbol, sum); err != nil {
		return false, err
	}
	return true, nil
}

// compute returns nil when the source tier has nothing in the trailing span.
func (j *SummaryJob) compute(ctx context.Context, iv SummaryInterval, current *domain.PremiumPoint, now time.Time) (*domain.Summary, error) {
	from := now.Add(-iv.Span)

	var (
		high, low, last decimal.Decimal
		lastAt          time.Time
	)

	switch iv.Source {
	case SourceSeconds:
		points, err := j.tiers.PremiumSeconds(ctx, j.symbol, from, now)
		if err != nil {
			return nil, err
		}
		if len(points) == 0 {
			return nil, nil
		}
		agg := Reduce(j.symbol, from, now, PremiumSamples(points))
		high, low, last = agg.High, agg.Low, agg.Close
		lastAt = points[len(points)-1].ObservedAt
		for _, p := range points {
			if p.ObservedAt.After(lastAt) {
				lastAt = p.ObservedAt
			}
		}
	case SourceMinute, SourceHour:
		unit := domain.UnitMinute
		if iv.Source == SourceHour {
			unit = domain.UnitHour
		}
		buckets, err := j.tiers.Aggregations(ctx, cache.PremiumSeries(j.symbol), unit, from, now)
		if err != nil {
			return nil, err
		}
		merged := Merge(j.symbol, from, now, buckets)
		if merged == nil {
			return nil, nil
		}
		high, low, last = merged.High, merged.Low, merged.Close
		lastAt = buckets[len(buckets)-1].To
		for _, b := range buckets {
			if b.To.After(lastAt) {
				lastAt = b.To
			}
		}
	default:
		return nil, fmt.Errorf("unknown summary source %q", iv.Source)
	}

	sum := &domain.Summary{
		Interval:         iv.Name,
		High:             high,
		Low:              low,
		Current:          last,
		CurrentTimestamp: lastAt,
		UpdatedAt:        now,
	}
	if current != nil {
		sum.Current = current.PremiumRate
		sum.CurrentTimestamp = current.ObservedAt
	}
	return sum, nil
}
