package aggregation

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/geonyeop123/premium-spread-sub000/internal/domain"
)

// Sample is one observation of a series.
type Sample struct {
	At    time.Time
	Value decimal.Decimal
}

// Reduce folds raw samples of [from, to) into one OHLC bucket. Open and close
// are the earliest and latest samples by time. Returns nil for no samples.
func Reduce(key string, from, to time.Time, samples []Sample) *domain.Aggregation {
	if len(samples) == 0 {
		return nil
	}

	sorted := make([]Sample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].At.Before(sorted[j].At) })

	values := make([]decimal.Decimal, len(sorted))
	for i, s := range sorted {
		values[i] = s.Value
	}

	return &domain.Aggregation{
		Key:   key,
		From:  from,
		To:    to,
		Open:  values[0],
		High:  decimal.Max(values[0], values[1:]...),
		Low:   decimal.Min(values[0], values[1:]...),
		Close: values[len(values)-1],
		Avg:   decimal.Avg(values[0], values[1:]...),
		Count: int64(len(values)),
	}
}

// Merge folds finer buckets into one coarser bucket over [from, to). The
// average is weighted by each bucket's count. Returns nil for no buckets.
func Merge(key string, from, to time.Time, aggs []domain.Aggregation) *domain.Aggregation {
	if len(aggs) == 0 {
		return nil
	}

	sorted := make([]domain.Aggregation, len(aggs))
	copy(sorted, aggs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].From.Before(sorted[j].From) })

	out := &domain.Aggregation{
		Key:   key,
		From:  from,
		To:    to,
		Open:  sorted[0].Open,
		High:  sorted[0].High,
		Low:   sorted[0].Low,
		Close: sorted[len(sorted)-1].Close,
	}

	weighted := decimal.Zero
	for _, a := range sorted {
		out.High = decimal.Max(out.High, a.High)
		out.Low = decimal.Min(out.Low, a.Low)
		out.Count += a.Count
		weighted = weighted.Add(a.Avg.Mul(decimal.NewFromInt(a.Count)))
	}

	if out.Count > 0 {
		out.Avg = weighted.Div(decimal.NewFromInt(out.Count))
	} else {
		// Buckets written without a count; fall back to the plain mean.
		avgs := make([]decimal.Decimal, len(sorted))
		for i, a := range sorted {
			avgs[i] = a.Avg
		}
		out.Avg = decimal.Avg(avgs[0], avgs[1:]...)
	}
	return out
}

// PremiumSamples projects premium points onto their rate.
func PremiumSamples(points []domain.PremiumPoint) []Sample {
	out := make([]Sample, len(points))
	for i, p := range points {
		out[i] = Sample{At: p.ObservedAt, Value: p.PremiumRate}
	}
	return out
}

// TickerSamples projects ticker points onto their price.
func TickerSamples(points []domain.TickerPoint) []Sample {
	out := make([]Sample, len(points))
	for i, p := range points {
		out[i] = Sample{At: p.ObservedAt, Value: p.Price}
	}
	return out
}
