package aggregation

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/geonyeop123/premium-spread-sub000/internal/cache"
	"github.com/geonyeop123/premium-spread-sub000/internal/domain"
)

// Tiers is the part of the cache the rollups read from and write to.
type Tiers interface {
	PremiumSeconds(ctx context.Context, symbol string, from, to time.Time) ([]domain.PremiumPoint, error)
	TickerSeconds(ctx context.Context, exchange, symbol string, from, to time.Time) ([]domain.TickerPoint, error)
	Aggregations(ctx context.Context, series cache.Series, unit domain.TimeUnit, from, to time.Time) ([]domain.Aggregation, error)
	UpsertAggregation(ctx context.Context, series cache.Series, unit domain.TimeUnit, agg *domain.Aggregation) error
}

// AggregateStore is the durable copy of every aggregated bucket.
type AggregateStore interface {
	UpsertPremiumAggregate(ctx context.Context, symbol string, unit domain.TimeUnit, agg *domain.Aggregation) error
	UpsertTickerAggregate(ctx context.Context, exchange, symbol string, unit domain.TimeUnit, agg *domain.Aggregation) error
}

// Pipelines builds the premium and ticker rollups: minute from the rolling
// seconds tier, hour from minutes, day from hours.
type Pipelines struct {
	tiers   Tiers
	durable AggregateStore
	log     zerolog.Logger
	now     func() time.Time
}

// NewPipelines creates the rollup builder. durable may be nil, in which case
// buckets are only cached.
func NewPipelines(tiers Tiers, durable AggregateStore, log zerolog.Logger) *Pipelines {
	return &Pipelines{
		tiers:   tiers,
		durable: durable,
		log:     log.With().Str("component", "aggregation").Logger(),
		now:     time.Now,
	}
}

// SetClock replaces the time source of every job built afterwards.
func (p *Pipelines) SetClock(now func() time.Time) {
	p.now = now
}

// Premium returns the premium rollup of symbol at unit.
func (p *Pipelines) Premium(symbol string, unit domain.TimeUnit) *Job[*domain.Aggregation] {
	return p.build("premium-"+string(unit), cache.PremiumSeries(symbol), unit)
}

// Ticker returns the ticker rollup of symbol on one exchange at unit.
func (p *Pipelines) Ticker(exchange, symbol string, unit domain.TimeUnit) *Job[*domain.Aggregation] {
	return p.build("ticker-"+string(unit)+"-"+exchange, cache.TickerSeries(exchange, symbol), unit)
}

// TickerAll runs the ticker rollup for every exchange in order.
func (p *Pipelines) TickerAll(exchanges []string, symbol string, unit domain.TimeUnit) *MultiTarget {
	m := &MultiTarget{}
	for _, ex := range exchanges {
		m.Targets = append(m.Targets, p.Ticker(ex, symbol, unit))
	}
	return m
}

func (p *Pipelines) build(name string, series cache.Series, unit domain.TimeUnit) *Job[*domain.Aggregation] {
	return &Job[*domain.Aggregation]{
		Name: name,
		Unit: unit,
		Read: func(ctx context.Context, from, to time.Time) (*domain.Aggregation, bool, error) {
			agg, err := p.read(ctx, series, unit, from, to)
			return agg, agg != nil, err
		},
		Write: func(ctx context.Context, agg *domain.Aggregation, from, to time.Time) error {
			return p.write(ctx, series, unit, agg)
		},
		Now: p.now,
	}
}

func (p *Pipelines) read(ctx context.Context, series cache.Series, unit domain.TimeUnit, from, to time.Time) (*domain.Aggregation, error) {
	finer, ok := unit.Finer()
	if !ok {
		samples, err := p.seconds(ctx, series, from, to)
		if err != nil {
			return nil, err
		}
		return Reduce(series.Name(), from, to, samples), nil
	}

	buckets, err := p.tiers.Aggregations(ctx, series, finer, from, to)
	if err != nil {
		return nil, err
	}
	return Merge(series.Name(), from, to, buckets), nil
}

func (p *Pipelines) seconds(ctx context.Context, series cache.Series, from, to time.Time) ([]Sample, error) {
	if series.IsTicker() {
		points, err := p.tiers.TickerSeconds(ctx, series.Exchange, series.Symbol, from, to)
		if err != nil {
			return nil, err
		}
		return TickerSamples(points), nil
	}
	points, err := p.tiers.PremiumSeconds(ctx, series.Symbol, from, to)
	if err != nil {
		return nil, err
	}
	return PremiumSamples(points), nil
}

func (p *Pipelines) write(ctx context.Context, series cache.Series, unit domain.TimeUnit, agg *domain.Aggregation) error {
	if err := p.tiers.UpsertAggregation(ctx, series, unit, agg); err != nil {
		return err
	}

	if p.durable != nil {
		var err error
		if series.IsTicker() {
			err = p.durable.UpsertTickerAggregate(ctx, series.Exchange, series.Symbol, unit, agg)
		} else {
			err = p.durable.UpsertPremiumAggregate(ctx, series.Symbol, unit, agg)
		}
		if err != nil {
			return fmt.Errorf("durable upsert of %s: %w", series, err)
		}
	}

	p.log.Debug().
		Str("series", series.String()).
		Str("unit", string(unit)).
		Time("from", agg.From).
		Int64("count", agg.Count).
		Msg("Aggregated window")
	return nil
}
