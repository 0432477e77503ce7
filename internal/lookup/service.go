// Package lookup answers "latest value" reads by falling back across tiers:
// the cache point, then the newest cached bucket, then durable storage.
package lookup

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/geonyeop123/premium-spread-sub000/internal/cache"
	"github.com/geonyeop123/premium-spread-sub000/internal/domain"
	"github.com/geonyeop123/premium-spread-sub000/internal/metrics"
)

// MetricMiss counts tiers that had nothing for a read.
const MetricMiss = "lookup.miss"

// ErrNotFound is returned when no tier holds a value.
var ErrNotFound = errors.New("no value in any tier")

// Source names the tier that answered.
type Source string

const (
	SourcePoint     Source = "point"
	SourceAggregate Source = "aggregate"
	SourceSeconds   Source = "seconds"
	SourceStorage   Source = "storage"
)

// Quote is the answer of a lookup.
type Quote struct {
	Value      decimal.Decimal `json:"value"`
	ObservedAt time.Time       `json:"observed_at"`
	Source     Source          `json:"source"`
}

// CacheReader is the read side of the tiered cache.
type CacheReader interface {
	Premium(ctx context.Context, symbol string) (*domain.PremiumPoint, error)
	Ticker(ctx context.Context, exchange, symbol string) (*domain.TickerPoint, error)
	Fx(ctx context.Context, base, quote domain.Currency) (*domain.FxPoint, error)
	FxSeconds(ctx context.Context, base, quote domain.Currency, from, to time.Time) ([]domain.FxPoint, error)
	NearestAggregation(ctx context.Context, series cache.Series, unit domain.TimeUnit, at time.Time) (*domain.Aggregation, error)
}

// DurableReader is the read side of durable storage.
type DurableReader interface {
	LatestPremiumAggregate(ctx context.Context, symbol string, unit domain.TimeUnit) (*domain.Aggregation, error)
	LatestTickerAggregate(ctx context.Context, exchange, symbol string, unit domain.TimeUnit) (*domain.Aggregation, error)
	LatestFxRate(ctx context.Context, base, quote domain.Currency) (*domain.FxPoint, error)
}

// Service resolves latest values.
type Service struct {
	cache    CacheReader
	durable  DurableReader
	metrics  metrics.Collector
	log      zerolog.Logger
	fxWindow time.Duration
	now      func() time.Time
}

// NewService creates a lookup service. durable may be nil.
func NewService(cache CacheReader, durable DurableReader, collector metrics.Collector, log zerolog.Logger) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		cache:    cache,
		durable:  durable,
		metrics:  collector,
		log:      log.With().Str("component", "lookup").Logger(),
		fxWindow: 24 * time.Hour,
		now:      time.Now,
	}
}

// SetFxWindow sets how far back the FX seconds tier is searched.
func (s *Service) SetFxWindow(d time.Duration) {
	if d > 0 {
		s.fxWindow = d
	}
}

// SetClock replaces the time source (tests).
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

type tier struct {
	source Source
	read   func(ctx context.Context) (*Quote, error)
}

// LatestPremium returns the latest premium rate of symbol.
func (s *Service) LatestPremium(ctx context.Context, symbol string) (*Quote, error) {
	return s.resolve(ctx, "premium", []tier{
		{SourcePoint, func(ctx context.Context) (*Quote, error) {
			p, err := s.cache.Premium(ctx, symbol)
			if err != nil || p == nil {
				return nil, err
			}
			return &Quote{Value: p.PremiumRate, ObservedAt: p.ObservedAt}, nil
		}},
		{SourceAggregate, func(ctx context.Context) (*Quote, error) {
			return fromAggregation(s.cache.NearestAggregation(ctx, cache.PremiumSeries(symbol), domain.UnitMinute, s.now()))
		}},
		{SourceStorage, func(ctx context.Context) (*Quote, error) {
			if s.durable == nil {
				return nil, nil
			}
			return fromAggregation(s.durable.LatestPremiumAggregate(ctx, symbol, domain.UnitMinute))
		}},
	})
}

// LatestTicker returns the latest price of symbol on exchange.
func (s *Service) LatestTicker(ctx context.Context, exchange, symbol string) (*Quote, error) {
	return s.resolve(ctx, "ticker", []tier{
		{SourcePoint, func(ctx context.Context) (*Quote, error) {
			p, err := s.cache.Ticker(ctx, exchange, symbol)
			if err != nil || p == nil {
				return nil, err
			}
			return &Quote{Value: p.Price, ObservedAt: p.ObservedAt}, nil
		}},
		{SourceAggregate, func(ctx context.Context) (*Quote, error) {
			return fromAggregation(s.cache.NearestAggregation(ctx, cache.TickerSeries(exchange, symbol), domain.UnitMinute, s.now()))
		}},
		{SourceStorage, func(ctx context.Context) (*Quote, error) {
			if s.durable == nil {
				return nil, nil
			}
			return fromAggregation(s.durable.LatestTickerAggregate(ctx, exchange, symbol, domain.UnitMinute))
		}},
	})
}

// LatestFx returns the latest rate of the pair. FX has no bucketed tier, so
// the rolling seconds tier stands in for it.
func (s *Service) LatestFx(ctx context.Context, base, quote domain.Currency) (*Quote, error) {
	return s.resolve(ctx, "fx", []tier{
		{SourcePoint, func(ctx context.Context) (*Quote, error) {
			return fromFx(s.cache.Fx(ctx, base, quote))
		}},
		{SourceSeconds, func(ctx context.Context) (*Quote, error) {
			now := s.now()
			points, err := s.cache.FxSeconds(ctx, base, quote, now.Add(-s.fxWindow), now.Add(time.Millisecond))
			if err != nil || len(points) == 0 {
				return nil, err
			}
			return fromFx(&points[len(points)-1], nil)
		}},
		{SourceStorage, func(ctx context.Context) (*Quote, error) {
			if s.durable == nil {
				return nil, nil
			}
			return fromFx(s.durable.LatestFxRate(ctx, base, quote))
		}},
	})
}

func (s *Service) resolve(ctx context.Context, kind string, tiers []tier) (*Quote, error) {
	for _, t := range tiers {
		q, err := t.read(ctx)
		if err != nil {
			s.log.Warn().Err(err).Str("kind", kind).Str("tier", string(t.source)).Msg("Lookup tier failed")
		}
		if q != nil {
			q.Source = t.source
			return q, nil
		}
		s.metrics.IncCounter(MetricMiss, map[string]string{"tier": string(t.source), "kind": kind})
		s.log.Debug().Str("kind", kind).Str("tier", string(t.source)).Msg("Lookup miss")
	}
	return nil, ErrNotFound
}

// fromAggregation maps a bucket to its close, observed at the bucket end.
func fromAggregation(agg *domain.Aggregation, err error) (*Quote, error) {
	if err != nil || agg == nil {
		return nil, err
	}
	return &Quote{Value: agg.Close, ObservedAt: agg.To}, nil
}

func fromFx(p *domain.FxPoint, err error) (*Quote, error) {
	if err != nil || p == nil {
		return nil, err
	}
	return &Quote{Value: p.Rate, ObservedAt: p.ObservedAt}, nil
}
