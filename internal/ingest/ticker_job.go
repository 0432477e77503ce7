// Package ingest pulls quotes from the market-data providers into the point
// and rolling-seconds cache tiers.
package ingest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/geonyeop123/premium-spread-sub000/internal/domain"
	"github.com/geonyeop123/premium-spread-sub000/internal/work"
)

// TickerSource is one market-data provider. It owns its retry policy and
// returns an error only once that is exhausted.
type TickerSource interface {
	FetchTicker(ctx context.Context, symbol string) (*domain.TickerPoint, error)
}

// TickerWriter is the part of the cache ticker ingestion writes to.
type TickerWriter interface {
	SaveTicker(ctx context.Context, p *domain.TickerPoint) error
	AppendTickerSecond(ctx context.Context, p *domain.TickerPoint) error
}

// TickerJob fetches the domestic and foreign ticker of one symbol concurrently.
// Both fetches must succeed and both prices must be positive before anything
// is written.
type TickerJob struct {
	symbol   string
	domestic TickerSource
	foreign  TickerSource
	cache    TickerWriter
	log      zerolog.Logger
}

// NewTickerJob creates the ticker ingestion job.
func NewTickerJob(symbol string, domestic, foreign TickerSource, cache TickerWriter, log zerolog.Logger) *TickerJob {
	return &TickerJob{
		symbol:   symbol,
		domestic: domestic,
		foreign:  foreign,
		cache:    cache,
		log:      log.With().Str("component", "ticker_ingest").Str("symbol", symbol).Logger(),
	}
}

// Run implements work.Runner.
func (j *TickerJob) Run(ctx context.Context) work.Result {
	return work.Guard(ctx, j.run)
}

func (j *TickerJob) run(ctx context.Context) work.Result {
	var domestic, foreign *domain.TickerPoint

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(2)
	g.Go(func() error {
		p, err := j.domestic.FetchTicker(gctx, j.symbol)
		if err != nil {
			return fmt.Errorf("domestic ticker: %w", err)
		}
		domestic = p
		return nil
	})
	g.Go(func() error {
		p, err := j.foreign.FetchTicker(gctx, j.symbol)
		if err != nil {
			return fmt.Errorf("foreign ticker: %w", err)
		}
		foreign = p
		return nil
	})
	if err := g.Wait(); err != nil {
		return work.Fail(err)
	}

	if domestic == nil || foreign == nil {
		return work.Fail(fmt.Errorf("provider returned no ticker for %s", j.symbol))
	}
	for _, p := range []*domain.TickerPoint{domestic, foreign} {
		if !p.Price.IsPositive() {
			j.log.Warn().Str("exchange", p.Exchange).Str("price", p.Price.String()).Msg("Non-positive ticker price")
			return work.Skip(work.ReasonInvalidPrice)
		}
	}

	for _, p := range []*domain.TickerPoint{domestic, foreign} {
		if err := j.cache.SaveTicker(ctx, p); err != nil {
			return work.Fail(err)
		}
		if err := j.cache.AppendTickerSecond(ctx, p); err != nil {
			return work.Fail(err)
		}
	}

	j.log.Debug().
		Str("domestic", domestic.Price.String()).
		Str("foreign", foreign.Price.String()).
		Msg("Tickers ingested")
	return work.Succeeded()
}
