package ingest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/geonyeop123/premium-spread-sub000/internal/domain"
	"github.com/geonyeop123/premium-spread-sub000/internal/work"
)

// FxSource is the FX-rate provider.
type FxSource interface {
	FetchRate(ctx context.Context, base, quote domain.Currency) (*domain.FxPoint, error)
}

// FxWriter is the part of the cache FX ingestion writes to.
type FxWriter interface {
	SaveFx(ctx context.Context, p *domain.FxPoint) error
	AppendFxSecond(ctx context.Context, p *domain.FxPoint) error
}

// FxRecorder is the durable FX-rate history.
type FxRecorder interface {
	InsertFxRate(ctx context.Context, p *domain.FxPoint) error
}

// FxJob fetches one currency pair and writes it to the cache and durable
// storage in the same run. The two writes are not atomic; a divergence is
// corrected by the next tick.
type FxJob struct {
	base    domain.Currency
	quote   domain.Currency
	source  FxSource
	cache   FxWriter
	durable FxRecorder
	log     zerolog.Logger
}

// NewFxJob creates the FX ingestion job. durable may be nil.
func NewFxJob(base, quote domain.Currency, source FxSource, cache FxWriter, durable FxRecorder, log zerolog.Logger) *FxJob {
	return &FxJob{
		base:    base,
		quote:   quote,
		source:  source,
		cache:   cache,
		durable: durable,
		log:     log.With().Str("component", "fx_ingest").Str("pair", string(base)+"/"+string(quote)).Logger(),
	}
}

// Run implements work.Runner.
func (j *FxJob) Run(ctx context.Context) work.Result {
	return work.Guard(ctx, j.run)
}

func (j *FxJob) run(ctx context.Context) work.Result {
	p, err := j.source.FetchRate(ctx, j.base, j.quote)
	if err != nil {
		return work.Fail(fmt.Errorf("fx rate: %w", err))
	}
	if p == nil {
		return work.Fail(fmt.Errorf("provider returned no rate for %s/%s", j.base, j.quote))
	}
	if !p.Rate.IsPositive() {
		j.log.Warn().Str("rate", p.Rate.String()).Msg("Non-positive fx rate")
		return work.Skip(work.ReasonInvalidPrice)
	}

	if err := j.cache.SaveFx(ctx, p); err != nil {
		return work.Fail(err)
	}
	if err := j.cache.AppendFxSecond(ctx, p); err != nil {
		return work.Fail(err)
	}
	if j.durable != nil {
		if err := j.durable.InsertFxRate(ctx, p); err != nil {
			return work.Fail(fmt.Errorf("durable fx write: %w", err))
		}
	}

	j.log.Info().Str("rate", p.Rate.String()).Msg("FX rate ingested")
	return work.Succeeded()
}
