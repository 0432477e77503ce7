package premium

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/geonyeop123/premium-spread-sub000/internal/domain"
	"github.com/geonyeop123/premium-spread-sub000/internal/work"
)

// Points is the point tier the job reads from and writes to.
type Points interface {
	Ticker(ctx context.Context, exchange, symbol string) (*domain.TickerPoint, error)
	Fx(ctx context.Context, base, quote domain.Currency) (*domain.FxPoint, error)
	SavePremium(ctx context.Context, p *domain.PremiumPoint) error
	AppendPremiumSecond(ctx context.Context, p *domain.PremiumPoint) error
	AppendPremiumHistory(ctx context.Context, p *domain.PremiumPoint) error
}

// PositionSignal reports whether any consumer holds an open position on a symbol.
type PositionSignal interface {
	HasOpenPosition(ctx context.Context, symbol string) (bool, error)
}

// JobConfig names the inputs of one premium series.
type JobConfig struct {
	Symbol           string
	DomesticExchange string
	ForeignExchange  string
	FxBase           domain.Currency
	FxQuote          domain.Currency
}

// Job computes the premium of one symbol from the point tier every tick.
// A missing input is a "not ready yet" state, never an error, and there is no
// fallback to durable storage.
type Job struct {
	cfg    JobConfig
	calc   Calculator
	points Points
	signal PositionSignal
	log    zerolog.Logger
}

// NewJob creates the premium job. signal may be nil, in which case history is
// never written.
func NewJob(cfg JobConfig, calc Calculator, points Points, signal PositionSignal, log zerolog.Logger) *Job {
	return &Job{
		cfg:    cfg,
		calc:   calc,
		points: points,
		signal: signal,
		log:    log.With().Str("component", "premium_job").Str("symbol", cfg.Symbol).Logger(),
	}
}

// Run implements work.Runner.
func (j *Job) Run(ctx context.Context) work.Result {
	return work.Guard(ctx, j.run)
}

func (j *Job) run(ctx context.Context) work.Result {
	domestic, err := j.points.Ticker(ctx, j.cfg.DomesticExchange, j.cfg.Symbol)
	if err != nil {
		return work.Fail(fmt.Errorf("read domestic ticker: %w", err))
	}
	foreign, err := j.points.Ticker(ctx, j.cfg.ForeignExchange, j.cfg.Symbol)
	if err != nil {
		return work.Fail(fmt.Errorf("read foreign ticker: %w", err))
	}
	fx, err := j.points.Fx(ctx, j.cfg.FxBase, j.cfg.FxQuote)
	if err != nil {
		return work.Fail(fmt.Errorf("read fx: %w", err))
	}

	// Presence is checked before positivity.
	if domestic == nil || foreign == nil || fx == nil {
		j.log.Debug().
			Bool("domestic", domestic != nil).
			Bool("foreign", foreign != nil).
			Bool("fx", fx != nil).
			Msg("Premium inputs not ready")
		return work.Skip(work.ReasonMissingData)
	}
	if !domestic.Price.IsPositive() || !foreign.Price.IsPositive() || !fx.Rate.IsPositive() {
		j.log.Warn().
			Str("domestic", domestic.Price.String()).
			Str("foreign", foreign.Price.String()).
			Str("fx", fx.Rate.String()).
			Msg("Non-positive premium input")
		return work.Skip(work.ReasonInvalidPrice)
	}

	point, err := j.calc.Calculate(j.cfg.Symbol, domestic, foreign, fx)
	if err != nil {
		return work.Fail(err)
	}

	if err := j.points.SavePremium(ctx, point); err != nil {
		return work.Fail(err)
	}
	if err := j.points.AppendPremiumSecond(ctx, point); err != nil {
		return work.Fail(err)
	}

	if j.historyWanted(ctx) {
		if err := j.points.AppendPremiumHistory(ctx, point); err != nil {
			return work.Fail(err)
		}
	}

	j.log.Debug().Str("premium_rate", point.PremiumRate.String()).Msg("Premium calculated")
	return work.Succeeded()
}

func (j *Job) historyWanted(ctx context.Context) bool {
	if j.signal == nil {
		return false
	}
	open, err := j.signal.HasOpenPosition(ctx, j.cfg.Symbol)
	if err != nil {
		j.log.Warn().Err(err).Msg("Position signal unavailable, skipping history")
		return false
	}
	return open
}
