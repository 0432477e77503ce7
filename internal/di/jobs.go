package di

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/geonyeop123/premium-spread-sub000/internal/aggregation"
	"github.com/geonyeop123/premium-spread-sub000/internal/cache"
	"github.com/geonyeop123/premium-spread-sub000/internal/config"
	"github.com/geonyeop123/premium-spread-sub000/internal/domain"
	"github.com/geonyeop123/premium-spread-sub000/internal/health"
	"github.com/geonyeop123/premium-spread-sub000/internal/ingest"
	"github.com/geonyeop123/premium-spread-sub000/internal/premium"
	"github.com/geonyeop123/premium-spread-sub000/internal/scheduler"
	"github.com/geonyeop123/premium-spread-sub000/internal/storage"
	"github.com/geonyeop123/premium-spread-sub000/internal/work"
)

// RegisterJobs builds every job, applies schedule overrides and registers the
// result with the scheduler. The cache TTLs are checked against the final
// trigger periods.
func RegisterJobs(container *Container, cfg *config.Config, overrides map[string]config.ScheduleOverride, log zerolog.Logger) error {
	catalogue := scheduler.DefaultCatalogue()
	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		o := overrides[name]
		if err := catalogue.Override(name, o.Schedule, o.Lease, o.StartupDelay); err != nil {
			return fmt.Errorf("schedule override: %w", err)
		}
	}
	if err := catalogue.Validate(); err != nil {
		return err
	}
	if err := checkTTLs(container.Cache.TTLs(), catalogue); err != nil {
		return err
	}
	container.Catalogue = catalogue

	basis, err := premium.ParseBasis(cfg.PremiumBasis)
	if err != nil {
		return err
	}
	calc := premium.NewCalculator(cfg.PremiumScale)
	calc.Basis = basis

	symbol := cfg.Symbol
	exchanges := []string{cfg.DomesticExchange, cfg.ForeignExchange}
	pipelines := aggregation.NewPipelines(container.Cache, container.Repository, log)

	tickerJob := ingest.NewTickerJob(symbol, container.Upbit, container.Binance, container.Cache, log)
	fxJob := ingest.NewFxJob(domain.CurrencyUSD, domain.CurrencyKRW, container.ExchangeRate, container.Cache, container.Repository, log)
	premiumJob := premium.NewJob(premium.JobConfig{
		Symbol:           symbol,
		DomesticExchange: cfg.DomesticExchange,
		ForeignExchange:  cfg.ForeignExchange,
		FxBase:           domain.CurrencyUSD,
		FxQuote:          domain.CurrencyKRW,
	}, calc, container.Cache, container.Cache, log)

	runners := map[string]work.Runner{
		scheduler.JobTickerIngest:     tickerJob,
		scheduler.JobFxIngest:         fxJob,
		scheduler.JobPremiumCalculate: premiumJob,
		scheduler.JobPremiumMinute:    pipelines.Premium(symbol, domain.UnitMinute),
		scheduler.JobPremiumHour:      pipelines.Premium(symbol, domain.UnitHour),
		scheduler.JobPremiumDay:       pipelines.Premium(symbol, domain.UnitDay),
		scheduler.JobTickerMinute:     pipelines.TickerAll(exchanges, symbol, domain.UnitMinute),
		scheduler.JobTickerHour:       pipelines.TickerAll(exchanges, symbol, domain.UnitHour),
		scheduler.JobTickerDay:        pipelines.TickerAll(exchanges, symbol, domain.UnitDay),
		scheduler.JobPremiumSummary:   aggregation.NewSummaryJob(symbol, container.Cache, container.Collector, log),
		scheduler.JobStoragePrune:     storage.NewPruneJob(container.Repository, storage.DefaultRetention(), log),
		scheduler.JobStorageMaintain:  storage.NewMaintainJob(container.DB, log),
	}
	if err := catalogue.Register(container.Registry, runners); err != nil {
		return err
	}

	container.Scheduler = scheduler.New(container.Registry, container.Executor, log)
	container.Probe = health.NewProbe(container.Heartbeats, catalogue.StaleThresholds(cfg.StaleThreshold), cfg.DownAfterFailures, log)

	log.Info().Int("jobs", container.Registry.Count()).Msg("Jobs registered")
	return nil
}

// checkTTLs validates the cache TTLs against the trigger periods of the
// writers and the summary job.
func checkTTLs(ttls cache.TTLs, catalogue scheduler.Catalogue) error {
	iv := cache.Intervals{}
	for job, dst := range map[string]*time.Duration{
		scheduler.JobTickerIngest:     &iv.Ticker,
		scheduler.JobFxIngest:         &iv.Fx,
		scheduler.JobPremiumCalculate: &iv.Premium,
		scheduler.JobPremiumSummary:   &iv.Summary,
	} {
		p, err := catalogue[job].Period()
		if err != nil {
			return fmt.Errorf("job %s: %w", job, err)
		}
		*dst = p
	}
	return ttls.Validate(iv)
}
