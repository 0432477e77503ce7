package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/geonyeop123/premium-spread-sub000/internal/cache"
	"github.com/geonyeop123/premium-spread-sub000/internal/clients/binance"
	"github.com/geonyeop123/premium-spread-sub000/internal/clients/exchangerate"
	"github.com/geonyeop123/premium-spread-sub000/internal/clients/upbit"
	"github.com/geonyeop123/premium-spread-sub000/internal/config"
	"github.com/geonyeop123/premium-spread-sub000/internal/lock"
	"github.com/geonyeop123/premium-spread-sub000/internal/lookup"
	"github.com/geonyeop123/premium-spread-sub000/internal/metrics"
	"github.com/geonyeop123/premium-spread-sub000/internal/storage"
	"github.com/geonyeop123/premium-spread-sub000/internal/work"
)

// InitializeServices builds repositories, metrics, the job executor and the
// provider clients on top of the stores.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if cfg.DomesticExchange != upbit.Exchange {
		return fmt.Errorf("unsupported domestic exchange: %s", cfg.DomesticExchange)
	}
	if cfg.ForeignExchange != binance.Exchange {
		return fmt.Errorf("unsupported foreign exchange: %s", cfg.ForeignExchange)
	}

	container.Cache = cache.NewStore(container.Redis, cache.DefaultTTLs())
	container.Repository = storage.NewRepository(container.DB.Conn())

	container.Recorder = metrics.NewRecorder()
	collectors := metrics.Multi{container.Recorder}
	if cfg.CloudWatch.Enabled {
		cw, err := metrics.NewCloudWatchFromEnv(context.Background(), cfg.CloudWatch.Region, cfg.CloudWatch.Namespace, log)
		if err != nil {
			return err
		}
		container.CloudWatch = cw
		collectors = append(collectors, cw)
	}
	container.Collector = collectors

	container.Locks = lock.NewCoordinator(container.Redis, log)
	container.Heartbeats = work.NewHeartbeatTracker(container.Redis)
	container.Executor = work.NewExecutor(work.NewCoordinatorLocker(container.Locks), container.Heartbeats, container.Collector, log)
	container.Registry = work.NewRegistry()

	upbitOpts := upbit.DefaultOptions()
	if cfg.UpbitBaseURL != "" {
		upbitOpts.BaseURL = cfg.UpbitBaseURL
	}
	container.Upbit = upbit.NewClient(upbitOpts, log)

	binanceOpts := binance.DefaultOptions()
	if cfg.BinanceFuturesBaseURL != "" {
		binanceOpts.BaseURL = cfg.BinanceFuturesBaseURL
	}
	container.Binance = binance.NewClient(binanceOpts, log)

	container.ExchangeRate = exchangerate.NewClient(cfg.ExchangeRateBaseURL, log)

	container.Lookup = lookup.NewService(container.Cache, container.Repository, container.Collector, log)
	container.Lookup.SetFxWindow(container.Cache.TTLs().FxSeconds)

	log.Info().Bool("cloudwatch", cfg.CloudWatch.Enabled).Msg("Services initialized")
	return nil
}
