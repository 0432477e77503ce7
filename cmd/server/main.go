// Package main is the entry point of the premium-spread worker.
//
// Every node runs the same binary: it ingests tickers and FX rates, computes
// the kimchi premium, rolls it up into minute/hour/day buckets and serves the
// health surface. Jobs are coordinated fleet-wide through Redis leases, so any
// number of nodes can run side by side.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geonyeop123/premium-spread-sub000/internal/config"
	"github.com/geonyeop123/premium-spread-sub000/internal/di"
	"github.com/geonyeop123/premium-spread-sub000/internal/server"
	"github.com/geonyeop123/premium-spread-sub000/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
		File:   cfg.LogFile,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("symbol", cfg.Symbol).
		Str("domestic", cfg.DomesticExchange).
		Str("foreign", cfg.ForeignExchange).
		Msg("Starting premium-spread")

	overrides, err := config.LoadSchedules(cfg.ScheduleFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load schedule overrides")
	}

	container, err := di.Wire(cfg, overrides, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	if container.CloudWatch != nil {
		container.CloudWatch.Start(time.Minute)
	}

	srv := server.New(server.Config{
		Log:      log,
		Port:     cfg.Port,
		Probe:    container.Probe,
		Quotes:   container.Lookup,
		Jobs:     container.Scheduler,
		Schedule: container.Scheduler,
		Counters: container.Recorder,
		Checks: map[string]func(ctx context.Context) error{
			"redis":  func(ctx context.Context) error { return container.Redis.Ping(ctx).Err() },
			"sqlite": container.DB.QuickCheck,
		},
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	if err := container.Scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	// in-flight jobs finish before the stores close
	container.Scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if container.CloudWatch != nil {
		if err := container.CloudWatch.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to flush CloudWatch metrics")
		}
	}

	log.Info().Msg("Server stopped")
}
