// Package di provides dependency injection wiring and initialization.
package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/geonyeop123/premium-spread-sub000/internal/config"
)

// Wire initializes all dependencies and returns a fully configured container
// Order of operations:
// 1. Connect stores (Redis, SQLite)
// 2. Initialize repositories, metrics, executor and provider clients
// 3. Register jobs with their triggers
func Wire(cfg *config.Config, overrides map[string]config.ScheduleOverride, log zerolog.Logger) (*Container, error) {
	container, err := InitializeDatabases(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := InitializeServices(container, cfg, log); err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := RegisterJobs(container, cfg, overrides, log); err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to register jobs: %w", err)
	}

	log.Info().Msg("Dependency injection wiring completed successfully")
	return container, nil
}
