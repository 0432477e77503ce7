// Package di provides dependency injection type definitions.
package di

import (
	"github.com/redis/go-redis/v9"

	"github.com/geonyeop123/premium-spread-sub000/internal/cache"
	"github.com/geonyeop123/premium-spread-sub000/internal/clients/binance"
	"github.com/geonyeop123/premium-spread-sub000/internal/clients/exchangerate"
	"github.com/geonyeop123/premium-spread-sub000/internal/clients/upbit"
	"github.com/geonyeop123/premium-spread-sub000/internal/database"
	"github.com/geonyeop123/premium-spread-sub000/internal/health"
	"github.com/geonyeop123/premium-spread-sub000/internal/lock"
	"github.com/geonyeop123/premium-spread-sub000/internal/lookup"
	"github.com/geonyeop123/premium-spread-sub000/internal/metrics"
	"github.com/geonyeop123/premium-spread-sub000/internal/scheduler"
	"github.com/geonyeop123/premium-spread-sub000/internal/storage"
	"github.com/geonyeop123/premium-spread-sub000/internal/work"
)

// Container holds all dependencies for the application.
type Container struct {
	// Stores
	Redis *redis.Client
	DB    *database.DB

	// Repositories
	Cache      *cache.Store
	Repository *storage.Repository

	// Metrics; Collector fans out to Recorder and, when enabled, CloudWatch
	Recorder   *metrics.Recorder
	CloudWatch *metrics.CloudWatch
	Collector  metrics.Collector

	// Job infrastructure
	Locks      *lock.Coordinator
	Heartbeats *work.HeartbeatTracker
	Executor   *work.Executor
	Registry   *work.Registry
	Catalogue  scheduler.Catalogue
	Scheduler  *scheduler.Scheduler

	// Providers
	Upbit        *upbit.Client
	Binance      *binance.Client
	ExchangeRate *exchangerate.Client

	// Read side
	Lookup *lookup.Service
	Probe  *health.Probe
}
