package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/geonyeop123/premium-spread-sub000/internal/config"
	"github.com/geonyeop123/premium-spread-sub000/internal/database"
)

// InitializeDatabases connects the shared Redis store and opens the durable
// SQLite database with its schema applied.
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
	}
	container.Redis = rdb
	log.Info().Str("addr", cfg.Redis.Addr).Msg("Redis connected")

	db, err := database.New(database.Config{
		Path:    cfg.DatabasePath(),
		Profile: database.ProfileStandard,
		Name:    "premium",
	})
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to initialize premium database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		_ = db.Close()
		_ = rdb.Close()
		return nil, err
	}
	container.DB = db
	log.Info().Str("path", db.Path()).Msg("Database initialized")

	return container, nil
}

// Close releases the stores. Safe on a partially wired container.
func (c *Container) Close() {
	if c.DB != nil {
		_ = c.DB.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
