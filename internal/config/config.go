// Package config provides configuration management functionality.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	DataDir   string // Base directory for the durable database (always absolute)
	LogLevel  string
	LogPretty bool
	LogFile   string // Optional rotating log file; stderr only when empty
	Port      int

	Redis RedisConfig

	Symbol           string // Base asset, e.g. "BTC"
	DomesticExchange string
	ForeignExchange  string
	PremiumScale     int32
	PremiumBasis     string // "domestic" or "foreign"

	UpbitBaseURL          string
	BinanceFuturesBaseURL string
	ExchangeRateBaseURL   string

	ScheduleFile string // Optional YAML trigger overrides

	CloudWatch CloudWatchConfig

	StaleThreshold    time.Duration // Heartbeat age after which a job is stale
	DownAfterFailures int64         // Consecutive failures after which a job is down
}

// RedisConfig holds the shared cache/lock store connection
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// CloudWatchConfig holds the optional metrics sink
type CloudWatchConfig struct {
	Enabled   bool
	Namespace string
	Region    string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	absDataDir, err := filepath.Abs(getEnv("DATA_DIR", "./data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:   absDataDir,
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnvAsBool("LOG_PRETTY", false),
		LogFile:   getEnv("LOG_FILE", ""),
		Port:      getEnvAsInt("PORT", 8080),
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Symbol:                strings.ToUpper(getEnv("SYMBOL", "BTC")),
		DomesticExchange:      getEnv("DOMESTIC_EXCHANGE", "upbit"),
		ForeignExchange:       getEnv("FOREIGN_EXCHANGE", "binance"),
		PremiumScale:          int32(getEnvAsInt("PREMIUM_SCALE", 2)),
		PremiumBasis:          getEnv("PREMIUM_BASIS", "domestic"),
		UpbitBaseURL:          getEnv("UPBIT_BASE_URL", ""),
		BinanceFuturesBaseURL: getEnv("BINANCE_FUTURES_BASE_URL", ""),
		ExchangeRateBaseURL:   getEnv("EXCHANGERATE_BASE_URL", ""),
		ScheduleFile:          getEnv("SCHEDULE_FILE", ""),
		CloudWatch: CloudWatchConfig{
			Enabled:   getEnvAsBool("CLOUDWATCH_ENABLED", false),
			Namespace: getEnv("CLOUDWATCH_NAMESPACE", "PremiumSpread"),
			Region:    getEnv("AWS_REGION", "ap-northeast-2"),
		},
		StaleThreshold:    getEnvAsDuration("STALE_THRESHOLD", 2*time.Minute),
		DownAfterFailures: int64(getEnvAsInt("DOWN_AFTER_FAILURES", 5)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Symbol == "" {
		return errors.New("SYMBOL is required")
	}
	if c.DomesticExchange == c.ForeignExchange {
		return fmt.Errorf("domestic and foreign exchange must differ (both %q)", c.DomesticExchange)
	}
	if c.PremiumScale < 0 || int(c.PremiumScale) > decimal.DivisionPrecision {
		return fmt.Errorf("PREMIUM_SCALE must be between 0 and %d", decimal.DivisionPrecision)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT: %d", c.Port)
	}
	if c.Redis.Addr == "" {
		return errors.New("REDIS_ADDR is required")
	}
	if c.StaleThreshold <= 0 {
		return errors.New("STALE_THRESHOLD must be positive")
	}
	if c.DownAfterFailures <= 0 {
		return errors.New("DOWN_AFTER_FAILURES must be positive")
	}
	return nil
}

// DatabasePath returns the location of the durable database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "premium.db")
}

// ScheduleOverride replaces parts of one job trigger. Zero fields keep the default.
type ScheduleOverride struct {
	Schedule     string         `yaml:"schedule"`
	Lease        time.Duration  `yaml:"lease"`
	StartupDelay *time.Duration `yaml:"startup_delay"`
}

type scheduleFile struct {
	Jobs map[string]ScheduleOverride `yaml:"jobs"`
}

// LoadSchedules reads trigger overrides keyed by job name, e.g.
//
//	jobs:
//	  fx-ingest:
//	    schedule: "@every 10m"
//	    lease: 2m
//
// An empty path yields no overrides.
func LoadSchedules(path string) (map[string]ScheduleOverride, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schedule file: %w", err)
	}

	var f scheduleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse schedule file %s: %w", path, err)
	}
	return f.Jobs, nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
