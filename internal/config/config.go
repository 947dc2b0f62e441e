// Package config provides centralized configuration loaded from environment
// variables. Shared by cmd/api and cmd/matchctl.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata" // NOTIFY_TIMEZONE must resolve on minimal images

	"github.com/caarlos0/env/v11"
)

// Store drivers accepted in STORE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// --------------------------------------------------------------------------
// Config struct, populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Storage
	StoreDriver          string `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL          string `env:"DATABASE_URL"`
	SQLitePath           string `env:"SQLITE_PATH" envDefault:"matchday.db"`
	DBPoolMinConns       int    `env:"DB_POOL_MIN_CONNS" envDefault:"2"`
	DBPoolMaxConns       int    `env:"DB_POOL_MAX_CONNS" envDefault:"10"`
	DBPoolMaxLifeMinutes int    `env:"DB_POOL_MAX_LIFE_MINUTES" envDefault:"30"`
	DBPoolMaxLife        time.Duration

	// API server
	APIHost     string `env:"API_HOST" envDefault:"0.0.0.0"`
	APIPort     int    `env:"API_PORT"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"` // development, staging, production
	Debug       bool   `env:"DEBUG" envDefault:"false"`

	// CORS
	CORSAllowOrigins []string `env:"CORS_ALLOW_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:4321,http://localhost:5173"`

	// Rate limiting
	RateLimitEnabled  bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitRequests int           `env:"RATE_LIMIT_REQUESTS" envDefault:"100"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"60s"`

	// Identity. Tokens are minted by the auth service; we only verify them.
	JWTSecret string `env:"JWT_SECRET"`

	// Tournament scheduler
	SweepInterval     time.Duration `env:"SWEEP_INTERVAL" envDefault:"5m"`
	SweepCron         string        `env:"SWEEP_CRON"`
	FanoutConcurrency int           `env:"FANOUT_CONCURRENCY" envDefault:"8"`

	// Notifications
	DispatchInterval  time.Duration `env:"DISPATCH_INTERVAL" envDefault:"30s"`
	DispatchBatchSize int           `env:"DISPATCH_BATCH_SIZE" envDefault:"100"`
	NotifyLocale      string        `env:"NOTIFY_LOCALE" envDefault:"es"`
	NotifyTimezone    string        `env:"NOTIFY_TIMEZONE" envDefault:"Europe/Madrid"`
	PublicBaseURL     string        `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:4321"`

	// Event stream (optional)
	NATSURL           string `env:"NATS_URL"`
	NATSStream        string `env:"NATS_STREAM" envDefault:"MATCHDAY"`
	NATSSubjectPrefix string `env:"NATS_SUBJECT_PREFIX" envDefault:"matchday"`

	// Scoring
	ScoringRulesFile string `env:"SCORING_RULES_FILE"`

	// Cache
	CacheEnabled bool          `env:"CACHE_ENABLED" envDefault:"true"`
	CacheTTL     time.Duration `env:"CACHE_TTL" envDefault:"30s"`

	// Maintenance
	PurgeInterval         time.Duration `env:"PURGE_INTERVAL" envDefault:"6h"`
	NotificationRetention time.Duration `env:"NOTIFICATION_RETENTION" envDefault:"720h"`
	ScoreAuditInterval    time.Duration `env:"SCORE_AUDIT_INTERVAL" envDefault:"10m"`

	notifyLocation *time.Location
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	// Hosting platforms inject PORT; API_PORT wins when both are set.
	if cfg.APIPort == 0 {
		cfg.APIPort = 8000
		if v := os.Getenv("PORT"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				cfg.APIPort = n
			}
		}
	}
	cfg.DBPoolMaxLife = time.Duration(cfg.DBPoolMaxLifeMinutes) * time.Minute

	switch cfg.StoreDriver {
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL must be set when STORE_DRIVER=%s", DriverPostgres)
		}
	case DriverSQLite:
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("SQLITE_PATH must be set when STORE_DRIVER=%s", DriverSQLite)
		}
	case DriverMemory:
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	if cfg.IsProduction() && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET must be set in production")
	}

	loc, err := time.LoadLocation(cfg.NotifyTimezone)
	if err != nil {
		return nil, fmt.Errorf("NOTIFY_TIMEZONE: %w", err)
	}
	cfg.notifyLocation = loc

	return cfg, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// NotifyLocation is the zone quiet hours are evaluated in.
func (c *Config) NotifyLocation() *time.Location {
	if c.notifyLocation == nil {
		return time.UTC
	}
	return c.notifyLocation
}

// StreamEnabled reports whether domain events go to NATS JetStream.
func (c *Config) StreamEnabled() bool {
	return c.NATSURL != ""
}
