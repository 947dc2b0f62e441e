// Package driver opens the storage.Store selected by configuration.
package driver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/albapepper/matchday/internal/config"
	"github.com/albapepper/matchday/internal/db"
	"github.com/albapepper/matchday/internal/storage"
	"github.com/albapepper/matchday/internal/storage/memory"
	"github.com/albapepper/matchday/internal/storage/postgres"
	"github.com/albapepper/matchday/internal/storage/sqlite"
)

// Open connects to the configured store. With migrate set the Postgres schema
// is applied before the pool is created, since pooled connections prepare
// statements against it. SQLite always migrates on open.
func Open(ctx context.Context, cfg *config.Config, migrate bool, logger *slog.Logger) (storage.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		if migrate {
			if err := db.Migrate(ctx, cfg.DatabaseURL); err != nil {
				return nil, fmt.Errorf("migrate database: %w", err)
			}
			logger.Info("Database schema applied")
		}
		pool, err := db.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		logger.Info("Database connected",
			"min_conns", cfg.DBPoolMinConns,
			"max_conns", cfg.DBPoolMaxConns)
		return postgres.New(pool), nil

	case config.DriverSQLite:
		s, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		logger.Info("SQLite store opened", "path", cfg.SQLitePath)
		return s, nil

	case config.DriverMemory:
		logger.Warn("Using in-memory store; data is lost on exit")
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
