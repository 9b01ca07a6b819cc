// Package storage opens the configured backend and exposes it through the
// repository interfaces.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/ErlanBelekov/vm-power-scheduler/config"
	"github.com/ErlanBelekov/vm-power-scheduler/internal/infrastructure/postgres"
	"github.com/ErlanBelekov/vm-power-scheduler/internal/infrastructure/sqlite"
	"github.com/ErlanBelekov/vm-power-scheduler/internal/repository"
)

type Stores struct {
	Schedules repository.ScheduleRepository
	Due       repository.DueIndexRepository

	// Name labels the backend in health checks.
	Name  string
	Ping  func(ctx context.Context) error
	Close func()
}

func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Stores, error) {
	switch cfg.StoreDriver {
	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Schedules: sqlite.NewScheduleRepository(db, logger),
			Due:       sqlite.NewDueIndexRepository(db),
			Name:      "sqlite",
			Ping:      db.PingContext,
			Close:     func() { closeDB(db, logger) },
		}, nil
	default:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return &Stores{
			Schedules: postgres.NewScheduleRepository(pool, logger),
			Due:       postgres.NewDueIndexRepository(pool),
			Name:      "postgres",
			Ping:      pool.Ping,
			Close:     pool.Close,
		}, nil
	}
}

func closeDB(db *sql.DB, logger *slog.Logger) {
	if err := db.Close(); err != nil {
		logger.Error("close sqlite", "error", err)
	}
}
