package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ErlanBelekov/vm-power-scheduler/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rowScanner interface {
	Scan(dest ...any) error
}

type ScheduleRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewScheduleRepository(pool *pgxpool.Pool, logger *slog.Logger) *ScheduleRepository {
	return &ScheduleRepository{pool: pool, logger: logger.With("component", "schedule_repo")}
}

func (r *ScheduleRepository) Get(ctx context.Context, resourceID string) (*domain.ScheduleRecord, error) {
	query := `
		SELECT resource_id, enabled, start_time, stop_time, weekdays_only,
		       time_zone, schedule_hash, updated_at
		FROM vm_schedules
		WHERE resource_id = $1`

	row := r.pool.QueryRow(ctx, query, resourceID)
	return scanSchedule(row)
}

// Upsert replaces the whole row. Concurrent writers race and the last one wins.
func (r *ScheduleRepository) Upsert(ctx context.Context, rec *domain.ScheduleRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO vm_schedules (
			resource_id, enabled, start_time, stop_time, weekdays_only,
			time_zone, schedule_hash, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (resource_id) DO UPDATE SET
			enabled       = EXCLUDED.enabled,
			start_time    = EXCLUDED.start_time,
			stop_time     = EXCLUDED.stop_time,
			weekdays_only = EXCLUDED.weekdays_only,
			time_zone     = EXCLUDED.time_zone,
			schedule_hash = EXCLUDED.schedule_hash,
			updated_at    = EXCLUDED.updated_at`,
		rec.ResourceID, rec.Enabled, rec.Start, rec.Stop, rec.WeekdaysOnly,
		rec.TimeZone, rec.ScheduleHash, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert schedule %s: %w", rec.ResourceID, err)
	}
	r.logger.DebugContext(ctx, "schedule upserted", "resource_id", rec.ResourceID, "hash", rec.ScheduleHash)
	return nil
}

func (r *ScheduleRepository) List(ctx context.Context) ([]*domain.ScheduleRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT resource_id, enabled, start_time, stop_time, weekdays_only,
		       time_zone, schedule_hash, updated_at
		FROM vm_schedules
		ORDER BY resource_id`)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var records []*domain.ScheduleRecord
	for rows.Next() {
		rec, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedules: %w", err)
	}
	return records, nil
}

func scanSchedule(row rowScanner) (*domain.ScheduleRecord, error) {
	var s domain.ScheduleRecord
	err := row.Scan(
		&s.ResourceID, &s.Enabled, &s.Start, &s.Stop, &s.WeekdaysOnly,
		&s.TimeZone, &s.ScheduleHash, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("scan schedule: %w", err)
	}
	return &s, nil
}
