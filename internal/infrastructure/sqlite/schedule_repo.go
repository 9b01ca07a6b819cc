package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/vm-power-scheduler/internal/domain"
)

type rowScanner interface {
	Scan(dest ...any) error
}

type ScheduleRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewScheduleRepository(db *sql.DB, logger *slog.Logger) *ScheduleRepository {
	return &ScheduleRepository{db: db, logger: logger.With("component", "schedule_repo")}
}

func (r *ScheduleRepository) Get(ctx context.Context, resourceID string) (*domain.ScheduleRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT resource_id, enabled, start_time, stop_time, weekdays_only, time_zone, schedule_hash, updated_at
FROM vm_schedules WHERE resource_id = ?`, resourceID)
	return scanSchedule(row)
}

func (r *ScheduleRepository) Upsert(ctx context.Context, rec *domain.ScheduleRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO vm_schedules (resource_id, enabled, start_time, stop_time, weekdays_only, time_zone, schedule_hash, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(resource_id) DO UPDATE SET
  enabled = excluded.enabled,
  start_time = excluded.start_time,
  stop_time = excluded.stop_time,
  weekdays_only = excluded.weekdays_only,
  time_zone = excluded.time_zone,
  schedule_hash = excluded.schedule_hash,
  updated_at = excluded.updated_at`,
		rec.ResourceID, boolToInt(rec.Enabled), rec.Start, rec.Stop, boolToInt(rec.WeekdaysOnly),
		rec.TimeZone, rec.ScheduleHash, rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert schedule %s: %w", rec.ResourceID, err)
	}
	r.logger.DebugContext(ctx, "sql", "op", "upsert", "table", "vm_schedules", "resource_id", rec.ResourceID)
	return nil
}

func (r *ScheduleRepository) List(ctx context.Context) ([]*domain.ScheduleRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT resource_id, enabled, start_time, stop_time, weekdays_only, time_zone, schedule_hash, updated_at
FROM vm_schedules ORDER BY resource_id`)
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
	var (
		s                     domain.ScheduleRecord
		enabled, weekdaysOnly int64
		updatedAt             string
	)
	err := row.Scan(&s.ResourceID, &enabled, &s.Start, &s.Stop, &weekdaysOnly, &s.TimeZone, &s.ScheduleHash, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("scan schedule: %w", err)
	}
	s.Enabled = enabled != 0
	s.WeekdaysOnly = weekdaysOnly != 0
	if s.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &s, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
