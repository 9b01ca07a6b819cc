package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// time_bucket is fixed-width yyyyMMddHHmm in UTC, so text comparison is
// chronological and DeleteBefore can use a plain range predicate.
const schema = `
CREATE TABLE IF NOT EXISTS vm_schedules (
	resource_id   TEXT PRIMARY KEY,
	enabled       BOOLEAN     NOT NULL,
	start_time    TEXT        NOT NULL DEFAULT '',
	stop_time     TEXT        NOT NULL DEFAULT '',
	weekdays_only BOOLEAN     NOT NULL DEFAULT FALSE,
	time_zone     TEXT        NOT NULL,
	schedule_hash TEXT        NOT NULL DEFAULT '',
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS due_index (
	time_bucket   CHAR(12) NOT NULL,
	action        TEXT     NOT NULL,
	resource_id   TEXT     NOT NULL,
	schedule_hash TEXT     NOT NULL DEFAULT '',
	PRIMARY KEY (time_bucket, action, resource_id)
);`

// Migrate creates the tables if they do not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
