// Package sqlite is the embedded storage backend, used for single-node
// deployments and in tests.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS vm_schedules (
  resource_id   TEXT PRIMARY KEY,
  enabled       INTEGER NOT NULL,
  start_time    TEXT NOT NULL DEFAULT '',
  stop_time     TEXT NOT NULL DEFAULT '',
  weekdays_only INTEGER NOT NULL DEFAULT 0,
  time_zone     TEXT NOT NULL,
  schedule_hash TEXT NOT NULL DEFAULT '',
  updated_at    TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS due_index (
  time_bucket   TEXT NOT NULL,
  action        TEXT NOT NULL,
  resource_id   TEXT NOT NULL,
  schedule_hash TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (time_bucket, action, resource_id)
);
`

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" in tests.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// SQLite single writer; also keeps a :memory: database on one connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, nil
}
