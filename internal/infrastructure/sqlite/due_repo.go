package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ErlanBelekov/vm-power-scheduler/internal/domain"
)

type DueIndexRepository struct {
	db *sql.DB
}

func NewDueIndexRepository(db *sql.DB) *DueIndexRepository {
	return &DueIndexRepository{db: db}
}

func (r *DueIndexRepository) Upsert(ctx context.Context, occ *domain.DueOccurrence) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO due_index (time_bucket, action, resource_id, schedule_hash) VALUES (?, ?, ?, ?)
ON CONFLICT(time_bucket, action, resource_id) DO UPDATE SET schedule_hash = excluded.schedule_hash`,
		occ.TimeBucket, string(occ.Action), occ.ResourceID, occ.ScheduleHash)
	if err != nil {
		return fmt.Errorf("upsert occurrence %s/%s: %w", occ.TimeBucket, occ.Action, err)
	}
	return nil
}

func (r *DueIndexRepository) Delete(ctx context.Context, key domain.OccurrenceKey) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM due_index WHERE time_bucket = ? AND action = ? AND resource_id = ?`,
		key.TimeBucket, string(key.Action), key.ResourceID)
	if err != nil {
		return fmt.Errorf("delete occurrence %s/%s: %w", key.TimeBucket, key.Action, err)
	}
	return nil
}

func (r *DueIndexRepository) ScanBucket(ctx context.Context, bucket string) ([]*domain.DueOccurrence, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT time_bucket, action, resource_id, schedule_hash
FROM due_index WHERE time_bucket = ? ORDER BY action, resource_id`, bucket)
	if err != nil {
		return nil, fmt.Errorf("scan bucket %s: %w", bucket, err)
	}
	return collectOccurrences(rows)
}

// ScanBefore returns every row older than bucket, oldest first.
func (r *DueIndexRepository) ScanBefore(ctx context.Context, bucket string) ([]*domain.DueOccurrence, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT time_bucket, action, resource_id, schedule_hash
FROM due_index WHERE time_bucket < ? ORDER BY time_bucket, action, resource_id`, bucket)
	if err != nil {
		return nil, fmt.Errorf("scan before %s: %w", bucket, err)
	}
	return collectOccurrences(rows)
}

func collectOccurrences(rows *sql.Rows) ([]*domain.DueOccurrence, error) {
	defer rows.Close()

	var occs []*domain.DueOccurrence
	for rows.Next() {
		var (
			o      domain.DueOccurrence
			action string
		)
		if err := rows.Scan(&o.TimeBucket, &action, &o.ResourceID, &o.ScheduleHash); err != nil {
			return nil, fmt.Errorf("scan occurrence: %w", err)
		}
		o.Action = domain.Action(action)
		occs = append(occs, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate occurrences: %w", err)
	}
	return occs, nil
}

func (r *DueIndexRepository) DeleteBefore(ctx context.Context, bucket string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM due_index WHERE time_bucket < ?`, bucket)
	if err != nil {
		return 0, fmt.Errorf("prune before %s: %w", bucket, err)
	}
	return res.RowsAffected()
}
