package postgres

import (
	"context"
	"fmt"

	"github.com/ErlanBelekov/vm-power-scheduler/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DueIndexRepository struct {
	pool *pgxpool.Pool
}

func NewDueIndexRepository(pool *pgxpool.Pool) *DueIndexRepository {
	return &DueIndexRepository{pool: pool}
}

func (r *DueIndexRepository) Upsert(ctx context.Context, occ *domain.DueOccurrence) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO due_index (time_bucket, action, resource_id, schedule_hash)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (time_bucket, action, resource_id) DO UPDATE SET
			schedule_hash = EXCLUDED.schedule_hash`,
		occ.TimeBucket, occ.Action, occ.ResourceID, occ.ScheduleHash,
	)
	if err != nil {
		return fmt.Errorf("upsert occurrence %s/%s: %w", occ.TimeBucket, occ.Action, err)
	}
	return nil
}

// Delete is a no-op when the row is already gone.
func (r *DueIndexRepository) Delete(ctx context.Context, key domain.OccurrenceKey) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM due_index WHERE time_bucket = $1 AND action = $2 AND resource_id = $3`,
		key.TimeBucket, key.Action, key.ResourceID)
	if err != nil {
		return fmt.Errorf("delete occurrence %s/%s: %w", key.TimeBucket, key.Action, err)
	}
	return nil
}

func (r *DueIndexRepository) ScanBucket(ctx context.Context, bucket string) ([]*domain.DueOccurrence, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT time_bucket, action, resource_id, schedule_hash
		FROM due_index
		WHERE time_bucket = $1
		ORDER BY action, resource_id`, bucket)
	if err != nil {
		return nil, fmt.Errorf("scan bucket %s: %w", bucket, err)
	}
	return collectOccurrences(rows)
}

// ScanBefore returns every row older than bucket, oldest first.
func (r *DueIndexRepository) ScanBefore(ctx context.Context, bucket string) ([]*domain.DueOccurrence, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT time_bucket, action, resource_id, schedule_hash
		FROM due_index
		WHERE time_bucket < $1
		ORDER BY time_bucket, action, resource_id`, bucket)
	if err != nil {
		return nil, fmt.Errorf("scan before %s: %w", bucket, err)
	}
	return collectOccurrences(rows)
}

func collectOccurrences(rows pgx.Rows) ([]*domain.DueOccurrence, error) {
	defer rows.Close()

	var occs []*domain.DueOccurrence
	for rows.Next() {
		var o domain.DueOccurrence
		if err := rows.Scan(&o.TimeBucket, &o.Action, &o.ResourceID, &o.ScheduleHash); err != nil {
			return nil, fmt.Errorf("scan occurrence: %w", err)
		}
		occs = append(occs, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate occurrences: %w", err)
	}
	return occs, nil
}

func (r *DueIndexRepository) DeleteBefore(ctx context.Context, bucket string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM due_index WHERE time_bucket < $1`, bucket)
	if err != nil {
		return 0, fmt.Errorf("prune before %s: %w", bucket, err)
	}
	return tag.RowsAffected(), nil
}
