package repository

import (
	"context"

	"github.com/ErlanBelekov/vm-power-scheduler/internal/domain"
)

// DueIndexRepository is the durable work queue of pending occurrences.
// Every row is independently idempotent: Upsert replaces by key and Delete
// of a missing key is not an error.
type DueIndexRepository interface {
	Upsert(ctx context.Context, occ *domain.DueOccurrence) error
	Delete(ctx context.Context, key domain.OccurrenceKey) error
	ScanBucket(ctx context.Context, bucket string) ([]*domain.DueOccurrence, error)

	// ScanBefore returns every row whose bucket sorts before the given one,
	// ordered by bucket.
	ScanBefore(ctx context.Context, bucket string) ([]*domain.DueOccurrence, error)

	// DeleteBefore removes every row whose bucket sorts before the given one.
	DeleteBefore(ctx context.Context, bucket string) (int64, error)
}
