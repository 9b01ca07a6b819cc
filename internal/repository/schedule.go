package repository

import (
	"context"

	"github.com/ErlanBelekov/vm-power-scheduler/internal/domain"
)

// ScheduleRepository holds exactly one record per resource. Upsert is a full
// replace; there is no concurrency token, the last write wins.
type ScheduleRepository interface {
	Get(ctx context.Context, resourceID string) (*domain.ScheduleRecord, error)
	Upsert(ctx context.Context, rec *domain.ScheduleRecord) error
	List(ctx context.Context) ([]*domain.ScheduleRecord, error)
}
