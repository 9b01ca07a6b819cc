package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/vm-power-scheduler/internal/compiler"
	"github.com/ErlanBelekov/vm-power-scheduler/internal/domain"
	"github.com/ErlanBelekov/vm-power-scheduler/internal/metrics"
	"github.com/ErlanBelekov/vm-power-scheduler/internal/repository"
	"github.com/ErlanBelekov/vm-power-scheduler/internal/scheduler"
)

// TagReader fetches the current tags of a resource from the control plane.
// It returns domain.ErrResourceNotFound when the resource no longer exists.
type TagReader interface {
	GetTags(ctx context.Context, id domain.VMID) (map[string]string, error)
}

// IngestUsecase turns a "resource changed" notification into a fresh schedule
// record and repopulates the due index right away. It is the only writer of
// schedule records.
type IngestUsecase struct {
	schedules   repository.ScheduleRepository
	due         repository.DueIndexRepository
	tags        TagReader
	logger      *slog.Logger
	opts        compiler.TagOptions
	horizonDays int
	now         func() time.Time
}

func NewIngestUsecase(
	schedules repository.ScheduleRepository,
	due repository.DueIndexRepository,
	tags TagReader,
	logger *slog.Logger,
	opts compiler.TagOptions,
	horizonDays int,
) *IngestUsecase {
	return &IngestUsecase{
		schedules:   schedules,
		due:         due,
		tags:        tags,
		logger:      logger.With("component", "ingest"),
		opts:        opts,
		horizonDays: horizonDays,
		now:         time.Now,
	}
}

type IngestResult struct {
	Ignored bool
	Record  *domain.ScheduleRecord
	Written int
}

// ResourceChanged re-reads the resource's tags and replaces its schedule.
// Only the identity is taken from the notification, so redelivered or
// reordered events converge on the current tags.
func (u *IngestUsecase) ResourceChanged(ctx context.Context, resourceURI string) (IngestResult, error) {
	id, err := domain.ParseVMID(resourceURI)
	if err != nil {
		metrics.IngestEventsTotal.WithLabelValues("ignored").Inc()
		u.logger.DebugContext(ctx, "ignoring notification", "resource_uri", resourceURI, "reason", err)
		return IngestResult{Ignored: true}, nil
	}
	resourceID := id.String()

	var rec *domain.ScheduleRecord
	tags, err := u.tags.GetTags(ctx, id)
	switch {
	case errors.Is(err, domain.ErrResourceNotFound):
		rec = compiler.Disabled(resourceID, u.opts.DefaultTimeZone)
	case err != nil:
		metrics.IngestEventsTotal.WithLabelValues("failed").Inc()
		return IngestResult{}, fmt.Errorf("read tags %s: %w", resourceID, err)
	default:
		rec = compiler.FromTags(resourceID, tags, u.opts)
	}

	now := u.now()
	rec.UpdatedAt = now.UTC()
	if err := u.schedules.Upsert(ctx, rec); err != nil {
		metrics.IngestEventsTotal.WithLabelValues("failed").Inc()
		return IngestResult{}, fmt.Errorf("store schedule: %w", err)
	}

	// Previously queued rows go stale by hash; nothing new to queue.
	if !rec.Actionable() {
		metrics.IngestEventsTotal.WithLabelValues("applied").Inc()
		u.logger.InfoContext(ctx, "schedule stored, nothing to queue",
			"resource_id", resourceID, "enabled", rec.Enabled, "hash", rec.ScheduleHash)
		return IngestResult{Record: rec}, nil
	}

	written, err := scheduler.Populate(ctx, u.due, rec, u.horizonDays, now, "ingest")
	if err != nil {
		metrics.IngestEventsTotal.WithLabelValues("failed").Inc()
		return IngestResult{Record: rec, Written: written}, err
	}

	metrics.IngestEventsTotal.WithLabelValues("applied").Inc()
	u.logger.InfoContext(ctx, "schedule applied",
		"resource_id", resourceID,
		"start", rec.Start,
		"stop", rec.Stop,
		"weekdays_only", rec.WeekdaysOnly,
		"time_zone", rec.TimeZone,
		"written", written,
	)
	return IngestResult{Record: rec, Written: written}, nil
}
