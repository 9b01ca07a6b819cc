package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/vm-power-scheduler/internal/compiler"
	"github.com/ErlanBelekov/vm-power-scheduler/internal/metrics"
	"github.com/ErlanBelekov/vm-power-scheduler/internal/repository"
)

const pruneGrace = time.Hour

// Extender is the daily pass that keeps the due index filled for the whole
// horizon. It holds no state between runs.
type Extender struct {
	schedules    repository.ScheduleRepository
	due          repository.DueIndexRepository
	logger       *slog.Logger
	horizonDays  int
	driftMinutes int
}

func NewExtender(
	schedules repository.ScheduleRepository,
	due repository.DueIndexRepository,
	logger *slog.Logger,
	horizonDays int,
	driftMinutes int,
) *Extender {
	return &Extender{
		schedules:    schedules,
		due:          due,
		logger:       logger.With("component", "extender"),
		horizonDays:  horizonDays,
		driftMinutes: driftMinutes,
	}
}

type ExtendReport struct {
	Schedules int   `json:"schedules"`
	Skipped   int   `json:"skipped"`
	Failed    int   `json:"failed"`
	Written   int   `json:"written"`
	Pruned    int64 `json:"pruned"`
}

// Run rewrites occurrences for every actionable schedule, then prunes rows
// the reconciler's sweep has left for longer than pruneGrace. Only a failure
// to list schedules aborts the pass; a single schedule's failure is logged
// and skipped.
func (e *Extender) Run(ctx context.Context, now time.Time) (ExtendReport, error) {
	start := time.Now()
	defer func() { metrics.PassDuration.WithLabelValues("extend").Observe(time.Since(start).Seconds()) }()

	records, err := e.schedules.List(ctx)
	if err != nil {
		return ExtendReport{}, fmt.Errorf("list schedules: %w", err)
	}

	report := ExtendReport{Schedules: len(records)}
	for _, rec := range records {
		// Disabled or empty schedules are skipped; their old rows go stale by hash.
		if !rec.Actionable() {
			report.Skipped++
			continue
		}
		n, err := Populate(ctx, e.due, rec, e.horizonDays, now, "extend")
		report.Written += n
		if err != nil {
			report.Failed++
			e.logger.ErrorContext(ctx, "extend schedule", "resource_id", rec.ResourceID, "error", err)
		}
	}

	// The reconciler reports aged-out rows; pruning only catches what it could
	// not process, so it trails the sweep by pruneGrace.
	cutoff := compiler.Bucket(now.Add(-time.Duration(e.driftMinutes)*time.Minute - pruneGrace))
	pruned, err := e.due.DeleteBefore(ctx, cutoff)
	if err != nil {
		e.logger.ErrorContext(ctx, "prune due index", "cutoff", cutoff, "error", err)
	} else if pruned > 0 {
		metrics.PrunedTotal.Add(float64(pruned))
		e.logger.InfoContext(ctx, "pruned expired occurrences", "count", pruned, "cutoff", cutoff)
	}
	report.Pruned = pruned

	e.logger.InfoContext(ctx, "extend completed",
		"schedules", report.Schedules,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"written", report.Written,
	)
	return report, nil
}
