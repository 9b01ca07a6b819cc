package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ErlanBelekov/vm-power-scheduler/internal/alert"
	"github.com/ErlanBelekov/vm-power-scheduler/internal/compiler"
	"github.com/ErlanBelekov/vm-power-scheduler/internal/domain"
	"github.com/ErlanBelekov/vm-power-scheduler/internal/metrics"
	"github.com/ErlanBelekov/vm-power-scheduler/internal/repository"
	"golang.org/x/sync/errgroup"
)

// Actuator performs blocking power operations against the control plane.
type Actuator interface {
	PowerOn(ctx context.Context, resourceID string) error
	PowerOff(ctx context.Context, resourceID string) error
}

type outcome string

const (
	outcomeExecuted outcome = "executed"
	outcomeStale    outcome = "stale"
	outcomeOrphaned outcome = "orphaned"
	outcomeInvalid  outcome = "invalid"
	outcomeFailed   outcome = "failed"
	outcomeMissed   outcome = "missed"
)

// Reconciler is the per-minute pass. It executes occurrences from the
// trailing drift window and deletes what it executed or found stale.
type Reconciler struct {
	schedules    repository.ScheduleRepository
	due          repository.DueIndexRepository
	actuator     Actuator
	alerter      alert.Alerter
	logger       *slog.Logger
	driftMinutes int
	concurrency  int
}

func NewReconciler(
	schedules repository.ScheduleRepository,
	due repository.DueIndexRepository,
	actuator Actuator,
	alerter alert.Alerter,
	logger *slog.Logger,
	driftMinutes int,
	concurrency int,
) *Reconciler {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Reconciler{
		schedules:    schedules,
		due:          due,
		actuator:     actuator,
		alerter:      alerter,
		logger:       logger.With("component", "reconciler"),
		driftMinutes: driftMinutes,
		concurrency:  concurrency,
	}
}

type ReconcileReport struct {
	Scanned    int `json:"scanned"`
	Executed   int `json:"executed"`
	Stale      int `json:"stale"`
	Orphaned   int `json:"orphaned"`
	Invalid    int `json:"invalid"`
	Failed     int `json:"failed"`
	Missed     int `json:"missed"`
	ScanErrors int `json:"scan_errors"`
}

func (r *ReconcileReport) add(o outcome) {
	switch o {
	case outcomeExecuted:
		r.Executed++
	case outcomeStale:
		r.Stale++
	case outcomeOrphaned:
		r.Orphaned++
	case outcomeInvalid:
		r.Invalid++
	case outcomeFailed:
		r.Failed++
	case outcomeMissed:
		r.Missed++
	}
}

// Run scans buckets floor(now)-0 .. floor(now)-driftMinutes and processes
// every occurrence found, then sweeps everything older than the window.
// Failures are isolated per occurrence and never abort the pass.
func (r *Reconciler) Run(ctx context.Context, now time.Time) ReconcileReport {
	start := time.Now()
	defer func() { metrics.PassDuration.WithLabelValues("reconcile").Observe(time.Since(start).Seconds()) }()

	minute := now.UTC().Truncate(time.Minute)

	var (
		mu     sync.Mutex
		report ReconcileReport
	)
	for offset := 0; offset <= r.driftMinutes; offset++ {
		bucket := compiler.Bucket(minute.Add(-time.Duration(offset) * time.Minute))

		occs, err := r.due.ScanBucket(ctx, bucket)
		if err != nil {
			report.ScanErrors++
			r.logger.ErrorContext(ctx, "scan bucket", "bucket", bucket, "error", err)
			continue
		}
		report.Scanned += len(occs)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.concurrency)
		for _, occ := range occs {
			g.Go(func() error {
				o := r.safeProcess(gctx, occ)
				metrics.ReconcileOutcomesTotal.WithLabelValues(string(o)).Inc()
				mu.Lock()
				report.add(o)
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}

	r.sweep(ctx, minute.Add(-time.Duration(r.driftMinutes)*time.Minute), &report)

	if report.Scanned > 0 || report.Missed > 0 || report.ScanErrors > 0 {
		r.logger.InfoContext(ctx, "reconcile completed",
			"scanned", report.Scanned,
			"executed", report.Executed,
			"stale", report.Stale+report.Orphaned+report.Invalid,
			"failed", report.Failed,
			"missed", report.Missed,
		)
	}
	return report
}

func (r *Reconciler) safeProcess(ctx context.Context, occ *domain.DueOccurrence) (o outcome) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.ErrorContext(ctx, "panic processing occurrence", "resource_id", occ.ResourceID, "panic", p)
			o = outcomeFailed
		}
	}()
	return r.process(ctx, occ)
}

// process validates one occurrence against the current schedule, acts, and
// only then deletes it. Any error leaves the row for the next in-window pass.
func (r *Reconciler) process(ctx context.Context, occ *domain.DueOccurrence) outcome {
	logger := r.logger.With("resource_id", occ.ResourceID, "action", occ.Action, "bucket", occ.TimeBucket)

	rec, err := r.schedules.Get(ctx, occ.ResourceID)
	switch {
	case errors.Is(err, domain.ErrScheduleNotFound):
		return r.discard(ctx, logger, occ, outcomeOrphaned)
	case err != nil:
		logger.ErrorContext(ctx, "load schedule", "error", err)
		return outcomeFailed
	}

	if isStale(occ, rec) {
		return r.discard(ctx, logger, occ, outcomeStale)
	}
	if !occ.Action.Valid() {
		return r.discard(ctx, logger, occ, outcomeInvalid)
	}

	if err := r.dispatch(ctx, occ); err != nil {
		logger.ErrorContext(ctx, "power operation failed, left for retry", "error", err)
		return outcomeFailed
	}

	// Act, then delete: if this delete fails the action repeats next minute.
	if err := r.due.Delete(ctx, occ.Key()); err != nil {
		logger.ErrorContext(ctx, "delete executed occurrence", "error", err)
	}
	logger.InfoContext(ctx, "occurrence executed")
	return outcomeExecuted
}

func (r *Reconciler) discard(ctx context.Context, logger *slog.Logger, occ *domain.DueOccurrence, o outcome) outcome {
	if err := r.due.Delete(ctx, occ.Key()); err != nil {
		logger.ErrorContext(ctx, "delete occurrence", "reason", o, "error", err)
		return outcomeFailed
	}
	logger.DebugContext(ctx, "occurrence discarded", "reason", o)
	return o
}

func (r *Reconciler) dispatch(ctx context.Context, occ *domain.DueOccurrence) error {
	start := time.Now()
	var err error
	switch occ.Action {
	case domain.ActionAlloc:
		err = r.actuator.PowerOn(ctx, occ.ResourceID)
	case domain.ActionDealloc:
		err = r.actuator.PowerOff(ctx, occ.ResourceID)
	default:
		return fmt.Errorf("unknown action %q", occ.Action)
	}

	status := "success"
	if err != nil {
		status = "failure"
	}
	metrics.ActuatorDuration.WithLabelValues(string(occ.Action), status).Observe(time.Since(start).Seconds())
	return err
}

// sweep handles every row older than the oldest in-window minute, so buckets
// skipped by missed ticks are still seen. Nothing is executed: stale rows are
// deleted silently, still-valid rows are reported as missed and deleted. Rows
// whose schedule cannot be read are left for the next pass.
func (r *Reconciler) sweep(ctx context.Context, windowStart time.Time, report *ReconcileReport) {
	bucket := compiler.Bucket(windowStart)
	occs, err := r.due.ScanBefore(ctx, bucket)
	if err != nil {
		report.ScanErrors++
		r.logger.ErrorContext(ctx, "scan expired occurrences", "before", bucket, "error", err)
		return
	}

	for _, occ := range occs {
		logger := r.logger.With("resource_id", occ.ResourceID, "action", occ.Action, "bucket", occ.TimeBucket)

		rec, err := r.schedules.Get(ctx, occ.ResourceID)
		if err != nil && !errors.Is(err, domain.ErrScheduleNotFound) {
			logger.ErrorContext(ctx, "load schedule for expired occurrence", "error", err)
			continue
		}
		if rec == nil || isStale(occ, rec) || !occ.Action.Valid() {
			if err := r.due.Delete(ctx, occ.Key()); err != nil {
				logger.ErrorContext(ctx, "delete expired occurrence", "error", err)
			}
			continue
		}

		if err := r.alerter.Missed(ctx, occ); err != nil {
			logger.ErrorContext(ctx, "report missed occurrence", "error", err)
		}
		if err := r.due.Delete(ctx, occ.Key()); err != nil {
			logger.ErrorContext(ctx, "delete missed occurrence", "error", err)
		}
		metrics.ReconcileOutcomesTotal.WithLabelValues(string(outcomeMissed)).Inc()
		report.add(outcomeMissed)
	}
}

// isStale reports whether occ no longer reflects rec. An empty hash on either
// side predates hashing and is treated as matching.
func isStale(occ *domain.DueOccurrence, rec *domain.ScheduleRecord) bool {
	if !rec.Enabled {
		return true
	}
	return occ.ScheduleHash != "" && rec.ScheduleHash != "" && occ.ScheduleHash != rec.ScheduleHash
}
