package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	ctxlog "github.com/ErlanBelekov/vm-power-scheduler/internal/log"
	"github.com/ErlanBelekov/vm-power-scheduler/internal/requestid"
	"github.com/robfig/cron/v3"
)

// Runner fires the extend and reconcile passes on their cron specs, in UTC.
type Runner struct {
	cron       *cron.Cron
	extender   *Extender
	reconciler *Reconciler
	logger     *slog.Logger
	ctx        context.Context
}

func NewRunner(extender *Extender, reconciler *Reconciler, logger *slog.Logger, extendSpec, reconcileSpec string) (*Runner, error) {
	r := &Runner{
		extender:   extender,
		reconciler: reconciler,
		logger:     logger.With("component", "runner"),
		ctx:        context.Background(),
	}
	cl := cronLogger{logger: r.logger}
	r.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl)),
	)

	// A second extend while one is running would only repeat its writes.
	extendJob := cron.NewChain(cron.SkipIfStillRunning(cl)).Then(cron.FuncJob(r.extend))
	if _, err := r.cron.AddJob(extendSpec, extendJob); err != nil {
		return nil, fmt.Errorf("extend schedule %q: %w", extendSpec, err)
	}
	// Overlapping reconcile runs are safe: writes replace and deletes are idempotent.
	if _, err := r.cron.AddFunc(reconcileSpec, r.reconcile); err != nil {
		return nil, fmt.Errorf("reconcile schedule %q: %w", reconcileSpec, err)
	}
	return r, nil
}

// Start runs one reconcile and then one extend pass immediately, so rows
// that aged out while the process was down are reported before anything is
// pruned and a deployment that missed the daily run still has a full
// horizon. It then blocks until ctx is cancelled.
func (r *Runner) Start(ctx context.Context) {
	r.ctx = ctx
	r.cron.Start()
	r.logger.Info("runner started", "entries", len(r.cron.Entries()))

	go func() {
		r.reconcile()
		r.extend()
	}()

	<-ctx.Done()
	stopped := r.cron.Stop()
	select {
	case <-stopped.Done():
	case <-time.After(30 * time.Second):
		r.logger.Warn("runner stop timed out with passes still running")
	}
	r.logger.Info("runner shut down")
}

func (r *Runner) extend() {
	ctx := passContext(r.ctx, "extend")
	if _, err := r.extender.Run(ctx, time.Now()); err != nil {
		r.logger.ErrorContext(ctx, "extend pass aborted", "error", err)
	}
}

func (r *Runner) reconcile() {
	r.reconciler.Run(passContext(r.ctx, "reconcile"), time.Now())
}

func passContext(parent context.Context, pass string) context.Context {
	return requestid.WithRequestID(ctxlog.WithPass(parent, pass), requestid.New())
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
