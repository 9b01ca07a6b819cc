// backfill runs change ingest for every VM in AZURE_SUBSCRIPTION_ID, so an
// existing fleet gets schedule records and a full horizon without waiting
// for tag change events.
// Run: go run ./cmd/backfill
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/ErlanBelekov/vm-power-scheduler/config"
	"github.com/ErlanBelekov/vm-power-scheduler/internal/compiler"
	"github.com/ErlanBelekov/vm-power-scheduler/internal/infrastructure/azure"
	"github.com/ErlanBelekov/vm-power-scheduler/internal/infrastructure/storage"
	ctxlog "github.com/ErlanBelekov/vm-power-scheduler/internal/log"
	"github.com/ErlanBelekov/vm-power-scheduler/internal/requestid"
	"github.com/ErlanBelekov/vm-power-scheduler/internal/usecase"
	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.AzureSubscriptionID == "" {
		log.Fatal("AZURE_SUBSCRIPTION_ID is not set")
	}

	logger := newLogger(cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = requestid.WithRequestID(ctx, requestid.New())

	stores, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer stores.Close()

	compute, err := azure.NewCompute(cfg.ActuatorRPS, cfg.ActuatorBurst, logger)
	if err != nil {
		log.Fatalf("azure: %v", err)
	}

	ingest := usecase.NewIngestUsecase(stores.Schedules, stores.Due, compute, logger, compiler.TagOptions{
		Prefix:          cfg.TagPrefix,
		DefaultTimeZone: cfg.DefaultTimeZone,
	}, cfg.HorizonDays)

	vms, err := compute.ListVMs(ctx, cfg.AzureSubscriptionID)
	if err != nil {
		log.Fatalf("list vms: %v", err)
	}

	var scheduled, unscheduled, failed, written atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.ReconcileConcurrency)
	for _, vm := range vms {
		g.Go(func() error {
			res, err := ingest.ResourceChanged(gctx, vm.String())
			switch {
			case err != nil:
				failed.Add(1)
				logger.ErrorContext(gctx, "backfill vm", "resource_id", vm.String(), "error", err)
			case res.Record != nil && res.Record.Actionable():
				scheduled.Add(1)
				written.Add(int64(res.Written))
			default:
				unscheduled.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	fmt.Println("Backfill complete")
	fmt.Println()
	fmt.Printf("  Subscription:  %s\n", cfg.AzureSubscriptionID)
	fmt.Printf("  Store:         %s\n", stores.Name)
	fmt.Printf("  VMs found:     %d\n", len(vms))
	fmt.Printf("  Scheduled:     %d  (%d occurrences over %d days)\n", scheduled.Load(), written.Load(), cfg.HorizonDays)
	fmt.Printf("  Unscheduled:   %d  (disabled or no %sStart/%sStop tags)\n", unscheduled.Load(), cfg.TagPrefix, cfg.TagPrefix)
	fmt.Printf("  Failed:        %d\n", failed.Load())

	if failed.Load() > 0 {
		stores.Close()
		stop()
		os.Exit(1)
	}
}

// newLogger writes to stderr so the summary on stdout stays clean. The context
// handler stamps the run's request id on every record.
func newLogger(level slog.Level) *slog.Logger {
	return slog.New(ctxlog.NewContextHandler(tint.NewHandler(os.Stderr, &tint.Options{Level: level})))
}
