package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ErlanBelekov/vm-power-scheduler/config"
	"github.com/ErlanBelekov/vm-power-scheduler/internal/alert"
	"github.com/ErlanBelekov/vm-power-scheduler/internal/health"
	"github.com/ErlanBelekov/vm-power-scheduler/internal/infrastructure/azure"
	"github.com/ErlanBelekov/vm-power-scheduler/internal/infrastructure/storage"
	ctxlog "github.com/ErlanBelekov/vm-power-scheduler/internal/log"
	"github.com/ErlanBelekov/vm-power-scheduler/internal/metrics"
	"github.com/ErlanBelekov/vm-power-scheduler/internal/scheduler"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	stores, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		stop()
		log.Fatalf("store: %v", err)
	}
	defer stores.Close()

	logger.Info("store connected", "driver", stores.Name)

	metrics.Register()
	checker := health.NewChecker(map[string]health.PingFunc{stores.Name: stores.Ping}, logger, prometheus.DefaultRegisterer)

	compute, err := azure.NewCompute(cfg.ActuatorRPS, cfg.ActuatorBurst, logger)
	if err != nil {
		stop()
		log.Fatalf("azure: %v", err)
	}
	alerter := alert.New(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, cfg.AlertEmailTo, logger)

	extender := scheduler.NewExtender(stores.Schedules, stores.Due, logger, cfg.HorizonDays, cfg.DriftMinutes)
	reconciler := scheduler.NewReconciler(
		stores.Schedules,
		stores.Due,
		compute,
		alerter,
		logger,
		cfg.DriftMinutes,
		cfg.ReconcileConcurrency,
	)

	runner, err := scheduler.NewRunner(extender, reconciler, logger, cfg.ExtendCron, cfg.ReconcileCron)
	if err != nil {
		stop()
		log.Fatalf("runner: %v", err)
	}

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)
	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	// Blocks until a signal arrives and in-flight passes finish.
	runner.Start(ctx)
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}

	logger.Info("scheduler shut down")
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
