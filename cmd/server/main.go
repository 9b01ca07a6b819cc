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
	"github.com/ErlanBelekov/vm-power-scheduler/internal/compiler"
	"github.com/ErlanBelekov/vm-power-scheduler/internal/health"
	"github.com/ErlanBelekov/vm-power-scheduler/internal/infrastructure/azure"
	"github.com/ErlanBelekov/vm-power-scheduler/internal/infrastructure/storage"
	ctxlog "github.com/ErlanBelekov/vm-power-scheduler/internal/log"
	"github.com/ErlanBelekov/vm-power-scheduler/internal/metrics"
	"github.com/ErlanBelekov/vm-power-scheduler/internal/scheduler"
	httptransport "github.com/ErlanBelekov/vm-power-scheduler/internal/transport/http"
	"github.com/ErlanBelekov/vm-power-scheduler/internal/transport/http/handler"
	"github.com/ErlanBelekov/vm-power-scheduler/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	stores, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		stop()
		log.Fatalf("store: %v", err)
	}
	defer stores.Close()

	compute, err := azure.NewCompute(cfg.ActuatorRPS, cfg.ActuatorBurst, logger)
	if err != nil {
		stop()
		log.Fatalf("azure: %v", err)
	}

	// Change ingest
	ingest := usecase.NewIngestUsecase(stores.Schedules, stores.Due, compute, logger, compiler.TagOptions{
		Prefix:          cfg.TagPrefix,
		DefaultTimeZone: cfg.DefaultTimeZone,
	}, cfg.HorizonDays)
	eventHandler := handler.NewEventHandler(ingest, logger)

	// Manual triggers
	alerter := alert.New(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, cfg.AlertEmailTo, logger)
	extender := scheduler.NewExtender(stores.Schedules, stores.Due, logger, cfg.HorizonDays, cfg.DriftMinutes)
	reconciler := scheduler.NewReconciler(stores.Schedules, stores.Due, compute, alerter, logger, cfg.DriftMinutes, cfg.ReconcileConcurrency)
	triggerHandler := handler.NewTriggerHandler(extender, reconciler, logger)
	if cfg.TriggerJWTSecret == "" {
		logger.Info("trigger endpoints disabled, TRIGGER_JWT_SECRET not set")
	}

	metrics.Register()
	checker := health.NewChecker(map[string]health.PingFunc{stores.Name: stores.Ping}, logger, prometheus.DefaultRegisterer)

	srv := http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httptransport.NewRouter(logger, eventHandler, triggerHandler, []byte(cfg.TriggerJWTSecret)),
	}

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	go func() {
		logger.Info("server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
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
