package health_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/ErlanBelekov/vm-power-scheduler/internal/health"
	"github.com/prometheus/client_golang/prometheus"
)

func pingErr(err error) health.PingFunc {
	return func(context.Context) error { return err }
}

func newTestChecker(deps map[string]health.PingFunc) (*health.Checker, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return health.NewChecker(deps, slog.Default(), reg), reg
}

func TestLiveness_AlwaysUp(t *testing.T) {
	c, _ := newTestChecker(map[string]health.PingFunc{"postgres": pingErr(errors.New("db down"))})

	result := c.Liveness(context.Background())
	if result.Status != "up" {
		t.Fatalf("expected status up, got %s", result.Status)
	}
	if result.Checks != nil {
		t.Fatalf("expected no checks, got %v", result.Checks)
	}
}

func TestReadiness_StoreUp(t *testing.T) {
	c, reg := newTestChecker(map[string]health.PingFunc{"postgres": pingErr(nil)})

	result := c.Readiness(context.Background())
	if result.Status != "up" {
		t.Fatalf("expected status up, got %s", result.Status)
	}
	pg, ok := result.Checks["postgres"]
	if !ok {
		t.Fatal("missing postgres check")
	}
	if pg.Status != "up" {
		t.Fatalf("expected postgres up, got %s", pg.Status)
	}

	if got := gaugeValue(t, reg, "postgres"); got != 1 {
		t.Fatalf("expected gauge 1, got %f", got)
	}
}

func TestReadiness_OneDependencyDown(t *testing.T) {
	c, reg := newTestChecker(map[string]health.PingFunc{
		"sqlite": pingErr(errors.New("database is locked")),
		"azure":  pingErr(nil),
	})

	result := c.Readiness(context.Background())
	if result.Status != "down" {
		t.Fatalf("expected status down, got %s", result.Status)
	}
	if result.Checks["sqlite"].Error == "" {
		t.Fatal("expected error message")
	}
	if result.Checks["azure"].Status != "up" {
		t.Fatalf("expected azure up, got %s", result.Checks["azure"].Status)
	}
	if got := gaugeValue(t, reg, "sqlite"); got != 0 {
		t.Fatalf("expected gauge 0, got %f", got)
	}
}

func gaugeValue(t *testing.T, reg *prometheus.Registry, dep string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != "power_scheduler_health_check_up" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "dependency" && lp.GetValue() == dep {
					return m.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric power_scheduler_health_check_up{dependency=%q} not found", dep)
	return 0
}
