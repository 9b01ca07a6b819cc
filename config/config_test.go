package config_test

import (
	"log/slog"
	"testing"

	"github.com/ErlanBelekov/vm-power-scheduler/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/power")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HorizonDays != 7 {
		t.Errorf("HorizonDays = %d, want 7", cfg.HorizonDays)
	}
	if cfg.DriftMinutes != 1 {
		t.Errorf("DriftMinutes = %d, want 1", cfg.DriftMinutes)
	}
	if cfg.DefaultTimeZone != "Europe/London" {
		t.Errorf("DefaultTimeZone = %q, want Europe/London", cfg.DefaultTimeZone)
	}
	if cfg.ExtendCron != "5 0 * * *" {
		t.Errorf("ExtendCron = %q", cfg.ExtendCron)
	}
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Errorf("SlogLevel = %v, want info", cfg.SlogLevel())
	}
}

func TestLoad_PostgresRequiresDatabaseURL(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error without DATABASE_URL")
	}
}

func TestLoad_SQLiteNeedsNoDatabaseURL(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "")

	if _, err := config.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
}

func TestLoad_RejectsUnknownTimeZone(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("DEFAULT_TIME_ZONE", "Moon/Base")

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for unknown time zone")
	}
}

func TestLoad_ShortTriggerSecret(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("TRIGGER_JWT_SECRET", "short")

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for short trigger secret")
	}
}
