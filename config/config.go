package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env      string `env:"ENV"       envDefault:"local" validate:"required,oneof=local staging production"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"  validate:"oneof=debug info warn error"`
	Port     string `env:"PORT"      envDefault:"8080"  validate:"required"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres" validate:"oneof=postgres sqlite"`
	DatabaseURL string `env:"DATABASE_URL"                       validate:"required_if=StoreDriver postgres"`
	SQLitePath  string `env:"SQLITE_PATH"  envDefault:"vm-power-scheduler.db"`

	DefaultTimeZone string `env:"DEFAULT_TIME_ZONE" envDefault:"Europe/London" validate:"required,timezone"`
	TagPrefix       string `env:"TAG_PREFIX"        envDefault:"Auto"          validate:"required,alphanum"`
	HorizonDays     int    `env:"HORIZON_DAYS"      envDefault:"7"             validate:"min=1,max=60"`
	DriftMinutes    int    `env:"DRIFT_MINUTES"     envDefault:"1"             validate:"min=0,max=60"`

	// Cron specs are evaluated in UTC.
	ExtendCron           string `env:"EXTEND_CRON"           envDefault:"5 0 * * *" validate:"required"`
	ReconcileCron        string `env:"RECONCILE_CRON"        envDefault:"* * * * *" validate:"required"`
	ReconcileConcurrency int    `env:"RECONCILE_CONCURRENCY" envDefault:"4"         validate:"min=1,max=64"`

	AzureSubscriptionID string  `env:"AZURE_SUBSCRIPTION_ID"`
	ActuatorRPS         float64 `env:"ACTUATOR_RPS"   envDefault:"5" validate:"gt=0"`
	ActuatorBurst       int     `env:"ACTUATOR_BURST" envDefault:"5" validate:"min=1"`

	TriggerJWTSecret string `env:"TRIGGER_JWT_SECRET" validate:"omitempty,min=32"`

	ResendAPIKey string `env:"RESEND_API_KEY" validate:"required_with=AlertEmailTo"`
	ResendFrom   string `env:"RESEND_FROM"    validate:"required_with=AlertEmailTo"`
	AlertEmailTo string `env:"ALERT_EMAIL_TO" validate:"omitempty,email"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
