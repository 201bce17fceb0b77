package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"chainscope/pkg/errors"
)

type Config struct {
	App           AppConfig
	HTTP          HTTPConfig
	Analysis      AnalysisConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"chainscope"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Version  string `envconfig:"APP_VERSION" default:"dev"`
}

type HTTPConfig struct {
	Port int `envconfig:"HTTP_PORT" default:"8080"`
	// Uploads are parsed in memory, so they get their own limiter
	UploadRPS      float64 `envconfig:"HTTP_UPLOAD_RPS" default:"2"`
	UploadBurst    int     `envconfig:"HTTP_UPLOAD_BURST" default:"4"`
	MaxUploadBytes int64   `envconfig:"HTTP_MAX_UPLOAD_BYTES" default:"67108864"`
}

func (c HTTPConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

type AnalysisConfig struct {
	MaxBatches    int `envconfig:"ANALYSIS_MAX_BATCHES" default:"16"`
	RollingPeriod int `envconfig:"ANALYSIS_ROLLING_PERIOD" default:"5"`
	// Batches older than BatchTTL are expired by the janitor; 0 keeps them until evicted
	BatchTTL        time.Duration `envconfig:"ANALYSIS_BATCH_TTL" default:"6h"`
	JanitorInterval time.Duration `envconfig:"ANALYSIS_JANITOR_INTERVAL" default:"5m"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// Validate rejects settings the server cannot run with
func (c *Config) Validate() error {
	var errs errors.MultiError
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs.Add(errors.NewValidationError("HTTP_PORT", "must be in 1..65535", c.HTTP.Port))
	}
	if c.HTTP.UploadRPS <= 0 {
		errs.Add(errors.NewValidationError("HTTP_UPLOAD_RPS", "must be positive", c.HTTP.UploadRPS))
	}
	if c.HTTP.UploadBurst < 1 {
		errs.Add(errors.NewValidationError("HTTP_UPLOAD_BURST", "must be at least 1", c.HTTP.UploadBurst))
	}
	if c.HTTP.MaxUploadBytes <= 0 {
		errs.Add(errors.NewValidationError("HTTP_MAX_UPLOAD_BYTES", "must be positive", c.HTTP.MaxUploadBytes))
	}
	if c.Analysis.MaxBatches < 0 {
		errs.Add(errors.NewValidationError("ANALYSIS_MAX_BATCHES", "must not be negative", c.Analysis.MaxBatches))
	}
	if c.Analysis.RollingPeriod < 2 {
		errs.Add(errors.NewValidationError("ANALYSIS_ROLLING_PERIOD", "must be at least 2", c.Analysis.RollingPeriod))
	}
	if c.Analysis.BatchTTL < 0 {
		errs.Add(errors.NewValidationError("ANALYSIS_BATCH_TTL", "must not be negative", c.Analysis.BatchTTL))
	}
	if c.Analysis.BatchTTL > 0 && c.Analysis.JanitorInterval <= 0 {
		errs.Add(errors.NewValidationError("ANALYSIS_JANITOR_INTERVAL", "must be positive when a batch TTL is set", c.Analysis.JanitorInterval))
	}
	if c.ErrorTracking.Enabled && c.ErrorTracking.SentryDSN == "" {
		errs.Add(errors.NewValidationError("SENTRY_DSN", "required when error tracking is enabled", ""))
	}
	return errs.ToError()
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return &cfg, nil
}
