package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainscope/pkg/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "chainscope", cfg.App.Name)
	assert.Equal(t, ":8080", cfg.HTTP.Addr())
	assert.Equal(t, 16, cfg.Analysis.MaxBatches)
	assert.Equal(t, 5, cfg.Analysis.RollingPeriod)
	assert.Equal(t, int64(64<<20), cfg.HTTP.MaxUploadBytes)
	assert.Equal(t, 6*time.Hour, cfg.Analysis.BatchTTL)
	assert.Equal(t, 5*time.Minute, cfg.Analysis.JanitorInterval)
	assert.False(t, cfg.ErrorTracking.Enabled)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("HTTP_UPLOAD_RPS", "0.5")
	t.Setenv("ANALYSIS_MAX_BATCHES", "3")
	t.Setenv("ANALYSIS_ROLLING_PERIOD", "10")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ANALYSIS_BATCH_TTL", "30m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Addr())
	assert.Equal(t, 0.5, cfg.HTTP.UploadRPS)
	assert.Equal(t, 3, cfg.Analysis.MaxBatches)
	assert.Equal(t, 10, cfg.Analysis.RollingPeriod)
	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, 30*time.Minute, cfg.Analysis.BatchTTL)
}

func TestLoadRejectsJanitorWithoutInterval(t *testing.T) {
	t.Setenv("ANALYSIS_JANITOR_INTERVAL", "0s")

	_, err := Load()
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	t.Setenv("ANALYSIS_BATCH_TTL", "0s")
	_, err = Load()
	assert.NoError(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("ANALYSIS_ROLLING_PERIOD", "1")
	t.Setenv("ERROR_TRACKING_ENABLED", "true")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
	assert.Contains(t, err.Error(), "invalid config")
}

func TestLoadRejectsMalformedEnv(t *testing.T) {
	t.Setenv("HTTP_PORT", "eighty")

	_, err := Load()
	assert.Error(t, err)
}
