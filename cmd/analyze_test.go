package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainscope/internal/adapters/config"
	"chainscope/internal/adapters/errors/noop"
	"chainscope/internal/domain/option_chain"
	"chainscope/internal/testsupport"
	"chainscope/pkg/errors"
	"chainscope/pkg/logger"
)

func writeSnapshots(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	strikes := []float64{19500, 19600}
	snapshots := map[string][]byte{
		"NIFTY_01012024_091500.csv": testsupport.SnapshotCSV(strikes, 10, 100, 1000, 14),
		"NIFTY_01012024_093000.csv": testsupport.SnapshotCSV(strikes, 12, 150, 1100, 15),
		"NIFTY_01012024_094500.csv": testsupport.SnapshotCSV(strikes, 11, 210, 1150, 15.5),
		"readme.txt":                []byte("not a snapshot"),
	}
	for name, data := range snapshots {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
	}
	return dir
}

func testConfig() *config.Config {
	return &config.Config{Analysis: config.AnalysisConfig{MaxBatches: 1, RollingPeriod: 2}}
}

func TestSplitCommand(t *testing.T) {
	cmd, args := splitCommand(nil)
	assert.Equal(t, "serve", cmd)
	assert.Empty(t, args)

	cmd, args = splitCommand([]string{"analyze", "-dir", "x"})
	assert.Equal(t, "analyze", cmd)
	assert.Equal(t, []string{"-dir", "x"}, args)

	cmd, _ = splitCommand([]string{"-v"})
	assert.Equal(t, "serve", cmd)
}

func TestParseAnalyzeFlags(t *testing.T) {
	opts, err := parseAnalyzeFlags([]string{"-dir", "in", "-strike", "19500", "-side", "put", "-metrics", "lastPrice, volChange"})
	require.NoError(t, err)
	assert.Equal(t, "in", opts.dir)
	assert.True(t, opts.hasStrike)
	assert.Equal(t, 19500.0, opts.strike)
	assert.Equal(t, option_chain.SelectPE, opts.side)
	assert.Equal(t, []string{"lastPrice", "volChange"}, opts.metrics)

	_, err = parseAnalyzeFlags(nil)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	_, err = parseAnalyzeFlags([]string{"-dir", "in", "-side", "straddle"})
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	_, err = parseAnalyzeFlags([]string{"-dir", "in", "-strike", "atm"})
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	_, err = parseAnalyzeFlags([]string{"-bogus"})
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestRunAnalyzeWritesExports(t *testing.T) {
	in := writeSnapshots(t)
	out := filepath.Join(t.TempDir(), "exports")

	err := runAnalyze(context.Background(), testConfig(), noop.New(),
		[]string{"-dir", in, "-out", out, "-strike", "19500"}, logger.Nop())
	require.NoError(t, err)

	for _, name := range []string{
		"dataset.csv",
		"strength.csv",
		"series_lastPrice.csv",
		"series_totalTradedVolume.csv",
		"correlation.csv",
		"rolling_CE.csv",
		"rolling_PE.csv",
	} {
		assert.FileExists(t, filepath.Join(out, name))
	}
	// The snapshots carry no changeinOpenInterest column.
	assert.NoFileExists(t, filepath.Join(out, "series_changeinOpenInterest.csv"))

	dataset, err := os.ReadFile(filepath.Join(out, "dataset.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(dataset)), "\n")
	assert.Len(t, lines, 7)
	assert.Contains(t, lines[0], "OI_imbalance")

	strength, err := os.ReadFile(filepath.Join(out, "strength.csv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(strength), "strike,CE_Strength,PE_Strength,Bias\n19500,"))

	corr, err := os.ReadFile(filepath.Join(out, "correlation.csv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(corr), "metric,priceChange_CE,"))
}

func TestRunAnalyzeWithoutStrike(t *testing.T) {
	in := writeSnapshots(t)
	out := t.TempDir()

	require.NoError(t, runAnalyze(context.Background(), testConfig(), noop.New(),
		[]string{"-dir", in, "-out", out}, logger.Nop()))

	assert.FileExists(t, filepath.Join(out, "dataset.csv"))
	assert.FileExists(t, filepath.Join(out, "strength.csv"))
	assert.NoFileExists(t, filepath.Join(out, "correlation.csv"))
}

func TestRunAnalyzeFailsWithoutSnapshots(t *testing.T) {
	err := runAnalyze(context.Background(), testConfig(), noop.New(),
		[]string{"-dir", t.TempDir(), "-out", t.TempDir()}, logger.Nop())
	assert.True(t, errors.Is(err, errors.ErrNoValidFiles))

	err = runAnalyze(context.Background(), testConfig(), noop.New(),
		[]string{"-dir", filepath.Join(t.TempDir(), "missing")}, logger.Nop())
	assert.Error(t, err)
}
