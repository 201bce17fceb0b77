package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainscope/internal/domain/option_chain"
	"chainscope/pkg/errors"
	"chainscope/pkg/logger"
)

func csvFile(name string, lines ...string) File {
	return File{Name: name, Data: []byte(strings.Join(lines, "\n") + "\n")}
}

const chainHeader = "CE_strikePrice,CE_lastPrice,CE_totalTradedVolume,CE_openInterest,CE_impliedVolatility"

func TestLoaderCombinesFilesInTimeOrder(t *testing.T) {
	loader := NewLoader(logger.Nop())

	files := []File{
		csvFile("NIFTY_01012024_093000.csv", chainHeader, "19500,12.5,150,1000,14.2"),
		csvFile("NIFTY_01012024_091500.csv", chainHeader, "19500,10,100,900,14.0"),
	}

	ds, warnings, err := loader.Load(context.Background(), files)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Equal(t, 2, ds.Len())
	assert.NotEmpty(t, ds.ID)

	assert.Equal(t, "01-01-2024 09:15:00", ds.Rows[0].Stamp)
	assert.Equal(t, "T0915", ds.Rows[0].Label)
	assert.Equal(t, "T0930", ds.Rows[1].Label)

	vol, ok := ds.Rows[0].Number("CE_totalTradedVolume")
	require.True(t, ok)
	assert.Equal(t, 100.0, vol)
}

func TestLoaderSkipsHeaderOnlyFile(t *testing.T) {
	loader := NewLoader(logger.Nop())

	files := []File{
		csvFile("NIFTY_01012024_091500.csv", chainHeader, "19500,10,100,900,14.0"),
		csvFile("NIFTY_01012024_093000.csv", chainHeader, "19500,12.5,150,1000,14.2"),
		csvFile("NIFTY_01012024_094500.csv", chainHeader),
	}

	ds, warnings, err := loader.Load(context.Background(), files)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, KindEmptyOrUnreadableFile, warnings[0].Kind)
	assert.Equal(t, "NIFTY_01012024_094500.csv", warnings[0].File)
	assert.Equal(t, 2, ds.Len())
}

func TestLoaderWarnings(t *testing.T) {
	good := csvFile("NIFTY_01012024_091500.csv", chainHeader, "19500,10,100,900,14.0")

	tests := []struct {
		name string
		file File
		kind string
	}{
		{"empty file", File{Name: "NIFTY_01012024_093000.csv"}, KindEmptyOrUnreadableFile},
		{"malformed quoting", csvFile("NIFTY_01012024_093000.csv", chainHeader, `19500,"10,100`), KindEmptyOrUnreadableFile},
		{"no side columns", csvFile("NIFTY_01012024_093000.csv", "strike,price", "19500,10"), KindNoSideColumnsFound},
		{"unparseable filename", csvFile("chain.csv", chainHeader, "19500,10,100,900,14.0"), KindUnparseableFilename},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := NewLoader(logger.Nop())
			ds, warnings, err := loader.Load(context.Background(), []File{good, tt.file})
			require.NoError(t, err)
			require.Len(t, warnings, 1)
			assert.Equal(t, tt.kind, warnings[0].Kind)
			assert.NotEmpty(t, warnings[0].Message)
			assert.Equal(t, 1, ds.Len())
		})
	}
}

func TestLoaderFailsWithoutValidFiles(t *testing.T) {
	loader := NewLoader(logger.Nop())

	ds, warnings, err := loader.Load(context.Background(), []File{
		csvFile("chain.csv", chainHeader, "19500,10,100,900,14.0"),
		csvFile("NIFTY_01012024_093000.csv", chainHeader),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNoValidFiles))
	assert.Nil(t, ds)
	assert.Len(t, warnings, 2)
}

func TestLoaderFailsWithoutStrikeColumn(t *testing.T) {
	loader := NewLoader(logger.Nop())

	_, _, err := loader.Load(context.Background(), []File{
		csvFile("NIFTY_01012024_091500.csv", "CE_lastPrice,PE_lastPrice", "10,12"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNoStrikeColumn))
}

func TestLoaderUnionsDifferingSchemas(t *testing.T) {
	loader := NewLoader(logger.Nop())

	ds, _, err := loader.Load(context.Background(), []File{
		csvFile("NIFTY_01012024_091500.csv", "CALL_strikePrice, CALL_lastPrice ", "19500,10"),
		csvFile("NIFTY_01012024_093000.csv", "CE_strikePrice,PE_strikePrice,PE_lastPrice", "19500,19500,8.5"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"CE_strikePrice", "CE_lastPrice", "PE_strikePrice", "PE_lastPrice"}, ds.Columns)

	// Columns a file did not carry are absent, not zero.
	_, ok := ds.Rows[0].Value("PE_lastPrice")
	assert.False(t, ok)
	_, ok = ds.Rows[1].Value("CE_lastPrice")
	assert.False(t, ok)
}

func TestLoaderKeepsNonNumericCells(t *testing.T) {
	loader := NewLoader(logger.Nop())

	ds, _, err := loader.Load(context.Background(), []File{
		csvFile("NIFTY_01012024_091500.csv", chainHeader, `19500,-,"1,250",,14.0`),
	})
	require.NoError(t, err)
	row := ds.Rows[0]

	price, ok := row.Value("CE_lastPrice")
	require.True(t, ok)
	assert.False(t, price.Numeric)
	assert.Equal(t, "-", price.Raw)

	vol, ok := row.Number("CE_totalTradedVolume")
	require.True(t, ok)
	assert.Equal(t, 1250.0, vol)

	_, ok = row.Value("CE_openInterest")
	assert.False(t, ok)
}

func TestLoaderStopsOnCancelledContext(t *testing.T) {
	loader := NewLoader(logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := loader.Load(ctx, []File{
		csvFile("NIFTY_01012024_091500.csv", chainHeader, "19500,10,100,900,14.0"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestReadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b_01012024_093000.csv"), []byte(chainHeader+"\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_01012024_091500.CSV"), []byte(chainHeader+"\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.csv"), 0o700))

	files, err := ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a_01012024_091500.CSV", files[0].Name)
	assert.Equal(t, "b_01012024_093000.csv", files[1].Name)
}

func TestDatasetStrikes(t *testing.T) {
	loader := NewLoader(logger.Nop())
	ds, _, err := loader.Load(context.Background(), []File{
		csvFile("NIFTY_01012024_091500.csv", "CE_strikePrice", "19600", "19500", "n/a", "19600"),
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{19500, 19600}, ds.Strikes(option_chain.SideCE))
	assert.Empty(t, ds.Strikes(option_chain.SidePE))
}
