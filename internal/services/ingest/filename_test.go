package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilename(t *testing.T) {
	tests := []struct {
		name      string
		file      string
		wantText  string
		wantLabel string
	}{
		{"underscore separated", "NIFTY_01012024_091500.csv", "01-01-2024 09:15:00", "T0915"},
		{"contiguous run", "chain01012024093000.csv", "01-01-2024 09:30:00", "T0930"},
		{"other digit groups before the run", "NIFTY_25_15032024_151959.csv", "15-03-2024 15:19:59", "T1519"},
		{"run at both ends", "31122023_235959", "31-12-2023 23:59:59", "T2359"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stamp, ok := ParseFilename(tt.file)
			require.True(t, ok)
			assert.Equal(t, tt.wantText, stamp.Text)
			assert.Equal(t, tt.wantLabel, stamp.Label)
		})
	}
}

func TestParseFilenameRejectsMalformed(t *testing.T) {
	for _, file := range []string{
		"chain.csv",
		"NIFTY_0101202_091500.csv",    // 7 date digits
		"NIFTY_010120241_091500.csv",  // 9 date digits
		"NIFTY_01012024_0915001.csv",  // 7 time digits
		"NIFTY_0101A024_091500.csv",   // letter in the date run
		"NIFTY_32012024_091500.csv",   // day out of range
		"NIFTY_01132024_091500.csv",   // month out of range
		"NIFTY_01012024_256000.csv",   // hour out of range
		"NIFTY_01012024__091500.csv",  // two separators
	} {
		t.Run(file, func(t *testing.T) {
			stamp, ok := ParseFilename(file)
			assert.False(t, ok)
			assert.Equal(t, Stamp{}, stamp)
		})
	}
}

func TestParseFilenameIsPure(t *testing.T) {
	a, okA := ParseFilename("x_01012024_091500.csv")
	b, okB := ParseFilename("x_01012024_091500.csv")
	require.True(t, okA)
	require.True(t, okB)
	assert.Equal(t, a, b)
	assert.Equal(t, time.Date(2024, 1, 1, 9, 15, 0, 0, time.UTC), a.Time)
}

func TestParseStampTextRoundTrip(t *testing.T) {
	stamp, ok := ParseFilename("x_01012024_091500.csv")
	require.True(t, ok)

	ts, err := ParseStampText(stamp.Text)
	require.NoError(t, err)
	assert.True(t, ts.Equal(stamp.Time))
}
