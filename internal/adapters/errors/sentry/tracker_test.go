package sentry

import (
	"context"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainscope/pkg/errors"
)

func TestConvertLevel(t *testing.T) {
	assert.Equal(t, sentry.LevelDebug, convertLevel(errors.LevelDebug))
	assert.Equal(t, sentry.LevelWarning, convertLevel(errors.LevelWarning))
	assert.Equal(t, sentry.LevelFatal, convertLevel(errors.LevelFatal))
	assert.Equal(t, sentry.LevelError, convertLevel("unknown"))
}

func TestTrackerWithoutDSN(t *testing.T) {
	// An empty DSN yields a disabled client that drops events.
	tracker, err := New("", "test", "dev")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(WithBatchID(context.Background(), "b-1"), 50*time.Millisecond)
	defer cancel()

	assert.NoError(t, tracker.CaptureError(ctx, errors.ErrNoValidFiles, map[string]string{"stage": "load"}))
	assert.NoError(t, tracker.CaptureMessage(ctx, "load", errors.LevelInfo, nil))
	tracker.AddBreadcrumb(ctx, "derive", "pipeline", errors.LevelInfo, nil)
	assert.NoError(t, tracker.Flush(ctx))
}
