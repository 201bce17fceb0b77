package workers

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainscope/pkg/errors"
	"chainscope/pkg/logger"
)

type mockWorker struct {
	*BaseWorker
	runCount int32
	runFunc  func(ctx context.Context) error
}

func newMockWorker(name string, interval time.Duration) *mockWorker {
	return &mockWorker{BaseWorker: NewBaseWorker(name, interval, logger.Nop())}
}

func (m *mockWorker) Run(ctx context.Context) error {
	atomic.AddInt32(&m.runCount, 1)
	if m.runFunc != nil {
		return m.runFunc(ctx)
	}
	return nil
}

func (m *mockWorker) runs() int {
	return int(atomic.LoadInt32(&m.runCount))
}

func TestScheduler_StartStop(t *testing.T) {
	scheduler := NewScheduler(logger.Nop())
	worker := newMockWorker("test-worker", 50*time.Millisecond)
	scheduler.RegisterWorker(worker)

	require.NoError(t, scheduler.Start(context.Background()))
	assert.True(t, scheduler.IsRunning())

	// Runs immediately, then on every tick
	assert.Eventually(t, func() bool { return worker.runs() >= 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, scheduler.Stop(time.Second))
	assert.False(t, scheduler.IsRunning())

	health := worker.Health()
	assert.GreaterOrEqual(t, health.RunCount, int64(2))
	assert.Zero(t, health.ErrorCount)
}

func TestScheduler_DoubleStartAndStopWithoutStart(t *testing.T) {
	scheduler := NewScheduler(logger.Nop())
	assert.Error(t, scheduler.Stop(time.Second))

	require.NoError(t, scheduler.Start(context.Background()))
	assert.Error(t, scheduler.Start(context.Background()))
	require.NoError(t, scheduler.Stop(time.Second))
}

func TestScheduler_SkipsDisabledWorkers(t *testing.T) {
	scheduler := NewScheduler(logger.Nop())
	disabled := newMockWorker("disabled", 0)
	assert.False(t, disabled.Enabled())
	scheduler.RegisterWorker(disabled)

	require.NoError(t, scheduler.Start(context.Background()))
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, scheduler.Stop(time.Second))

	assert.Zero(t, disabled.runs())
}

func TestScheduler_RegisterAfterStartIgnored(t *testing.T) {
	scheduler := NewScheduler(logger.Nop())
	require.NoError(t, scheduler.Start(context.Background()))

	late := newMockWorker("late", 10*time.Millisecond)
	scheduler.RegisterWorker(late)
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, scheduler.Stop(time.Second))

	assert.Zero(t, late.runs())
}

func TestScheduler_RecordsErrorsAndPanics(t *testing.T) {
	scheduler := NewScheduler(logger.Nop())

	failing := newMockWorker("failing", 20*time.Millisecond)
	failing.runFunc = func(ctx context.Context) error { return errors.New("boom") }

	var once sync.Once
	panicking := newMockWorker("panicking", 20*time.Millisecond)
	panicking.runFunc = func(ctx context.Context) error {
		once.Do(func() { panic("unexpected") })
		return nil
	}

	scheduler.RegisterWorker(failing)
	scheduler.RegisterWorker(panicking)
	require.NoError(t, scheduler.Start(context.Background()))

	assert.Eventually(t, func() bool {
		return failing.Health().ErrorCount >= 2 && panicking.Health().RunCount >= 2
	}, time.Second, 10*time.Millisecond)
	require.NoError(t, scheduler.Stop(time.Second))

	assert.Error(t, failing.Health().LastError)
	assert.Equal(t, int64(1), panicking.Health().ErrorCount)
}

func TestScheduler_StopTimesOut(t *testing.T) {
	scheduler := NewScheduler(logger.Nop())
	release := make(chan struct{})
	stuck := newMockWorker("stuck", time.Hour)
	stuck.runFunc = func(ctx context.Context) error {
		<-release
		return nil
	}
	scheduler.RegisterWorker(stuck)

	require.NoError(t, scheduler.Start(context.Background()))
	assert.Eventually(t, func() bool { return stuck.runs() == 1 }, time.Second, 5*time.Millisecond)

	err := scheduler.Stop(20 * time.Millisecond)
	assert.Error(t, err)
	close(release)
}
