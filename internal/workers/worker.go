package workers

import (
	"context"
	"sync"
	"time"

	"chainscope/pkg/logger"
)

// Worker defines the interface for background workers
type Worker interface {
	// Name returns the unique identifier for this worker
	Name() string

	// Run executes one iteration and returns.
	// The scheduler calls it repeatedly based on Interval().
	Run(ctx context.Context) error

	// Interval returns how often this worker should run
	Interval() time.Duration

	// Enabled returns whether this worker is active
	Enabled() bool
}

// WorkerHealth contains health information for a worker
type WorkerHealth struct {
	LastRun    time.Time
	LastError  error
	RunCount   int64
	ErrorCount int64
}

// BaseWorker provides common functionality for workers
type BaseWorker struct {
	name     string
	interval time.Duration
	enabled  bool
	log      *logger.Logger

	healthMu sync.RWMutex
	health   WorkerHealth
}

// NewBaseWorker creates a new base worker. A non-positive interval disables it.
func NewBaseWorker(name string, interval time.Duration, log *logger.Logger) *BaseWorker {
	return &BaseWorker{
		name:     name,
		interval: interval,
		enabled:  interval > 0,
		log:      log.With("worker", name),
	}
}

func (w *BaseWorker) Name() string            { return w.name }
func (w *BaseWorker) Interval() time.Duration { return w.interval }
func (w *BaseWorker) Enabled() bool           { return w.enabled }

// Log returns the logger
func (w *BaseWorker) Log() *logger.Logger {
	return w.log
}

// Health returns health information for the worker
func (w *BaseWorker) Health() WorkerHealth {
	w.healthMu.RLock()
	defer w.healthMu.RUnlock()
	return w.health
}

// record stores the outcome of one run
func (w *BaseWorker) record(err error) {
	w.healthMu.Lock()
	defer w.healthMu.Unlock()

	w.health.LastRun = time.Now()
	w.health.RunCount++
	w.health.LastError = err
	if err != nil {
		w.health.ErrorCount++
	}
}
