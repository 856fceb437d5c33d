package workers

import (
	"context"
	"sync"
	"time"

	"exconnect/pkg/logger"
)

// Worker defines the interface for background workers
type Worker interface {
	// Name returns the unique identifier for this worker
	Name() string

	// Run completes one iteration of work. The scheduler calls it again
	// every Interval().
	Run(ctx context.Context) error

	// Interval returns how often this worker should run
	Interval() time.Duration

	// Enabled returns whether this worker is active
	Enabled() bool
}

// HealthReporter is implemented by workers embedding BaseWorker.
type HealthReporter interface {
	Health() WorkerHealth
	RecordRun(duration time.Duration)
	RecordError(err error, duration time.Duration)
}

// WorkerHealth contains health information for a worker
type WorkerHealth struct {
	Name              string        `json:"name"`
	Interval          time.Duration `json:"interval"`
	LastRun           time.Time     `json:"lastRun"`
	LastSuccess       time.Time     `json:"lastSuccess"`
	LastError         string        `json:"lastError,omitempty"`
	RunCount          int64         `json:"runCount"`
	ErrorCount        int64         `json:"errorCount"`
	ConsecutiveErrors int           `json:"consecutiveErrors"`
	AvgDuration       time.Duration `json:"avgDuration"`
	Enabled           bool          `json:"enabled"`
}

// Stale reports whether the worker has not succeeded within two
// intervals of now. A worker that never ran is not stale.
func (h WorkerHealth) Stale(now time.Time) bool {
	if h.RunCount == 0 || !h.Enabled {
		return false
	}
	last := h.LastSuccess
	if last.IsZero() {
		last = h.LastRun
	}
	return now.Sub(last) > 2*h.Interval
}

// BaseWorker provides common functionality for workers
type BaseWorker struct {
	name     string
	interval time.Duration
	log      *logger.Logger

	healthMu      sync.RWMutex
	enabled       bool
	lastRun       time.Time
	lastSuccess   time.Time
	lastError     error
	consecutive   int
	runCount      int64
	errorCount    int64
	totalDuration time.Duration
}

// NewBaseWorker creates a new base worker
func NewBaseWorker(name string, interval time.Duration, enabled bool) *BaseWorker {
	return &BaseWorker{
		name:     name,
		interval: interval,
		enabled:  enabled,
		log:      logger.Get().With("worker", name),
	}
}

// Name returns the worker name
func (w *BaseWorker) Name() string {
	return w.name
}

// Interval returns the run interval
func (w *BaseWorker) Interval() time.Duration {
	return w.interval
}

// Enabled reports whether the scheduler should run the worker.
func (w *BaseWorker) Enabled() bool {
	w.healthMu.RLock()
	defer w.healthMu.RUnlock()
	return w.enabled
}

// SetEnabled updates the enabled status
func (w *BaseWorker) SetEnabled(enabled bool) {
	w.healthMu.Lock()
	defer w.healthMu.Unlock()
	w.enabled = enabled
	w.log.Infow("Worker toggled", "enabled", enabled)
}

// Log returns the logger
func (w *BaseWorker) Log() *logger.Logger {
	return w.log
}

// Health returns health information for the worker
func (w *BaseWorker) Health() WorkerHealth {
	w.healthMu.RLock()
	defer w.healthMu.RUnlock()

	h := WorkerHealth{
		Name:              w.name,
		Interval:          w.interval,
		LastRun:           w.lastRun,
		LastSuccess:       w.lastSuccess,
		RunCount:          w.runCount,
		ErrorCount:        w.errorCount,
		ConsecutiveErrors: w.consecutive,
		Enabled:           w.enabled,
	}
	if w.runCount > 0 {
		h.AvgDuration = time.Duration(int64(w.totalDuration) / w.runCount)
	}
	if w.lastError != nil {
		h.LastError = w.lastError.Error()
	}
	return h
}

// RecordRun records a successful run
func (w *BaseWorker) RecordRun(duration time.Duration) {
	w.healthMu.Lock()
	defer w.healthMu.Unlock()

	now := time.Now()
	w.lastRun = now
	w.lastSuccess = now
	w.runCount++
	w.totalDuration += duration
	w.lastError = nil
	w.consecutive = 0
}

// RecordError records a failed run
func (w *BaseWorker) RecordError(err error, duration time.Duration) {
	w.healthMu.Lock()
	defer w.healthMu.Unlock()

	w.lastRun = time.Now()
	w.runCount++
	w.errorCount++
	w.consecutive++
	w.totalDuration += duration
	w.lastError = err
}
