package queue

import (
	"log/slog"
	"time"
)

// WorkerOption is a functional option for configuring a worker
type WorkerOption func(*workerOptions)

type workerOptions struct {
	queue           string
	pullInterval    time.Duration
	taskTimeout     time.Duration
	shutdownTimeout time.Duration
	sweepInterval   time.Duration
	onFailure       FailureHook
	logger          *slog.Logger
}

// WithWorkerQueue sets the queue the worker consumes.
func WithWorkerQueue(name string) WorkerOption {
	return func(o *workerOptions) {
		if name != "" {
			o.queue = name
		}
	}
}

func WithPullInterval(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.pullInterval = d
		}
	}
}

// WithTaskTimeout bounds a single handler invocation.
func WithTaskTimeout(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.taskTimeout = d
		}
	}
}

func WithShutdownTimeout(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.shutdownTimeout = d
		}
	}
}

func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(o *workerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSweepInterval sets how often tasks with an expired lock are failed.
func WithSweepInterval(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.sweepInterval = d
		}
	}
}

// WithFailureHook registers a callback run for every failed task before
// the failure is stored.
func WithFailureHook(hook FailureHook) WorkerOption {
	return func(o *workerOptions) {
		o.onFailure = hook
	}
}
