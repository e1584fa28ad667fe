package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// WorkerRepository defines the interface for worker operations
type WorkerRepository interface {
	// ClaimTask atomically claims the oldest pending task of the queue.
	// Returns ErrNoTaskToClaim when the queue is empty.
	ClaimTask(ctx context.Context, queue string, lockDuration time.Duration) (*Task, error)

	// CompleteTask marks task as completed
	CompleteTask(ctx context.Context, taskID uuid.UUID) error

	// FailTask marks task as failed. Failed tasks are never claimed again.
	FailTask(ctx context.Context, taskID uuid.UUID, errorMsg string) error
}

// ExpiredTaskSweeper is implemented by storages that can fail tasks left in
// processing by a consumer that died. The worker sweeps on start and then
// periodically, always between tasks.
type ExpiredTaskSweeper interface {
	FailExpiredTasks(ctx context.Context, queue string) (int, error)
}

// FailureHook observes every task the worker marks failed, whatever the
// cause: a handler error, a panic, an undecodable payload or an unknown
// task name.
type FailureHook func(ctx context.Context, taskID uuid.UUID, err error)

// Worker is the single consumer of a queue. It claims one task, runs the
// handler to completion, records the outcome and only then claims the next.
type Worker struct {
	repo     WorkerRepository
	handler  Handler
	queue    string
	workerID uuid.UUID
	wg       sync.WaitGroup
	mu       sync.RWMutex

	// Configuration
	pullInterval    time.Duration
	taskTimeout     time.Duration
	shutdownTimeout time.Duration
	sweepInterval   time.Duration
	onFailure       FailureHook
	logger          *slog.Logger
	lastSweep       time.Time

	// State management
	ctx    context.Context
	cancel context.CancelFunc

	// Observability metrics
	tasksProcessed atomic.Int64
	tasksFailed    atomic.Int64
	activeTasks    atomic.Int32
}

// WorkerStats provides observability metrics for monitoring and debugging
type WorkerStats struct {
	TasksProcessed int64 // Total number of successfully completed tasks
	TasksFailed    int64 // Total number of failed tasks
	ActiveTasks    int32 // 1 while a handler is running, 0 otherwise
	IsRunning      bool  // Whether the worker is currently running
}

// NewWorker creates a new task worker
func NewWorker(repo WorkerRepository, opts ...WorkerOption) (*Worker, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &workerOptions{
		queue:           DefaultQueueName,
		pullInterval:    time.Second,
		taskTimeout:     5 * time.Minute,
		shutdownTimeout: 30 * time.Second,
		sweepInterval:   time.Minute,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)), // No-op logger by default
	}

	for _, opt := range opts {
		opt(options)
	}

	return &Worker{
		repo:            repo,
		queue:           options.queue,
		workerID:        uuid.New(),
		pullInterval:    options.pullInterval,
		taskTimeout:     options.taskTimeout,
		shutdownTimeout: options.shutdownTimeout,
		sweepInterval:   options.sweepInterval,
		onFailure:       options.onFailure,
		logger:          options.logger,
	}, nil
}

// NewWorkerFromConfig creates a Worker from configuration.
// Repository must be provided. Additional options can override config values.
func NewWorkerFromConfig(cfg Config, repo WorkerRepository, opts ...WorkerOption) (*Worker, error) {
	allOpts := append([]WorkerOption{
		WithWorkerQueue(cfg.Queue),
		WithPullInterval(cfg.PollInterval),
		WithTaskTimeout(cfg.TaskTimeout),
		WithShutdownTimeout(cfg.ShutdownTimeout),
	}, opts...)

	return NewWorker(repo, allOpts...)
}

// RegisterHandler registers the consumer. A worker accepts exactly one handler.
func (w *Worker) RegisterHandler(handler Handler) error {
	if handler == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.handler != nil {
		return fmt.Errorf("%w: %s", ErrHandlerAlreadyRegistered, w.handler.Name())
	}
	w.handler = handler
	return nil
}

// Start begins processing tasks. This is a blocking operation that runs until
// the context is cancelled. Use Run() for errgroup pattern or call this in a goroutine.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return ErrWorkerAlreadyStarted
	}

	if w.handler == nil {
		w.mu.Unlock()
		return ErrNoHandlers
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	runCtx := w.ctx
	w.mu.Unlock()

	w.logger.InfoContext(runCtx, "worker started",
		slog.String("worker_id", w.workerID.String()),
		slog.String("queue", w.queue),
		slog.String("handler", w.handler.Name()))

	w.sweep(runCtx)

	ticker := time.NewTicker(w.pullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-runCtx.Done():
			w.logger.InfoContext(context.Background(), "worker stopping")
			return runCtx.Err()
		case <-ticker.C:
			// Mutex protects against shutdown race: Must verify worker is still running
			// AND add to waitgroup atomically, otherwise Stop() might wait on incomplete count
			w.mu.RLock()
			if w.cancel == nil {
				w.mu.RUnlock()
				return nil
			}
			w.wg.Add(1)
			w.mu.RUnlock()

			if time.Since(w.lastSweep) >= w.sweepInterval {
				w.sweep(runCtx)
			}
			w.drain(runCtx)
			w.wg.Done()
		}
	}
}

// drain processes tasks one after another until the queue is empty or the
// worker is stopping.
func (w *Worker) drain(ctx context.Context) {
	for ctx.Err() == nil {
		claimed, err := w.pullAndProcess(ctx)
		if err != nil {
			w.logger.ErrorContext(ctx, "failed to process task",
				slog.String("worker_id", w.workerID.String()),
				slog.String("error", err.Error()))
		}
		if !claimed {
			return
		}
	}
}

// sweep fails tasks whose lock expired. It runs on the consuming goroutine,
// so the worker's own task is never in flight at the time.
func (w *Worker) sweep(ctx context.Context) {
	w.lastSweep = time.Now()

	sweeper, ok := w.repo.(ExpiredTaskSweeper)
	if !ok {
		return
	}

	n, err := sweeper.FailExpiredTasks(ctx, w.queue)
	if err != nil {
		w.logger.ErrorContext(ctx, "failed to sweep expired tasks",
			slog.String("worker_id", w.workerID.String()),
			slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		w.tasksFailed.Add(int64(n))
		w.logger.WarnContext(ctx, "failed tasks abandoned by a previous consumer",
			slog.String("worker_id", w.workerID.String()),
			slog.String("queue", w.queue),
			slog.Int("count", n))
	}
}

// Stop gracefully shuts down the worker with a timeout.
// Returns an error if the shutdown timeout is exceeded.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return ErrWorkerNotStarted
	}

	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	cancel()

	w.logger.InfoContext(context.Background(), "worker stopping, waiting for active task to complete",
		slog.String("worker_id", w.workerID.String()),
		slog.Duration("timeout", w.shutdownTimeout))

	ctx, ctxCancel := context.WithTimeout(context.Background(), w.shutdownTimeout)
	defer ctxCancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.InfoContext(context.Background(), "worker stopped cleanly",
			slog.String("worker_id", w.workerID.String()))
		return nil
	case <-ctx.Done():
		w.logger.WarnContext(context.Background(), "worker shutdown timeout exceeded - active task may be abandoned",
			slog.String("worker_id", w.workerID.String()),
			slog.Duration("timeout", w.shutdownTimeout))
		return fmt.Errorf("%w after %s", ErrShutdownTimeout, w.shutdownTimeout)
	}
}

// Run provides errgroup compatibility for coordinated lifecycle management.
// Returns a function that starts the worker, monitors context cancellation,
// and performs graceful shutdown when the context is cancelled.
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() {
			errCh <- w.Start(ctx)
		}()

		select {
		case <-ctx.Done():
			_ = w.Stop() // Ignore stop error in normal shutdown
			<-errCh      // Wait for Start() to exit
			return nil
		case err := <-errCh:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

// pullAndProcess claims and processes a single task. The boolean reports
// whether a task was claimed.
func (w *Worker) pullAndProcess(ctx context.Context) (bool, error) {
	task, err := w.repo.ClaimTask(ctx, w.queue, w.taskTimeout)
	if err != nil {
		if errors.Is(err, ErrNoTaskToClaim) {
			return false, nil
		}
		return false, fmt.Errorf("failed to claim task: %w", err)
	}

	if task == nil {
		return false, nil
	}

	w.logger.DebugContext(ctx, "claimed task",
		slog.String("worker_id", w.workerID.String()),
		slog.String("task_id", task.ID.String()),
		slog.String("task_name", task.TaskName),
		slog.String("queue", task.Queue))

	return true, w.processTask(task)
}

// processTask executes a task with the registered handler.
func (w *Worker) processTask(task *Task) (retErr error) {
	start := time.Now()

	w.activeTasks.Add(1)
	defer w.activeTasks.Add(-1)

	// A panicking handler fails its task, the worker keeps consuming.
	defer func() {
		if r := recover(); r != nil {
			w.logger.ErrorContext(context.Background(), "handler panicked",
				slog.String("worker_id", w.workerID.String()),
				slog.String("task_id", task.ID.String()),
				slog.String("task_name", task.TaskName),
				slog.Any("panic", r))
			retErr = w.handleTaskFailure(task, fmt.Errorf("panic in handler: %v", r), time.Since(start))
		}
	}()

	w.mu.RLock()
	handler := w.handler
	w.mu.RUnlock()

	if handler == nil || handler.Name() != task.TaskName {
		return w.handleTaskFailure(task, fmt.Errorf("%w: %s", ErrHandlerNotFound, task.TaskName), time.Since(start))
	}

	// Worker shutdown must not interrupt a running task: the handler gets
	// an independent context bounded by the task timeout.
	ctx, cancel := context.WithTimeout(withTaskID(context.Background(), task.ID), w.taskTimeout)
	defer cancel()

	if err := handler.Handle(ctx, task.Payload); err != nil {
		return w.handleTaskFailure(task, err, time.Since(start))
	}

	return w.handleTaskSuccess(task, time.Since(start))
}

// handleTaskFailure records the failure. The queue never retries.
func (w *Worker) handleTaskFailure(task *Task, execErr error, duration time.Duration) error {
	w.tasksFailed.Add(1)

	w.logger.ErrorContext(context.Background(), "task failed",
		slog.String("worker_id", w.workerID.String()),
		slog.String("task_id", task.ID.String()),
		slog.String("task_name", task.TaskName),
		slog.Duration("duration", duration),
		slog.String("error", execErr.Error()))

	if w.onFailure != nil {
		w.onFailure(context.Background(), task.ID, execErr)
	}

	if err := w.repo.FailTask(context.Background(), task.ID, execErr.Error()); err != nil {
		return fmt.Errorf("failed to update task %s status to failed: %w", task.ID, err)
	}

	return nil
}

// handleTaskSuccess processes successful task completion.
func (w *Worker) handleTaskSuccess(task *Task, duration time.Duration) error {
	if err := w.repo.CompleteTask(context.Background(), task.ID); err != nil {
		return fmt.Errorf("failed to mark task %s as completed: %w", task.ID, err)
	}

	w.tasksProcessed.Add(1)

	w.logger.InfoContext(context.Background(), "task completed successfully",
		slog.String("worker_id", w.workerID.String()),
		slog.String("task_id", task.ID.String()),
		slog.String("task_name", task.TaskName),
		slog.String("queue", task.Queue),
		slog.Duration("duration", duration))

	return nil
}

// Queue returns the name of the queue this worker consumes.
func (w *Worker) Queue() string {
	return w.queue
}

// Stats returns current worker statistics for observability and monitoring.
// This method is thread-safe and can be called at any time.
func (w *Worker) Stats() WorkerStats {
	w.mu.RLock()
	isRunning := w.cancel != nil
	w.mu.RUnlock()

	return WorkerStats{
		TasksProcessed: w.tasksProcessed.Load(),
		TasksFailed:    w.tasksFailed.Load(),
		ActiveTasks:    w.activeTasks.Load(),
		IsRunning:      isRunning,
	}
}

// Healthcheck validates that the worker is running.
//
//	if errors.Is(err, queue.ErrWorkerNotRunning) { ... }
func (w *Worker) Healthcheck(ctx context.Context) error {
	if !w.Stats().IsRunning {
		return errors.Join(ErrHealthcheckFailed, ErrWorkerNotRunning)
	}
	return nil
}
