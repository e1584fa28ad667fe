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

// MemoryStorageStats provides observability metrics for monitoring and debugging
type MemoryStorageStats struct {
	PendingTasks       int   // Tasks waiting to be claimed
	ActiveTasks        int   // Current number of tasks in storage
	ExpiredLocksFailed int64 // Total number of processing tasks failed after their lock expired
	TasksPruned        int64 // Total number of finished tasks dropped after retention
	IsRunning          bool  // Whether the maintenance loop is running
}

// MemoryStorage implements all queue repository interfaces for testing and local development.
// Pending tasks are kept per queue in enqueue order.
type MemoryStorage struct {
	mu      sync.RWMutex
	tasks   map[uuid.UUID]*Task
	pending map[string][]uuid.UUID

	// Configuration
	maintenanceInterval time.Duration
	retention           time.Duration
	shutdownTimeout     time.Duration
	logger              *slog.Logger
	now                 func() time.Time

	// State management
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Observability metrics
	expiredLocksFailed atomic.Int64
	tasksPruned        atomic.Int64
}

// MemoryStorageOption configures a MemoryStorage.
type MemoryStorageOption func(*MemoryStorage)

// WithMaintenanceInterval sets how often expired locks and finished tasks are swept.
func WithMaintenanceInterval(interval time.Duration) MemoryStorageOption {
	return func(ms *MemoryStorage) {
		if interval > 0 {
			ms.maintenanceInterval = interval
		}
	}
}

// WithRetention sets how long completed and failed tasks are kept.
func WithRetention(d time.Duration) MemoryStorageOption {
	return func(ms *MemoryStorage) {
		if d > 0 {
			ms.retention = d
		}
	}
}

// WithMemoryStorageShutdownTimeout sets the graceful shutdown timeout.
func WithMemoryStorageShutdownTimeout(timeout time.Duration) MemoryStorageOption {
	return func(ms *MemoryStorage) {
		if timeout > 0 {
			ms.shutdownTimeout = timeout
		}
	}
}

// WithMemoryStorageLogger sets the logger for internal operations.
func WithMemoryStorageLogger(logger *slog.Logger) MemoryStorageOption {
	return func(ms *MemoryStorage) {
		if logger != nil {
			ms.logger = logger
		}
	}
}

// WithMemoryStorageClock overrides the time source.
func WithMemoryStorageClock(now func() time.Time) MemoryStorageOption {
	return func(ms *MemoryStorage) {
		if now != nil {
			ms.now = now
		}
	}
}

// NewMemoryStorage creates a new in-memory storage implementation.
// Call Start() to begin the maintenance loop.
func NewMemoryStorage(opts ...MemoryStorageOption) *MemoryStorage {
	ms := &MemoryStorage{
		tasks:               make(map[uuid.UUID]*Task),
		pending:             make(map[string][]uuid.UUID),
		maintenanceInterval: time.Minute,
		retention:           24 * time.Hour,
		shutdownTimeout:     30 * time.Second,
		logger:              slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:                 time.Now,
	}

	for _, opt := range opts {
		opt(ms)
	}

	return ms
}

// CreateTask stores a new task in memory.
func (ms *MemoryStorage) CreateTask(ctx context.Context, task *Task) error {
	if task == nil {
		return ErrTaskNil
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.tasks[task.ID]; exists {
		return fmt.Errorf("%w: %s", ErrTaskExists, task.ID)
	}

	taskCopy := *task
	taskCopy.Status = TaskStatusPending
	ms.tasks[task.ID] = &taskCopy
	ms.pending[task.Queue] = append(ms.pending[task.Queue], task.ID)

	return nil
}

// PendingCount returns the number of unclaimed tasks of the queue.
func (ms *MemoryStorage) PendingCount(ctx context.Context, queue string) (int, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.pending[queue]), nil
}

// ClaimTask atomically claims the oldest pending task of the queue.
func (ms *MemoryStorage) ClaimTask(ctx context.Context, queue string, lockDuration time.Duration) (*Task, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ids := ms.pending[queue]
	if len(ids) == 0 {
		return nil, ErrNoTaskToClaim
	}

	task := ms.tasks[ids[0]]
	ms.pending[queue] = ids[1:]

	lockUntil := ms.now().Add(lockDuration)
	task.Status = TaskStatusProcessing
	task.LockedUntil = &lockUntil

	taskCopy := *task
	return &taskCopy, nil
}

// CompleteTask marks a task as successfully completed.
func (ms *MemoryStorage) CompleteTask(ctx context.Context, taskID uuid.UUID) error {
	return ms.finish(taskID, TaskStatusCompleted, nil)
}

// FailTask marks a task as failed. It is never claimed again.
func (ms *MemoryStorage) FailTask(ctx context.Context, taskID uuid.UUID, errorMsg string) error {
	return ms.finish(taskID, TaskStatusFailed, &errorMsg)
}

func (ms *MemoryStorage) finish(taskID uuid.UUID, status TaskStatus, errorMsg *string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, exists := ms.tasks[taskID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	if task.Status != TaskStatusProcessing {
		return fmt.Errorf("%w: %s", ErrTaskNotProcessing, taskID)
	}

	now := ms.now()
	task.Status = status
	task.ProcessedAt = &now
	task.LockedUntil = nil
	task.Error = errorMsg

	return nil
}

// GetTask returns a copy of the stored task.
func (ms *MemoryStorage) GetTask(ctx context.Context, taskID uuid.UUID) (*Task, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	task, exists := ms.tasks[taskID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	taskCopy := *task
	return &taskCopy, nil
}

// Start begins the maintenance loop. This is a blocking operation
// that runs until the context is cancelled. Use Run() for errgroup pattern or call this in a goroutine.
func (ms *MemoryStorage) Start(ctx context.Context) error {
	ms.mu.Lock()
	if ms.cancel != nil {
		ms.mu.Unlock()
		return ErrStorageAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	ms.cancel = cancel
	ms.mu.Unlock()

	ms.logger.InfoContext(runCtx, "memory queue storage maintenance started",
		slog.Duration("interval", ms.maintenanceInterval),
		slog.Duration("retention", ms.retention))

	ticker := time.NewTicker(ms.maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-runCtx.Done():
			ms.logger.InfoContext(context.Background(), "memory queue storage stopping")
			return runCtx.Err()
		case <-ticker.C:
			ms.maintainWithWait()
		}
	}
}

// Stop gracefully shuts down the maintenance loop with a timeout.
func (ms *MemoryStorage) Stop() error {
	ms.mu.Lock()
	if ms.cancel == nil {
		ms.mu.Unlock()
		return ErrStorageNotStarted
	}

	cancel := ms.cancel
	ms.cancel = nil
	ms.mu.Unlock()

	cancel()

	ctx, ctxCancel := context.WithTimeout(context.Background(), ms.shutdownTimeout)
	defer ctxCancel()

	done := make(chan struct{})
	go func() {
		ms.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		ms.logger.InfoContext(context.Background(), "memory queue storage stopped cleanly")
		return nil
	case <-ctx.Done():
		ms.logger.WarnContext(context.Background(), "memory queue storage shutdown timeout exceeded",
			slog.Duration("timeout", ms.shutdownTimeout))
		return fmt.Errorf("%w after %s", ErrShutdownTimeout, ms.shutdownTimeout)
	}
}

// Run provides errgroup compatibility for coordinated lifecycle management.
func (ms *MemoryStorage) Run(ctx context.Context) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() {
			errCh <- ms.Start(ctx)
		}()

		select {
		case <-ctx.Done():
			_ = ms.Stop()
			<-errCh
			return nil
		case err := <-errCh:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

func (ms *MemoryStorage) maintainWithWait() {
	ms.mu.RLock()
	if ms.cancel == nil {
		ms.mu.RUnlock()
		return
	}
	ms.wg.Add(1)
	ms.mu.RUnlock()

	defer ms.wg.Done()
	ms.maintain()
}

// maintain fails processing tasks whose lock expired and drops finished
// tasks older than the retention period.
func (ms *MemoryStorage) maintain() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()
	ms.failExpired(now, "")
	for id, task := range ms.tasks {
		if task.Status.Finished() && task.ProcessedAt != nil && now.Sub(*task.ProcessedAt) > ms.retention {
			delete(ms.tasks, id)
			ms.tasksPruned.Add(1)
		}
	}
}

// FailExpiredTasks fails processing tasks of the queue whose lock expired.
func (ms *MemoryStorage) FailExpiredTasks(ctx context.Context, queue string) (int, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.failExpired(ms.now(), queue), nil
}

// failExpired must be called with ms.mu held. An empty queue matches all.
func (ms *MemoryStorage) failExpired(now time.Time, queue string) int {
	n := 0
	for _, task := range ms.tasks {
		if queue != "" && task.Queue != queue {
			continue
		}
		if task.Status != TaskStatusProcessing || task.LockedUntil == nil || !task.LockedUntil.Before(now) {
			continue
		}
		msg := ErrLockExpired.Error()
		task.Status = TaskStatusFailed
		task.ProcessedAt = &now
		task.LockedUntil = nil
		task.Error = &msg
		n++
	}
	ms.expiredLocksFailed.Add(int64(n))
	return n
}

// Stats returns current memory storage statistics for observability and monitoring.
func (ms *MemoryStorage) Stats() MemoryStorageStats {
	ms.mu.RLock()
	isRunning := ms.cancel != nil
	activeTasks := len(ms.tasks)
	pending := 0
	for _, ids := range ms.pending {
		pending += len(ids)
	}
	ms.mu.RUnlock()

	return MemoryStorageStats{
		PendingTasks:       pending,
		ActiveTasks:        activeTasks,
		ExpiredLocksFailed: ms.expiredLocksFailed.Load(),
		TasksPruned:        ms.tasksPruned.Load(),
		IsRunning:          isRunning,
	}
}

// Healthcheck validates that the maintenance loop is running.
func (ms *MemoryStorage) Healthcheck(ctx context.Context) error {
	if !ms.Stats().IsRunning {
		return errors.Join(ErrHealthcheckFailed, ErrStorageNotRunning)
	}
	return nil
}
