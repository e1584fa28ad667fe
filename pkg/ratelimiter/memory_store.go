package ratelimiter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// counter is a windowed request count.
type counter struct {
	value    int
	expireAt time.Time
}

func (c *counter) expired(now time.Time) bool {
	return !now.Before(c.expireAt)
}

// MemoryStore implements Store using in-memory storage.
type MemoryStore struct {
	mu       sync.RWMutex
	counters map[string]*counter

	// Configuration
	cleanupInterval time.Duration
	shutdownTimeout time.Duration
	logger          *slog.Logger
	now             func() time.Time

	// State management
	ctx     context.Context
	cancel  context.CancelFunc
	running atomic.Bool
	wg      sync.WaitGroup

	// Observability metrics
	countersCreated atomic.Int64
	countersRemoved atomic.Int64
}

// MemoryStoreStats provides observability metrics for monitoring and debugging
type MemoryStoreStats struct {
	CountersCreated int64 // Total number of counters created
	CountersRemoved int64 // Total number of expired counters removed
	ActiveCounters  int   // Current number of tracked counters
	IsRunning       bool  // Whether the cleanup goroutine is running
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithCleanupInterval sets the cleanup interval for removing expired counters.
// Set to 0 to disable automatic cleanup.
func WithCleanupInterval(interval time.Duration) MemoryStoreOption {
	return func(ms *MemoryStore) {
		ms.cleanupInterval = interval
	}
}

// WithMemoryStoreShutdownTimeout sets the graceful shutdown timeout.
func WithMemoryStoreShutdownTimeout(timeout time.Duration) MemoryStoreOption {
	return func(ms *MemoryStore) {
		if timeout > 0 {
			ms.shutdownTimeout = timeout
		}
	}
}

// WithMemoryStoreLogger sets the logger for internal operations.
func WithMemoryStoreLogger(logger *slog.Logger) MemoryStoreOption {
	return func(ms *MemoryStore) {
		if logger != nil {
			ms.logger = logger
		}
	}
}

// WithMemoryStoreClock overrides the time source, mostly for tests.
func WithMemoryStoreClock(now func() time.Time) MemoryStoreOption {
	return func(ms *MemoryStore) {
		if now != nil {
			ms.now = now
		}
	}
}

// NewMemoryStore creates a new in-memory store.
// Call Start() to begin background cleanup.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	ms := &MemoryStore{
		counters:        make(map[string]*counter),
		cleanupInterval: 5 * time.Minute,
		shutdownTimeout: 30 * time.Second,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:             time.Now,
	}

	for _, opt := range opts {
		opt(ms)
	}

	return ms
}

// Get returns the live counter value for key.
func (ms *MemoryStore) Get(ctx context.Context, key string) (int, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	c, ok := ms.counters[key]
	if !ok || c.expired(ms.now()) {
		return 0, nil
	}
	return c.value, nil
}

// IncrementAt increments the counter for key and moves its expiry to expireAt.
func (ms *MemoryStore) IncrementAt(ctx context.Context, key string, expireAt time.Time) (int, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	c := ms.live(key, ms.now())
	c.expireAt = expireAt
	c.value++
	return c.value, nil
}

// Reserve increments all keys when every counter is below its limit.
func (ms *MemoryStore) Reserve(ctx context.Context, reservations []Reservation, expireAt time.Time) ([]int, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()
	for _, r := range reservations {
		count := 0
		if c, ok := ms.counters[r.Key]; ok && !c.expired(now) {
			count = c.value
		}
		if count >= r.Limit {
			return nil, &ExceededError{Key: r.Key, Count: count, Limit: r.Limit}
		}
	}

	counts := make([]int, len(reservations))
	for i, r := range reservations {
		c := ms.live(r.Key, now)
		c.expireAt = expireAt
		c.value++
		counts[i] = c.value
	}
	return counts, nil
}

// Decrement lowers the counter for key, clamping at zero.
func (ms *MemoryStore) Decrement(ctx context.Context, key string) (int, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	c, ok := ms.counters[key]
	if !ok || c.expired(ms.now()) {
		return 0, nil
	}
	if c.value > 0 {
		c.value--
	}
	return c.value, nil
}

// live returns a non-expired counter for key, replacing a stale one.
// Caller must hold the write lock.
func (ms *MemoryStore) live(key string, now time.Time) *counter {
	c, ok := ms.counters[key]
	if !ok || c.expired(now) {
		c = &counter{}
		ms.counters[key] = c
		ms.countersCreated.Add(1)
	}
	return c
}

// Start begins the background cleanup goroutine. This is a blocking operation
// that runs until the context is cancelled. Use Run() for errgroup pattern or call this in a goroutine.
func (ms *MemoryStore) Start(ctx context.Context) error {
	ms.mu.Lock()
	if ms.cancel != nil {
		ms.mu.Unlock()
		return fmt.Errorf("memory store already started")
	}

	if ms.cleanupInterval <= 0 {
		ms.mu.Unlock()
		return fmt.Errorf("cleanup interval must be > 0, got %v (use WithCleanupInterval to configure)", ms.cleanupInterval)
	}

	ms.ctx, ms.cancel = context.WithCancel(ctx)
	ms.mu.Unlock()

	ms.running.Store(true)
	defer ms.running.Store(false)

	ms.logger.InfoContext(ms.ctx, "memory store cleanup started",
		slog.Duration("cleanup_interval", ms.cleanupInterval))

	ticker := time.NewTicker(ms.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ms.ctx.Done():
			ms.logger.InfoContext(context.Background(), "memory store cleanup stopping")
			return ms.ctx.Err()
		case <-ticker.C:
			ms.cleanupWithWait()
		}
	}
}

// Stop gracefully shuts down the background cleanup with a timeout.
func (ms *MemoryStore) Stop() error {
	ms.mu.Lock()
	if ms.cancel == nil {
		ms.mu.Unlock()
		return fmt.Errorf("memory store not started")
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
		ms.logger.InfoContext(context.Background(), "memory store stopped cleanly")
		return nil
	case <-ctx.Done():
		ms.logger.WarnContext(context.Background(), "memory store shutdown timeout exceeded",
			slog.Duration("timeout", ms.shutdownTimeout))
		return fmt.Errorf("shutdown timeout exceeded after %s", ms.shutdownTimeout)
	}
}

// Run provides errgroup compatibility for coordinated lifecycle management.
func (ms *MemoryStore) Run(ctx context.Context) func() error {
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

func (ms *MemoryStore) cleanupWithWait() {
	ms.mu.RLock()
	if ms.cancel == nil {
		ms.mu.RUnlock()
		return
	}
	ms.wg.Add(1)
	ms.mu.RUnlock()

	defer ms.wg.Done()
	ms.removeExpired()
}

// removeExpired drops counters whose window has closed.
func (ms *MemoryStore) removeExpired() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()
	removed := 0
	for key, c := range ms.counters {
		if c.expired(now) {
			delete(ms.counters, key)
			removed++
		}
	}

	if removed > 0 {
		ms.countersRemoved.Add(int64(removed))
	}
}

// Stats returns current memory store statistics.
func (ms *MemoryStore) Stats() MemoryStoreStats {
	ms.mu.RLock()
	isRunning := ms.cancel != nil
	active := len(ms.counters)
	ms.mu.RUnlock()

	return MemoryStoreStats{
		CountersCreated: ms.countersCreated.Load(),
		CountersRemoved: ms.countersRemoved.Load(),
		ActiveCounters:  active,
		IsRunning:       isRunning,
	}
}

// Healthcheck validates that the memory store is operational.
func (ms *MemoryStore) Healthcheck(ctx context.Context) error {
	if ms.cleanupInterval > 0 && !ms.Stats().IsRunning {
		return fmt.Errorf("cleanup is configured but not running")
	}
	return nil
}
