package ratelimiter_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/faucet/pkg/ratelimiter"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryStore_IncrementAt(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("creates counter lazily", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
		store := ratelimiter.NewMemoryStore(ratelimiter.WithMemoryStoreClock(clock.Now))

		n, err := store.Get(ctx, "api-alice")
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		n, err = store.IncrementAt(ctx, "api-alice", clock.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = store.IncrementAt(ctx, "api-alice", clock.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("expired counter restarts from zero", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
		store := ratelimiter.NewMemoryStore(ratelimiter.WithMemoryStoreClock(clock.Now))

		_, err := store.IncrementAt(ctx, "k", clock.Now().Add(time.Minute))
		require.NoError(t, err)

		clock.Advance(2 * time.Minute)

		n, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		n, err = store.IncrementAt(ctx, "k", clock.Now().Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestMemoryStore_Decrement(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newFakeClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	store := ratelimiter.NewMemoryStore(ratelimiter.WithMemoryStoreClock(clock.Now))

	t.Run("missing key is a no-op", func(t *testing.T) {
		n, err := store.Decrement(ctx, "missing")
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("clamps at zero", func(t *testing.T) {
		_, err := store.IncrementAt(ctx, "k", clock.Now().Add(time.Hour))
		require.NoError(t, err)

		n, err := store.Decrement(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		n, err = store.Decrement(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("keeps expiry", func(t *testing.T) {
		_, err := store.IncrementAt(ctx, "exp", clock.Now().Add(time.Minute))
		require.NoError(t, err)
		_, err = store.IncrementAt(ctx, "exp", clock.Now().Add(time.Minute))
		require.NoError(t, err)

		_, err = store.Decrement(ctx, "exp")
		require.NoError(t, err)

		clock.Advance(2 * time.Minute)
		n, err := store.Get(ctx, "exp")
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})
}

func TestMemoryStore_Reserve(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("increments all keys", func(t *testing.T) {
		t.Parallel()

		store := ratelimiter.NewMemoryStore()
		expireAt := time.Now().Add(time.Hour)

		counts, err := store.Reserve(ctx, []ratelimiter.Reservation{
			{Key: "api-alice", Limit: 2},
			{Key: "address-5Dx", Limit: 3},
		}, expireAt)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 1}, counts)
	})

	t.Run("all or nothing", func(t *testing.T) {
		t.Parallel()

		store := ratelimiter.NewMemoryStore()
		expireAt := time.Now().Add(time.Hour)

		_, err := store.IncrementAt(ctx, "address-5Dx", expireAt)
		require.NoError(t, err)

		_, err = store.Reserve(ctx, []ratelimiter.Reservation{
			{Key: "api-alice", Limit: 1},
			{Key: "address-5Dx", Limit: 1},
		}, expireAt)
		require.ErrorIs(t, err, ratelimiter.ErrRateLimitExceeded)

		var exceeded *ratelimiter.ExceededError
		require.ErrorAs(t, err, &exceeded)
		assert.Equal(t, "address-5Dx", exceeded.Key)
		assert.Equal(t, 1, exceeded.Count)

		n, err := store.Get(ctx, "api-alice")
		require.NoError(t, err)
		assert.Equal(t, 0, n, "refused reservation must not touch other keys")
	})

	t.Run("zero limit always refuses", func(t *testing.T) {
		t.Parallel()

		store := ratelimiter.NewMemoryStore()

		_, err := store.Reserve(ctx, []ratelimiter.Reservation{{Key: "k", Limit: 0}}, time.Now().Add(time.Hour))
		require.ErrorIs(t, err, ratelimiter.ErrRateLimitExceeded)

		var exceeded *ratelimiter.ExceededError
		require.ErrorAs(t, err, &exceeded)
		assert.Equal(t, 0, exceeded.Count)

		n, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestMemoryStore_Lifecycle(t *testing.T) {
	t.Parallel()

	t.Run("cleanup removes expired counters", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock(time.Now())
		store := ratelimiter.NewMemoryStore(
			ratelimiter.WithCleanupInterval(10*time.Millisecond),
			ratelimiter.WithMemoryStoreClock(clock.Now),
		)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go func() { _ = store.Start(ctx) }()
		require.Eventually(t, func() bool { return store.Stats().IsRunning }, time.Second, 5*time.Millisecond)

		_, err := store.IncrementAt(ctx, "short", clock.Now().Add(time.Minute))
		require.NoError(t, err)
		_, err = store.IncrementAt(ctx, "long", clock.Now().Add(time.Hour))
		require.NoError(t, err)

		clock.Advance(2 * time.Minute)

		require.Eventually(t, func() bool {
			return store.Stats().ActiveCounters == 1
		}, time.Second, 10*time.Millisecond)
		assert.Equal(t, int64(1), store.Stats().CountersRemoved)

		require.NoError(t, store.Stop())
	})

	t.Run("start rejects disabled cleanup", func(t *testing.T) {
		t.Parallel()

		store := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0))
		assert.Error(t, store.Start(context.Background()))
		assert.NoError(t, store.Healthcheck(context.Background()))
	})

	t.Run("healthcheck fails when cleanup is not running", func(t *testing.T) {
		t.Parallel()

		store := ratelimiter.NewMemoryStore()
		assert.Error(t, store.Healthcheck(context.Background()))
	})

	t.Run("run stops on context cancel", func(t *testing.T) {
		t.Parallel()

		store := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(10 * time.Millisecond))
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() { done <- store.Run(ctx)() }()

		require.Eventually(t, func() bool { return store.Stats().IsRunning }, time.Second, 5*time.Millisecond)
		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("run did not return after cancel")
		}
	})
}
