package ratelimiter_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/faucet/pkg/ratelimiter"
)

// MockStore is a mock implementation of ratelimiter.Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Get(ctx context.Context, key string) (int, error) {
	args := m.Called(ctx, key)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) IncrementAt(ctx context.Context, key string, expireAt time.Time) (int, error) {
	args := m.Called(ctx, key, expireAt)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) Reserve(ctx context.Context, reservations []ratelimiter.Reservation, expireAt time.Time) ([]int, error) {
	args := m.Called(ctx, reservations, expireAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (m *MockStore) Decrement(ctx context.Context, key string) (int, error) {
	args := m.Called(ctx, key)
	return args.Int(0), args.Error(1)
}

var errStoreDown = errors.New("connection refused")

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := ratelimiter.New(nil)
	assert.ErrorIs(t, err, ratelimiter.ErrStoreNil)

	l, err := ratelimiter.New(ratelimiter.NewMemoryStore())
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestKey(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "discord-1234", ratelimiter.Key("discord", "1234"))
}

func TestLimiter_Count(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("store failure surfaces as limit check failed", func(t *testing.T) {
		t.Parallel()

		store := new(MockStore)
		defer store.AssertExpectations(t)
		store.On("Get", ctx, "api-alice").Return(0, errStoreDown)

		l, err := ratelimiter.New(store)
		require.NoError(t, err)

		_, err = l.Count(ctx, "api-alice")
		assert.ErrorIs(t, err, ratelimiter.ErrLimitCheckFailed)
		assert.ErrorIs(t, err, errStoreDown)
	})

	t.Run("empty key", func(t *testing.T) {
		t.Parallel()

		l, err := ratelimiter.New(ratelimiter.NewMemoryStore())
		require.NoError(t, err)

		_, err = l.Count(ctx, "")
		assert.ErrorIs(t, err, ratelimiter.ErrEmptyKey)
	})

	t.Run("exceeded compares against limit", func(t *testing.T) {
		t.Parallel()

		l, err := ratelimiter.New(ratelimiter.NewMemoryStore())
		require.NoError(t, err)

		window := ratelimiter.Window{Count: 1, Unit: ratelimiter.UnitDay}
		_, err = l.Increment(ctx, "k", window)
		require.NoError(t, err)

		over, err := l.Exceeded(ctx, "k", 1)
		require.NoError(t, err)
		assert.True(t, over)

		over, err = l.Exceeded(ctx, "k", 2)
		require.NoError(t, err)
		assert.False(t, over)
	})
}

func TestLimiter_Increment(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	window := ratelimiter.Window{Count: 1, Unit: ratelimiter.UnitDay}

	t.Run("passes end-of-day expiry to store", func(t *testing.T) {
		t.Parallel()

		store := new(MockStore)
		defer store.AssertExpectations(t)
		store.On("IncrementAt", ctx, "k", time.Date(2024, 5, 2, 23, 59, 59, 0, time.UTC)).Return(1, nil)

		l, err := ratelimiter.New(store, ratelimiter.WithClock(func() time.Time { return now }))
		require.NoError(t, err)

		n, err := l.Increment(ctx, "k", window)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("store failure surfaces as limit update failed", func(t *testing.T) {
		t.Parallel()

		store := new(MockStore)
		defer store.AssertExpectations(t)
		store.On("IncrementAt", ctx, "k", mock.Anything).Return(0, errStoreDown)

		l, err := ratelimiter.New(store)
		require.NoError(t, err)

		_, err = l.Increment(ctx, "k", window)
		assert.ErrorIs(t, err, ratelimiter.ErrLimitUpdateFailed)
	})

	t.Run("invalid window", func(t *testing.T) {
		t.Parallel()

		l, err := ratelimiter.New(ratelimiter.NewMemoryStore())
		require.NoError(t, err)

		_, err = l.Increment(ctx, "k", ratelimiter.Window{})
		assert.ErrorIs(t, err, ratelimiter.ErrInvalidWindow)
	})
}

func TestLimiter_Reserve(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	window := ratelimiter.Window{Count: 1, Unit: ratelimiter.UnitDay}

	t.Run("exceeded is not wrapped as update failure", func(t *testing.T) {
		t.Parallel()

		l, err := ratelimiter.New(ratelimiter.NewMemoryStore())
		require.NoError(t, err)

		res := ratelimiter.Reservation{Key: "k", Limit: 1}
		_, err = l.Reserve(ctx, window, res)
		require.NoError(t, err)

		_, err = l.Reserve(ctx, window, res)
		assert.ErrorIs(t, err, ratelimiter.ErrRateLimitExceeded)
		assert.NotErrorIs(t, err, ratelimiter.ErrLimitUpdateFailed)
	})

	t.Run("store failure", func(t *testing.T) {
		t.Parallel()

		store := new(MockStore)
		defer store.AssertExpectations(t)
		store.On("Reserve", ctx, mock.Anything, mock.Anything).Return(nil, errStoreDown)

		l, err := ratelimiter.New(store)
		require.NoError(t, err)

		_, err = l.Reserve(ctx, window, ratelimiter.Reservation{Key: "k", Limit: 1})
		assert.ErrorIs(t, err, ratelimiter.ErrLimitUpdateFailed)
		assert.ErrorIs(t, err, errStoreDown)
	})

	t.Run("rejects empty key before touching store", func(t *testing.T) {
		t.Parallel()

		store := new(MockStore)
		defer store.AssertExpectations(t)

		l, err := ratelimiter.New(store)
		require.NoError(t, err)

		_, err = l.Reserve(ctx, window, ratelimiter.Reservation{Key: "", Limit: 1})
		assert.ErrorIs(t, err, ratelimiter.ErrEmptyKey)
	})
}

func TestLimiter_Release(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("restores pre-increment value", func(t *testing.T) {
		t.Parallel()

		l, err := ratelimiter.New(ratelimiter.NewMemoryStore())
		require.NoError(t, err)

		window := ratelimiter.Window{Count: 1, Unit: ratelimiter.UnitDay}
		_, err = l.Increment(ctx, "a", window)
		require.NoError(t, err)

		_, err = l.Reserve(ctx, window,
			ratelimiter.Reservation{Key: "a", Limit: 5},
			ratelimiter.Reservation{Key: "b", Limit: 5},
		)
		require.NoError(t, err)

		require.NoError(t, l.Release(ctx, "a", "b"))

		a, err := l.Count(ctx, "a")
		require.NoError(t, err)
		b, err := l.Count(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, 1, a)
		assert.Equal(t, 0, b)
	})

	t.Run("continues past failures", func(t *testing.T) {
		t.Parallel()

		store := new(MockStore)
		defer store.AssertExpectations(t)
		store.On("Decrement", ctx, "a").Return(0, errStoreDown)
		store.On("Decrement", ctx, "b").Return(0, nil)

		l, err := ratelimiter.New(store)
		require.NoError(t, err)

		err = l.Release(ctx, "a", "b")
		assert.ErrorIs(t, err, ratelimiter.ErrLimitUpdateFailed)
	})
}
