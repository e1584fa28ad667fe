package async_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/faucet/pkg/async"
)

func TestNewPromise(t *testing.T) {
	t.Parallel()

	t.Run("resolves with value", func(t *testing.T) {
		t.Parallel()

		future, resolve := async.NewPromise[string]()
		assert.False(t, future.IsComplete())

		go func() {
			time.Sleep(10 * time.Millisecond)
			_ = resolve("0xabc", nil)
		}()

		v, err := future.Await()
		require.NoError(t, err)
		assert.Equal(t, "0xabc", v)
		assert.True(t, future.IsComplete())
	})

	t.Run("resolves with error", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("batch interrupted")
		future, resolve := async.NewPromise[int]()
		require.NoError(t, resolve(0, boom))

		_, err := future.Await()
		assert.ErrorIs(t, err, boom)
	})

	t.Run("first resolution wins", func(t *testing.T) {
		t.Parallel()

		future, resolve := async.NewPromise[int]()

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := range 10 {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if resolve(i, nil) == nil {
					wins.Add(1)
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, int32(1), wins.Load())
		assert.ErrorIs(t, resolve(99, nil), async.ErrAlreadyResolved)

		v, err := future.Await()
		require.NoError(t, err)
		assert.NotEqual(t, 99, v)
	})
}

func TestFuture_AwaitWithTimeout(t *testing.T) {
	t.Parallel()

	future, resolve := async.NewPromise[int]()

	_, err := future.AwaitWithTimeout(10 * time.Millisecond)
	assert.ErrorIs(t, err, async.ErrTimeout)

	require.NoError(t, resolve(7, nil))
	v, err := future.AwaitWithTimeout(10 * time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestFuture_AwaitContext(t *testing.T) {
	t.Parallel()

	future, _ := async.NewPromise[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := future.AwaitContext(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, future.IsComplete())
}

func TestAsync(t *testing.T) {
	t.Parallel()

	t.Run("runs function", func(t *testing.T) {
		t.Parallel()

		f := async.Async(context.Background(), 21, func(_ context.Context, n int) (int, error) {
			return n * 2, nil
		})

		select {
		case <-f.Done():
		case <-time.After(time.Second):
			t.Fatal("future did not complete")
		}

		v, err := f.Await()
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	})

	t.Run("canceled context skips work", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		var called atomic.Bool
		f := async.Async(ctx, 0, func(_ context.Context, _ int) (int, error) {
			called.Store(true)
			return 1, nil
		})

		_, err := f.Await()
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, called.Load())
	})
}

func TestResolved(t *testing.T) {
	t.Parallel()

	f := async.Resolved("done", nil)
	assert.True(t, f.IsComplete())
	v, err := f.Await()
	require.NoError(t, err)
	assert.Equal(t, "done", v)
}
