package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/faucet/core/queue"
)

func newRedisStorage(t *testing.T) (*queue.RedisStorage, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	rs, err := queue.NewRedisStorage(client, queue.WithRedisKeyPrefix("test:"), queue.WithRedisRetention(time.Hour))
	require.NoError(t, err)
	return rs, srv
}

func TestNewRedisStorage_NilClient(t *testing.T) {
	t.Parallel()

	_, err := queue.NewRedisStorage(nil)
	assert.ErrorIs(t, err, queue.ErrRedisClientNil)
}

func TestRedisStorage_FIFOClaim(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rs, _ := newRedisStorage(t)

	tasks := []*queue.Task{newTask("q"), newTask("q"), newTask("q")}
	for _, task := range tasks {
		require.NoError(t, rs.CreateTask(ctx, task))
	}
	assert.ErrorIs(t, rs.CreateTask(ctx, tasks[0]), queue.ErrTaskExists)

	n, err := rs.PendingCount(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for _, want := range tasks {
		got, err := rs.ClaimTask(ctx, "q", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, queue.TaskStatusProcessing, got.Status)
		assert.Equal(t, want.Payload, got.Payload)
	}

	_, err = rs.ClaimTask(ctx, "q", time.Minute)
	assert.ErrorIs(t, err, queue.ErrNoTaskToClaim)

	n, err = rs.PendingCount(ctx, "q")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisStorage_Finish(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rs, srv := newRedisStorage(t)

	ok, failed := newTask("q"), newTask("q")
	require.NoError(t, rs.CreateTask(ctx, ok))
	require.NoError(t, rs.CreateTask(ctx, failed))

	assert.ErrorIs(t, rs.CompleteTask(ctx, ok.ID), queue.ErrTaskNotProcessing)

	_, err := rs.ClaimTask(ctx, "q", time.Minute)
	require.NoError(t, err)
	_, err = rs.ClaimTask(ctx, "q", time.Minute)
	require.NoError(t, err)

	require.NoError(t, rs.CompleteTask(ctx, ok.ID))
	require.NoError(t, rs.FailTask(ctx, failed.ID, "timeout"))

	got, err := rs.GetTask(ctx, ok.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.TaskStatusCompleted, got.Status)
	assert.NotNil(t, got.ProcessedAt)

	got, err = rs.GetTask(ctx, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.TaskStatusFailed, got.Status)
	require.NotNil(t, got.Error)
	assert.Equal(t, "timeout", *got.Error)

	processing, err := srv.List("test:q:processing")
	if err == nil {
		assert.Empty(t, processing)
	}

	srv.FastForward(2 * time.Hour)
	_, err = rs.GetTask(ctx, ok.ID)
	assert.ErrorIs(t, err, queue.ErrTaskNotFound)
}

func TestRedisStorage_FailExpiredTasks(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clk := &clock{now: time.Now()}
	rs, err := queue.NewRedisStorage(client, queue.WithRedisKeyPrefix("test:"), queue.WithRedisClock(clk.Now))
	require.NoError(t, err)

	expired, live := newTask("q"), newTask("q")
	require.NoError(t, rs.CreateTask(ctx, expired))
	require.NoError(t, rs.CreateTask(ctx, live))
	_, err = rs.ClaimTask(ctx, "q", time.Minute)
	require.NoError(t, err)
	_, err = rs.ClaimTask(ctx, "q", time.Hour)
	require.NoError(t, err)

	orphan := uuid.NewString()
	_, err = srv.RPush("test:q:processing", orphan)
	require.NoError(t, err)

	clk.Advance(2 * time.Minute)

	n, err := rs.FailExpiredTasks(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := rs.GetTask(ctx, expired.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.TaskStatusFailed, got.Status)
	require.NotNil(t, got.Error)
	assert.Equal(t, queue.ErrLockExpired.Error(), *got.Error)

	processing, err := srv.List("test:q:processing")
	require.NoError(t, err)
	assert.Equal(t, []string{live.ID.String()}, processing)
}

func TestRedisStorage_Healthcheck(t *testing.T) {
	t.Parallel()

	rs, srv := newRedisStorage(t)
	assert.NoError(t, rs.Healthcheck(context.Background()))

	srv.Close()
	assert.ErrorIs(t, rs.Healthcheck(context.Background()), queue.ErrHealthcheckFailed)
}
