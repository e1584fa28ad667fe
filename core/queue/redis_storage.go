package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStorage keeps each queue as two Redis lists of task IDs (pending and
// processing) and each task as a JSON document under its own key.
// Claiming moves the head of the pending list to the processing list with
// LMOVE, so a task is handed to at most one consumer.
type RedisStorage struct {
	client    redis.Cmdable
	prefix    string
	retention time.Duration
	now       func() time.Time
}

// RedisStorageOption configures a RedisStorage.
type RedisStorageOption func(*RedisStorage)

// WithRedisKeyPrefix sets the prefix of every key the storage writes.
func WithRedisKeyPrefix(prefix string) RedisStorageOption {
	return func(rs *RedisStorage) {
		if prefix != "" {
			rs.prefix = prefix
		}
	}
}

// WithRedisRetention sets the TTL of finished task documents.
func WithRedisRetention(d time.Duration) RedisStorageOption {
	return func(rs *RedisStorage) {
		if d > 0 {
			rs.retention = d
		}
	}
}

// WithRedisClock overrides the time source.
func WithRedisClock(now func() time.Time) RedisStorageOption {
	return func(rs *RedisStorage) {
		if now != nil {
			rs.now = now
		}
	}
}

// NewRedisStorage creates a Redis-backed queue storage.
func NewRedisStorage(client redis.Cmdable, opts ...RedisStorageOption) (*RedisStorage, error) {
	if client == nil {
		return nil, ErrRedisClientNil
	}

	rs := &RedisStorage{
		client:    client,
		prefix:    "faucet:queue:",
		retention: 24 * time.Hour,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(rs)
	}

	return rs, nil
}

func (rs *RedisStorage) pendingKey(queue string) string    { return rs.prefix + queue + ":pending" }
func (rs *RedisStorage) processingKey(queue string) string { return rs.prefix + queue + ":processing" }
func (rs *RedisStorage) taskKey(id uuid.UUID) string       { return rs.prefix + "task:" + id.String() }

// CreateTask stores the task document, then appends its ID to the pending
// list. The document is removed again if the push fails.
func (rs *RedisStorage) CreateTask(ctx context.Context, task *Task) error {
	if task == nil {
		return ErrTaskNil
	}

	stored := *task
	stored.Status = TaskStatusPending
	data, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", task.ID, err)
	}

	created, err := rs.client.SetNX(ctx, rs.taskKey(task.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("store task %s: %w", task.ID, err)
	}
	if !created {
		return fmt.Errorf("%w: %s", ErrTaskExists, task.ID)
	}

	if err := rs.client.RPush(ctx, rs.pendingKey(task.Queue), task.ID.String()).Err(); err != nil {
		_ = rs.client.Del(ctx, rs.taskKey(task.ID)).Err()
		return fmt.Errorf("push task %s: %w", task.ID, err)
	}

	return nil
}

// PendingCount returns the length of the pending list.
func (rs *RedisStorage) PendingCount(ctx context.Context, queue string) (int, error) {
	n, err := rs.client.LLen(ctx, rs.pendingKey(queue)).Result()
	if err != nil {
		return 0, fmt.Errorf("count pending tasks: %w", err)
	}
	return int(n), nil
}

// ClaimTask moves the oldest pending ID to the processing list.
func (rs *RedisStorage) ClaimTask(ctx context.Context, queue string, lockDuration time.Duration) (*Task, error) {
	raw, err := rs.client.LMove(ctx, rs.pendingKey(queue), rs.processingKey(queue), "LEFT", "RIGHT").Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoTaskToClaim
	}
	if err != nil {
		return nil, fmt.Errorf("claim task: %w", err)
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		_ = rs.client.LRem(ctx, rs.processingKey(queue), 1, raw).Err()
		return nil, fmt.Errorf("%w: invalid id %q", ErrCorruptedTask, raw)
	}

	task, err := rs.load(ctx, id)
	if err != nil {
		_ = rs.client.LRem(ctx, rs.processingKey(queue), 1, raw).Err()
		return nil, err
	}

	lockUntil := rs.now().Add(lockDuration)
	task.Status = TaskStatusProcessing
	task.LockedUntil = &lockUntil
	if err := rs.save(ctx, task, 0); err != nil {
		return nil, err
	}

	return task, nil
}

// CompleteTask marks a task as successfully completed.
func (rs *RedisStorage) CompleteTask(ctx context.Context, taskID uuid.UUID) error {
	return rs.finish(ctx, taskID, TaskStatusCompleted, nil)
}

// FailTask marks a task as failed. It is never claimed again.
func (rs *RedisStorage) FailTask(ctx context.Context, taskID uuid.UUID, errorMsg string) error {
	return rs.finish(ctx, taskID, TaskStatusFailed, &errorMsg)
}

// GetTask loads a task document.
func (rs *RedisStorage) GetTask(ctx context.Context, taskID uuid.UUID) (*Task, error) {
	return rs.load(ctx, taskID)
}

// FailExpiredTasks fails tasks on the processing list whose lock expired.
// IDs without a task document are removed from the list.
func (rs *RedisStorage) FailExpiredTasks(ctx context.Context, queue string) (int, error) {
	ids, err := rs.client.LRange(ctx, rs.processingKey(queue), 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("list processing tasks: %w", err)
	}

	now := rs.now()
	failed := 0
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			_ = rs.client.LRem(ctx, rs.processingKey(queue), 1, raw).Err()
			continue
		}

		task, err := rs.load(ctx, id)
		if errors.Is(err, ErrTaskNotFound) {
			_ = rs.client.LRem(ctx, rs.processingKey(queue), 1, raw).Err()
			continue
		}
		if err != nil {
			return failed, err
		}
		if task.LockedUntil == nil || !task.LockedUntil.Before(now) {
			continue
		}

		msg := ErrLockExpired.Error()
		if err := rs.finish(ctx, id, TaskStatusFailed, &msg); err != nil {
			if errors.Is(err, ErrTaskNotProcessing) {
				_ = rs.client.LRem(ctx, rs.processingKey(queue), 1, raw).Err()
				continue
			}
			return failed, err
		}
		failed++
	}
	return failed, nil
}

func (rs *RedisStorage) finish(ctx context.Context, taskID uuid.UUID, status TaskStatus, errorMsg *string) error {
	task, err := rs.load(ctx, taskID)
	if err != nil {
		return err
	}
	if task.Status != TaskStatusProcessing {
		return fmt.Errorf("%w: %s", ErrTaskNotProcessing, taskID)
	}

	now := rs.now()
	task.Status = status
	task.ProcessedAt = &now
	task.LockedUntil = nil
	task.Error = errorMsg

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", taskID, err)
	}

	_, err = rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, rs.taskKey(taskID), data, rs.retention)
		pipe.LRem(ctx, rs.processingKey(task.Queue), 1, taskID.String())
		return nil
	})
	if err != nil {
		return fmt.Errorf("finish task %s: %w", taskID, err)
	}
	return nil
}

func (rs *RedisStorage) load(ctx context.Context, id uuid.UUID) (*Task, error) {
	data, err := rs.client.Get(ctx, rs.taskKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load task %s: %w", id, err)
	}

	var task Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptedTask, id, err)
	}
	return &task, nil
}

func (rs *RedisStorage) save(ctx context.Context, task *Task, ttl time.Duration) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", task.ID, err)
	}
	if err := rs.client.Set(ctx, rs.taskKey(task.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("store task %s: %w", task.ID, err)
	}
	return nil
}

// Healthcheck pings the Redis server.
func (rs *RedisStorage) Healthcheck(ctx context.Context) error {
	if err := rs.client.Ping(ctx).Err(); err != nil {
		return errors.Join(ErrHealthcheckFailed, err)
	}
	return nil
}
