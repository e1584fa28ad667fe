package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnqueuerRepository defines the interface for task creation.
type EnqueuerRepository interface {
	// CreateTask durably stores a pending task. A nil error is the
	// acknowledgement that the task will eventually be claimed.
	CreateTask(ctx context.Context, task *Task) error

	// PendingCount returns the number of tasks in the queue not yet claimed.
	PendingCount(ctx context.Context, queue string) (int, error)
}

// Enqueuer handles task enqueueing with configurable defaults.
type Enqueuer struct {
	repo         EnqueuerRepository
	defaultQueue string
	now          func() time.Time
}

// EnqueuerOption configures an Enqueuer.
type EnqueuerOption func(*Enqueuer)

// WithDefaultQueue sets the queue used when Enqueue is called without WithQueue.
func WithDefaultQueue(name string) EnqueuerOption {
	return func(e *Enqueuer) {
		if name != "" {
			e.defaultQueue = name
		}
	}
}

// WithEnqueuerClock overrides the time source used for task timestamps.
func WithEnqueuerClock(now func() time.Time) EnqueuerOption {
	return func(e *Enqueuer) {
		if now != nil {
			e.now = now
		}
	}
}

// EnqueueOption configures a single Enqueue call.
type EnqueueOption func(*enqueueOptions)

type enqueueOptions struct {
	queue    string
	taskName string
	taskID   uuid.UUID
}

// WithQueue routes the task to the named queue.
func WithQueue(name string) EnqueueOption {
	return func(o *enqueueOptions) {
		if name != "" {
			o.queue = name
		}
	}
}

// WithTaskName overrides the name derived from the payload type.
func WithTaskName(name string) EnqueueOption {
	return func(o *enqueueOptions) {
		o.taskName = name
	}
}

// WithTaskID assigns the task ID up front so the caller can correlate
// the task before it is stored.
func WithTaskID(id uuid.UUID) EnqueueOption {
	return func(o *enqueueOptions) {
		o.taskID = id
	}
}

// NewEnqueuer creates a new Enqueuer with the given repository and options.
func NewEnqueuer(repo EnqueuerRepository, opts ...EnqueuerOption) (*Enqueuer, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	e := &Enqueuer{
		repo:         repo,
		defaultQueue: DefaultQueueName,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// NewEnqueuerFromConfig creates an Enqueuer from configuration.
// Repository must be provided. Additional options can override config values.
func NewEnqueuerFromConfig(cfg Config, repo EnqueuerRepository, opts ...EnqueuerOption) (*Enqueuer, error) {
	allOpts := append([]EnqueuerOption{WithDefaultQueue(cfg.Queue)}, opts...)
	return NewEnqueuer(repo, allOpts...)
}

// Enqueue adds a new task to the queue and returns its ID once the
// storage acknowledged it.
func (e *Enqueuer) Enqueue(ctx context.Context, payload any, opts ...EnqueueOption) (uuid.UUID, error) {
	if payload == nil {
		return uuid.Nil, ErrPayloadNil
	}

	options := &enqueueOptions{queue: e.defaultQueue}
	for _, opt := range opts {
		opt(options)
	}

	task, err := e.buildTask(payload, options)
	if err != nil {
		return uuid.Nil, err
	}

	if err := e.repo.CreateTask(ctx, task); err != nil {
		return uuid.Nil, fmt.Errorf("failed to create task %q in queue %q: %w", task.TaskName, task.Queue, err)
	}

	return task.ID, nil
}

// PendingCount returns the number of unclaimed tasks in the default queue.
func (e *Enqueuer) PendingCount(ctx context.Context) (int, error) {
	n, err := e.repo.PendingCount(ctx, e.defaultQueue)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending tasks in queue %q: %w", e.defaultQueue, err)
	}
	return n, nil
}

// buildTask marshals the payload to JSON and stamps ID and timestamps.
func (e *Enqueuer) buildTask(payload any, options *enqueueOptions) (*Task, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload of type %T: %w", payload, err)
	}

	taskName := options.taskName
	if taskName == "" {
		taskName = TaskName(payload)
	}

	id := options.taskID
	if id == uuid.Nil {
		id = uuid.New()
	}

	return &Task{
		ID:        id,
		Queue:     options.queue,
		TaskName:  taskName,
		Payload:   payloadBytes,
		Status:    TaskStatusPending,
		CreatedAt: e.now(),
	}, nil
}
