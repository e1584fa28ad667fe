package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

type (
	// Handler defines the interface for task processors.
	// All task handlers must implement Name() to identify the task type
	// and Handle() to process the task payload.
	Handler interface {
		// Name returns the task type name used for handler registration and routing.
		Name() string
		// Handle processes the task with the given payload.
		// The payload is provided as raw JSON and must be unmarshaled by the handler.
		Handle(ctx context.Context, payload json.RawMessage) error
	}

	// TaskHandlerFunc is a type-safe handler function.
	// The generic type T represents the expected payload structure.
	TaskHandlerFunc[T any] func(ctx context.Context, payload T) error
)

// NewTaskHandler creates a type-safe handler.
// The task name is derived from the payload type (e.g., "faucet.QueuedTask"),
// matching the name the Enqueuer assigns to tasks built from the same type.
func NewTaskHandler[T any](handler TaskHandlerFunc[T]) Handler {
	var payload T
	return &taskHandler[T]{
		name:    TaskName(payload),
		handler: handler,
	}
}

type taskHandler[T any] struct {
	name    string
	handler TaskHandlerFunc[T]
}

func (h *taskHandler[T]) Name() string {
	return h.name
}

func (h *taskHandler[T]) Handle(ctx context.Context, payload json.RawMessage) error {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return fmt.Errorf("decode %s payload: %w", h.name, err)
	}
	return h.handler(ctx, t)
}

// TaskName returns the routing name for a payload value: its qualified
// type name without pointer prefixes.
func TaskName(v any) string {
	return strings.TrimLeft(fmt.Sprintf("%T", v), "*")
}
