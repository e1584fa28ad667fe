package ratelimiter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Limiter counts requests per key inside calendar windows.
// Reads, increments and compensating decrements all go through the Store,
// and any store failure is wrapped in ErrLimitCheckFailed or ErrLimitUpdateFailed.
type Limiter struct {
	store  Store
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithLogger sets the logger for compensation failures.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithClock overrides the time source used to compute window expiry.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// New creates a Limiter over the given store.
func New(store Store, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, ErrStoreNil
	}

	l := &Limiter{
		store:  store,
		now:    time.Now,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Key builds the canonical "{scope}-{identity}" counter key.
func Key(scope, identity string) string {
	return scope + "-" + identity
}

// Count returns the current counter value for key.
func (l *Limiter) Count(ctx context.Context, key string) (int, error) {
	if key == "" {
		return 0, ErrEmptyKey
	}

	n, err := l.store.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrLimitCheckFailed, key, err)
	}
	return n, nil
}

// Exceeded reports whether key has used up limit.
func (l *Limiter) Exceeded(ctx context.Context, key string, limit int) (bool, error) {
	n, err := l.Count(ctx, key)
	if err != nil {
		return false, err
	}
	return n >= limit, nil
}

// Increment bumps key and refreshes its expiry for the given window.
func (l *Limiter) Increment(ctx context.Context, key string, window Window) (int, error) {
	if key == "" {
		return 0, ErrEmptyKey
	}
	if err := window.Validate(); err != nil {
		return 0, err
	}

	n, err := l.store.IncrementAt(ctx, key, window.ExpiresAt(l.now()))
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrLimitUpdateFailed, key, err)
	}
	return n, nil
}

// Reserve atomically increments every key whose counter is below its limit,
// or none of them. A refused reservation returns an *ExceededError.
func (l *Limiter) Reserve(ctx context.Context, window Window, reservations ...Reservation) ([]int, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	for _, r := range reservations {
		if r.Key == "" {
			return nil, ErrEmptyKey
		}
		if r.Limit < 0 {
			return nil, fmt.Errorf("%w: %d for %s", ErrInvalidLimit, r.Limit, r.Key)
		}
	}

	counts, err := l.store.Reserve(ctx, reservations, window.ExpiresAt(l.now()))
	if err != nil {
		if errors.Is(err, ErrRateLimitExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrLimitUpdateFailed, err)
	}
	return counts, nil
}

// Decrement undoes one increment of key. It never goes below zero.
func (l *Limiter) Decrement(ctx context.Context, key string) (int, error) {
	if key == "" {
		return 0, ErrEmptyKey
	}

	n, err := l.store.Decrement(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrLimitUpdateFailed, key, err)
	}
	return n, nil
}

// Release decrements every key, continuing past failures.
func (l *Limiter) Release(ctx context.Context, keys ...string) error {
	var errs []error
	for _, key := range keys {
		if _, err := l.Decrement(ctx, key); err != nil {
			l.logger.ErrorContext(ctx, "failed to release rate limit reservation",
				slog.String("key", key),
				slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
