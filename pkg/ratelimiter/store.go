package ratelimiter

import (
	"context"
	"time"
)

// Reservation asks for one unit of Key as long as its counter is below Limit.
type Reservation struct {
	Key   string
	Limit int
}

// Store is the counter backend used by Limiter.
// Every method must be atomic with respect to concurrent callers.
type Store interface {
	// Get returns the counter value, 0 for missing or expired keys.
	Get(ctx context.Context, key string) (int, error)

	// IncrementAt increments the counter and sets its expiry in the same atomic step.
	IncrementAt(ctx context.Context, key string, expireAt time.Time) (int, error)

	// Reserve increments every key only if all of them are below their limits.
	// Returns *ExceededError without mutating anything otherwise.
	Reserve(ctx context.Context, reservations []Reservation, expireAt time.Time) ([]int, error)

	// Decrement lowers the counter by one, never below zero, keeping its expiry.
	Decrement(ctx context.Context, key string) (int, error)
}
