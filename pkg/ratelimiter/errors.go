package ratelimiter

import (
	"errors"
	"fmt"
)

// Package-level error definitions for rate limiter operations.
var (
	ErrInvalidWindow     = errors.New("invalid limit window")
	ErrInvalidLimit      = errors.New("invalid limit")
	ErrEmptyKey          = errors.New("empty rate limit key")
	ErrStoreNil          = errors.New("rate limit store is nil")
	ErrLimitCheckFailed  = errors.New("limit check failed")
	ErrLimitUpdateFailed = errors.New("limit update failed")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// ExceededError reports which key refused a reservation.
// It matches ErrRateLimitExceeded with errors.Is.
type ExceededError struct {
	Key   string
	Count int
	Limit int
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %q: %d/%d", e.Key, e.Count, e.Limit)
}

func (e *ExceededError) Unwrap() error {
	return ErrRateLimitExceeded
}
