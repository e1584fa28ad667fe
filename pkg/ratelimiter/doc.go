// Package ratelimiter provides windowed request counters with pluggable storage backends.
//
// Each counter is keyed by "{scope}-{identity}" (see Key) and lives until the end of the
// UTC day in which now+window falls. The expiry is written in the same atomic store
// operation as the increment, so a counter never exists without a bounded lifetime.
//
// # Core Types
//
// Limiter wraps a Store and exposes:
//   - Count(ctx, key): current value, 0 if absent or expired
//   - Increment(ctx, key, window): refresh expiry and increment
//   - Reserve(ctx, window, reservations...): increment-if-below-limit across keys, all or nothing
//   - Decrement(ctx, key) / Release(ctx, keys...): compensating rollback, clamped at zero
//
// # Usage
//
//	store := ratelimiter.NewMemoryStore()
//	limiter, err := ratelimiter.New(store)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	window, _ := ratelimiter.ParseWindow("1 day")
//	key := ratelimiter.Key("discord", userID)
//
//	if _, err := limiter.Reserve(ctx, window, ratelimiter.Reservation{Key: key, Limit: 1}); err != nil {
//		if errors.Is(err, ratelimiter.ErrRateLimitExceeded) {
//			// already dripped today
//		}
//		return err
//	}
//
//	// downstream step failed: give the allowance back
//	_ = limiter.Release(ctx, key)
//
// # Check-then-reserve
//
// A plain Count followed by Increment leaves a window in which two concurrent
// requests for the same key both pass the check. Reserve closes it: the store
// compares and increments in one step (a mutex for MemoryStore, a Lua script
// for RedisStore), so at most Limit reservations succeed per window.
//
// # Storage Backends
//
//	store := ratelimiter.NewMemoryStore()           // single instance, lost on restart
//	store, err := ratelimiter.NewRedisStore(client)  // shared across instances
//
// # Error Handling
//
//   - ErrLimitCheckFailed: reading a counter failed (store unavailable)
//   - ErrLimitUpdateFailed: incrementing or decrementing failed
//   - ErrRateLimitExceeded: a reservation was refused; the concrete error is *ExceededError
//   - ErrInvalidWindow: malformed window definition
package ratelimiter
