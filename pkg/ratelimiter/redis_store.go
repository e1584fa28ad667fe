package ratelimiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrementScript bumps the counter and pins its expiry in one step,
// so a counter never exists without a TTL.
var incrementScript = redis.NewScript(`
local v = redis.call('INCR', KEYS[1])
redis.call('EXPIREAT', KEYS[1], ARGV[1])
return v
`)

// reserveScript increments every key only if all are below their limits.
// ARGV[1] is the expiry, ARGV[i+1] the limit of KEYS[i].
// On refusal it returns {-i, count} for the first saturated key.
var reserveScript = redis.NewScript(`
for i = 1, #KEYS do
  local c = tonumber(redis.call('GET', KEYS[i]) or '0')
  if c >= tonumber(ARGV[i + 1]) then
    return {-i, c}
  end
end
local out = {}
for i = 1, #KEYS do
  out[i] = redis.call('INCR', KEYS[i])
  redis.call('EXPIREAT', KEYS[i], ARGV[1])
end
return out
`)

// decrementScript never takes a counter below zero and leaves its TTL alone.
var decrementScript = redis.NewScript(`
local c = tonumber(redis.call('GET', KEYS[1]) or '0')
if c <= 0 then
  return 0
end
return redis.call('DECR', KEYS[1])
`)

// RedisStore implements Store on top of Redis string counters.
// Multi-key reservations run in a single script, so all keys of one
// reservation must live on the same node.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithKeyPrefix namespaces all counter keys.
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(rs *RedisStore) {
		rs.prefix = prefix
	}
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client redis.Cmdable, opts ...RedisStoreOption) (*RedisStore, error) {
	if client == nil {
		return nil, ErrStoreNil
	}

	rs := &RedisStore{
		client: client,
		prefix: "faucet:limit:",
	}
	for _, opt := range opts {
		opt(rs)
	}
	return rs, nil
}

// Get returns the counter value, 0 when the key is missing.
func (rs *RedisStore) Get(ctx context.Context, key string) (int, error) {
	v, err := rs.client.Get(ctx, rs.prefix+key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return v, nil
}

// IncrementAt increments key and sets its expiry atomically.
func (rs *RedisStore) IncrementAt(ctx context.Context, key string, expireAt time.Time) (int, error) {
	v, err := incrementScript.Run(ctx, rs.client, []string{rs.prefix + key}, expireAt.Unix()).Int()
	if err != nil {
		return 0, err
	}
	return v, nil
}

// Reserve increments all keys if none has reached its limit.
func (rs *RedisStore) Reserve(ctx context.Context, reservations []Reservation, expireAt time.Time) ([]int, error) {
	if len(reservations) == 0 {
		return nil, nil
	}

	keys := make([]string, len(reservations))
	args := make([]any, 0, len(reservations)+1)
	args = append(args, expireAt.Unix())
	for i, r := range reservations {
		keys[i] = rs.prefix + r.Key
		args = append(args, r.Limit)
	}

	raw, err := reserveScript.Run(ctx, rs.client, keys, args...).Int64Slice()
	if err != nil {
		return nil, err
	}

	if len(raw) == 2 && raw[0] < 0 {
		idx := int(-raw[0]) - 1
		if idx >= len(reservations) {
			return nil, fmt.Errorf("unexpected reserve reply index %d", idx)
		}
		r := reservations[idx]
		return nil, &ExceededError{Key: r.Key, Count: int(raw[1]), Limit: r.Limit}
	}

	if len(raw) != len(reservations) {
		return nil, fmt.Errorf("unexpected reserve reply length %d", len(raw))
	}

	counts := make([]int, len(raw))
	for i, v := range raw {
		counts[i] = int(v)
	}
	return counts, nil
}

// Decrement lowers the counter by one, clamped at zero.
func (rs *RedisStore) Decrement(ctx context.Context, key string) (int, error) {
	v, err := decrementScript.Run(ctx, rs.client, []string{rs.prefix + key}).Int()
	if err != nil {
		return 0, err
	}
	return v, nil
}
