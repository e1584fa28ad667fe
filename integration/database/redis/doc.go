// Package redis provides Redis client initialization and health checking.
//
// Connect validates the redis:// or rediss:// URL, creates a go-redis client
// and retries PING with exponential backoff until the server is ready:
//
//	client, err := redis.Connect(ctx, redis.Config{
//		ConnectionURL:  "redis://localhost:6379/0",
//		RetryAttempts:  3,
//		RetryInterval:  time.Second,
//		ConnectTimeout: 30 * time.Second,
//	})
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
// The faucet shares one client between the rate limiter store and the
// disbursement queue storage.
//
// Healthcheck returns a ping function for readiness probes. Errors can be
// matched with errors.Is against ErrEmptyConnectionURL,
// ErrFailedToParseRedisConnString, ErrRedisNotReady and ErrHealthcheckFailed.
package redis
