package main

import (
	"context"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/faucet/core/config"
	"github.com/dmitrymomot/faucet/core/health"
	"github.com/dmitrymomot/faucet/core/logger"
	"github.com/dmitrymomot/faucet/core/queue"
	"github.com/dmitrymomot/faucet/integration/database/pg"
	"github.com/dmitrymomot/faucet/integration/database/redis"
	"github.com/dmitrymomot/faucet/pkg/ratelimiter"
)

// backends holds the queue storage and the limiter together with the
// background loops and connections they own.
type backends struct {
	queue   queue.Storage
	limiter *ratelimiter.Limiter
	runners []func(ctx context.Context) func() error
	checks  []health.Check
	closers []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackends(ctx context.Context, appCfg appConfig, queueCfg queue.Config, log *slog.Logger) (_ *backends, err error) {
	b := &backends{}
	defer func() {
		if err != nil {
			b.close()
		}
	}()

	var redisClient *goredis.Client
	redisConn := func() (*goredis.Client, error) {
		if redisClient != nil {
			return redisClient, nil
		}
		var cfg redis.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		client, err := redis.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		redisClient = client
		b.closers = append(b.closers, func() { _ = client.Close() })
		b.checks = append(b.checks, redis.Healthcheck(client))
		return client, nil
	}

	switch queueCfg.Backend {
	case "memory":
		storage := queue.NewMemoryStorage(
			queue.WithRetention(queueCfg.Retention),
			queue.WithMemoryStorageLogger(log.With(logger.Component("queue"))))
		b.queue = storage
		b.runners = append(b.runners, storage.Run)
		b.checks = append(b.checks, storage.Healthcheck)
	case "redis":
		client, err := redisConn()
		if err != nil {
			return nil, err
		}
		storage, err := queue.NewRedisStorage(client,
			queue.WithRedisKeyPrefix(queueCfg.KeyPrefix),
			queue.WithRedisRetention(queueCfg.Retention))
		if err != nil {
			return nil, err
		}
		b.queue = storage
		b.checks = append(b.checks, storage.Healthcheck)
	case "postgres":
		var cfg pg.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		pool, err := pg.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)
		b.checks = append(b.checks, pg.Healthcheck(pool))
		if err := pg.Migrate(ctx, pool, queue.Migrations, queue.MigrationsDir, log); err != nil {
			return nil, err
		}
		storage, err := queue.NewPostgresStorage(pool)
		if err != nil {
			return nil, err
		}
		b.queue = storage
		b.checks = append(b.checks, storage.Healthcheck)
	default:
		return nil, unknownBackend("queue", queueCfg.Backend)
	}

	var store ratelimiter.Store
	switch appCfg.LimiterBackend {
	case "memory":
		ms := ratelimiter.NewMemoryStore(
			ratelimiter.WithMemoryStoreLogger(log.With(logger.Component("ratelimiter"))))
		store = ms
		b.runners = append(b.runners, ms.Run)
		b.checks = append(b.checks, ms.Healthcheck)
	case "redis":
		client, err := redisConn()
		if err != nil {
			return nil, err
		}
		rs, err := ratelimiter.NewRedisStore(client, ratelimiter.WithKeyPrefix(appCfg.LimiterPrefix))
		if err != nil {
			return nil, err
		}
		store = rs
	default:
		return nil, unknownBackend("rate limiter", appCfg.LimiterBackend)
	}

	limiter, err := ratelimiter.New(store, ratelimiter.WithLogger(log.With(logger.Component("ratelimiter"))))
	if err != nil {
		return nil, err
	}
	b.limiter = limiter

	return b, nil
}
