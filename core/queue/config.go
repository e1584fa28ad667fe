package queue

import "time"

// Config holds the configuration for the worker, the enqueuer and the
// storage backends.
type Config struct {
	// Queue is the name shared by the enqueuer and the single worker.
	Queue string `env:"QUEUE_NAME" envDefault:"faucet"`

	// Worker configuration
	PollInterval    time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"1s"`
	TaskTimeout     time.Duration `env:"QUEUE_TASK_TIMEOUT" envDefault:"5m"`
	ShutdownTimeout time.Duration `env:"QUEUE_SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Storage configuration
	Backend   string        `env:"QUEUE_BACKEND" envDefault:"memory"` // memory, redis or postgres
	Retention time.Duration `env:"QUEUE_RETENTION" envDefault:"24h"`  // how long finished tasks are kept
	KeyPrefix string        `env:"QUEUE_REDIS_PREFIX" envDefault:"faucet:queue:"`
}

// DefaultConfig returns sensible defaults for production use.
func DefaultConfig() Config {
	return Config{
		Queue:           "faucet",
		PollInterval:    time.Second,
		TaskTimeout:     5 * time.Minute,
		ShutdownTimeout: 30 * time.Second,
		Backend:         "memory",
		Retention:       24 * time.Hour,
		KeyPrefix:       "faucet:queue:",
	}
}
