package faucet

import "time"

// Config holds the dispensing settings read from the environment.
type Config struct {
	StrategiesFile  string        `env:"FAUCET_STRATEGIES_FILE" envDefault:"strategies.yaml"`
	Precision       int32         `env:"FAUCET_PRECISION" envDefault:"12"`
	MaxPending      int           `env:"FAUCET_MAX_PENDING" envDefault:"100"`
	WatchTimeout    time.Duration `env:"FAUCET_WATCH_TIMEOUT" envDefault:"2m"`
	WaitForFinality bool          `env:"FAUCET_WAIT_FOR_FINALITY" envDefault:"false"`
	// SignerSeed is the hex ed25519 seed of the faucet account.
	SignerSeed string `env:"FAUCET_SIGNER_SEED,required"`
}

// ServiceOptions returns the Service options described by cfg.
func (c Config) ServiceOptions() []ServiceOption {
	return []ServiceOption{
		WithMaxPending(c.MaxPending),
		WithPrecision(c.Precision),
	}
}

// DisburserOptions returns the Disburser options described by cfg.
func (c Config) DisburserOptions() []DisburserOption {
	return []DisburserOption{
		WithDisburserPrecision(c.Precision),
		WithWatchTimeout(c.WatchTimeout),
		WithWaitForFinality(c.WaitForFinality),
	}
}
