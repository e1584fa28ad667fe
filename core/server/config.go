package server

import (
	"crypto/tls"
	"fmt"
	"time"
)

// Config holds the HTTP endpoint settings.
type Config struct {
	Addr string `env:"FAUCET_HTTP_ADDR" envDefault:":8080"`

	ReadTimeout     time.Duration `env:"FAUCET_HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"FAUCET_HTTP_WRITE_TIMEOUT" envDefault:"3m"`
	IdleTimeout     time.Duration `env:"FAUCET_HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"FAUCET_HTTP_SHUTDOWN_TIMEOUT" envDefault:"3m"`
	MaxHeaderBytes  int           `env:"FAUCET_HTTP_MAX_HEADER_BYTES" envDefault:"1048576"`

	// TLS is enabled when both files are set.
	TLSCertFile string `env:"FAUCET_HTTP_TLS_CERT_FILE"`
	TLSKeyFile  string `env:"FAUCET_HTTP_TLS_KEY_FILE"`
}

// NewFromConfig creates a Server from configuration.
// Options are applied after the config values and override them.
func NewFromConfig(cfg Config, opts ...Option) (*Server, error) {
	if cfg.Addr == "" {
		return nil, ErrMissingAddress
	}

	configOpts := []Option{
		WithReadTimeout(cfg.ReadTimeout),
		WithWriteTimeout(cfg.WriteTimeout),
		WithIdleTimeout(cfg.IdleTimeout),
		WithShutdownTimeout(cfg.ShutdownTimeout),
		WithMaxHeaderBytes(cfg.MaxHeaderBytes),
	}

	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadCertificate, err)
		}
		configOpts = append(configOpts, WithTLS(&tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}))
	}

	return New(cfg.Addr, append(configOpts, opts...)...), nil
}
