package wsgateway

import "time"

// Config holds the ledger node connection settings.
type Config struct {
	URL              string        `env:"LEDGER_WS_URL" envDefault:"ws://localhost:9944"`
	RequestTimeout   time.Duration `env:"LEDGER_REQUEST_TIMEOUT" envDefault:"30s"`
	HandshakeTimeout time.Duration `env:"LEDGER_HANDSHAKE_TIMEOUT" envDefault:"10s"`
	ReconnectMin     time.Duration `env:"LEDGER_RECONNECT_MIN" envDefault:"500ms"`
	ReconnectMax     time.Duration `env:"LEDGER_RECONNECT_MAX" envDefault:"30s"`
}
