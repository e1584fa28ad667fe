package wsgateway

import (
	"log/slog"
	"time"
)

// Option configures a Client.
type Option func(*Client)

// WithRequestTimeout bounds calls whose context has no deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.requestTimeout = d
		}
	}
}

// WithHandshakeTimeout bounds the websocket handshake.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.dialer.HandshakeTimeout = d
		}
	}
}

// WithSubscriptionBuffer sets how many status events are buffered per batch.
func WithSubscriptionBuffer(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.subBuffer = n
		}
	}
}

// WithReconnectBackoff sets the first and the longest delay between redials
// after the connection dropped.
func WithReconnectBackoff(initial, longest time.Duration) Option {
	return func(c *Client) {
		if initial > 0 {
			c.reconnectMin = initial
		}
		if longest > 0 {
			c.reconnectMax = longest
		}
		if c.reconnectMax < c.reconnectMin {
			c.reconnectMax = c.reconnectMin
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}
