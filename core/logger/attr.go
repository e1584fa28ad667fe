package logger

import (
	"log/slog"
	"time"
)

// Attribute helpers return an empty Attr for empty input, so calls like
// log.Info("msg", logger.Error(err)) need no nil checks.

// ============================================================================
// Errors
// ============================================================================

// Error creates an attribute for a single error under the key "error".
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// ============================================================================
// Timing
// ============================================================================

// Duration creates an attribute for a duration.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Latency is the request-scoped variant of Duration.
func Latency(d time.Duration) slog.Attr {
	return slog.Duration("latency", d)
}

// Elapsed logs the duration since start.
func Elapsed(start time.Time) slog.Attr {
	return slog.Duration("elapsed", time.Since(start))
}

// ============================================================================
// Dispensing
// ============================================================================

// TaskID creates an attribute for queue task IDs.
func TaskID(id string) slog.Attr {
	return nonEmpty("task_id", id)
}

// TxHash creates an attribute for ledger transaction hashes.
func TxHash(hash string) slog.Attr {
	return nonEmpty("tx_hash", hash)
}

// BlockHash creates an attribute for ledger block hashes.
func BlockHash(hash string) slog.Attr {
	return nonEmpty("block_hash", hash)
}

// Identity creates an attribute for the rate limited requester.
func Identity(id string) slog.Attr {
	return nonEmpty("identity", id)
}

// Address creates an attribute for destination addresses.
func Address(addr string) slog.Attr {
	return nonEmpty("address", addr)
}

// Strategy creates an attribute for disbursement strategy names.
func Strategy(name string) slog.Attr {
	return nonEmpty("strategy", name)
}

// ============================================================================
// HTTP
// ============================================================================

// RequestID creates an attribute for HTTP request IDs.
func RequestID(id string) slog.Attr {
	return nonEmpty("request_id", id)
}

// Method creates an attribute for HTTP methods.
func Method(method string) slog.Attr {
	return slog.String("method", method)
}

// Path creates an attribute for URL paths.
func Path(path string) slog.Attr {
	return slog.String("path", path)
}

// StatusCode creates an attribute for HTTP status codes.
func StatusCode(code int) slog.Attr {
	return slog.Int("status_code", code)
}

// ClientIP creates an attribute for client IP addresses.
func ClientIP(ip string) slog.Attr {
	return nonEmpty("client_ip", ip)
}

// ============================================================================
// Generic Metadata
// ============================================================================

// Component creates an attribute for component names.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Type creates an attribute for type classification, e.g. a channel kind.
func Type(t string) slog.Attr {
	return nonEmpty("type", t)
}

// Count creates a generic counter attribute.
func Count(key string, n int) slog.Attr {
	return slog.Int(key, n)
}

// Key creates a generic key-value attribute.
func Key(key string, value any) slog.Attr {
	if value == nil {
		return slog.Attr{}
	}
	return slog.Any(key, value)
}

func nonEmpty(key, value string) slog.Attr {
	if value == "" {
		return slog.Attr{}
	}
	return slog.String(key, value)
}
