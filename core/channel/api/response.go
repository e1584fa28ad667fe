package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrymomot/faucet/core/faucet"
)

// Response is the body of every faucet endpoint reply.
// Code mirrors the HTTP status.
type Response struct {
	Code    int    `json:"code"`
	TxHash  string `json:"txHash,omitempty"`
	Message string `json:"message,omitempty"`
}

// response writes itself to w; handlers return one instead of writing directly.
type response func(w http.ResponseWriter, r *http.Request) error

func jsonResponse(v any, status int) response {
	return func(w http.ResponseWriter, r *http.Request) error {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(status)
		return json.NewEncoder(w).Encode(v)
	}
}

func textResponse(body string) response {
	return func(w http.ResponseWriter, r *http.Request) error {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte(body))
		return err
	}
}

func errorResponse(status int, message string) response {
	return jsonResponse(Response{Code: status, Message: message}, status)
}

// statusOf maps a dispense failure to an HTTP status.
func statusOf(err error) int {
	switch faucet.CodeOf(err) {
	case faucet.CodeUnknownStrategy, faucet.CodeMalformedTransaction:
		return http.StatusBadRequest
	case faucet.CodeLimitExceeded:
		return http.StatusTooManyRequests
	case faucet.CodeQueueSaturated:
		return http.StatusServiceUnavailable
	case faucet.CodeLedgerTimeout:
		return http.StatusGatewayTimeout
	}
	if errors.Is(err, faucet.ErrGatewayNotWired) {
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}
