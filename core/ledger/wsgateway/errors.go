package wsgateway

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyURL          = errors.New("wsgateway: empty endpoint url")
	ErrDialFailed        = errors.New("wsgateway: dial failed")
	ErrConnectionClosed  = errors.New("wsgateway: connection closed")
	ErrNotConnected      = errors.New("wsgateway: not connected to the node")
	ErrClientClosed      = errors.New("wsgateway: client closed")
	ErrInvalidResponse   = errors.New("wsgateway: invalid response")
	ErrHealthcheckFailed = errors.New("wsgateway: healthcheck failed")
)

// RPCError is an error object returned by the node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}
