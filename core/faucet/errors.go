package faucet

import (
	"errors"
	"strings"
)

// Code identifies a dispensing failure. Codes double as message template names.
type Code string

const (
	CodeUnknownStrategy        Code = "UNKNOWN_STRATEGY"
	CodeQueueSaturated         Code = "QUEUE_SATURATED"
	CodeLimitCheckFailed       Code = "LIMIT_CHECK_FAILED"
	CodeLimitExceeded          Code = "LIMIT_EXCEEDED"
	CodeMalformedTransaction   Code = "MALFORMED_TRANSACTION"
	CodeLimitUpdateFailed      Code = "LIMIT_UPDATE_FAILED"
	CodeTaskInsertFailed       Code = "TASK_INSERT_FAILED"
	CodeLedgerSubmissionFailed Code = "LEDGER_SUBMISSION_FAILED"
	CodeLedgerTimeout          Code = "LEDGER_TIMEOUT"
	CodeBatchInterrupted       Code = "BATCH_INTERRUPTED"
)

// Sentinels matching *Error values by code.
var (
	ErrUnknownStrategy        = errors.New("faucet: unknown strategy")
	ErrQueueSaturated         = errors.New("faucet: queue saturated")
	ErrLimitCheckFailed       = errors.New("faucet: limit check failed")
	ErrLimitExceeded          = errors.New("faucet: limit exceeded")
	ErrMalformedTransaction   = errors.New("faucet: malformed transaction")
	ErrLimitUpdateFailed      = errors.New("faucet: limit update failed")
	ErrTaskInsertFailed       = errors.New("faucet: task insert failed")
	ErrLedgerSubmissionFailed = errors.New("faucet: ledger submission failed")
	ErrLedgerTimeout          = errors.New("faucet: ledger timeout")
	ErrBatchInterrupted       = errors.New("faucet: batch interrupted")
)

// Configuration and construction errors.
var (
	ErrNoStrategies      = errors.New("faucet: no strategies configured")
	ErrInvalidStrategy   = errors.New("faucet: invalid strategy")
	ErrInvalidAmount     = errors.New("faucet: invalid amount")
	ErrInvalidTemplate   = errors.New("faucet: invalid message template")
	ErrQueueNil          = errors.New("faucet: task queue is nil")
	ErrLimiterNil        = errors.New("faucet: rate limiter is nil")
	ErrResultsNil        = errors.New("faucet: results registry is nil")
	ErrGatewayNil        = errors.New("faucet: ledger gateway is nil")
	ErrSignerNil         = errors.New("faucet: signer is nil")
	ErrGatewayNotWired   = errors.New("faucet: ledger gateway not configured")
	ErrStrategiesFileNil = errors.New("faucet: strategies file is empty")
)

var codeErrors = map[Code]error{
	CodeUnknownStrategy:        ErrUnknownStrategy,
	CodeQueueSaturated:         ErrQueueSaturated,
	CodeLimitCheckFailed:       ErrLimitCheckFailed,
	CodeLimitExceeded:          ErrLimitExceeded,
	CodeMalformedTransaction:   ErrMalformedTransaction,
	CodeLimitUpdateFailed:      ErrLimitUpdateFailed,
	CodeTaskInsertFailed:       ErrTaskInsertFailed,
	CodeLedgerSubmissionFailed: ErrLedgerSubmissionFailed,
	CodeLedgerTimeout:          ErrLedgerTimeout,
	CodeBatchInterrupted:       ErrBatchInterrupted,
}

// Error is a dispensing failure. It matches its code sentinel and its cause
// with errors.Is.
type Error struct {
	Code Code
	// Identity is the requester the failure is about, used by message templates.
	Identity string
	// Reason is a short description, e.g. the ledger failure "balances.InsufficientBalance".
	Reason string
	// TxHash is set for failures observed after submission.
	TxHash string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if sentinel, ok := codeErrors[e.Code]; ok {
		errs = append(errs, sentinel)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// CodeOf returns the code carried by err, or "" if err is not a faucet error.
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

func newError(code Code, identity string, err error) *Error {
	return &Error{Code: code, Identity: identity, Err: err}
}
