package ledger

import "errors"

var (
	ErrMalformedTransaction = errors.New("ledger: malformed transaction")
	ErrEmptyBatch           = errors.New("ledger: batch has no transfers")
	ErrInvalidSeed          = errors.New("ledger: invalid signing seed")
	ErrSigningFailed        = errors.New("ledger: signing failed")
	ErrInvalidSignature     = errors.New("ledger: invalid signature")
	ErrSubmissionFailed     = errors.New("ledger: submission failed")
	ErrExtrinsicFailed      = errors.New("ledger: extrinsic failed")
	ErrBatchInterrupted     = errors.New("ledger: batch interrupted")
	ErrTransactionRejected  = errors.New("ledger: transaction rejected")
	ErrSubscriptionClosed   = errors.New("ledger: subscription closed before a terminal status")
	ErrWatchTimeout         = errors.New("ledger: timeout")
)

// Failure is a terminal negative outcome of a submitted batch. Reason is the
// operator-facing text ("batch interrupted", "balances.InsufficientBalance",
// "unknown error", "transaction dropped", "timeout").
type Failure struct {
	Reason string
	TxHash string
	Err    error
}

func (f *Failure) Error() string {
	return f.Reason
}

func (f *Failure) Unwrap() error {
	return f.Err
}
