package faucet

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/faucet/core/ledger"
	"github.com/dmitrymomot/faucet/core/logger"
	"github.com/dmitrymomot/faucet/core/queue"
)

// Disburser is the queue consumer that turns a QueuedTask into a ledger batch,
// submits it and reports the outcome. Queue consumption is serialized, so it
// holds the signer and gateway exclusively while a task runs.
type Disburser struct {
	gateway       ledger.Gateway
	decoder       ledger.ErrorDecoder
	signer        ledger.Signer
	results       *Results
	notifications *Notifications

	precision       int32
	watchTimeout    time.Duration
	waitForFinality bool
	logger          *slog.Logger
}

// DisburserOption configures a Disburser.
type DisburserOption func(*Disburser)

// WithWatchTimeout bounds the wait for a terminal ledger status.
func WithWatchTimeout(d time.Duration) DisburserOption {
	return func(db *Disburser) {
		if d > 0 {
			db.watchTimeout = d
		}
	}
}

// WithWaitForFinality waits for finalized instead of inBlock.
func WithWaitForFinality(wait bool) DisburserOption {
	return func(db *Disburser) {
		db.waitForFinality = wait
	}
}

// WithDisburserPrecision sets the decimal places used to describe amounts.
func WithDisburserPrecision(p int32) DisburserOption {
	return func(db *Disburser) {
		if p >= 0 {
			db.precision = p
		}
	}
}

// WithErrorDecoder sets the resolver for module errors.
func WithErrorDecoder(decoder ledger.ErrorDecoder) DisburserOption {
	return func(db *Disburser) {
		db.decoder = decoder
	}
}

// WithDisburserLogger sets the disburser logger.
func WithDisburserLogger(log *slog.Logger) DisburserOption {
	return func(db *Disburser) {
		if log != nil {
			db.logger = log
		}
	}
}

// NewDisburser creates the consumer. Register its Handler with a queue.Worker.
func NewDisburser(gateway ledger.Gateway, signer ledger.Signer, results *Results, notifications *Notifications, opts ...DisburserOption) (*Disburser, error) {
	if gateway == nil {
		return nil, ErrGatewayNil
	}
	if signer == nil {
		return nil, ErrSignerNil
	}
	if results == nil {
		return nil, ErrResultsNil
	}
	if notifications == nil {
		notifications = NewNotifications(nil)
	}

	db := &Disburser{
		gateway:       gateway,
		signer:        signer,
		results:       results,
		notifications: notifications,
		precision:     12,
		watchTimeout:  2 * time.Minute,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if decoder, ok := gateway.(ledger.ErrorDecoder); ok {
		db.decoder = decoder
	}
	for _, opt := range opts {
		opt(db)
	}
	return db, nil
}

// Handler returns the queue handler for QueuedTask payloads.
func (d *Disburser) Handler() queue.Handler {
	return queue.NewTaskHandler[QueuedTask](d.Disburse)
}

// Disburse runs one task to a terminal outcome. The pending future of the
// task is resolved either way; the notification fires on success only.
// The returned error marks the task failed in the queue.
func (d *Disburser) Disburse(ctx context.Context, task QueuedTask) error {
	id, _ := queue.TaskIDFromContext(ctx)
	start := time.Now()

	receipt, err := d.disburse(ctx, id, task)
	waiting := d.results.Resolve(id, receipt, err)

	if err != nil {
		d.logger.ErrorContext(ctx, "disbursement failed",
			logger.TaskID(id.String()),
			logger.TxHash(receipt.TxHash),
			logger.Elapsed(start),
			logger.Error(err))
		return err
	}

	notified := d.notifications.Notify(ctx, task.Channel, receipt.Amount, receipt.TxHash)
	d.logger.InfoContext(ctx, "disbursement finalized",
		logger.TaskID(id.String()),
		logger.TxHash(receipt.TxHash),
		logger.BlockHash(receipt.BlockHash),
		logger.Elapsed(start),
		slog.Bool("caller_waiting", waiting),
		slog.Bool("notified", notified))
	return nil
}

// TaskFailed settles the future of a task the queue failed without a
// result from Disburse: a panic, an undecodable payload or an unknown task
// name. Use it as the worker's failure hook. Futures Disburse already
// settled are left untouched.
func (d *Disburser) TaskFailed(ctx context.Context, id uuid.UUID, err error) {
	if !d.results.Resolve(id, Receipt{TaskID: id}, newError(CodeLedgerSubmissionFailed, "", err)) {
		return
	}
	d.logger.WarnContext(ctx, "disbursement aborted by the queue",
		logger.TaskID(id.String()),
		logger.Error(err))
}

func (d *Disburser) disburse(ctx context.Context, id uuid.UUID, task QueuedTask) (Receipt, error) {
	receipt := Receipt{TaskID: id}

	batch, err := ledger.NewBatch(task.Transfers)
	if err != nil {
		return receipt, newError(CodeLedgerSubmissionFailed, "", err)
	}

	signed, err := d.signer.Sign(ctx, batch)
	if err != nil {
		return receipt, newError(CodeLedgerSubmissionFailed, "", err)
	}
	receipt.TxHash = signed.Hash

	sub, err := d.gateway.Submit(ctx, signed)
	if err != nil {
		return receipt, &Error{Code: CodeLedgerSubmissionFailed, TxHash: receipt.TxHash, Err: err}
	}

	watchCtx, cancel := context.WithTimeout(ctx, d.watchTimeout)
	defer cancel()

	res, err := ledger.Watch(watchCtx, sub, d.decoder,
		ledger.WithFinality(d.waitForFinality),
		ledger.WithWatchLogger(d.logger))
	if res.TxHash != "" {
		receipt.TxHash = res.TxHash
	}
	receipt.BlockHash = res.BlockHash
	if err != nil {
		return receipt, watchError(err, receipt.TxHash)
	}

	receipt.Amount = d.describe(task.Transfers)
	return receipt, nil
}

func watchError(err error, txHash string) *Error {
	code := CodeLedgerSubmissionFailed
	switch {
	case errors.Is(err, ledger.ErrWatchTimeout):
		code = CodeLedgerTimeout
	case errors.Is(err, ledger.ErrBatchInterrupted):
		code = CodeBatchInterrupted
	}

	e := &Error{Code: code, TxHash: txHash, Err: err}
	var f *ledger.Failure
	if errors.As(err, &f) {
		e.Reason = f.Reason
	}
	return e
}

// describe renders transfers as "10 ACA, 5 AUSD".
func (d *Disburser) describe(transfers []ledger.Transfer) string {
	parts := make([]string, 0, len(transfers))
	for _, t := range transfers {
		amount := t.Amount
		if human, err := FromBaseUnits(t.Amount, d.precision); err == nil {
			amount = human.String()
		}
		parts = append(parts, amount+" "+t.Asset)
	}
	return strings.Join(parts, ", ")
}
