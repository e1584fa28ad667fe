package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/dmitrymomot/faucet/core/logger"
)

// MarkerKind classifies a record for the outcome of a batch.
type MarkerKind int

const (
	MarkerNone MarkerKind = iota
	MarkerBatchInterrupted
	MarkerExtrinsicFailed
)

// Marker is the classification of a single record.
type Marker struct {
	Kind   MarkerKind
	Module *ModuleError
}

// Failed reports whether the record signals a failed batch.
func (m Marker) Failed() bool {
	return m.Kind != MarkerNone
}

// ClassifyRecord maps a ledger event record to a failure marker.
func ClassifyRecord(r Record) Marker {
	switch {
	case r.Section == "utility" && r.Method == "BatchInterrupted":
		return Marker{Kind: MarkerBatchInterrupted}
	case r.Section == "system" && r.Method == "ExtrinsicFailed":
		m := Marker{Kind: MarkerExtrinsicFailed}
		if r.DispatchError != nil {
			m.Module = r.DispatchError.Module
		}
		return m
	default:
		return Marker{}
	}
}

// Result is the outcome of a batch included in a block.
type Result struct {
	TxHash    string
	BlockHash string
	Status    Status
}

// WatchOption configures Watch.
type WatchOption func(*watchOptions)

type watchOptions struct {
	waitForFinality bool
	logger          *slog.Logger
}

// WithFinality makes Watch wait for the finalized status instead of inBlock.
func WithFinality(wait bool) WatchOption {
	return func(o *watchOptions) {
		o.waitForFinality = wait
	}
}

// WithWatchLogger sets the logger for status transitions.
func WithWatchLogger(logger *slog.Logger) WatchOption {
	return func(o *watchOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Watch consumes status events until a terminal status and classifies the
// records collected on the way. utility.BatchInterrupted takes precedence
// over any other marker; among extrinsic failures the first one is
// reported. The subscription is always unsubscribed before returning.
// Bound the wait with the context: an expired deadline yields a *Failure
// with reason "timeout" wrapping ErrWatchTimeout.
func Watch(ctx context.Context, sub Subscription, decoder ErrorDecoder, opts ...WatchOption) (res Result, err error) {
	o := &watchOptions{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(o)
	}

	defer func() {
		if uerr := sub.Unsubscribe(); uerr != nil {
			o.logger.WarnContext(context.Background(), "failed to unsubscribe from batch status",
				logger.TxHash(res.TxHash),
				logger.Error(uerr))
		}
	}()

	var records []Record
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return res, &Failure{Reason: "timeout", TxHash: res.TxHash, Err: ErrWatchTimeout}
			}
			return res, &Failure{Reason: "cancelled", TxHash: res.TxHash, Err: fmt.Errorf("%w: %w", ErrSubmissionFailed, ctx.Err())}

		case ev, ok := <-sub.Events():
			if !ok {
				return res, &Failure{Reason: "subscription closed", TxHash: res.TxHash, Err: ErrSubscriptionClosed}
			}

			if ev.TxHash != "" {
				res.TxHash = ev.TxHash
			}
			if ev.BlockHash != "" {
				res.BlockHash = ev.BlockHash
			}
			res.Status = ev.Status
			records = append(records, ev.Records...)

			o.logger.DebugContext(ctx, "batch status",
				slog.String("status", string(ev.Status)),
				logger.TxHash(res.TxHash),
				logger.BlockHash(res.BlockHash))

			switch {
			case ev.Status.Rejected():
				return res, &Failure{
					Reason: "transaction " + string(ev.Status),
					TxHash: res.TxHash,
					Err:    ErrTransactionRejected,
				}
			case ev.Status == StatusFinalized,
				ev.Status == StatusInBlock && !o.waitForFinality:
				if f := outcome(ctx, records, decoder); f != nil {
					f.TxHash = res.TxHash
					return res, f
				}
				return res, nil
			}
		}
	}
}

// outcome returns nil when no record failed. A batch-interrupted marker
// decides the outcome wherever it appears; otherwise the first
// extrinsic failure does.
func outcome(ctx context.Context, records []Record, decoder ErrorDecoder) *Failure {
	var failed *Marker
	for _, r := range records {
		m := ClassifyRecord(r)
		switch m.Kind {
		case MarkerBatchInterrupted:
			return &Failure{Reason: "batch interrupted", Err: ErrBatchInterrupted}
		case MarkerExtrinsicFailed:
			if failed == nil {
				failed = &m
			}
		}
	}
	if failed == nil {
		return nil
	}
	return &Failure{Reason: describeModuleError(ctx, failed.Module, decoder), Err: ErrExtrinsicFailed}
}

func describeModuleError(ctx context.Context, me *ModuleError, decoder ErrorDecoder) string {
	if me == nil || decoder == nil {
		return "unknown error"
	}
	section, name, err := decoder.FindMetaError(ctx, *me)
	if err != nil || section == "" || name == "" {
		return "unknown error"
	}
	return section + "." + name
}
