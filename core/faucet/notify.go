package faucet

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/faucet/core/logger"
)

// Notifier reports a completed disbursement back to the surface it came from.
type Notifier interface {
	Notify(ctx context.Context, channel Channel, amount, txHash string) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, channel Channel, amount, txHash string) error

func (f NotifierFunc) Notify(ctx context.Context, channel Channel, amount, txHash string) error {
	return f(ctx, channel, amount, txHash)
}

// Notifications maps channel kinds to notifiers. Surfaces register once at
// startup; the disburser notifies after every successful disbursement.
type Notifications struct {
	mu        sync.RWMutex
	notifiers map[string]Notifier
	logger    *slog.Logger
}

// NewNotifications creates an empty registry. A nil logger discards output.
func NewNotifications(log *slog.Logger) *Notifications {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Notifications{
		notifiers: make(map[string]Notifier),
		logger:    log,
	}
}

// Register sets the notifier of kind, replacing any previous one.
func (n *Notifications) Register(kind string, notifier Notifier) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifiers[kind] = notifier
}

// Notify invokes the notifier registered for the channel kind. It reports
// whether one was invoked; notifier errors and panics are logged only.
func (n *Notifications) Notify(ctx context.Context, channel Channel, amount, txHash string) bool {
	n.mu.RLock()
	notifier, ok := n.notifiers[channel.Kind()]
	n.mu.RUnlock()
	if !ok || notifier == nil {
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			n.logger.ErrorContext(ctx, "notifier panicked",
				logger.Type(channel.Kind()),
				logger.TxHash(txHash),
				logger.Error(fmt.Errorf("panic: %v", r)))
		}
	}()

	if err := notifier.Notify(ctx, channel, amount, txHash); err != nil {
		n.logger.WarnContext(ctx, "notifier failed",
			logger.Type(channel.Kind()),
			logger.TxHash(txHash),
			logger.Error(err))
	}
	return true
}
