// Package ledgertest provides in-memory ledger.Gateway and ledger.ErrorDecoder
// implementations for tests.
package ledgertest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dmitrymomot/faucet/core/ledger"
)

// Subscription is a ledger.Subscription fed by the test.
type Subscription struct {
	ch           chan ledger.Event
	closeOnce    sync.Once
	unsubscribed atomic.Bool
}

// NewSubscription returns a subscription buffering up to size events.
func NewSubscription(size int) *Subscription {
	return &Subscription{ch: make(chan ledger.Event, size)}
}

func (s *Subscription) Events() <-chan ledger.Event { return s.ch }

// Send queues an event.
func (s *Subscription) Send(ev ledger.Event) { s.ch <- ev }

// Close ends the event stream.
func (s *Subscription) Close() { s.closeOnce.Do(func() { close(s.ch) }) }

func (s *Subscription) Unsubscribe() error {
	s.unsubscribed.Store(true)
	return nil
}

// Unsubscribed reports whether Unsubscribe was called.
func (s *Subscription) Unsubscribed() bool { return s.unsubscribed.Load() }

// Gateway records submitted batches and replays scripted events.
type Gateway struct {
	// Script returns the events streamed for a submitted batch.
	// When nil, every batch is included in a block.
	Script func(batch *ledger.SignedBatch) []ledger.Event
	// SubmitErr, when set, fails every submission.
	SubmitErr error
	// Chain is returned by ChainName.
	Chain string
	// Funds is returned by Balances.
	Funds []ledger.Balance

	mu        sync.Mutex
	submitted []*ledger.SignedBatch
	subs      []*Subscription
}

func (g *Gateway) Submit(ctx context.Context, batch *ledger.SignedBatch) (ledger.Subscription, error) {
	if g.SubmitErr != nil {
		return nil, g.SubmitErr
	}

	events := []ledger.Event{
		{Status: ledger.StatusReady, TxHash: batch.Hash},
		{Status: ledger.StatusInBlock, TxHash: batch.Hash, BlockHash: "0xblock"},
	}
	if g.Script != nil {
		events = g.Script(batch)
	}

	sub := NewSubscription(len(events))
	for _, ev := range events {
		sub.Send(ev)
	}

	g.mu.Lock()
	g.submitted = append(g.submitted, batch)
	g.subs = append(g.subs, sub)
	g.mu.Unlock()

	return sub, nil
}

func (g *Gateway) Balances(ctx context.Context, account string) ([]ledger.Balance, error) {
	return g.Funds, nil
}

func (g *Gateway) ChainName(ctx context.Context) (string, error) {
	if g.Chain == "" {
		return "testnet", nil
	}
	return g.Chain, nil
}

// Submitted returns the batches received so far.
func (g *Gateway) Submitted() []*ledger.SignedBatch {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*ledger.SignedBatch(nil), g.submitted...)
}

// Subscriptions returns the subscriptions handed out so far.
func (g *Gateway) Subscriptions() []*Subscription {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*Subscription(nil), g.subs...)
}

// Decoder resolves module errors from a static table.
type Decoder map[ledger.ModuleError][2]string

func (d Decoder) FindMetaError(ctx context.Context, e ledger.ModuleError) (string, string, error) {
	v, ok := d[e]
	if !ok {
		return "", "", fmt.Errorf("module error %d/%d not in metadata", e.Index, e.Error)
	}
	return v[0], v[1], nil
}
