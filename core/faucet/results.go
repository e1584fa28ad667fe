package faucet

import (
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrymomot/faucet/pkg/async"
)

// Results correlates queued tasks with the futures handed out by Dispense.
// Tasks recovered from a durable queue after a restart have no entry; their
// outcome is only reported through Notifications.
type Results struct {
	mu      sync.Mutex
	pending map[uuid.UUID]async.Resolver[Receipt]
}

// NewResults creates an empty registry.
func NewResults() *Results {
	return &Results{pending: make(map[uuid.UUID]async.Resolver[Receipt])}
}

// Add registers a pending result for id.
func (r *Results) Add(id uuid.UUID) *async.Future[Receipt] {
	future, resolve := async.NewPromise[Receipt]()

	r.mu.Lock()
	r.pending[id] = resolve
	r.mu.Unlock()

	return future
}

// Resolve completes and removes the result of id. It reports whether a
// caller was waiting for it.
func (r *Results) Resolve(id uuid.UUID, receipt Receipt, err error) bool {
	r.mu.Lock()
	resolve, ok := r.pending[id]
	delete(r.pending, id)
	r.mu.Unlock()

	if !ok {
		return false
	}
	return resolve(receipt, err) == nil
}

// Drop forgets id without resolving it.
func (r *Results) Drop(id uuid.UUID) {
	r.mu.Lock()
	delete(r.pending, id)
	r.mu.Unlock()
}

// Len returns the number of unresolved results.
func (r *Results) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
