package transport

import (
	"context"
	"sync"
)

// InFlightRegistry tracks running compiler invocations for explicit
// cancellation. It maps run IDs to their cancel functions and owners so
// that POST /runs/{id}/cancel can stop a run that is still in progress,
// but only on behalf of the tenant that started it.
//
// All methods are safe for concurrent access.
type InFlightRegistry struct {
	mu      sync.Mutex
	entries map[string]inFlightEntry
}

type inFlightEntry struct {
	owner  string
	cancel context.CancelFunc
}

// NewInFlightRegistry creates a new empty registry.
func NewInFlightRegistry() *InFlightRegistry {
	return &InFlightRegistry{
		entries: make(map[string]inFlightEntry),
	}
}

// Register adds an in-flight run owned by owner to the registry. An empty
// owner means the run was started without a tenant.
func (r *InFlightRegistry) Register(id, owner string, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = inFlightEntry{owner: owner, cancel: cancel}
}

// Cancel cancels an in-flight run by calling its cancel function.
// A non-empty owner may only cancel its own runs; an empty owner
// (single-tenant mode) may cancel any run. Returns false if the ID was
// not registered (already completed or never existed) or belongs to
// another owner, so callers cannot tell the two apart.
func (r *InFlightRegistry) Cancel(id, owner string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || (owner != "" && e.owner != owner) {
		return false
	}
	e.cancel()
	delete(r.entries, id)
	return true
}

// Remove removes a run from the registry without cancelling it.
func (r *InFlightRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Len returns the number of registered runs.
func (r *InFlightRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
