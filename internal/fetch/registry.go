package fetch

import (
	"context"
	"sync"
)

// Registry maps logical request keys to the cancel handle of the request
// currently in flight under that key.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	cancel context.CancelCauseFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// acquire cancels any request live under key and registers a new one.
// The returned context is cancelled when the request is superseded or
// CancelAll is called. release must be called once the request settles; it
// reports whether the request was still the registered one.
func (r *Registry) acquire(parent context.Context, key string) (ctx context.Context, release func() bool, superseded bool) {
	ctx, cancel := context.WithCancelCause(parent)
	e := &entry{cancel: cancel}

	r.mu.Lock()
	if prev, ok := r.entries[key]; ok {
		prev.cancel(errSuperseded)
		superseded = true
	}
	r.entries[key] = e
	r.mu.Unlock()

	release = func() bool {
		r.mu.Lock()
		current := r.entries[key] == e
		if current {
			delete(r.entries, key)
		}
		r.mu.Unlock()
		cancel(nil)
		return current
	}

	return ctx, release, superseded
}

// Cancel cancels the request live under key, if any.
func (r *Registry) Cancel(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok {
		return false
	}
	e.cancel(ErrGatewayClosed)
	delete(r.entries, key)
	return true
}

// CancelAll cancels and clears every registered request.
func (r *Registry) CancelAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.entries)
	for key, e := range r.entries {
		e.cancel(ErrGatewayClosed)
		delete(r.entries, key)
	}
	return n
}

// Len returns the number of requests in flight.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Has reports whether a request is in flight under key.
func (r *Registry) Has(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[key]
	return ok
}
