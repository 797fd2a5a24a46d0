// Package pending tracks exchanges that were dispatched to the core and have
// not been answered yet.
package pending

import (
	"errors"
	"sync"

	"github.com/joeydtaylor/steeze-bridge/pkg/message"
)

var (
	ErrDuplicate = errors.New("pending: id already registered")
	ErrFull      = errors.New("pending: registry at capacity")
	ErrClosed    = errors.New("pending: registry closed")
)

// Handle finishes exactly one HTTP exchange. Complete reports whether this
// call was the one that finished it.
type Handle interface {
	Complete(resp message.Response) bool
}

// Registry maps correlation ids to handles. An id present in the map is an
// exchange dispatched to the core and not yet completed.
type Registry struct {
	mu      sync.Mutex
	entries map[string]Handle
	max     int
	closed  bool
}

type Option func(*Registry)

// WithCapacity bounds the number of in-flight entries. n <= 0 means unbounded.
func WithCapacity(n int) Option { return func(r *Registry) { r.max = n } }

func New(opts ...Option) *Registry {
	r := &Registry{entries: make(map[string]Handle)}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Register inserts id. An existing id is never overwritten.
func (r *Registry) Register(id string, h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if _, ok := r.entries[id]; ok {
		return ErrDuplicate
	}
	if r.max > 0 && len(r.entries) >= r.max {
		return ErrFull
	}
	r.entries[id] = h
	return nil
}

// Resolve removes and returns the handle for id. Only one caller can ever
// receive a given handle.
func (r *Registry) Resolve(id string) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	delete(r.entries, id)
	return h, true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Drain closes the registry to new entries and hands back everything still in
// flight, keyed by id. Subsequent Drain calls return an empty map.
func (r *Registry) Drain() map[string]Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	out := r.entries
	r.entries = make(map[string]Handle)
	return out
}
