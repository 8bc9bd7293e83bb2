// File: internal/core/scope.go
package core

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type scopeKey struct{}

// Bind attaches a fresh scope identity to ctx. Every session acquisition
// under the returned context resolves to the same Session until the owning
// unit of work completes. Binding an already-bound context is a no-op.
func Bind(ctx context.Context) context.Context {
	if _, ok := ScopeID(ctx); ok {
		return ctx
	}
	return context.WithValue(ctx, scopeKey{}, uuid.New())
}

// ScopeID extracts the scope identity from ctx, if bound.
func ScopeID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(scopeKey{}).(uuid.UUID)
	return id, ok
}

// Registry maps scope identities to their current Session. It is owned by
// a Manager, never process-global, and holds a slot only between first
// acquisition and unit-of-work completion.
type Registry struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[uuid.UUID]*Session)}
}

// Acquire resolves the Session for ctx's scope, opening one via open on
// first use. The second return is true when this call opened the session,
// which makes the caller its owner: the owner commits or rolls back and
// releases the slot; everyone else just uses it. An unbound context gets a
// private session that never enters the registry.
func (r *Registry) Acquire(ctx context.Context, open func() (*Session, error)) (*Session, bool, error) {
	id, ok := ScopeID(ctx)
	if !ok {
		s, err := open()
		return s, true, err
	}

	r.mu.Lock()
	if s, exists := r.sessions[id]; exists {
		r.mu.Unlock()
		return s, false, nil
	}
	r.mu.Unlock()

	// Opening can block on pool acquisition, keep the registry unlocked.
	s, err := open()
	if err != nil {
		return nil, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, exists := r.sessions[id]; exists {
		// Lost a race within the same scope; contract says scopes are not
		// shared across goroutines, but do not leak if a caller does.
		go s.Close()
		return existing, false, nil
	}
	r.sessions[id] = s
	return s, true, nil
}

// Release removes the scope's slot when it still points at s. Called by
// the session owner after commit/rollback and close.
func (r *Registry) Release(ctx context.Context, s *Session) {
	id, ok := ScopeID(ctx)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[id] == s {
		delete(r.sessions, id)
	}
}

// Len reports the number of live slots.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
