// Package auth tracks which live connections hold admin rights.
//
// Rights are bound to a connection id and vanish with it; there is no token
// that survives a reconnect.
package auth

import (
	"crypto/subtle"
	"sync"

	"github.com/votecast/backend/internal/connid"
)

type Registry struct {
	secret []byte

	mu         sync.RWMutex
	authorized map[connid.ID]struct{}
}

// NewRegistry returns a registry that grants rights to callers presenting
// secret. An empty secret never matches.
func NewRegistry(secret string) *Registry {
	return &Registry{
		secret:     []byte(secret),
		authorized: make(map[connid.ID]struct{}),
	}
}

// Authorize marks id authorized when supplied equals the configured secret.
// A mismatch leaves state untouched.
func (r *Registry) Authorize(id connid.ID, supplied string) bool {
	if len(r.secret) == 0 {
		return false
	}
	if subtle.ConstantTimeCompare(r.secret, []byte(supplied)) != 1 {
		return false
	}
	r.mu.Lock()
	r.authorized[id] = struct{}{}
	r.mu.Unlock()
	return true
}

func (r *Registry) IsAuthorized(id connid.ID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.authorized[id]
	return ok
}

// Revoke drops id's rights. Unknown ids are ignored.
func (r *Registry) Revoke(id connid.ID) {
	r.mu.Lock()
	delete(r.authorized, id)
	r.mu.Unlock()
}

// Count is the number of currently authorized connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.authorized)
}
