// Package sessions maps opaque session tokens to authenticated users.
package sessions

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/starford/jotter/internal/models"
)

const tokenBytes = 32

// Registry is an in-memory session table. A user may hold any number of
// sessions at once; destroying one leaves the others alone.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]models.Session)}
}

// Create issues a new token bound to userID.
func (r *Registry) Create(userID models.UserID) (string, error) {
	id, err := newToken()
	if err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = models.Session{ID: id, UserID: userID}
	return id, nil
}

// Resolve returns the user bound to id. ok is false for unknown or
// destroyed tokens.
func (r *Registry) Resolve(id string) (models.UserID, bool) {
	if id == "" {
		return 0, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return 0, false
	}
	return s.UserID, true
}

// Destroy removes id. Destroying an unknown token is not an error.
func (r *Registry) Destroy(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *Registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func newToken() (string, error) {
	var b [tokenBytes]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b[:]), nil
}
