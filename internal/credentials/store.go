// Package credentials keeps registered users and verifies their passwords.
package credentials

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/starford/jotter/internal/apperr"
	"github.com/starford/jotter/internal/models"
)

// Store is an in-memory user table indexed by username and by id.
type Store struct {
	mu     sync.RWMutex
	byName map[string]*models.User
	byID   map[models.UserID]*models.User
	lastID models.UserID

	cost      int
	dummyHash []byte
}

// NewStore creates an empty store hashing passwords with the given bcrypt cost.
func NewStore(cost int) (*Store, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	// Unknown usernames are compared against this hash so both failure
	// paths cost one bcrypt comparison.
	dummy, err := bcrypt.GenerateFromPassword(prehash("jotter-unknown-user"), cost)
	if err != nil {
		return nil, fmt.Errorf("generate dummy hash: %w", err)
	}
	return &Store{
		byName:    make(map[string]*models.User),
		byID:      make(map[models.UserID]*models.User),
		cost:      cost,
		dummyHash: dummy,
	}, nil
}

// Register creates a user and returns it. The username is trimmed before
// use and compared case-sensitively.
func (s *Store) Register(ctx context.Context, username, password string) (models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || strings.TrimSpace(password) == "" {
		return models.User{}, fmt.Errorf("username and password are required: %w", apperr.ErrInvalidInput)
	}

	if s.exists(username) {
		return models.User{}, apperr.ErrDuplicateUsername
	}
	if err := ctx.Err(); err != nil {
		return models.User{}, err
	}

	// Hashing is the slow part and runs without holding the table lock.
	hash, err := bcrypt.GenerateFromPassword(prehash(password), s.cost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another registration for the same name may have won while we hashed.
	if _, ok := s.byName[username]; ok {
		return models.User{}, apperr.ErrDuplicateUsername
	}
	s.lastID++
	u := &models.User{
		ID:           s.lastID,
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	s.byName[username] = u
	s.byID[u.ID] = u
	return *u, nil
}

// Authenticate checks a username/password pair. Unknown users and wrong
// passwords both yield apperr.ErrInvalidCredentials.
func (s *Store) Authenticate(_ context.Context, username, password string) (models.User, error) {
	username = strings.TrimSpace(username)

	s.mu.RLock()
	u, ok := s.byName[username]
	s.mu.RUnlock()

	if !ok {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, prehash(password))
		return models.User{}, apperr.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), prehash(password)); err != nil {
		return models.User{}, apperr.ErrInvalidCredentials
	}
	return *u, nil
}

// FindByID returns the user with the given id or apperr.ErrNotFound.
func (s *Store) FindByID(_ context.Context, id models.UserID) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return models.User{}, apperr.ErrNotFound
	}
	return *u, nil
}

func (s *Store) exists(username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byName[username]
	return ok
}

// prehash condenses a password of any length into 44 bytes so bcrypt's
// 72-byte input limit never truncates or rejects it.
func prehash(password string) []byte {
	sum := sha256.Sum256([]byte(password))
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum[:])
	return out
}
