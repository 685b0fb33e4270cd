package store

import (
	"context"
	"sync"
	"time"

	"github.com/lumenpay/lumenvault/core"
	"github.com/lumenpay/lumenvault/ports"
)

// MemoryNonceStore is an in-memory implementation of the NonceStore interface.
// It only suits single-instance deployments and tests.
type MemoryNonceStore struct {
	nonces map[string]core.Nonce
	mu     sync.Mutex
}

// NewMemoryNonceStore creates a new in-memory nonce store
func NewMemoryNonceStore() *MemoryNonceStore {
	return &MemoryNonceStore{
		nonces: make(map[string]core.Nonce),
	}
}

var _ ports.NonceStore = (*MemoryNonceStore)(nil)

// Upsert stores the nonce, replacing any previous one for the same key
func (s *MemoryNonceStore) Upsert(ctx context.Context, nonce core.Nonce) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nonces[nonce.PublicKey] = nonce
	return nil
}

// Get returns the nonce stored for publicKey
func (s *MemoryNonceStore) Get(ctx context.Context, publicKey string) (core.Nonce, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonce, ok := s.nonces[publicKey]
	if !ok {
		return core.Nonce{}, core.ErrNonceNotFound
	}
	return nonce, nil
}

// Consume deletes the nonce if it still carries value
func (s *MemoryNonceStore) Consume(ctx context.Context, publicKey, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonce, ok := s.nonces[publicKey]
	if !ok || nonce.Value != value {
		return false, nil
	}
	delete(s.nonces, publicKey)
	return true, nil
}

// DeleteExpired removes nonces that expired before now
func (s *MemoryNonceStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, nonce := range s.nonces {
		if nonce.Expired(now) {
			delete(s.nonces, key)
			removed++
		}
	}
	return removed, nil
}

// MemoryUserStore is an in-memory implementation of the UserStore interface
type MemoryUserStore struct {
	users map[string]core.User
	mu    sync.Mutex
}

// NewMemoryUserStore creates a new in-memory user store
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		users: make(map[string]core.User),
	}
}

var _ ports.UserStore = (*MemoryUserStore)(nil)

// GetOrCreate returns the user for candidate.PublicKey, creating it if absent
func (s *MemoryUserStore) GetOrCreate(ctx context.Context, candidate core.User) (core.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.users[candidate.PublicKey]; ok {
		return existing, false, nil
	}
	s.users[candidate.PublicKey] = candidate
	return candidate, true, nil
}

// Len returns the number of stored users
func (s *MemoryUserStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.users)
}
