package auth

import (
	"context"
	"sync"
	"time"
)

// Store persists tokens between calls.
type Store interface {
	Load(ctx context.Context, key string) (*Token, error)
	Save(ctx context.Context, key string, token *Token) error
	Delete(ctx context.Context, key string) error
}

// MemoryStore keeps tokens in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	tokens map[string]Token
	now    func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tokens: make(map[string]Token),
		now:    time.Now,
	}
}

// Load returns a copy of the cached token. Expired tokens are evicted.
func (s *MemoryStore) Load(_ context.Context, key string) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, ok := s.tokens[key]
	if !ok {
		return nil, ErrTokenNotFound
	}
	if !tok.ExpiresAt.After(s.now()) {
		delete(s.tokens, key)
		return nil, ErrTokenNotFound
	}
	return &tok, nil
}

// Save stores a copy of token under key.
func (s *MemoryStore) Save(_ context.Context, key string, token *Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[key] = *token
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tokens, key)
	return nil
}
