// Package memory provides a process-local progress store for tests and
// ephemeral runs.
package memory

import (
	"context"
	"sync"

	"github.com/MirasRuslanJR/PyShark/internal/domain/shared"
)

// Store keeps documents in a map. Safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{docs: make(map[string][]byte)}
}

// Load implements progress.Store.
func (s *Store) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[key]
	if !ok {
		return nil, shared.NewDomainError("memory", "Load", shared.ErrNotFound, "no record under "+key)
	}
	return append([]byte(nil), doc...), nil
}

// Save implements progress.Store.
func (s *Store) Save(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return shared.StorageUnavailable("memory", "Save", err)
	}

	s.mu.Lock()
	s.docs[key] = append([]byte(nil), data...)
	s.mu.Unlock()
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close drops every document.
func (s *Store) Close() error {
	s.mu.Lock()
	s.docs = make(map[string][]byte)
	s.mu.Unlock()
	return nil
}
