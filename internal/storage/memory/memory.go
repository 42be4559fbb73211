// Package memory provides a process-local snapshot store.
package memory

import (
	"context"
	"sync"

	"github.com/xenking/storefront/internal/domain/cart"
)

var _ cart.SnapshotRepository = (*Store)(nil)

// Store keeps snapshots in a map. Contents are lost on restart.
type Store struct {
	mu     sync.RWMutex
	values map[string]string
}

// New returns an empty Store.
func New() *Store {
	return &Store{values: make(map[string]string)}
}

func (s *Store) Load(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return "", cart.ErrSnapshotNotFound
	}
	return v, nil
}

func (s *Store) Save(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }
