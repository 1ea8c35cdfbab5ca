// Package memory provides an in-process KVStore.
package memory

import (
	"context"
	"sync"

	"github.com/bobmcallan/vire-insights/internal/interfaces"
)

// Store is a map-backed KVStore. Values are copied in and out so callers cannot alias stored bytes.
type Store struct {
	mu    sync.RWMutex
	items map[string][]byte
}

var _ interfaces.KVStore = (*Store)(nil)

// NewStore creates an empty Store
func NewStore() *Store {
	return &Store{items: map[string][]byte{}}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	v, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return clone(v), true, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	s.items[key] = clone(value)
	s.mu.Unlock()
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored keys
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store) Close() error { return nil }

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
