package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/timshannon/badgerhold/v4"

	"github.com/bobmcallan/vire-insights/internal/interfaces"
)

// KVEntry is one stored value.
type KVEntry struct {
	Key   string `badgerhold:"key"`
	Value []byte
}

var _ interfaces.KVStore = (*Store)(nil)

// Get returns the value stored under key.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	var entry KVEntry
	if err := s.db.Get(key, &entry); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get key '%s': %w", key, err)
	}
	return entry.Value, true, nil
}

// Set stores value under key, replacing any existing value.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	entry := KVEntry{Key: key, Value: value}
	if err := s.db.Upsert(key, &entry); err != nil {
		return fmt.Errorf("failed to set key '%s': %w", key, err)
	}
	return nil
}

// Delete removes key. Missing keys are not an error.
func (s *Store) Delete(_ context.Context, key string) error {
	err := s.db.Delete(key, KVEntry{})
	if err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return fmt.Errorf("failed to delete key '%s': %w", key, err)
	}
	return nil
}
