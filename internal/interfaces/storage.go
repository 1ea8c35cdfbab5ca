// Package interfaces defines service contracts for the insights server
package interfaces

import (
	"context"

	"github.com/bobmcallan/vire-insights/internal/models"
)

// KVStore is a byte-oriented key-value backend. Entries never expire on their own.
type KVStore interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// InsightsCache stores merged analyses keyed by models.CacheKey.
type InsightsCache interface {
	// Get returns the entry for key, or found=false on a miss
	Get(ctx context.Context, key models.CacheKey) (*models.CacheEntry, bool, error)

	// Put stores entry under key, replacing any existing entry
	Put(ctx context.Context, key models.CacheKey, entry *models.CacheEntry) error

	// Invalidate removes the entry for key. Missing keys are not an error.
	Invalidate(ctx context.Context, key models.CacheKey) error
}
