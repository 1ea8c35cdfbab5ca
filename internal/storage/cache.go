package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bobmcallan/vire-insights/internal/common"
	"github.com/bobmcallan/vire-insights/internal/interfaces"
	"github.com/bobmcallan/vire-insights/internal/models"
)

// InsightsCache stores CacheEntry values as JSON in a KVStore under CacheKey.String().
type InsightsCache struct {
	store  interfaces.KVStore
	logger *common.Logger
}

var _ interfaces.InsightsCache = (*InsightsCache)(nil)

// NewInsightsCache creates a cache over store
func NewInsightsCache(store interfaces.KVStore, logger *common.Logger) *InsightsCache {
	return &InsightsCache{store: store, logger: logger}
}

func (c *InsightsCache) Get(ctx context.Context, key models.CacheKey) (*models.CacheEntry, bool, error) {
	raw, found, err := c.store.Get(ctx, key.String())
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}
	if !found {
		return nil, false, nil
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		// An unreadable entry is a miss; the next successful run overwrites it.
		c.logger.Warn().Err(err).Str("cache_key", key.String()).Msg("Discarding corrupt cache entry")
		return nil, false, nil
	}
	return &entry, true, nil
}

func (c *InsightsCache) Put(ctx context.Context, key models.CacheKey, entry *models.CacheEntry) error {
	entry.Key = key.String()
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	if err := c.store.Set(ctx, key.String(), raw); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

func (c *InsightsCache) Invalidate(ctx context.Context, key models.CacheKey) error {
	if err := c.store.Delete(ctx, key.String()); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}
