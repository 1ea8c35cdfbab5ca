// Package storage selects the key-value backend and layers the insights cache on top of it.
package storage

import (
	"context"
	"fmt"

	"github.com/bobmcallan/vire-insights/internal/common"
	"github.com/bobmcallan/vire-insights/internal/interfaces"
	"github.com/bobmcallan/vire-insights/internal/storage/badger"
	"github.com/bobmcallan/vire-insights/internal/storage/memory"
	"github.com/bobmcallan/vire-insights/internal/storage/rediskv"
)

// NewKVStore creates the backend named by config.Backend.
// Supported backends: "memory" (default), "badger", "redis".
func NewKVStore(ctx context.Context, logger *common.Logger, config *common.StorageConfig) (interfaces.KVStore, error) {
	backend := config.Backend
	if backend == "" {
		backend = common.BackendMemory
	}

	switch backend {
	case common.BackendMemory:
		logger.Info().Str("backend", backend).Msg("Storage initialized")
		return memory.NewStore(), nil

	case common.BackendBadger:
		store, err := badger.NewStore(logger, config.Badger.Path)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("backend", backend).Str("path", config.Badger.Path).Msg("Storage initialized")
		return store, nil

	case common.BackendRedis:
		store, err := rediskv.NewStore(ctx, logger, config.Redis)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("backend", backend).Str("address", config.Redis.Address).Msg("Storage initialized")
		return store, nil

	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: memory, badger, redis)", backend)
	}
}
