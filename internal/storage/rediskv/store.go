// Package rediskv provides a Redis-backed KVStore so several server instances can share one cache.
package rediskv

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/bobmcallan/vire-insights/internal/common"
	"github.com/bobmcallan/vire-insights/internal/interfaces"
)

// DefaultPrefix namespaces every key written by the server.
const DefaultPrefix = "vire-insights:"

// Store implements KVStore over a Redis client. Keys are written without expiry.
type Store struct {
	client *redis.Client
	prefix string
	logger *common.Logger
}

var _ interfaces.KVStore = (*Store)(nil)

// NewStore connects to Redis and verifies the connection with PING.
func NewStore(ctx context.Context, logger *common.Logger, cfg common.RedisConfig) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Address, err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}

	logger.Debug().Str("address", cfg.Address).Int("db", cfg.DB).Str("prefix", prefix).Msg("Redis store connected")

	return &Store{client: client, prefix: prefix, logger: logger}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get key '%s': %w", key, err)
	}
	return b, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set key '%s': %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete key '%s': %w", key, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
