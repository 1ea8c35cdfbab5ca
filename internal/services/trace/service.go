// Package trace hands out per-session correlation ids for narrative requests
package trace

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/google/uuid"

	"github.com/bobmcallan/vire-insights/internal/common"
	"github.com/bobmcallan/vire-insights/internal/interfaces"
)

const keyPrefix = "trace/"

// Service implements TraceCorrelator over a KVStore so ids survive restarts when the store is
// persistent.
type Service struct {
	store  interfaces.KVStore
	logger *common.Logger
	mu     sync.Mutex
}

var _ interfaces.TraceCorrelator = (*Service)(nil)

// NewService creates a new trace correlator
func NewService(store interfaces.KVStore, logger *common.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// TraceID returns the session's trace id, creating and persisting one on first use.
func (s *Service) TraceID(ctx context.Context, sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sessionKey(sessionID)
	value, found, err := s.store.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to read trace id: %w", err)
	}
	if found && len(value) > 0 {
		return string(value), nil
	}

	id := uuid.NewString()
	if err := s.store.Set(ctx, key, []byte(id)); err != nil {
		return "", fmt.Errorf("failed to store trace id: %w", err)
	}
	s.logger.Debug().Str("session_id", sessionID).Str("trace_id", id).Msg("Trace id issued")
	return id, nil
}

// Rotate replaces the session's trace id.
func (s *Service) Rotate(ctx context.Context, sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	if err := s.store.Set(ctx, sessionKey(sessionID), []byte(id)); err != nil {
		return "", fmt.Errorf("failed to store trace id: %w", err)
	}
	s.logger.Info().Str("session_id", sessionID).Str("trace_id", id).Msg("Trace id rotated")
	return id, nil
}

func sessionKey(sessionID string) string {
	if sessionID == "" {
		sessionID = common.DefaultUserID
	}
	return keyPrefix + url.PathEscape(sessionID)
}
