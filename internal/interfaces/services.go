// Package interfaces defines service contracts for the insights server
package interfaces

import (
	"context"

	"github.com/bobmcallan/vire-insights/internal/models"
)

// InsightsService runs the insights pipeline behind a read-through cache.
type InsightsService interface {
	// GetInsights serves the cached analysis for the current key, computing it on a miss
	GetInsights(ctx context.Context, userID, sessionID string, params models.AnalysisParams) (*models.InsightsResponse, error)

	// RefreshInsights always recomputes and overwrites the cache entry for the current key
	RefreshInsights(ctx context.Context, userID, sessionID string, params models.AnalysisParams) (*models.InsightsResponse, error)

	// InvalidateInsights drops the cache entry for the current key and returns the key
	InvalidateInsights(ctx context.Context, userID string, params models.AnalysisParams) (models.CacheKey, error)
}

// TraceCorrelator hands out one trace id per session until it is rotated.
type TraceCorrelator interface {
	// TraceID returns the session's trace id, creating one on first use
	TraceID(ctx context.Context, sessionID string) (string, error)

	// Rotate replaces the session's trace id and returns the new one
	Rotate(ctx context.Context, sessionID string) (string, error)
}
