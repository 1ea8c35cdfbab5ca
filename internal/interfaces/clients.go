// Package interfaces defines service contracts for the insights server
package interfaces

import (
	"context"

	"github.com/bobmcallan/vire-insights/internal/models"
)

// PositionSource supplies the current holdings of a user. Read-only from the pipeline's view.
type PositionSource interface {
	// ListPositions returns every position held by userID
	ListPositions(ctx context.Context, userID string) ([]models.Position, error)
}

// CompletionClient sends one structured prompt to a language model and returns its raw text.
// Implementations must carry req.TraceID to the remote side as a correlation header and must
// not interpret the returned text.
type CompletionClient interface {
	Complete(ctx context.Context, req models.CompletionRequest) (*models.CompletionResponse, error)
}
