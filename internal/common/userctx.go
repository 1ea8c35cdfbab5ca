package common

import (
	"context"
	"strings"
)

// DefaultUserID is used when a request carries no user header.
const DefaultUserID = "default"

// UserContext holds per-request identity injected via X-Insights-* headers.
type UserContext struct {
	UserID    string
	SessionID string
}

type contextKey int

const userContextKey contextKey = 0

// WithUserContext stores a UserContext in the request context.
func WithUserContext(ctx context.Context, uc *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, uc)
}

// UserContextFromContext retrieves the UserContext from context, or nil if absent.
func UserContextFromContext(ctx context.Context) *UserContext {
	uc, _ := ctx.Value(userContextKey).(*UserContext)
	return uc
}

// ResolveUserID returns the UserID from context, or "default" when no user context is present.
func ResolveUserID(ctx context.Context) string {
	if uc := UserContextFromContext(ctx); uc != nil && strings.TrimSpace(uc.UserID) != "" {
		return strings.TrimSpace(uc.UserID)
	}
	return DefaultUserID
}

// ResolveSessionID returns the session id from context, falling back to the user id.
func ResolveSessionID(ctx context.Context) string {
	if uc := UserContextFromContext(ctx); uc != nil && strings.TrimSpace(uc.SessionID) != "" {
		return strings.TrimSpace(uc.SessionID)
	}
	return ResolveUserID(ctx)
}
