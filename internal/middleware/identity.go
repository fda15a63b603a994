package middleware

import (
	"context"
	"strings"

	"connectrpc.com/connect"
)

// UserIDHeader carries the acting member's ID. It is trusted as given;
// authentication happens in front of this service.
const UserIDHeader = "X-User-Id"

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// UserIDKey is the context key for storing the acting member's ID.
const UserIDKey contextKey = "user_id"

// GetUserID extracts the user ID from the context.
// Returns empty string if not found.
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(UserIDKey).(string)
	return userID
}

// WithUserID returns a copy of ctx carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// Identity returns an interceptor that copies the X-User-Id header into the
// request context. Requests without the header pass through anonymously.
func Identity() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if userID := strings.TrimSpace(req.Header().Get(UserIDHeader)); userID != "" {
				ctx = WithUserID(ctx, userID)
			}
			return next(ctx, req)
		}
	}
}
