package middleware

import (
	"context"
	"errors"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/habitly/internal/auth"
	"github.com/mmynk/habitly/internal/metrics"
	"github.com/mmynk/habitly/internal/models"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// UserKey is the context key for storing the authenticated user.
const UserKey contextKey = "user"

// WithUser returns a context carrying user.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

// UserFromContext extracts the authenticated user from the context.
// Returns nil if not found.
func UserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(UserKey).(*models.User)
	return user
}

// GetUserID extracts the user ID from the context.
// Returns empty string if not found.
func GetUserID(ctx context.Context) string {
	if user := UserFromContext(ctx); user != nil {
		return user.ID
	}
	return ""
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", auth.ErrMissingToken
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", auth.ErrInvalidToken
	}
	return parts[1], nil
}

// RequireAuth returns an interceptor that verifies the bearer token and
// requires authentication. The caller's identity is added to the context.
func RequireAuth(verifier auth.Verifier) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			tokenString, err := BearerToken(req.Header().Get("Authorization"))
			if err != nil {
				reason := "invalid_header"
				if errors.Is(err, auth.ErrMissingToken) {
					reason = "missing_token"
				}
				metrics.AuthRejections.WithLabelValues(reason).Inc()
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			}

			user, err := verifier.Verify(ctx, tokenString)
			if err != nil {
				metrics.AuthRejections.WithLabelValues("invalid_token").Inc()
				return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrInvalidToken)
			}

			return next(WithUser(ctx, user), req)
		}
	}
}
