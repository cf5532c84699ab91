package auth

import (
	"context"

	"github.com/mmynk/habitly/internal/models"
)

// Verifier turns a bearer token into the caller's identity.
// Implementations must be safe for concurrent use.
type Verifier interface {
	Verify(ctx context.Context, token string) (*models.User, error)
}
