package auth

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/mmynk/habitly/internal/models"
)

// Ensure FirebaseVerifier implements Verifier
var _ Verifier = (*FirebaseVerifier)(nil)

// idTokenVerifier is the subset of the Firebase Auth client used here.
type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// FirebaseVerifier accepts Firebase Authentication ID tokens, the tokens the
// web client obtains from Google sign-in.
type FirebaseVerifier struct {
	client idTokenVerifier
}

// NewFirebaseVerifier initializes a Firebase app for projectID and returns a
// verifier backed by its Auth client.
func NewFirebaseVerifier(ctx context.Context, projectID, credentialsFile string) (*FirebaseVerifier, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting auth client: %w", err)
	}
	return &FirebaseVerifier{client: client}, nil
}

// Verify implements Verifier.
func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (*models.User, error) {
	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return userFromFirebase(token), nil
}

func userFromFirebase(token *fbauth.Token) *models.User {
	user := &models.User{ID: token.UID}
	if name, ok := token.Claims["name"].(string); ok {
		user.DisplayName = name
	}
	if picture, ok := token.Claims["picture"].(string); ok {
		user.PhotoURL = picture
	}
	return user
}
