package models

// User is the caller identity taken from a validated access token.
// Sign-in itself happens outside this service.
type User struct {
	// ID is the identity provider's stable user identifier.
	ID string

	// DisplayName and PhotoURL are copied onto streak records for display.
	DisplayName string
	PhotoURL    string
}
