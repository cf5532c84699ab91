package models

import "slices"

// Habit is a named daily activity shared by a group of participants.
type Habit struct {
	// ID is the unique identifier (UUID format), assigned by the store.
	ID string

	// Name is the display name. Required, trimmed.
	Name string

	// Description is free-form display text.
	Description string

	// OwnerID is the user who created the habit. The owner is always a participant.
	OwnerID string

	// ParticipantIDs lists every member, in join order. Each user appears once.
	ParticipantIDs []string

	// InviteCode is the six-character code others use to join. Unique and immutable.
	InviteCode string

	// CreatedAt is the Unix timestamp when the habit was created.
	CreatedAt int64
}

// HasParticipant reports whether userID is a member of the habit.
func (h *Habit) HasParticipant(userID string) bool {
	return slices.Contains(h.ParticipantIDs, userID)
}
