package models

import "cloud.google.com/go/civil"

// StreakRecord is one participant's streak state for one habit.
// It is created with a zero streak when the user becomes a member and is
// only ever changed by a check-in or an undo.
type StreakRecord struct {
	HabitID string
	UserID  string

	// CurrentStreak is the number of consecutive completed days ending at
	// LastCompletionDate. Zero exactly when LastCompletionDate is unset.
	CurrentStreak int

	// LastCompletionDate is the most recent completed day. The zero value means
	// the participant has never completed the habit (or undid back to nothing).
	LastCompletionDate civil.Date

	// UserName and UserPhotoURL are copied from the member's profile for display.
	UserName     string
	UserPhotoURL string

	// Version is the store's optimistic concurrency token. Not part of the
	// logical state.
	Version int64
}

// NewStreakRecord returns the zero record provisioned for a new member.
func NewStreakRecord(habitID string, user User) StreakRecord {
	return StreakRecord{
		HabitID:      habitID,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		UserPhotoURL: user.PhotoURL,
	}
}

// HasCompletion reports whether LastCompletionDate is set.
func (r StreakRecord) HasCompletion() bool {
	return r.LastCompletionDate != (civil.Date{})
}

// SameState reports whether two records carry the same logical streak state.
// Display fields and the version are ignored.
func (r StreakRecord) SameState(other StreakRecord) bool {
	return r.HabitID == other.HabitID &&
		r.UserID == other.UserID &&
		r.CurrentStreak == other.CurrentStreak &&
		r.LastCompletionDate == other.LastCompletionDate
}

// FormatDate renders a completion date the way it is persisted: YYYY-MM-DD,
// or the empty string when unset.
func FormatDate(d civil.Date) string {
	if d == (civil.Date{}) {
		return ""
	}
	return d.String()
}

// ParseDate is the inverse of FormatDate.
func ParseDate(s string) (civil.Date, error) {
	if s == "" {
		return civil.Date{}, nil
	}
	return civil.ParseDate(s)
}
