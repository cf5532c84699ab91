package firestore

import (
	"fmt"

	"github.com/mmynk/habitly/internal/models"
)

type habitDoc struct {
	Name           string   `firestore:"name"`
	Description    string   `firestore:"description"`
	OwnerID        string   `firestore:"ownerId"`
	ParticipantIDs []string `firestore:"participantIds"`
	InviteCode     string   `firestore:"inviteCode"`
	CreatedAt      int64    `firestore:"createdAt"`
}

func newHabitDoc(h *models.Habit) habitDoc {
	return habitDoc{
		Name:           h.Name,
		Description:    h.Description,
		OwnerID:        h.OwnerID,
		ParticipantIDs: h.ParticipantIDs,
		InviteCode:     h.InviteCode,
		CreatedAt:      h.CreatedAt,
	}
}

func (d habitDoc) model(id string) *models.Habit {
	return &models.Habit{
		ID:             id,
		Name:           d.Name,
		Description:    d.Description,
		OwnerID:        d.OwnerID,
		ParticipantIDs: d.ParticipantIDs,
		InviteCode:     d.InviteCode,
		CreatedAt:      d.CreatedAt,
	}
}

type streakDoc struct {
	HabitID       string `firestore:"habitId"`
	UserID        string `firestore:"userId"`
	CurrentStreak int    `firestore:"currentStreak"`
	// LastCheckInDate is YYYY-MM-DD, or null.
	LastCheckInDate *string `firestore:"lastCheckInDate"`
	UserName        string  `firestore:"userName"`
	UserPhotoURL    string  `firestore:"userPhotoURL"`
	Version         int64   `firestore:"version"`
}

func newStreakDoc(r models.StreakRecord) streakDoc {
	d := streakDoc{
		HabitID:       r.HabitID,
		UserID:        r.UserID,
		CurrentStreak: r.CurrentStreak,
		UserName:      r.UserName,
		UserPhotoURL:  r.UserPhotoURL,
		Version:       r.Version,
	}
	if r.HasCompletion() {
		s := models.FormatDate(r.LastCompletionDate)
		d.LastCheckInDate = &s
	}
	return d
}

func (d streakDoc) model() (models.StreakRecord, error) {
	r := models.StreakRecord{
		HabitID:       d.HabitID,
		UserID:        d.UserID,
		CurrentStreak: d.CurrentStreak,
		UserName:      d.UserName,
		UserPhotoURL:  d.UserPhotoURL,
		Version:       d.Version,
	}
	if d.LastCheckInDate != nil {
		date, err := models.ParseDate(*d.LastCheckInDate)
		if err != nil {
			return r, fmt.Errorf("bad completion date %q: %w", *d.LastCheckInDate, err)
		}
		r.LastCompletionDate = date
	}
	return r, nil
}
