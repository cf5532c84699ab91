package service

import (
	"cloud.google.com/go/civil"

	"github.com/mmynk/habitly/internal/leaderboard"
	"github.com/mmynk/habitly/internal/models"
	"github.com/mmynk/habitly/internal/streak"
	"github.com/mmynk/habitly/pkg/api"
)

func habitToAPI(h *models.Habit) api.Habit {
	participants := h.ParticipantIDs
	if participants == nil {
		participants = []string{}
	}
	return api.Habit{
		ID:             h.ID,
		Name:           h.Name,
		Description:    h.Description,
		OwnerID:        h.OwnerID,
		ParticipantIDs: participants,
		InviteCode:     h.InviteCode,
		CreatedAt:      h.CreatedAt,
	}
}

func streakToAPI(r models.StreakRecord, today civil.Date, policy streak.Policy) api.Streak {
	return api.Streak{
		HabitID:            r.HabitID,
		UserID:             r.UserID,
		UserName:           r.UserName,
		UserPhotoURL:       r.UserPhotoURL,
		CurrentStreak:      r.CurrentStreak,
		LastCompletionDate: models.FormatDate(r.LastCompletionDate),
		CompletedToday:     streak.CompletedToday(r, today),
		Active:             streak.IsActive(r, today, policy),
	}
}

func entriesToAPI(entries []leaderboard.Entry, today civil.Date, policy streak.Policy) []api.LeaderboardEntry {
	out := make([]api.LeaderboardEntry, len(entries))
	for i, e := range entries {
		out[i] = api.LeaderboardEntry{
			Position: e.Position,
			Streak:   streakToAPI(e.Record, today, policy),
		}
	}
	return out
}
