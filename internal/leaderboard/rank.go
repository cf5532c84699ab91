// Package leaderboard orders a habit's participants by streak.
package leaderboard

import (
	"slices"
	"strings"

	"github.com/mmynk/habitly/internal/models"
)

// Entry is one row of a leaderboard.
type Entry struct {
	// Position is the competition rank: tied streaks share a position and the
	// following position is skipped (1, 2, 2, 4).
	Position int
	Record   models.StreakRecord
}

// Rank returns the records ordered by CurrentStreak descending, ties broken by
// UserID ascending. The input slice is not modified and the ordering does not
// depend on the input order.
func Rank(records []models.StreakRecord) []Entry {
	sorted := slices.Clone(records)
	slices.SortFunc(sorted, compare)

	entries := make([]Entry, len(sorted))
	for i, rec := range sorted {
		pos := i + 1
		if i > 0 && rec.CurrentStreak == sorted[i-1].CurrentStreak {
			pos = entries[i-1].Position
		}
		entries[i] = Entry{Position: pos, Record: rec}
	}
	return entries
}

func compare(a, b models.StreakRecord) int {
	if a.CurrentStreak != b.CurrentStreak {
		return b.CurrentStreak - a.CurrentStreak
	}
	return strings.Compare(a.UserID, b.UserID)
}

// Top returns at most n entries from the head of a ranking. n <= 0 returns all.
func Top(entries []Entry, n int) []Entry {
	if n <= 0 || n >= len(entries) {
		return entries
	}
	return entries[:n]
}
