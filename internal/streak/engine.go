// Package streak holds the streak transition rules and the Tracker that
// applies them to stored records.
package streak

import (
	"fmt"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/mmynk/habitly/internal/models"
)

// Policy decides how large a gap between completions may be before a streak
// resets.
type Policy int

const (
	// PolicyStrict continues a streak only from yesterday's completion.
	PolicyStrict Policy = iota
	// PolicyGraceDay also continues a streak across one missed day.
	PolicyGraceDay
)

// ParsePolicy maps a config value to a Policy. The empty string is strict.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return PolicyStrict, nil
	case "grace", "grace-day", "grace_day":
		return PolicyGraceDay, nil
	default:
		return PolicyStrict, fmt.Errorf("unknown streak policy %q", s)
	}
}

func (p Policy) String() string {
	if p == PolicyGraceDay {
		return "grace"
	}
	return "strict"
}

// maxGap is the largest number of days since the last completion that still
// continues the streak.
func (p Policy) maxGap() int {
	if p == PolicyGraceDay {
		return 2
	}
	return 1
}

// Outcome reports what a transition did. AlreadyCompleted and NothingToUndo
// are benign signals, not failures.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeAlreadyCompleted
	OutcomeNothingToUndo
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAlreadyCompleted:
		return "already_completed"
	case OutcomeNothingToUndo:
		return "nothing_to_undo"
	default:
		return "success"
	}
}

// Changed reports whether the transition produced a new record.
func (o Outcome) Changed() bool {
	return o == OutcomeSuccess
}

// normalize repairs records where streak and date disagree, so that a bad row
// can never produce a streak that starts from nothing.
func normalize(r models.StreakRecord) models.StreakRecord {
	if r.CurrentStreak <= 0 || !r.HasCompletion() {
		r.CurrentStreak = 0
		r.LastCompletionDate = civil.Date{}
	}
	return r
}

// CheckIn records a completion for today.
//
// Completing twice on the same day is a no-op. A completion the day after the
// previous one (or two days after, under PolicyGraceDay) extends the streak;
// anything else starts a new streak of 1.
func CheckIn(record models.StreakRecord, today civil.Date, policy Policy) (models.StreakRecord, Outcome) {
	if record.HasCompletion() && record.LastCompletionDate == today {
		return record, OutcomeAlreadyCompleted
	}

	next := normalize(record)
	streak := 1
	if next.HasCompletion() {
		gap := today.DaysSince(next.LastCompletionDate)
		if gap >= 1 && gap <= policy.maxGap() {
			streak = next.CurrentStreak + 1
		}
	}

	next.CurrentStreak = streak
	next.LastCompletionDate = today
	return next, OutcomeSuccess
}

// Undo reverses today's check-in.
//
// Only a completion dated today can be undone. The previous completion date is
// not kept, so a remaining streak is assumed to end yesterday. Under
// PolicyGraceDay that can shorten the window for the next check-in by a day.
func Undo(record models.StreakRecord, today civil.Date) (models.StreakRecord, Outcome) {
	if !record.HasCompletion() || record.LastCompletionDate != today {
		return record, OutcomeNothingToUndo
	}

	next := record
	next.CurrentStreak = max(record.CurrentStreak-1, 0)
	if next.CurrentStreak == 0 {
		next.LastCompletionDate = civil.Date{}
	} else {
		next.LastCompletionDate = today.AddDays(-1)
	}
	return next, OutcomeSuccess
}

// CompletedToday reports whether the record's last completion is today.
func CompletedToday(record models.StreakRecord, today civil.Date) bool {
	return record.HasCompletion() && record.LastCompletionDate == today
}

// IsActive reports whether the streak can still be extended: the last
// completion is today or within the policy's gap.
func IsActive(record models.StreakRecord, today civil.Date, policy Policy) bool {
	if record.CurrentStreak <= 0 || !record.HasCompletion() {
		return false
	}
	gap := today.DaysSince(record.LastCompletionDate)
	return gap >= 0 && gap <= policy.maxGap()
}
