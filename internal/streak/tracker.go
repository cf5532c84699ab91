package streak

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/civil"

	"github.com/mmynk/habitly/internal/clock"
	"github.com/mmynk/habitly/internal/metrics"
	"github.com/mmynk/habitly/internal/models"
	"github.com/mmynk/habitly/internal/storage"
)

var (
	// ErrHabitNotFound is returned when the habit does not exist.
	ErrHabitNotFound = errors.New("habit not found")
	// ErrNotParticipant is returned when the caller is not a member of the habit.
	ErrNotParticipant = errors.New("not a participant of this habit")
)

// Result is the state after a check-in or undo.
type Result struct {
	Record  models.StreakRecord
	Outcome Outcome
	// Today is the date the transition was evaluated against.
	Today civil.Date
}

// Tracker applies streak transitions to stored records. Every mutation runs
// through the store's atomic update, retried on conflict.
type Tracker struct {
	store  storage.Store
	clock  clock.Clock
	policy Policy
	retry  storage.RetryPolicy
}

// NewTracker creates a Tracker. The policy decides gap tolerance; the retry
// policy bounds how often a conflicting update is re-run.
func NewTracker(store storage.Store, clk clock.Clock, policy Policy, retry storage.RetryPolicy) *Tracker {
	return &Tracker{store: store, clock: clk, policy: policy, retry: retry}
}

// Policy returns the tracker's gap policy.
func (t *Tracker) Policy() Policy {
	return t.policy
}

// Today returns the current date in the tracker's timezone.
func (t *Tracker) Today() civil.Date {
	return t.clock.Today()
}

// CheckIn marks today as completed for userID.
func (t *Tracker) CheckIn(ctx context.Context, habitID, userID string) (*Result, error) {
	today := t.clock.Today()
	return t.apply(ctx, "check_in", habitID, userID, today, func(cur models.StreakRecord) (models.StreakRecord, Outcome) {
		return CheckIn(cur, today, t.policy)
	})
}

// Undo reverses today's check-in for userID.
func (t *Tracker) Undo(ctx context.Context, habitID, userID string) (*Result, error) {
	today := t.clock.Today()
	return t.apply(ctx, "undo", habitID, userID, today, func(cur models.StreakRecord) (models.StreakRecord, Outcome) {
		return Undo(cur, today)
	})
}

// Get returns userID's record for the habit.
func (t *Tracker) Get(ctx context.Context, habitID, userID string) (*models.StreakRecord, error) {
	if err := t.requireParticipant(ctx, habitID, userID); err != nil {
		return nil, err
	}
	rec, err := t.store.GetStreakRecord(ctx, habitID, userID)
	if errors.Is(err, storage.ErrNotFound) {
		// Members always have a record; a missing one reads as never completed.
		zero := models.StreakRecord{HabitID: habitID, UserID: userID}
		return &zero, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get streak: %w", err)
	}
	return rec, nil
}

func (t *Tracker) apply(
	ctx context.Context,
	action, habitID, userID string,
	today civil.Date,
	transition func(models.StreakRecord) (models.StreakRecord, Outcome),
) (*Result, error) {
	if err := t.requireParticipant(ctx, habitID, userID); err != nil {
		return nil, err
	}

	var outcome Outcome
	policy := t.retry
	policy.OnConflict = metrics.CountConflict

	rec, err := storage.Retry(ctx, t.store, policy, habitID, userID, func(cur models.StreakRecord) (models.StreakRecord, bool) {
		next, o := transition(cur)
		outcome = o
		return next, o.Changed()
	})
	if err != nil {
		slog.Error("Streak update failed",
			"action", action,
			"habit_id", habitID,
			"user_id", userID,
			"error", err,
		)
		return nil, fmt.Errorf("%s: %w", action, err)
	}

	metrics.StreakTransitions.WithLabelValues(action, outcome.String()).Inc()
	slog.Info("Streak updated",
		"action", action,
		"habit_id", habitID,
		"user_id", userID,
		"outcome", outcome.String(),
		"current_streak", rec.CurrentStreak,
	)

	return &Result{Record: *rec, Outcome: outcome, Today: today}, nil
}

// requireParticipant rejects callers outside the habit. Membership only ever
// grows, so checking it before the atomic update cannot admit a removed member.
func (t *Tracker) requireParticipant(ctx context.Context, habitID, userID string) error {
	habit, err := t.store.GetHabit(ctx, habitID)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrHabitNotFound, habitID)
	}
	if err != nil {
		return fmt.Errorf("get habit: %w", err)
	}
	if !habit.HasParticipant(userID) {
		return ErrNotParticipant
	}
	return nil
}
