// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/habitly/internal/models"
)

var (
	// ErrNotFound is returned when a habit or streak record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a concurrent writer changed a record between
	// read and write. It is transient: the whole read-modify-write may be retried.
	ErrConflict = errors.New("concurrent update conflict")

	// ErrInviteCodeTaken is returned by CreateHabit when the invite code is
	// already used by another habit.
	ErrInviteCodeTaken = errors.New("invite code already in use")
)

// TransitionFunc computes the next state of a streak record from the current
// one. Returning write == false leaves the stored record untouched. It must be
// free of side effects: it may run more than once for one update.
type TransitionFunc func(current models.StreakRecord) (next models.StreakRecord, write bool)

// Store defines the interface for habit and streak storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL,
// Firestore) without changing the service layer.
type Store interface {
	// CreateHabit persists a new habit together with the owner's membership and
	// the owner's zero streak record, in one transaction.
	// habit.ID and habit.CreatedAt are populated by the store.
	// Returns ErrInviteCodeTaken if habit.InviteCode collides.
	CreateHabit(ctx context.Context, habit *models.Habit, owner models.User) error

	// GetHabit retrieves a habit by ID, or ErrNotFound.
	GetHabit(ctx context.Context, habitID string) (*models.Habit, error)

	// GetHabitByInviteCode retrieves the habit owning the code, or ErrNotFound.
	GetHabitByInviteCode(ctx context.Context, code string) (*models.Habit, error)

	// ListHabitsForUser returns the habits userID participates in, newest first.
	ListHabitsForUser(ctx context.Context, userID string) ([]*models.Habit, error)

	// UpdateHabitDetails changes the display name and description.
	// Returns ErrNotFound if the habit does not exist.
	UpdateHabitDetails(ctx context.Context, habitID, name, description string) error

	// AddParticipant adds user to the habit and creates their zero streak
	// record, in one transaction. added is false when the user was already a
	// member, in which case nothing is written.
	// Returns ErrNotFound if the habit does not exist.
	AddParticipant(ctx context.Context, habitID string, user models.User) (added bool, err error)

	// GetStreakRecord retrieves one participant's record, or ErrNotFound.
	GetStreakRecord(ctx context.Context, habitID, userID string) (*models.StreakRecord, error)

	// ListStreakRecords returns every record of a habit in no particular order.
	ListStreakRecords(ctx context.Context, habitID string) ([]models.StreakRecord, error)

	// AtomicUpdate reads the record for (habitID, userID), passes it to fn and
	// writes the result, as one serializable unit. A missing record is passed
	// to fn as a zero record. It returns the record as stored afterwards.
	// Returns ErrConflict if another writer got in between; the caller decides
	// whether to retry (see Retry).
	AtomicUpdate(ctx context.Context, habitID, userID string, fn TransitionFunc) (*models.StreakRecord, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}
