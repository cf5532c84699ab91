// Package membership creates habits and manages who belongs to them.
package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/mmynk/habitly/internal/metrics"
	"github.com/mmynk/habitly/internal/models"
	"github.com/mmynk/habitly/internal/storage"
)

const (
	maxNameLength        = 100
	maxDescriptionLength = 500

	// DefaultInviteAttempts bounds invite-code regeneration on collision.
	DefaultInviteAttempts = 5
)

var (
	// ErrHabitNotFound is returned when the habit does not exist.
	ErrHabitNotFound = errors.New("habit not found")
	// ErrInvalidInviteCode is returned when no habit has the given code.
	ErrInvalidInviteCode = errors.New("invalid invite code")
	// ErrNotOwner is returned when a non-owner tries to edit a habit.
	ErrNotOwner = errors.New("only the habit owner can do that")
	// ErrInvalidHabit is returned for bad names or descriptions.
	ErrInvalidHabit = errors.New("invalid habit")
	// ErrInviteCodeExhausted is returned when every generated code collided.
	ErrInviteCodeExhausted = errors.New("could not allocate a unique invite code")
)

// Service implements habit creation, invite-code resolution and joining.
type Service struct {
	store    storage.Store
	generate CodeGenerator
	attempts int
	retry    storage.RetryPolicy
}

// Option configures a Service.
type Option func(*Service)

// WithCodeGenerator replaces the random invite-code generator.
func WithCodeGenerator(g CodeGenerator) Option {
	return func(s *Service) { s.generate = g }
}

// WithInviteAttempts sets how many codes CreateHabit tries before giving up.
func WithInviteAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.attempts = n
		}
	}
}

// WithRetryPolicy bounds retries of a conflicting join.
func WithRetryPolicy(p storage.RetryPolicy) Option {
	return func(s *Service) { s.retry = p }
}

// NewService creates a membership Service on store.
func NewService(store storage.Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		generate: GenerateInviteCode,
		attempts: DefaultInviteAttempts,
		retry:    storage.DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.retry.OnConflict = metrics.CountConflict
	return s
}

// JoinResult describes a Join call.
type JoinResult struct {
	Habit *models.Habit
	// Joined is true when this call created the membership, false when the
	// user was already a participant.
	Joined bool
}

func validateDetails(name, description string) (string, string, error) {
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)
	if name == "" {
		return "", "", fmt.Errorf("%w: name is required", ErrInvalidHabit)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", "", fmt.Errorf("%w: name longer than %d characters", ErrInvalidHabit, maxNameLength)
	}
	if utf8.RuneCountInString(description) > maxDescriptionLength {
		return "", "", fmt.Errorf("%w: description longer than %d characters", ErrInvalidHabit, maxDescriptionLength)
	}
	return name, description, nil
}

// CreateHabit stores a new habit owned by owner, with owner as the first
// participant and a zero streak record for them.
func (s *Service) CreateHabit(ctx context.Context, owner models.User, name, description string) (*models.Habit, error) {
	name, description, err := validateDetails(name, description)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= s.attempts; attempt++ {
		code, err := s.generate()
		if err != nil {
			return nil, err
		}

		habit := &models.Habit{Name: name, Description: description, InviteCode: code}
		err = s.store.CreateHabit(ctx, habit, owner)
		if errors.Is(err, storage.ErrInviteCodeTaken) {
			slog.Warn("Invite code collision, regenerating", "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create habit: %w", err)
		}

		metrics.HabitsCreated.Inc()
		slog.Info("Habit created", "habit_id", habit.ID, "owner_id", owner.ID)
		return habit, nil
	}
	return nil, ErrInviteCodeExhausted
}

// GetHabit returns the habit with the given ID.
func (s *Service) GetHabit(ctx context.Context, habitID string) (*models.Habit, error) {
	habit, err := s.store.GetHabit(ctx, habitID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrHabitNotFound, habitID)
	}
	if err != nil {
		return nil, fmt.Errorf("get habit: %w", err)
	}
	return habit, nil
}

// ListHabits returns userID's habits, newest first.
func (s *Service) ListHabits(ctx context.Context, userID string) ([]*models.Habit, error) {
	habits, err := s.store.ListHabitsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	return habits, nil
}

// UpdateHabit changes the name and description. Only the owner may edit;
// the invite code and participants never change here.
func (s *Service) UpdateHabit(ctx context.Context, actorID, habitID, name, description string) (*models.Habit, error) {
	name, description, err := validateDetails(name, description)
	if err != nil {
		return nil, err
	}

	habit, err := s.GetHabit(ctx, habitID)
	if err != nil {
		return nil, err
	}
	if habit.OwnerID != actorID {
		return nil, ErrNotOwner
	}

	if err := s.store.UpdateHabitDetails(ctx, habitID, name, description); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrHabitNotFound, habitID)
		}
		return nil, fmt.Errorf("update habit: %w", err)
	}

	habit.Name = name
	habit.Description = description
	return habit, nil
}

// ResolveInviteCode maps a code to its habit.
func (s *Service) ResolveInviteCode(ctx context.Context, code string) (*models.Habit, error) {
	code = NormalizeInviteCode(code)
	if !ValidInviteCode(code) {
		return nil, ErrInvalidInviteCode
	}

	habit, err := s.store.GetHabitByInviteCode(ctx, code)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrInvalidInviteCode
	}
	if err != nil {
		return nil, fmt.Errorf("resolve invite code: %w", err)
	}
	return habit, nil
}

// Join adds user to the habit. Joining a habit one already belongs to
// succeeds without writing anything. Membership and the zero streak record
// are created together or not at all.
func (s *Service) Join(ctx context.Context, habitID string, user models.User) (*JoinResult, error) {
	habit, err := s.GetHabit(ctx, habitID)
	if err != nil {
		metrics.Joins.WithLabelValues("not_found").Inc()
		return nil, err
	}
	if habit.HasParticipant(user.ID) {
		metrics.Joins.WithLabelValues("already_member").Inc()
		return &JoinResult{Habit: habit, Joined: false}, nil
	}

	added, err := storage.RetryConflicts(ctx, s.retry, func(ctx context.Context) (bool, error) {
		return s.store.AddParticipant(ctx, habitID, user)
	})
	if errors.Is(err, storage.ErrNotFound) {
		metrics.Joins.WithLabelValues("not_found").Inc()
		return nil, fmt.Errorf("%w: %s", ErrHabitNotFound, habitID)
	}
	if err != nil {
		metrics.Joins.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("join habit: %w", err)
	}

	habit.ParticipantIDs = append(habit.ParticipantIDs, user.ID)
	if added {
		metrics.Joins.WithLabelValues("joined").Inc()
		slog.Info("Participant joined", "habit_id", habitID, "user_id", user.ID)
	} else {
		// Lost a race with a concurrent join of the same user.
		metrics.Joins.WithLabelValues("already_member").Inc()
	}
	return &JoinResult{Habit: habit, Joined: added}, nil
}

// JoinByInviteCode resolves code and joins its habit.
func (s *Service) JoinByInviteCode(ctx context.Context, code string, user models.User) (*JoinResult, error) {
	habit, err := s.ResolveInviteCode(ctx, code)
	if err != nil {
		metrics.Joins.WithLabelValues("invalid_code").Inc()
		return nil, err
	}
	return s.Join(ctx, habit.ID, user)
}
