package firestore

import (
	"context"
	"fmt"
	"slices"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"

	"github.com/mmynk/habitly/internal/models"
	"github.com/mmynk/habitly/internal/storage"
)

// CreateHabit writes the habit and the owner's zero streak record in one
// transaction, after checking the invite code is unused.
func (s *FirestoreStore) CreateHabit(ctx context.Context, habit *models.Habit, owner models.User) error {
	if habit.ID == "" {
		habit.ID = uuid.New().String()
	}
	if habit.CreatedAt == 0 {
		habit.CreatedAt = time.Now().Unix()
	}
	habit.OwnerID = owner.ID
	habit.ParticipantIDs = []string{owner.ID}

	return s.runTx(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		taken, err := tx.Documents(s.client.Collection(s.habits).
			Where("inviteCode", "==", habit.InviteCode).
			Limit(1)).GetAll()
		if err != nil {
			return fmt.Errorf("failed to check invite code: %w", err)
		}
		if len(taken) > 0 {
			return fmt.Errorf("%w: %s", storage.ErrInviteCodeTaken, habit.InviteCode)
		}

		if err := tx.Create(s.habitRef(habit.ID), newHabitDoc(habit)); err != nil {
			return fmt.Errorf("failed to create habit: %w", err)
		}
		rec := models.NewStreakRecord(habit.ID, owner)
		rec.Version = 1
		if err := tx.Set(s.streakRef(habit.ID, owner.ID), newStreakDoc(rec)); err != nil {
			return fmt.Errorf("failed to create streak record: %w", err)
		}
		return nil
	})
}

// GetHabit retrieves a habit by ID.
func (s *FirestoreStore) GetHabit(ctx context.Context, habitID string) (*models.Habit, error) {
	snap, err := s.habitRef(habitID).Get(ctx)
	if isNotFound(err) {
		return nil, fmt.Errorf("habit %s: %w", habitID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get habit: %w", err)
	}
	return decodeHabit(snap)
}

func decodeHabit(snap *firestore.DocumentSnapshot) (*models.Habit, error) {
	var doc habitDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode habit %s: %w", snap.Ref.ID, err)
	}
	return doc.model(snap.Ref.ID), nil
}

// GetHabitByInviteCode retrieves the habit that owns code.
func (s *FirestoreStore) GetHabitByInviteCode(ctx context.Context, code string) (*models.Habit, error) {
	snaps, err := s.client.Collection(s.habits).Where("inviteCode", "==", code).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query invite code: %w", err)
	}
	if len(snaps) == 0 {
		return nil, fmt.Errorf("habit with code %s: %w", code, storage.ErrNotFound)
	}
	return decodeHabit(snaps[0])
}

// ListHabitsForUser returns the habits userID participates in, newest first.
// Sorting happens here so the query needs no composite index.
func (s *FirestoreStore) ListHabitsForUser(ctx context.Context, userID string) ([]*models.Habit, error) {
	snaps, err := s.client.Collection(s.habits).Where("participantIds", "array-contains", userID).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list habits: %w", err)
	}

	habits := make([]*models.Habit, 0, len(snaps))
	for _, snap := range snaps {
		h, err := decodeHabit(snap)
		if err != nil {
			return nil, err
		}
		habits = append(habits, h)
	}
	slices.SortFunc(habits, func(a, b *models.Habit) int {
		if a.CreatedAt != b.CreatedAt {
			if a.CreatedAt > b.CreatedAt {
				return -1
			}
			return 1
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return habits, nil
}

// UpdateHabitDetails changes a habit's name and description.
func (s *FirestoreStore) UpdateHabitDetails(ctx context.Context, habitID, name, description string) error {
	_, err := s.habitRef(habitID).Update(ctx, []firestore.Update{
		{Path: "name", Value: name},
		{Path: "description", Value: description},
	})
	if isNotFound(err) {
		return fmt.Errorf("habit %s: %w", habitID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update habit: %w", err)
	}
	return nil
}

// AddParticipant appends user to participantIds and creates their zero
// streak record in one transaction.
func (s *FirestoreStore) AddParticipant(ctx context.Context, habitID string, user models.User) (bool, error) {
	added := false
	err := s.runTx(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		added = false
		habitRef := s.habitRef(habitID)
		snap, err := tx.Get(habitRef)
		if isNotFound(err) {
			return fmt.Errorf("habit %s: %w", habitID, storage.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to get habit: %w", err)
		}
		habit, err := decodeHabit(snap)
		if err != nil {
			return err
		}
		if habit.HasParticipant(user.ID) {
			return nil
		}

		streakRef := s.streakRef(habitID, user.ID)
		existing, err := tx.Get(streakRef)
		if err != nil && !isNotFound(err) {
			return fmt.Errorf("failed to get streak record: %w", err)
		}

		if err := tx.Update(habitRef, []firestore.Update{
			{Path: "participantIds", Value: firestore.ArrayUnion(user.ID)},
		}); err != nil {
			return fmt.Errorf("failed to add participant: %w", err)
		}
		if existing == nil || !existing.Exists() {
			rec := models.NewStreakRecord(habitID, user)
			rec.Version = 1
			if err := tx.Create(streakRef, newStreakDoc(rec)); err != nil {
				return fmt.Errorf("failed to create streak record: %w", err)
			}
		}
		added = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return added, nil
}
