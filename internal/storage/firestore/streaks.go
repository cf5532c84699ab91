package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	"github.com/mmynk/habitly/internal/models"
	"github.com/mmynk/habitly/internal/storage"
)

func decodeStreak(snap *firestore.DocumentSnapshot) (models.StreakRecord, error) {
	var doc streakDoc
	if err := snap.DataTo(&doc); err != nil {
		return models.StreakRecord{}, fmt.Errorf("failed to decode streak %s: %w", snap.Ref.ID, err)
	}
	return doc.model()
}

// GetStreakRecord retrieves one participant's record.
func (s *FirestoreStore) GetStreakRecord(ctx context.Context, habitID, userID string) (*models.StreakRecord, error) {
	snap, err := s.streakRef(habitID, userID).Get(ctx)
	if isNotFound(err) {
		return nil, fmt.Errorf("streak %s/%s: %w", habitID, userID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get streak: %w", err)
	}
	rec, err := decodeStreak(snap)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListStreakRecords returns every record of the habit.
func (s *FirestoreStore) ListStreakRecords(ctx context.Context, habitID string) ([]models.StreakRecord, error) {
	snaps, err := s.client.Collection(s.streaks).Where("habitId", "==", habitID).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list streaks: %w", err)
	}
	records := make([]models.StreakRecord, 0, len(snaps))
	for _, snap := range snaps {
		rec, err := decodeStreak(snap)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// AtomicUpdate runs fn inside a Firestore transaction. Firestore aborts one of
// two transactions touching the same document; that abort is reported as
// storage.ErrConflict.
func (s *FirestoreStore) AtomicUpdate(ctx context.Context, habitID, userID string, fn storage.TransitionFunc) (*models.StreakRecord, error) {
	var result models.StreakRecord

	err := s.runTx(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref := s.streakRef(habitID, userID)
		snap, err := tx.Get(ref)

		var current models.StreakRecord
		switch {
		case isNotFound(err):
			if _, err := tx.Get(s.habitRef(habitID)); err != nil {
				if isNotFound(err) {
					return fmt.Errorf("habit %s: %w", habitID, storage.ErrNotFound)
				}
				return fmt.Errorf("failed to check habit: %w", err)
			}
			current = models.StreakRecord{HabitID: habitID, UserID: userID}
		case err != nil:
			return fmt.Errorf("failed to read streak: %w", err)
		default:
			current, err = decodeStreak(snap)
			if err != nil {
				return err
			}
		}

		next, write := fn(current)
		if !write {
			result = current
			return nil
		}
		next.HabitID, next.UserID = habitID, userID
		next.Version = current.Version + 1

		if err := tx.Set(ref, newStreakDoc(next)); err != nil {
			return fmt.Errorf("failed to write streak: %w", err)
		}
		result = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
