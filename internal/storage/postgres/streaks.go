package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmynk/habitly/internal/models"
	"github.com/mmynk/habitly/internal/storage"
)

const streakCols = `habit_id, user_id, current_streak, to_char(last_completion_date, 'YYYY-MM-DD'), user_name, user_photo_url, version`

func scanStreak(row pgx.Row) (*models.StreakRecord, error) {
	rec := &models.StreakRecord{}
	var last *string
	if err := row.Scan(&rec.HabitID, &rec.UserID, &rec.CurrentStreak, &last, &rec.UserName, &rec.UserPhotoURL, &rec.Version); err != nil {
		return nil, err
	}
	if last != nil {
		d, err := models.ParseDate(*last)
		if err != nil {
			return nil, fmt.Errorf("bad completion date %q: %w", *last, err)
		}
		rec.LastCompletionDate = d
	}
	return rec, nil
}

// dateArg converts a completion date to a query argument; unset is NULL.
func dateArg(rec models.StreakRecord) *string {
	if !rec.HasCompletion() {
		return nil
	}
	s := models.FormatDate(rec.LastCompletionDate)
	return &s
}

// GetStreakRecord retrieves one participant's record.
func (s *PostgresStore) GetStreakRecord(ctx context.Context, habitID, userID string) (*models.StreakRecord, error) {
	rec, err := scanStreak(s.pool.QueryRow(ctx,
		"SELECT "+streakCols+" FROM streak_records WHERE habit_id = $1 AND user_id = $2",
		habitID, userID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("streak %s/%s: %w", habitID, userID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get streak: %w", err)
	}
	return rec, nil
}

// ListStreakRecords returns every record of the habit.
func (s *PostgresStore) ListStreakRecords(ctx context.Context, habitID string) ([]models.StreakRecord, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+streakCols+" FROM streak_records WHERE habit_id = $1 ORDER BY user_id",
		habitID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list streaks: %w", err)
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.StreakRecord, error) {
		rec, err := scanStreak(row)
		if err != nil {
			return models.StreakRecord{}, err
		}
		return *rec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan streaks: %w", err)
	}
	return records, nil
}

// AtomicUpdate locks the record, runs fn and writes the result inside a
// SERIALIZABLE transaction. Serialization failures surface as
// storage.ErrConflict.
func (s *PostgresStore) AtomicUpdate(ctx context.Context, habitID, userID string, fn storage.TransitionFunc) (*models.StreakRecord, error) {
	var result *models.StreakRecord

	err := s.inTx(ctx, pgx.Serializable, func(tx pgx.Tx) error {
		current, err := scanStreak(tx.QueryRow(ctx,
			"SELECT "+streakCols+" FROM streak_records WHERE habit_id = $1 AND user_id = $2 FOR UPDATE",
			habitID, userID,
		))
		exists := err == nil
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			var id string
			err := tx.QueryRow(ctx, "SELECT id FROM habits WHERE id = $1", habitID).Scan(&id)
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("habit %s: %w", habitID, storage.ErrNotFound)
			}
			if err != nil {
				return fmt.Errorf("failed to check habit: %w", translateError(err))
			}
			current = &models.StreakRecord{HabitID: habitID, UserID: userID}
		case err != nil:
			return fmt.Errorf("failed to read streak: %w", translateError(err))
		}

		next, write := fn(*current)
		if !write {
			result = current
			return nil
		}
		next.HabitID, next.UserID = habitID, userID

		if exists {
			tag, err := tx.Exec(ctx,
				`UPDATE streak_records
				SET current_streak = $1, last_completion_date = $2::date, user_name = $3, user_photo_url = $4, version = version + 1
				WHERE habit_id = $5 AND user_id = $6 AND version = $7`,
				next.CurrentStreak, dateArg(next), next.UserName, next.UserPhotoURL,
				habitID, userID, current.Version,
			)
			if err != nil {
				return fmt.Errorf("failed to update streak: %w", translateError(err))
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("streak %s/%s: %w", habitID, userID, storage.ErrConflict)
			}
			next.Version = current.Version + 1
		} else {
			_, err := tx.Exec(ctx,
				`INSERT INTO streak_records (habit_id, user_id, current_streak, last_completion_date, user_name, user_photo_url, version)
				VALUES ($1, $2, $3, $4::date, $5, $6, 1)`,
				habitID, userID, next.CurrentStreak, dateArg(next), next.UserName, next.UserPhotoURL,
			)
			if isUniqueViolation(err, "streak_records_pkey") {
				return fmt.Errorf("streak %s/%s: %w", habitID, userID, storage.ErrConflict)
			}
			if err != nil {
				return fmt.Errorf("failed to insert streak: %w", translateError(err))
			}
			next.Version = 1
		}

		result = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
