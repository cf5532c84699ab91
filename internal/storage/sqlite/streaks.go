package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cloud.google.com/go/civil"

	"github.com/mmynk/habitly/internal/models"
	"github.com/mmynk/habitly/internal/storage"
)

const streakCols = `habit_id, user_id, current_streak, last_completion_date, user_name, user_photo_url, version`

func scanStreak(row scanner) (*models.StreakRecord, error) {
	rec := &models.StreakRecord{}
	var last sql.NullString
	err := row.Scan(&rec.HabitID, &rec.UserID, &rec.CurrentStreak, &last, &rec.UserName, &rec.UserPhotoURL, &rec.Version)
	if err != nil {
		return nil, err
	}
	if last.Valid {
		rec.LastCompletionDate, err = models.ParseDate(last.String)
		if err != nil {
			return nil, fmt.Errorf("bad completion date %q: %w", last.String, err)
		}
	}
	return rec, nil
}

// dateValue converts a completion date to its column value; unset is NULL.
func dateValue(d civil.Date) any {
	if s := models.FormatDate(d); s != "" {
		return s
	}
	return nil
}

// GetStreakRecord retrieves one participant's record.
func (s *SQLiteStore) GetStreakRecord(ctx context.Context, habitID, userID string) (*models.StreakRecord, error) {
	rec, err := getStreak(ctx, s.db, habitID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("streak %s/%s: %w", habitID, userID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get streak: %w", err)
	}
	return rec, nil
}

func getStreak(ctx context.Context, q querier, habitID, userID string) (*models.StreakRecord, error) {
	return scanStreak(q.QueryRowContext(ctx,
		"SELECT "+streakCols+" FROM streak_records WHERE habit_id = ? AND user_id = ?",
		habitID, userID,
	))
}

// ListStreakRecords returns every record of the habit.
func (s *SQLiteStore) ListStreakRecords(ctx context.Context, habitID string) ([]models.StreakRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+streakCols+" FROM streak_records WHERE habit_id = ? ORDER BY user_id",
		habitID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list streaks: %w", err)
	}
	defer rows.Close()

	var records []models.StreakRecord
	for rows.Next() {
		rec, err := scanStreak(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan streak: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate streaks: %w", err)
	}
	return records, nil
}

// AtomicUpdate runs fn against the current record inside an immediate
// transaction and writes the result with a version check.
func (s *SQLiteStore) AtomicUpdate(ctx context.Context, habitID, userID string, fn storage.TransitionFunc) (*models.StreakRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", translateError(err))
	}
	defer tx.Rollback()

	current, err := getStreak(ctx, tx, habitID, userID)
	exists := err == nil
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if err := requireHabit(ctx, tx, habitID); err != nil {
			return nil, err
		}
		current = &models.StreakRecord{HabitID: habitID, UserID: userID}
	case err != nil:
		return nil, fmt.Errorf("failed to read streak: %w", translateError(err))
	}

	next, write := fn(*current)
	if !write {
		return current, nil
	}
	next.HabitID, next.UserID = habitID, userID

	if exists {
		res, err := tx.ExecContext(ctx,
			`UPDATE streak_records
			SET current_streak = ?, last_completion_date = ?, user_name = ?, user_photo_url = ?, version = version + 1
			WHERE habit_id = ? AND user_id = ? AND version = ?`,
			next.CurrentStreak, dateValue(next.LastCompletionDate), next.UserName, next.UserPhotoURL,
			habitID, userID, current.Version,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to update streak: %w", translateError(err))
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to check rows affected: %w", err)
		}
		if n == 0 {
			return nil, fmt.Errorf("streak %s/%s: %w", habitID, userID, storage.ErrConflict)
		}
		next.Version = current.Version + 1
	} else {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO streak_records ("+streakCols+") VALUES (?, ?, ?, ?, ?, ?, 1)",
			habitID, userID, next.CurrentStreak, dateValue(next.LastCompletionDate), next.UserName, next.UserPhotoURL,
		)
		if isUniqueViolation(err, "streak_records") {
			return nil, fmt.Errorf("streak %s/%s: %w", habitID, userID, storage.ErrConflict)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to insert streak: %w", translateError(err))
		}
		next.Version = 1
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", translateError(err))
	}
	return &next, nil
}

func requireHabit(ctx context.Context, q querier, habitID string) error {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM habits WHERE id = ?", habitID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("habit %s: %w", habitID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check habit: %w", translateError(err))
	}
	return nil
}
