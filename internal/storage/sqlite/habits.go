package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/habitly/internal/models"
	"github.com/mmynk/habitly/internal/storage"
)

const habitCols = `id, name, description, owner_id, invite_code, created_at`

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func scanHabit(row scanner) (*models.Habit, error) {
	h := &models.Habit{}
	err := row.Scan(&h.ID, &h.Name, &h.Description, &h.OwnerID, &h.InviteCode, &h.CreatedAt)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// CreateHabit inserts the habit, the owner's membership and the owner's zero
// streak record in one transaction.
func (s *SQLiteStore) CreateHabit(ctx context.Context, habit *models.Habit, owner models.User) error {
	if habit.ID == "" {
		habit.ID = uuid.New().String()
	}
	if habit.CreatedAt == 0 {
		habit.CreatedAt = time.Now().Unix()
	}
	habit.OwnerID = owner.ID
	habit.ParticipantIDs = []string{owner.ID}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", translateError(err))
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO habits ("+habitCols+") VALUES (?, ?, ?, ?, ?, ?)",
		habit.ID, habit.Name, habit.Description, habit.OwnerID, habit.InviteCode, habit.CreatedAt,
	)
	if isUniqueViolation(err, "invite_code") {
		return fmt.Errorf("%w: %s", storage.ErrInviteCodeTaken, habit.InviteCode)
	}
	if err != nil {
		return fmt.Errorf("failed to insert habit: %w", err)
	}

	if err := insertMember(ctx, tx, habit.ID, owner, habit.CreatedAt); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", translateError(err))
	}
	return nil
}

// insertMember adds the participant row and the zero streak record.
func insertMember(ctx context.Context, tx *sql.Tx, habitID string, user models.User, joinedAt int64) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO habit_participants (habit_id, user_id, joined_at) VALUES (?, ?, ?)",
		habitID, user.ID, joinedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert participant: %w", err)
	}

	rec := models.NewStreakRecord(habitID, user)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO streak_records (habit_id, user_id, current_streak, last_completion_date, user_name, user_photo_url, version)
		VALUES (?, ?, 0, NULL, ?, ?, 1)
		ON CONFLICT (habit_id, user_id) DO NOTHING`,
		rec.HabitID, rec.UserID, rec.UserName, rec.UserPhotoURL,
	)
	if err != nil {
		return fmt.Errorf("failed to insert streak record: %w", err)
	}
	return nil
}

// GetHabit retrieves a habit by ID, including its participants.
func (s *SQLiteStore) GetHabit(ctx context.Context, habitID string) (*models.Habit, error) {
	return s.getHabitWhere(ctx, "id = ?", habitID)
}

// GetHabitByInviteCode retrieves the habit that owns code.
func (s *SQLiteStore) GetHabitByInviteCode(ctx context.Context, code string) (*models.Habit, error) {
	return s.getHabitWhere(ctx, "invite_code = ?", code)
}

func (s *SQLiteStore) getHabitWhere(ctx context.Context, where string, arg string) (*models.Habit, error) {
	habit, err := scanHabit(s.db.QueryRowContext(ctx,
		"SELECT "+habitCols+" FROM habits WHERE "+where, arg,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("habit %s: %w", arg, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get habit: %w", err)
	}

	habit.ParticipantIDs, err = loadParticipants(ctx, s.db, habit.ID)
	if err != nil {
		return nil, err
	}
	return habit, nil
}

func loadParticipants(ctx context.Context, q querier, habitID string) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT user_id FROM habit_participants WHERE habit_id = ? ORDER BY joined_at, rowid",
		habitID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}
	return ids, nil
}

// ListHabitsForUser returns the habits userID participates in, newest first.
func (s *SQLiteStore) ListHabitsForUser(ctx context.Context, userID string) ([]*models.Habit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT h.id, h.name, h.description, h.owner_id, h.invite_code, h.created_at
		FROM habits h
		JOIN habit_participants p ON p.habit_id = h.id
		WHERE p.user_id = ?
		ORDER BY h.created_at DESC, h.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list habits: %w", err)
	}

	var habits []*models.Habit
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan habit: %w", err)
		}
		habits = append(habits, h)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate habits: %w", err)
	}

	for _, h := range habits {
		h.ParticipantIDs, err = loadParticipants(ctx, s.db, h.ID)
		if err != nil {
			return nil, err
		}
	}
	return habits, nil
}

// UpdateHabitDetails changes a habit's name and description.
func (s *SQLiteStore) UpdateHabitDetails(ctx context.Context, habitID, name, description string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE habits SET name = ?, description = ? WHERE id = ?",
		name, description, habitID,
	)
	if err != nil {
		return fmt.Errorf("failed to update habit: %w", translateError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("habit %s: %w", habitID, storage.ErrNotFound)
	}
	return nil
}

// AddParticipant adds user to the habit together with their zero streak
// record. It writes nothing when the user is already a member.
func (s *SQLiteStore) AddParticipant(ctx context.Context, habitID string, user models.User) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", translateError(err))
	}
	defer tx.Rollback()

	var member int
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM habit_participants WHERE habit_id = ? AND user_id = ?)
		FROM habits WHERE id = ?`,
		habitID, user.ID, habitID,
	).Scan(&member)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("habit %s: %w", habitID, storage.ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", translateError(err))
	}
	if member == 1 {
		return false, nil
	}

	if err := insertMember(ctx, tx, habitID, user, time.Now().Unix()); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", translateError(err))
	}
	return true, nil
}
