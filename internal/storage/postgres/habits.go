package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmynk/habitly/internal/models"
	"github.com/mmynk/habitly/internal/storage"
)

const habitCols = `id, name, description, owner_id, invite_code, created_at`

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanHabit(row pgx.Row) (*models.Habit, error) {
	h := &models.Habit{}
	if err := row.Scan(&h.ID, &h.Name, &h.Description, &h.OwnerID, &h.InviteCode, &h.CreatedAt); err != nil {
		return nil, err
	}
	return h, nil
}

// CreateHabit inserts the habit, the owner's membership and the owner's zero
// streak record in one transaction.
func (s *PostgresStore) CreateHabit(ctx context.Context, habit *models.Habit, owner models.User) error {
	if habit.ID == "" {
		habit.ID = uuid.New().String()
	}
	if habit.CreatedAt == 0 {
		habit.CreatedAt = time.Now().Unix()
	}
	habit.OwnerID = owner.ID
	habit.ParticipantIDs = []string{owner.ID}

	return s.inTx(ctx, pgx.ReadCommitted, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			"INSERT INTO habits ("+habitCols+") VALUES ($1, $2, $3, $4, $5, $6)",
			habit.ID, habit.Name, habit.Description, habit.OwnerID, habit.InviteCode, habit.CreatedAt,
		)
		if isUniqueViolation(err, "idx_habits_invite_code") {
			return fmt.Errorf("%w: %s", storage.ErrInviteCodeTaken, habit.InviteCode)
		}
		if err != nil {
			return fmt.Errorf("failed to insert habit: %w", err)
		}
		return insertMember(ctx, tx, habit.ID, owner)
	})
}

func insertMember(ctx context.Context, tx pgx.Tx, habitID string, user models.User) error {
	_, err := tx.Exec(ctx,
		"INSERT INTO habit_participants (habit_id, user_id) VALUES ($1, $2)",
		habitID, user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert participant: %w", translateError(err))
	}

	rec := models.NewStreakRecord(habitID, user)
	_, err = tx.Exec(ctx,
		`INSERT INTO streak_records (habit_id, user_id, user_name, user_photo_url)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (habit_id, user_id) DO NOTHING`,
		rec.HabitID, rec.UserID, rec.UserName, rec.UserPhotoURL,
	)
	if err != nil {
		return fmt.Errorf("failed to insert streak record: %w", translateError(err))
	}
	return nil
}

// GetHabit retrieves a habit by ID, including its participants.
func (s *PostgresStore) GetHabit(ctx context.Context, habitID string) (*models.Habit, error) {
	return s.getHabitWhere(ctx, "id = $1", habitID)
}

// GetHabitByInviteCode retrieves the habit that owns code.
func (s *PostgresStore) GetHabitByInviteCode(ctx context.Context, code string) (*models.Habit, error) {
	return s.getHabitWhere(ctx, "invite_code = $1", code)
}

func (s *PostgresStore) getHabitWhere(ctx context.Context, where, arg string) (*models.Habit, error) {
	habit, err := scanHabit(s.pool.QueryRow(ctx, "SELECT "+habitCols+" FROM habits WHERE "+where, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("habit %s: %w", arg, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get habit: %w", err)
	}

	habit.ParticipantIDs, err = loadParticipants(ctx, s.pool, habit.ID)
	if err != nil {
		return nil, err
	}
	return habit, nil
}

func loadParticipants(ctx context.Context, q querier, habitID string) ([]string, error) {
	rows, err := q.Query(ctx,
		"SELECT user_id FROM habit_participants WHERE habit_id = $1 ORDER BY seq",
		habitID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan participants: %w", err)
	}
	return ids, nil
}

// ListHabitsForUser returns the habits userID participates in, newest first.
func (s *PostgresStore) ListHabitsForUser(ctx context.Context, userID string) ([]*models.Habit, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT h.id, h.name, h.description, h.owner_id, h.invite_code, h.created_at
		FROM habits h
		JOIN habit_participants p ON p.habit_id = h.id
		WHERE p.user_id = $1
		ORDER BY h.created_at DESC, h.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list habits: %w", err)
	}
	habits, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Habit, error) {
		return scanHabit(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan habits: %w", err)
	}

	for _, h := range habits {
		h.ParticipantIDs, err = loadParticipants(ctx, s.pool, h.ID)
		if err != nil {
			return nil, err
		}
	}
	return habits, nil
}

// UpdateHabitDetails changes a habit's name and description.
func (s *PostgresStore) UpdateHabitDetails(ctx context.Context, habitID, name, description string) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE habits SET name = $1, description = $2 WHERE id = $3",
		name, description, habitID,
	)
	if err != nil {
		return fmt.Errorf("failed to update habit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("habit %s: %w", habitID, storage.ErrNotFound)
	}
	return nil
}

// AddParticipant adds user to the habit together with their zero streak
// record. The habit row is locked so concurrent joins serialize.
func (s *PostgresStore) AddParticipant(ctx context.Context, habitID string, user models.User) (bool, error) {
	added := false
	err := s.inTx(ctx, pgx.ReadCommitted, func(tx pgx.Tx) error {
		var id string
		err := tx.QueryRow(ctx, "SELECT id FROM habits WHERE id = $1 FOR UPDATE", habitID).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("habit %s: %w", habitID, storage.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to lock habit: %w", translateError(err))
		}

		var member bool
		err = tx.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM habit_participants WHERE habit_id = $1 AND user_id = $2)",
			habitID, user.ID,
		).Scan(&member)
		if err != nil {
			return fmt.Errorf("failed to check membership: %w", err)
		}
		if member {
			return nil
		}

		if err := insertMember(ctx, tx, habitID, user); err != nil {
			return err
		}
		added = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return added, nil
}
