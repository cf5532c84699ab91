package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mmynk/habitly/internal/models"
	"github.com/mmynk/habitly/internal/storage"
	"github.com/mmynk/habitly/internal/storage/storetest"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store
}

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storage.Store {
		return newTestStore(t)
	})
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")

	store, err := New(path)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx := context.Background()
	habit := &models.Habit{Name: "Reopen", InviteCode: "REOPEN"}
	if err := store.CreateHabit(ctx, habit, models.User{ID: "u1"}); err != nil {
		t.Fatalf("CreateHabit failed: %v", err)
	}
	store.Close()

	store, err = New(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer store.Close()

	got, err := store.GetHabit(ctx, habit.ID)
	if err != nil {
		t.Fatalf("GetHabit after reopen failed: %v", err)
	}
	if got.Name != "Reopen" {
		t.Errorf("name: expected 'Reopen', got '%s'", got.Name)
	}
}

func TestCompletionDatePersistedAsText(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()
	ctx := context.Background()

	habit := &models.Habit{Name: "Dates", InviteCode: "DATES1"}
	if err := store.CreateHabit(ctx, habit, models.User{ID: "u1"}); err != nil {
		t.Fatalf("CreateHabit failed: %v", err)
	}

	_, err := store.AtomicUpdate(ctx, habit.ID, "u1", func(cur models.StreakRecord) (models.StreakRecord, bool) {
		cur.CurrentStreak = 1
		cur.LastCompletionDate, _ = models.ParseDate("2024-02-29")
		return cur, true
	})
	if err != nil {
		t.Fatalf("AtomicUpdate failed: %v", err)
	}

	var raw string
	err = store.db.QueryRowContext(ctx,
		"SELECT last_completion_date FROM streak_records WHERE habit_id = ? AND user_id = ?",
		habit.ID, "u1",
	).Scan(&raw)
	if err != nil {
		t.Fatalf("raw query failed: %v", err)
	}
	if raw != "2024-02-29" {
		t.Errorf("expected '2024-02-29', got '%s'", raw)
	}
}
