package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/mmynk/habitly/internal/storage"
	"github.com/mmynk/habitly/internal/storage/storetest"
)

// Set HABITLY_TEST_POSTGRES_URL to a disposable database to run these tests.
func TestPostgresStore(t *testing.T) {
	url := os.Getenv("HABITLY_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("HABITLY_TEST_POSTGRES_URL not set")
	}

	storetest.Run(t, func(t *testing.T) storage.Store {
		ctx := context.Background()
		store, err := New(ctx, url)
		if err != nil {
			t.Fatalf("Failed to create store: %v", err)
		}
		if _, err := store.pool.Exec(ctx, "TRUNCATE streak_records, habit_participants, habits"); err != nil {
			t.Fatalf("Failed to reset tables: %v", err)
		}
		return store
	})
}
