package cli

import (
	"context"
	"fmt"

	"github.com/mmynk/habitly/internal/config"
	"github.com/mmynk/habitly/internal/storage"
	"github.com/mmynk/habitly/internal/storage/firestore"
	"github.com/mmynk/habitly/internal/storage/postgres"
	"github.com/mmynk/habitly/internal/storage/sqlite"
)

// openStore opens the configured backend. SQL backends are migrated on open.
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		return sqlite.Open(ctx, cfg.SQLite.Path)
	case config.StorePostgres:
		return postgres.New(ctx, cfg.Postgres.URL)
	case config.StoreFirestore:
		return firestore.New(ctx, firestore.Config{
			ProjectID:        cfg.Firestore.ProjectID,
			CredentialsFile:  cfg.Firestore.CredentialsFile,
			CollectionPrefix: cfg.Firestore.CollectionPrefix,
		})
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}
