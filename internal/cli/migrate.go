package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mmynk/habitly/internal/config"
	"github.com/mmynk/habitly/pkg/logging"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Long: `Apply pending schema migrations to the configured SQL store.

The server also migrates on start; this command lets deployments migrate
ahead of rolling out new binaries.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.load()
			if err != nil {
				return err
			}
			logging.SetupWithLevel(logging.ParseLevel(cfg.LogLevel))

			if cfg.Store == config.StoreFirestore {
				return fmt.Errorf("the %s store has no schema to migrate", cfg.Store)
			}

			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			defer store.Close()

			slog.Info("Schema up to date", "store", cfg.Store)
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}
