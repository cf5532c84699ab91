// Package cli wires the habitly command line.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/mmynk/habitly/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
}

// load reads and validates the configuration named by the global flags.
func (o *RootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "habitly",
		Short:         "Habitly streak and membership server",
		Long:          "Habitly tracks shared daily habits: check-ins, streaks, invite codes and leaderboards.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to a YAML config file")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}
