package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmynk/habitly/internal/auth"
	"github.com/mmynk/habitly/internal/config"
	"github.com/mmynk/habitly/internal/models"
)

type tokenOptions struct {
	userID string
	name   string
	photo  string
	ttl    time.Duration
}

// NewTokenCommand creates the token command, which mints an access token
// for local development and scripts.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &tokenOptions{}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a signed access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(rootOpts.ConfigPath)
			if err != nil {
				return err
			}
			return runToken(cmd, cfg, opts)
		},
	}

	cmd.Flags().StringVar(&opts.userID, "user", "", "user ID (required)")
	cmd.Flags().StringVar(&opts.name, "name", "", "display name")
	cmd.Flags().StringVar(&opts.photo, "photo", "", "photo URL")
	cmd.Flags().DurationVar(&opts.ttl, "ttl", 0, "token lifetime (default from config)")
	cmd.MarkFlagRequired("user")

	return cmd
}

func runToken(cmd *cobra.Command, cfg *config.Config, opts *tokenOptions) error {
	if cfg.Auth.Provider != config.AuthJWT {
		return fmt.Errorf("tokens can only be minted for the %s auth provider", config.AuthJWT)
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("jwt secret is not configured")
	}

	ttl := cfg.Auth.TokenTTL
	if opts.ttl > 0 {
		ttl = opts.ttl
	}

	token, err := auth.NewJWTManager(cfg.Auth.JWTSecret, ttl).Generate(models.User{
		ID:          opts.userID,
		DisplayName: opts.name,
		PhotoURL:    opts.photo,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
