package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/mmynk/habitly/internal/auth"
	"github.com/mmynk/habitly/internal/clock"
	"github.com/mmynk/habitly/internal/config"
	"github.com/mmynk/habitly/internal/membership"
	"github.com/mmynk/habitly/internal/metrics"
	"github.com/mmynk/habitly/internal/middleware"
	"github.com/mmynk/habitly/internal/service"
	"github.com/mmynk/habitly/internal/storage"
	"github.com/mmynk/habitly/internal/streak"
	"github.com/mmynk/habitly/internal/websocket"
	"github.com/mmynk/habitly/pkg/logging"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the RPC server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
}

func newVerifier(ctx context.Context, cfg *config.Config) (auth.Verifier, error) {
	if cfg.Auth.Provider == config.AuthFirebase {
		return auth.NewFirebaseVerifier(ctx, cfg.Firestore.ProjectID, cfg.Firestore.CredentialsFile)
	}
	return auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL), nil
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logFile := logging.SetupWithOptions(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	defer logFile.Close()

	clk, err := clock.NewSystemFromName(cfg.Timezone)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	slog.Info("Storage initialized", "store", cfg.Store)

	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize auth: %w", err)
	}

	retry := storage.DefaultRetryPolicy()
	retry.MaxRetries = uint64(cfg.UpdateRetries)

	members := membership.NewService(store,
		membership.WithInviteAttempts(cfg.InviteAttempts),
		membership.WithRetryPolicy(retry),
	)
	tracker := streak.NewTracker(store, clk, cfg.Policy(), retry)
	hub := websocket.NewHub(slog.Default())

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.RPS > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		go limiter.Cleanup(ctx)
	}

	metrics.Register(prometheus.DefaultRegisterer)

	server := service.NewServer(cfg.Addr(), service.NewHandler(service.Deps{
		Store:          store,
		Members:        members,
		Tracker:        tracker,
		Verifier:       verifier,
		Hub:            hub,
		Limiter:        limiter,
		AllowedOrigins: cfg.AllowedOrigins,
	}))

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Connect server starting",
			"address", cfg.Addr(),
			"timezone", clk.Location().String(),
			"policy", tracker.Policy().String(),
			"auth", cfg.Auth.Provider,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
