package service

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/habitly/internal/auth"
	"github.com/mmynk/habitly/internal/membership"
	"github.com/mmynk/habitly/internal/middleware"
	"github.com/mmynk/habitly/internal/storage"
	"github.com/mmynk/habitly/internal/streak"
	"github.com/mmynk/habitly/internal/websocket"
	"github.com/mmynk/habitly/pkg/api"
)

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	Store    storage.Store
	Members  *membership.Service
	Tracker  *streak.Tracker
	Verifier auth.Verifier
	// Hub receives change events for websocket subscribers. Optional.
	Hub *websocket.Hub
	// Limiter throttles RPC calls per client. Optional.
	Limiter *middleware.RateLimiter
	// Gatherer backs /metrics. Defaults to the Prometheus default registry.
	Gatherer prometheus.Gatherer
	// AllowedOrigins configures CORS and the websocket origin check.
	AllowedOrigins []string
}

// NewHandler builds the complete HTTP handler: Connect RPCs, health,
// metrics and the websocket feed, wrapped with CORS and h2c.
func NewHandler(d Deps) http.Handler {
	var events Publisher
	if d.Hub != nil {
		events = d.Hub
	}
	habits := NewHabitService(d.Members, d.Tracker, d.Store, events)
	streaks := NewStreakService(d.Tracker, events)

	opts := []connect.HandlerOption{
		connect.WithCodec(api.JSONCodec{}),
		connect.WithInterceptors(
			middleware.RequireAuth(d.Verifier),
			middleware.LoggingInterceptor(),
		),
	}

	r := mux.NewRouter()
	r.Use(middleware.Monitor)
	r.Use(middleware.RequestLogger)

	r.HandleFunc("/health", healthHandler(d.Store)).Methods(http.MethodGet)

	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	if d.Hub != nil {
		r.Handle("/ws/habits/{habitID}", websocket.NewHandler(d.Hub, d.Verifier, d.Members, d.AllowedOrigins)).Methods(http.MethodGet)
	}

	rpc := r.NewRoute().Subrouter()
	if d.Limiter != nil {
		rpc.Use(d.Limiter.Middleware)
	}

	rpc.Handle(api.CreateHabitProcedure, connect.NewUnaryHandler(api.CreateHabitProcedure, habits.CreateHabit, opts...))
	rpc.Handle(api.GetHabitProcedure, connect.NewUnaryHandler(api.GetHabitProcedure, habits.GetHabit, opts...))
	rpc.Handle(api.ListHabitsProcedure, connect.NewUnaryHandler(api.ListHabitsProcedure, habits.ListHabits, opts...))
	rpc.Handle(api.UpdateHabitProcedure, connect.NewUnaryHandler(api.UpdateHabitProcedure, habits.UpdateHabit, opts...))
	rpc.Handle(api.ResolveInviteCodeProcedure, connect.NewUnaryHandler(api.ResolveInviteCodeProcedure, habits.ResolveInviteCode, opts...))
	rpc.Handle(api.JoinHabitProcedure, connect.NewUnaryHandler(api.JoinHabitProcedure, habits.JoinHabit, opts...))
	rpc.Handle(api.GetLeaderboardProcedure, connect.NewUnaryHandler(api.GetLeaderboardProcedure, habits.GetLeaderboard, opts...))

	rpc.Handle(api.CheckInProcedure, connect.NewUnaryHandler(api.CheckInProcedure, streaks.CheckIn, opts...))
	rpc.Handle(api.UndoCheckInProcedure, connect.NewUnaryHandler(api.UndoCheckInProcedure, streaks.UndoCheckIn, opts...))
	rpc.Handle(api.GetStreakProcedure, connect.NewUnaryHandler(api.GetStreakProcedure, streaks.GetStreak, opts...))

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	cors := handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "Connect-Protocol-Version", "Connect-Timeout-Ms"}),
		handlers.ExposedHeaders([]string{"Connect-Protocol-Version", "Connect-Timeout-Ms"}),
	)

	// h2c serves HTTP/2 without TLS for Connect clients.
	return h2c.NewHandler(cors(r), &http2.Server{})
}

func healthHandler(store storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := store.Ping(ctx); err != nil {
			slog.Error("Health check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "store unreachable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "habitly"}`))
	}
}

// NewServer wraps handler in an http.Server with the usual timeouts.
// WriteTimeout stays zero so websocket streams are not cut off.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
