package websocket

import (
	"context"
	"errors"
	"net/http"

	ws "github.com/coder/websocket"
	"github.com/gorilla/mux"

	"github.com/mmynk/habitly/internal/auth"
	"github.com/mmynk/habitly/internal/membership"
	"github.com/mmynk/habitly/internal/models"
)

// HabitGetter loads a habit to check membership. A missing habit is reported
// as membership.ErrHabitNotFound.
type HabitGetter interface {
	GetHabit(ctx context.Context, habitID string) (*models.Habit, error)
}

// ErrForbidden is returned when the token holder is not a participant.
var ErrForbidden = errors.New("not a participant of this habit")

// Handler upgrades participants to a websocket stream of habit events.
// Browsers cannot set headers on websocket requests, so the access token is
// read from the "token" query parameter.
type Handler struct {
	hub            *Hub
	verifier       auth.Verifier
	habits         HabitGetter
	allowedOrigins []string
}

// NewHandler creates a Handler. allowedOrigins are host patterns passed to
// the websocket origin check; empty allows same-origin only.
func NewHandler(hub *Hub, verifier auth.Verifier, habits HabitGetter, allowedOrigins []string) *Handler {
	return &Handler{hub: hub, verifier: verifier, habits: habits, allowedOrigins: allowedOrigins}
}

// ServeHTTP expects a "habitID" route variable.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	habitID := mux.Vars(r)["habitID"]

	user, err := h.authorize(r.Context(), r.URL.Query().Get("token"), habitID)
	if err != nil {
		status := http.StatusUnauthorized
		switch {
		case errors.Is(err, ErrForbidden):
			status = http.StatusForbidden
		case errors.Is(err, membership.ErrHabitNotFound):
			status = http.StatusNotFound
		case !errors.Is(err, auth.ErrMissingToken) && !errors.Is(err, auth.ErrInvalidToken):
			h.hub.logger.Error("websocket authorization failed", "habit_id", habitID, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		http.Error(w, err.Error(), status)
		return
	}

	conn, err := ws.Accept(w, r, &ws.AcceptOptions{OriginPatterns: h.allowedOrigins})
	if err != nil {
		h.hub.logger.Warn("websocket accept failed", "habit_id", habitID, "error", err)
		return
	}
	defer conn.CloseNow()

	h.hub.logger.Debug("websocket connected", "habit_id", habitID, "user_id", user.ID)
	NewClient(h.hub, conn, habitID, user.ID).Run(r.Context())
}

func (h *Handler) authorize(ctx context.Context, token, habitID string) (*models.User, error) {
	if token == "" {
		return nil, auth.ErrMissingToken
	}
	user, err := h.verifier.Verify(ctx, token)
	if err != nil {
		return nil, auth.ErrInvalidToken
	}
	habit, err := h.habits.GetHabit(ctx, habitID)
	if err != nil {
		return nil, err
	}
	if !habit.HasParticipant(user.ID) {
		return nil, ErrForbidden
	}
	return user, nil
}
