// Package websocket pushes habit activity to connected leaderboard views.
package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Event types sent to subscribers.
const (
	EventCheckedIn         = "streak_checked_in"
	EventUndone            = "streak_undone"
	EventParticipantJoined = "participant_joined"
	EventHabitUpdated      = "habit_updated"
)

// Message is a change notification for one habit. Clients refetch the
// leaderboard when they receive one.
type Message struct {
	Type          string `json:"type"`
	HabitID       string `json:"habit_id"`
	UserID        string `json:"user_id,omitempty"`
	CurrentStreak int    `json:"current_streak"`
}

// Hub tracks the clients subscribed to each habit.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Client]struct{}
	logger *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[*Client]struct{}),
		logger: logger,
	}
}

// Register subscribes a client to its habit.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.habitID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[c.habitID] = room
	}
	room[c] = struct{}{}
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.habitID]
	if !ok {
		return
	}
	if _, ok := room[c]; ok {
		delete(room, c)
		close(c.send)
	}
	if len(room) == 0 {
		delete(h.rooms, c.habitID)
	}
}

// Publish sends msg to every client watching msg.HabitID.
func (h *Hub) Publish(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[msg.HabitID] {
		select {
		case c.send <- data:
		default:
			// Slow client; it will catch up on the next event.
			h.logger.Debug("dropping websocket message", "habit_id", msg.HabitID, "user_id", c.userID)
		}
	}
}

// ClientCount returns the number of clients watching habitID.
func (h *Hub) ClientCount(habitID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[habitID])
}
