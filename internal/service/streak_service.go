package service

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/habitly/internal/streak"
	"github.com/mmynk/habitly/internal/websocket"
	"github.com/mmynk/habitly/pkg/api"
)

// StreakService implements habitly.v1.StreakService.
type StreakService struct {
	tracker *streak.Tracker
	events  Publisher
}

// NewStreakService creates a StreakService. events may be nil.
func NewStreakService(tracker *streak.Tracker, events Publisher) *StreakService {
	if events == nil {
		events = nopPublisher{}
	}
	return &StreakService{tracker: tracker, events: events}
}

// CheckIn marks today as done for the caller.
func (s *StreakService) CheckIn(ctx context.Context, req *connect.Request[api.CheckInRequest]) (*connect.Response[api.CheckInResponse], error) {
	user, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireField("habit_id", req.Msg.HabitID); err != nil {
		return nil, toConnectError(err)
	}

	res, err := s.tracker.CheckIn(ctx, req.Msg.HabitID, user.ID)
	if err != nil {
		slog.Error("CheckIn failed", "habit_id", req.Msg.HabitID, "user_id", user.ID, "error", err)
		return nil, toConnectError(err)
	}

	if res.Outcome.Changed() {
		s.events.Publish(websocket.Message{
			Type:          websocket.EventCheckedIn,
			HabitID:       req.Msg.HabitID,
			UserID:        user.ID,
			CurrentStreak: res.Record.CurrentStreak,
		})
	}
	return connect.NewResponse(&api.CheckInResponse{
		Streak:  streakToAPI(res.Record, res.Today, s.tracker.Policy()),
		Outcome: res.Outcome.String(),
	}), nil
}

// UndoCheckIn reverses today's check-in for the caller.
func (s *StreakService) UndoCheckIn(ctx context.Context, req *connect.Request[api.UndoCheckInRequest]) (*connect.Response[api.UndoCheckInResponse], error) {
	user, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireField("habit_id", req.Msg.HabitID); err != nil {
		return nil, toConnectError(err)
	}

	res, err := s.tracker.Undo(ctx, req.Msg.HabitID, user.ID)
	if err != nil {
		slog.Error("UndoCheckIn failed", "habit_id", req.Msg.HabitID, "user_id", user.ID, "error", err)
		return nil, toConnectError(err)
	}

	if res.Outcome.Changed() {
		s.events.Publish(websocket.Message{
			Type:          websocket.EventUndone,
			HabitID:       req.Msg.HabitID,
			UserID:        user.ID,
			CurrentStreak: res.Record.CurrentStreak,
		})
	}
	return connect.NewResponse(&api.UndoCheckInResponse{
		Streak:  streakToAPI(res.Record, res.Today, s.tracker.Policy()),
		Outcome: res.Outcome.String(),
	}), nil
}

// GetStreak returns the caller's streak in a habit.
func (s *StreakService) GetStreak(ctx context.Context, req *connect.Request[api.GetStreakRequest]) (*connect.Response[api.GetStreakResponse], error) {
	user, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireField("habit_id", req.Msg.HabitID); err != nil {
		return nil, toConnectError(err)
	}

	rec, err := s.tracker.Get(ctx, req.Msg.HabitID, user.ID)
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&api.GetStreakResponse{
		Streak: streakToAPI(*rec, s.tracker.Today(), s.tracker.Policy()),
	}), nil
}
