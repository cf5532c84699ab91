package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/habitly/internal/leaderboard"
	"github.com/mmynk/habitly/internal/membership"
	"github.com/mmynk/habitly/internal/middleware"
	"github.com/mmynk/habitly/internal/models"
	"github.com/mmynk/habitly/internal/storage"
	"github.com/mmynk/habitly/internal/streak"
	"github.com/mmynk/habitly/internal/websocket"
	"github.com/mmynk/habitly/pkg/api"
)

// Publisher receives habit change notifications.
type Publisher interface {
	Publish(msg websocket.Message)
}

type nopPublisher struct{}

func (nopPublisher) Publish(websocket.Message) {}

// HabitService implements habitly.v1.HabitService.
type HabitService struct {
	members *membership.Service
	tracker *streak.Tracker
	store   storage.Store
	events  Publisher
}

// NewHabitService creates a HabitService. events may be nil.
func NewHabitService(members *membership.Service, tracker *streak.Tracker, store storage.Store, events Publisher) *HabitService {
	if events == nil {
		events = nopPublisher{}
	}
	return &HabitService{members: members, tracker: tracker, store: store, events: events}
}

func caller(ctx context.Context) (*models.User, error) {
	user := middleware.UserFromContext(ctx)
	if user == nil {
		return nil, connect.NewError(connect.CodeUnauthenticated, fmt.Errorf("no authenticated user"))
	}
	return user, nil
}

func requireField(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", errInvalidArgument, name)
	}
	return nil
}

// participantHabit loads a habit the caller belongs to.
func (s *HabitService) participantHabit(ctx context.Context, habitID, userID string) (*models.Habit, error) {
	habit, err := s.members.GetHabit(ctx, habitID)
	if err != nil {
		return nil, err
	}
	if !habit.HasParticipant(userID) {
		return nil, streak.ErrNotParticipant
	}
	return habit, nil
}

// CreateHabit creates a habit owned by the caller.
func (s *HabitService) CreateHabit(ctx context.Context, req *connect.Request[api.CreateHabitRequest]) (*connect.Response[api.CreateHabitResponse], error) {
	user, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("CreateHabit request received", "user_id", user.ID, "name", req.Msg.Name)

	habit, err := s.members.CreateHabit(ctx, *user, req.Msg.Name, req.Msg.Description)
	if err != nil {
		slog.Error("CreateHabit failed", "user_id", user.ID, "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&api.CreateHabitResponse{Habit: habitToAPI(habit)}), nil
}

// GetHabit returns a habit the caller participates in.
func (s *HabitService) GetHabit(ctx context.Context, req *connect.Request[api.GetHabitRequest]) (*connect.Response[api.GetHabitResponse], error) {
	user, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireField("habit_id", req.Msg.HabitID); err != nil {
		return nil, toConnectError(err)
	}

	habit, err := s.participantHabit(ctx, req.Msg.HabitID, user.ID)
	if err != nil {
		slog.Error("GetHabit failed", "habit_id", req.Msg.HabitID, "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&api.GetHabitResponse{Habit: habitToAPI(habit)}), nil
}

// ListHabits returns the caller's habits, newest first.
func (s *HabitService) ListHabits(ctx context.Context, req *connect.Request[api.ListHabitsRequest]) (*connect.Response[api.ListHabitsResponse], error) {
	user, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	habits, err := s.members.ListHabits(ctx, user.ID)
	if err != nil {
		slog.Error("ListHabits failed", "user_id", user.ID, "error", err)
		return nil, toConnectError(err)
	}

	out := make([]api.Habit, len(habits))
	for i, h := range habits {
		out[i] = habitToAPI(h)
	}
	slog.Debug("ListHabits successful", "user_id", user.ID, "count", len(out))

	return connect.NewResponse(&api.ListHabitsResponse{Habits: out}), nil
}

// UpdateHabit edits the name and description. Owner only.
func (s *HabitService) UpdateHabit(ctx context.Context, req *connect.Request[api.UpdateHabitRequest]) (*connect.Response[api.UpdateHabitResponse], error) {
	user, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireField("habit_id", req.Msg.HabitID); err != nil {
		return nil, toConnectError(err)
	}
	slog.Info("UpdateHabit request received", "habit_id", req.Msg.HabitID, "user_id", user.ID)

	habit, err := s.members.UpdateHabit(ctx, user.ID, req.Msg.HabitID, req.Msg.Name, req.Msg.Description)
	if err != nil {
		slog.Error("UpdateHabit failed", "habit_id", req.Msg.HabitID, "error", err)
		return nil, toConnectError(err)
	}

	s.events.Publish(websocket.Message{Type: websocket.EventHabitUpdated, HabitID: habit.ID, UserID: user.ID})
	return connect.NewResponse(&api.UpdateHabitResponse{Habit: habitToAPI(habit)}), nil
}

// ResolveInviteCode previews the habit behind an invite code.
func (s *HabitService) ResolveInviteCode(ctx context.Context, req *connect.Request[api.ResolveInviteCodeRequest]) (*connect.Response[api.ResolveInviteCodeResponse], error) {
	user, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	habit, err := s.members.ResolveInviteCode(ctx, req.Msg.InviteCode)
	if err != nil {
		slog.Warn("ResolveInviteCode failed", "user_id", user.ID, "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&api.ResolveInviteCodeResponse{
		HabitID:          habit.ID,
		Name:             habit.Name,
		Description:      habit.Description,
		ParticipantCount: len(habit.ParticipantIDs),
		AlreadyMember:    habit.HasParticipant(user.ID),
	}), nil
}

// JoinHabit adds the caller to a habit. Joining twice is not an error.
func (s *HabitService) JoinHabit(ctx context.Context, req *connect.Request[api.JoinHabitRequest]) (*connect.Response[api.JoinHabitResponse], error) {
	user, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("JoinHabit request received", "user_id", user.ID, "habit_id", req.Msg.HabitID)

	var result *membership.JoinResult
	switch {
	case req.Msg.InviteCode != "":
		result, err = s.members.JoinByInviteCode(ctx, req.Msg.InviteCode, *user)
	case req.Msg.HabitID != "":
		result, err = s.members.Join(ctx, req.Msg.HabitID, *user)
	default:
		err = fmt.Errorf("%w: invite_code or habit_id is required", errInvalidArgument)
	}
	if err != nil {
		slog.Error("JoinHabit failed", "user_id", user.ID, "error", err)
		return nil, toConnectError(err)
	}

	if result.Joined {
		s.events.Publish(websocket.Message{Type: websocket.EventParticipantJoined, HabitID: result.Habit.ID, UserID: user.ID})
	}
	return connect.NewResponse(&api.JoinHabitResponse{
		Habit:  habitToAPI(result.Habit),
		Joined: result.Joined,
	}), nil
}

// GetLeaderboard ranks every participant's streak.
func (s *HabitService) GetLeaderboard(ctx context.Context, req *connect.Request[api.GetLeaderboardRequest]) (*connect.Response[api.GetLeaderboardResponse], error) {
	user, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireField("habit_id", req.Msg.HabitID); err != nil {
		return nil, toConnectError(err)
	}
	if req.Msg.Limit < 0 {
		return nil, toConnectError(fmt.Errorf("%w: limit must not be negative", errInvalidArgument))
	}

	if _, err := s.participantHabit(ctx, req.Msg.HabitID, user.ID); err != nil {
		return nil, toConnectError(err)
	}

	records, err := s.store.ListStreakRecords(ctx, req.Msg.HabitID)
	if err != nil {
		slog.Error("GetLeaderboard failed", "habit_id", req.Msg.HabitID, "error", err)
		return nil, toConnectError(err)
	}

	entries := leaderboard.Rank(records)
	if req.Msg.Limit > 0 {
		entries = leaderboard.Top(entries, req.Msg.Limit)
	}
	today := s.tracker.Today()

	return connect.NewResponse(&api.GetLeaderboardResponse{
		Entries: entriesToAPI(entries, today, s.tracker.Policy()),
		Today:   today.String(),
	}), nil
}
