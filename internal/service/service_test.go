package service

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mmynk/habitly/internal/auth"
	"github.com/mmynk/habitly/internal/clock"
	"github.com/mmynk/habitly/internal/membership"
	"github.com/mmynk/habitly/internal/middleware"
	"github.com/mmynk/habitly/internal/models"
	"github.com/mmynk/habitly/internal/storage"
	"github.com/mmynk/habitly/internal/storage/sqlite"
	"github.com/mmynk/habitly/internal/streak"
	"github.com/mmynk/habitly/internal/websocket"
	"github.com/mmynk/habitly/pkg/api"
)

type testEnv struct {
	server *httptest.Server
	jwt    *auth.JWTManager
	clock  *clock.Fixed
}

// setupTestServer starts the full HTTP stack on a temporary SQLite database.
func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	clk := clock.NewFixed(civil.Date{Year: 2024, Month: time.January, Day: 10})
	retry := storage.RetryPolicy{MaxRetries: 10, BaseDelay: time.Millisecond}
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)

	handler := NewHandler(Deps{
		Store:    store,
		Members:  membership.NewService(store, membership.WithRetryPolicy(retry)),
		Tracker:  streak.NewTracker(store, clk, streak.PolicyStrict, retry),
		Verifier: jwtManager,
		Hub:      websocket.NewHub(slog.Default()),
		Gatherer: prometheus.NewRegistry(),
	})

	server := httptest.NewServer(handler)
	t.Cleanup(func() {
		server.Close()
		store.Close()
	})

	return &testEnv{server: server, jwt: jwtManager, clock: clk}
}

func (e *testEnv) client(t *testing.T, user models.User) *api.Client {
	t.Helper()
	token, err := e.jwt.Generate(user)
	if err != nil {
		t.Fatalf("failed to mint token: %v", err)
	}
	return api.NewClient(http.DefaultClient, e.server.URL, token)
}

var (
	alice = models.User{ID: "alice", DisplayName: "Alice"}
	bob   = models.User{ID: "bob", DisplayName: "Bob", PhotoURL: "https://example.com/bob.png"}
	eve   = models.User{ID: "eve", DisplayName: "Eve"}
)

func createHabit(t *testing.T, c *api.Client, name string) api.Habit {
	t.Helper()
	resp, err := c.CreateHabit(context.Background(), &api.CreateHabitRequest{Name: name})
	if err != nil {
		t.Fatalf("CreateHabit failed: %v", err)
	}
	return resp.Habit
}

func wantCode(t *testing.T, err error, code connect.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if got := connect.CodeOf(err); got != code {
		t.Fatalf("expected code %s, got %s (%v)", code, got, err)
	}
}

func TestCreateHabit(t *testing.T) {
	env := setupTestServer(t)
	c := env.client(t, alice)

	habit := createHabit(t, c, "Morning run")

	if habit.ID == "" {
		t.Error("expected non-empty habit ID")
	}
	if habit.Name != "Morning run" {
		t.Errorf("name: expected 'Morning run', got '%s'", habit.Name)
	}
	if habit.OwnerID != "alice" {
		t.Errorf("owner: expected 'alice', got '%s'", habit.OwnerID)
	}
	if len(habit.ParticipantIDs) != 1 || habit.ParticipantIDs[0] != "alice" {
		t.Errorf("participants: expected [alice], got %v", habit.ParticipantIDs)
	}
	if len(habit.InviteCode) != membership.InviteCodeLength {
		t.Errorf("invite code: expected %d chars, got %q", membership.InviteCodeLength, habit.InviteCode)
	}
	if habit.CreatedAt == 0 {
		t.Error("expected non-zero CreatedAt")
	}

	// The owner starts with a zero streak.
	resp, err := c.GetStreak(context.Background(), &api.GetStreakRequest{HabitID: habit.ID})
	if err != nil {
		t.Fatalf("GetStreak failed: %v", err)
	}
	if resp.Streak.CurrentStreak != 0 || resp.Streak.LastCompletionDate != "" {
		t.Errorf("expected zero streak, got %+v", resp.Streak)
	}
	if resp.Streak.UserName != "Alice" {
		t.Errorf("user name: expected 'Alice', got '%s'", resp.Streak.UserName)
	}
}

func TestCreateHabitValidation(t *testing.T) {
	env := setupTestServer(t)
	c := env.client(t, alice)

	_, err := c.CreateHabit(context.Background(), &api.CreateHabitRequest{Name: "   "})
	wantCode(t, err, connect.CodeInvalidArgument)
}

func TestRequiresToken(t *testing.T) {
	env := setupTestServer(t)
	anon := api.NewClient(http.DefaultClient, env.server.URL, "")

	_, err := anon.ListHabits(context.Background(), &api.ListHabitsRequest{})
	wantCode(t, err, connect.CodeUnauthenticated)

	forged := api.NewClient(http.DefaultClient, env.server.URL, "forged")
	_, err = forged.ListHabits(context.Background(), &api.ListHabitsRequest{})
	wantCode(t, err, connect.CodeUnauthenticated)
}

func TestJoinHabit(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	owner := env.client(t, alice)
	joiner := env.client(t, bob)

	habit := createHabit(t, owner, "Read")

	preview, err := joiner.ResolveInviteCode(ctx, &api.ResolveInviteCodeRequest{InviteCode: habit.InviteCode})
	if err != nil {
		t.Fatalf("ResolveInviteCode failed: %v", err)
	}
	if preview.HabitID != habit.ID || preview.ParticipantCount != 1 || preview.AlreadyMember {
		t.Errorf("unexpected preview %+v", preview)
	}

	first, err := joiner.JoinHabit(ctx, &api.JoinHabitRequest{InviteCode: habit.InviteCode})
	if err != nil {
		t.Fatalf("JoinHabit failed: %v", err)
	}
	if !first.Joined {
		t.Error("expected first join to add the participant")
	}

	second, err := joiner.JoinHabit(ctx, &api.JoinHabitRequest{HabitID: habit.ID})
	if err != nil {
		t.Fatalf("second JoinHabit failed: %v", err)
	}
	if second.Joined {
		t.Error("expected second join to be a no-op")
	}
	if len(second.Habit.ParticipantIDs) != 2 {
		t.Errorf("participants: expected 2, got %v", second.Habit.ParticipantIDs)
	}

	board, err := owner.GetLeaderboard(ctx, &api.GetLeaderboardRequest{HabitID: habit.ID})
	if err != nil {
		t.Fatalf("GetLeaderboard failed: %v", err)
	}
	if len(board.Entries) != 2 {
		t.Fatalf("expected 2 leaderboard entries, got %d", len(board.Entries))
	}
	for _, e := range board.Entries {
		if e.Position != 1 {
			t.Errorf("expected all zero streaks tied at 1, got %+v", e)
		}
	}

	lists, err := joiner.ListHabits(ctx, &api.ListHabitsRequest{})
	if err != nil {
		t.Fatalf("ListHabits failed: %v", err)
	}
	if len(lists.Habits) != 1 || lists.Habits[0].ID != habit.ID {
		t.Errorf("expected bob's habits to be [%s], got %+v", habit.ID, lists.Habits)
	}
}

func TestJoinHabitErrors(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	c := env.client(t, bob)

	_, err := c.JoinHabit(ctx, &api.JoinHabitRequest{InviteCode: "ZZZZZZ"})
	wantCode(t, err, connect.CodeNotFound)

	_, err = c.ResolveInviteCode(ctx, &api.ResolveInviteCodeRequest{InviteCode: "nope"})
	wantCode(t, err, connect.CodeNotFound)

	_, err = c.JoinHabit(ctx, &api.JoinHabitRequest{})
	wantCode(t, err, connect.CodeInvalidArgument)

	_, err = c.JoinHabit(ctx, &api.JoinHabitRequest{HabitID: "missing"})
	wantCode(t, err, connect.CodeNotFound)
}

func TestCheckInAndUndo(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	c := env.client(t, alice)
	habit := createHabit(t, c, "Stretch")

	resp, err := c.CheckIn(ctx, &api.CheckInRequest{HabitID: habit.ID})
	if err != nil {
		t.Fatalf("CheckIn failed: %v", err)
	}
	if resp.Outcome != api.OutcomeSuccess || resp.Streak.CurrentStreak != 1 {
		t.Errorf("unexpected check-in result %+v", resp)
	}
	if !resp.Streak.CompletedToday || !resp.Streak.Active {
		t.Errorf("expected completed and active, got %+v", resp.Streak)
	}
	if resp.Streak.LastCompletionDate != "2024-01-10" {
		t.Errorf("last completion: expected 2024-01-10, got %s", resp.Streak.LastCompletionDate)
	}

	resp, err = c.CheckIn(ctx, &api.CheckInRequest{HabitID: habit.ID})
	if err != nil {
		t.Fatalf("second CheckIn failed: %v", err)
	}
	if resp.Outcome != api.OutcomeAlreadyCompleted || resp.Streak.CurrentStreak != 1 {
		t.Errorf("expected already_completed at 1, got %+v", resp)
	}

	undo, err := c.UndoCheckIn(ctx, &api.UndoCheckInRequest{HabitID: habit.ID})
	if err != nil {
		t.Fatalf("UndoCheckIn failed: %v", err)
	}
	if undo.Outcome != api.OutcomeSuccess || undo.Streak.CurrentStreak != 0 || undo.Streak.LastCompletionDate != "" {
		t.Errorf("unexpected undo result %+v", undo)
	}

	undo, err = c.UndoCheckIn(ctx, &api.UndoCheckInRequest{HabitID: habit.ID})
	if err != nil {
		t.Fatalf("second UndoCheckIn failed: %v", err)
	}
	if undo.Outcome != api.OutcomeNothingToUndo {
		t.Errorf("expected nothing_to_undo, got %s", undo.Outcome)
	}
}

func TestStreakAcrossDays(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	c := env.client(t, alice)
	habit := createHabit(t, c, "Journal")

	for i := 0; i < 3; i++ {
		if _, err := c.CheckIn(ctx, &api.CheckInRequest{HabitID: habit.ID}); err != nil {
			t.Fatalf("CheckIn day %d failed: %v", i, err)
		}
		env.clock.Advance(1)
	}

	got, err := c.GetStreak(ctx, &api.GetStreakRequest{HabitID: habit.ID})
	if err != nil {
		t.Fatalf("GetStreak failed: %v", err)
	}
	if got.Streak.CurrentStreak != 3 || got.Streak.CompletedToday || !got.Streak.Active {
		t.Errorf("expected streak 3, not done today, still active; got %+v", got.Streak)
	}

	// Missing a whole day breaks the streak.
	env.clock.Advance(1)
	got, err = c.GetStreak(ctx, &api.GetStreakRequest{HabitID: habit.ID})
	if err != nil {
		t.Fatalf("GetStreak failed: %v", err)
	}
	if got.Streak.Active {
		t.Errorf("expected inactive streak after a missed day, got %+v", got.Streak)
	}

	resp, err := c.CheckIn(ctx, &api.CheckInRequest{HabitID: habit.ID})
	if err != nil {
		t.Fatalf("CheckIn failed: %v", err)
	}
	if resp.Streak.CurrentStreak != 1 {
		t.Errorf("expected reset to 1, got %d", resp.Streak.CurrentStreak)
	}
}

func TestOutsidersAreRejected(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	habit := createHabit(t, env.client(t, alice), "Meditate")
	outsider := env.client(t, eve)

	_, err := outsider.CheckIn(ctx, &api.CheckInRequest{HabitID: habit.ID})
	wantCode(t, err, connect.CodePermissionDenied)

	_, err = outsider.GetHabit(ctx, &api.GetHabitRequest{HabitID: habit.ID})
	wantCode(t, err, connect.CodePermissionDenied)

	_, err = outsider.GetLeaderboard(ctx, &api.GetLeaderboardRequest{HabitID: habit.ID})
	wantCode(t, err, connect.CodePermissionDenied)

	_, err = outsider.CheckIn(ctx, &api.CheckInRequest{HabitID: "missing"})
	wantCode(t, err, connect.CodeNotFound)

	_, err = outsider.CheckIn(ctx, &api.CheckInRequest{})
	wantCode(t, err, connect.CodeInvalidArgument)
}

func TestUpdateHabit(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	owner := env.client(t, alice)
	member := env.client(t, bob)
	habit := createHabit(t, owner, "Walk")

	if _, err := member.JoinHabit(ctx, &api.JoinHabitRequest{InviteCode: habit.InviteCode}); err != nil {
		t.Fatalf("JoinHabit failed: %v", err)
	}

	_, err := member.UpdateHabit(ctx, &api.UpdateHabitRequest{HabitID: habit.ID, Name: "Hijacked"})
	wantCode(t, err, connect.CodePermissionDenied)

	resp, err := owner.UpdateHabit(ctx, &api.UpdateHabitRequest{HabitID: habit.ID, Name: "Walk 10k", Description: "steps"})
	if err != nil {
		t.Fatalf("UpdateHabit failed: %v", err)
	}
	if resp.Habit.Name != "Walk 10k" || resp.Habit.Description != "steps" {
		t.Errorf("unexpected habit %+v", resp.Habit)
	}
	if resp.Habit.InviteCode != habit.InviteCode {
		t.Errorf("invite code changed from %s to %s", habit.InviteCode, resp.Habit.InviteCode)
	}

	got, err := member.GetHabit(ctx, &api.GetHabitRequest{HabitID: habit.ID})
	if err != nil {
		t.Fatalf("GetHabit failed: %v", err)
	}
	if got.Habit.Name != "Walk 10k" {
		t.Errorf("expected updated name, got %s", got.Habit.Name)
	}
}

func TestLeaderboardOrdering(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	a := env.client(t, alice)
	b := env.client(t, bob)
	e := env.client(t, eve)
	habit := createHabit(t, a, "Push-ups")

	for _, c := range []*api.Client{b, e} {
		if _, err := c.JoinHabit(ctx, &api.JoinHabitRequest{InviteCode: habit.InviteCode}); err != nil {
			t.Fatalf("JoinHabit failed: %v", err)
		}
	}

	// Day 1: everyone. Day 2: bob and eve.
	for _, c := range []*api.Client{a, b, e} {
		if _, err := c.CheckIn(ctx, &api.CheckInRequest{HabitID: habit.ID}); err != nil {
			t.Fatalf("CheckIn failed: %v", err)
		}
	}
	env.clock.Advance(1)
	for _, c := range []*api.Client{e, b} {
		if _, err := c.CheckIn(ctx, &api.CheckInRequest{HabitID: habit.ID}); err != nil {
			t.Fatalf("CheckIn failed: %v", err)
		}
	}

	board, err := a.GetLeaderboard(ctx, &api.GetLeaderboardRequest{HabitID: habit.ID})
	if err != nil {
		t.Fatalf("GetLeaderboard failed: %v", err)
	}

	want := []struct {
		pos    int
		user   string
		streak int
	}{
		{1, "bob", 2},
		{1, "eve", 2},
		{3, "alice", 1},
	}
	if len(board.Entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(board.Entries))
	}
	for i, w := range want {
		got := board.Entries[i]
		if got.Position != w.pos || got.Streak.UserID != w.user || got.Streak.CurrentStreak != w.streak {
			t.Errorf("entry %d: expected %+v, got pos=%d user=%s streak=%d",
				i, w, got.Position, got.Streak.UserID, got.Streak.CurrentStreak)
		}
	}
	if board.Today != "2024-01-11" {
		t.Errorf("today: expected 2024-01-11, got %s", board.Today)
	}
	if board.Entries[1].Streak.UserPhotoURL != "" || board.Entries[0].Streak.UserPhotoURL != bob.PhotoURL {
		t.Errorf("expected bob's photo on his entry only")
	}

	top, err := a.GetLeaderboard(ctx, &api.GetLeaderboardRequest{HabitID: habit.ID, Limit: 1})
	if err != nil {
		t.Fatalf("GetLeaderboard failed: %v", err)
	}
	if len(top.Entries) != 1 {
		t.Errorf("expected 1 entry with limit, got %d", len(top.Entries))
	}
}

func TestHealth(t *testing.T) {
	env := setupTestServer(t)

	resp, err := http.Get(env.server.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []websocket.Message
}

func (p *recordingPublisher) Publish(msg websocket.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
}

func TestStreakEventsPublishedOnChange(t *testing.T) {
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	ctx := middleware.WithUser(context.Background(), &alice)
	members := membership.NewService(store)
	habit, err := members.CreateHabit(ctx, alice, "Floss", "")
	if err != nil {
		t.Fatalf("CreateHabit failed: %v", err)
	}

	clk := clock.NewFixed(civil.Date{Year: 2024, Month: time.May, Day: 1})
	pub := &recordingPublisher{}
	svc := NewStreakService(streak.NewTracker(store, clk, streak.PolicyStrict, storage.DefaultRetryPolicy()), pub)

	for i := 0; i < 2; i++ {
		if _, err := svc.CheckIn(ctx, connect.NewRequest(&api.CheckInRequest{HabitID: habit.ID})); err != nil {
			t.Fatalf("CheckIn failed: %v", err)
		}
	}
	if _, err := svc.UndoCheckIn(ctx, connect.NewRequest(&api.UndoCheckInRequest{HabitID: habit.ID})); err != nil {
		t.Fatalf("UndoCheckIn failed: %v", err)
	}

	want := []websocket.Message{
		{Type: websocket.EventCheckedIn, HabitID: habit.ID, UserID: "alice", CurrentStreak: 1},
		{Type: websocket.EventUndone, HabitID: habit.ID, UserID: "alice", CurrentStreak: 0},
	}
	if len(pub.msgs) != len(want) {
		t.Fatalf("expected %d events, got %+v", len(want), pub.msgs)
	}
	for i := range want {
		if pub.msgs[i] != want[i] {
			t.Errorf("event %d: expected %+v, got %+v", i, want[i], pub.msgs[i])
		}
	}
}
