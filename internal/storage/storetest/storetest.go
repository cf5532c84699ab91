// Package storetest is a conformance suite shared by every storage.Store
// backend.
package storetest

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/habitly/internal/models"
	"github.com/mmynk/habitly/internal/storage"
	"github.com/mmynk/habitly/internal/streak"
)

// Factory returns an empty store. The suite closes it.
type Factory func(t *testing.T) storage.Store

var (
	alice = models.User{ID: "alice-" + uuid.NewString()[:8], DisplayName: "Alice", PhotoURL: "https://img.example/alice.png"}
	bob   = models.User{ID: "bob-" + uuid.NewString()[:8], DisplayName: "Bob"}
	carol = models.User{ID: "carol-" + uuid.NewString()[:8], DisplayName: "Carol"}
)

func inviteCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
}

func newHabit(t *testing.T, ctx context.Context, s storage.Store, owner models.User, name string) *models.Habit {
	t.Helper()
	h := &models.Habit{Name: name, Description: "daily", InviteCode: inviteCode()}
	require.NoError(t, s.CreateHabit(ctx, h, owner))
	return h
}

// Run executes the suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateHabit provisions the owner", func(t *testing.T) {
		testCreateHabit(t, newStore(t))
	})
	t.Run("CreateHabit rejects a taken invite code", func(t *testing.T) {
		testInviteCodeTaken(t, newStore(t))
	})
	t.Run("lookups report ErrNotFound", func(t *testing.T) {
		testNotFound(t, newStore(t))
	})
	t.Run("UpdateHabitDetails", func(t *testing.T) {
		testUpdateHabitDetails(t, newStore(t))
	})
	t.Run("ListHabitsForUser newest first", func(t *testing.T) {
		testListHabitsForUser(t, newStore(t))
	})
	t.Run("AddParticipant is idempotent", func(t *testing.T) {
		testAddParticipant(t, newStore(t))
	})
	t.Run("AtomicUpdate writes and skips", func(t *testing.T) {
		testAtomicUpdate(t, newStore(t))
	})
	t.Run("concurrent check-ins advance once", func(t *testing.T) {
		testConcurrentCheckIn(t, newStore(t))
	})
	t.Run("concurrent updates are not lost", func(t *testing.T) {
		testNoLostUpdates(t, newStore(t))
	})
	t.Run("concurrent joins add once", func(t *testing.T) {
		testConcurrentJoin(t, newStore(t))
	})
	t.Run("cancelled update writes nothing", func(t *testing.T) {
		testCancelledUpdate(t, newStore(t))
	})
}

func testCreateHabit(t *testing.T, s storage.Store) {
	defer s.Close()
	ctx := context.Background()

	h := newHabit(t, ctx, s, alice, "Read 20 pages")
	assert.NotEmpty(t, h.ID)
	assert.NotZero(t, h.CreatedAt)
	assert.Equal(t, alice.ID, h.OwnerID)

	got, err := s.GetHabit(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, "Read 20 pages", got.Name)
	assert.Equal(t, "daily", got.Description)
	assert.Equal(t, []string{alice.ID}, got.ParticipantIDs)
	assert.Equal(t, h.InviteCode, got.InviteCode)

	byCode, err := s.GetHabitByInviteCode(ctx, h.InviteCode)
	require.NoError(t, err)
	assert.Equal(t, h.ID, byCode.ID)

	rec, err := s.GetStreakRecord(ctx, h.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.CurrentStreak)
	assert.False(t, rec.HasCompletion())
	assert.Equal(t, "Alice", rec.UserName)
	assert.Equal(t, alice.PhotoURL, rec.UserPhotoURL)
}

func testInviteCodeTaken(t *testing.T, s storage.Store) {
	defer s.Close()
	ctx := context.Background()

	first := newHabit(t, ctx, s, alice, "Stretch")

	dup := &models.Habit{Name: "Meditate", InviteCode: first.InviteCode}
	err := s.CreateHabit(ctx, dup, bob)
	require.ErrorIs(t, err, storage.ErrInviteCodeTaken)

	habits, err := s.ListHabitsForUser(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, habits, "failed create must leave nothing behind")
}

func testNotFound(t *testing.T, s storage.Store) {
	defer s.Close()
	ctx := context.Background()

	_, err := s.GetHabit(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.GetHabitByInviteCode(ctx, "ZZZZZZ")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.GetStreakRecord(ctx, "missing", alice.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.AddParticipant(ctx, "missing", bob)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = s.UpdateHabitDetails(ctx, "missing", "x", "")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testUpdateHabitDetails(t *testing.T, s storage.Store) {
	defer s.Close()
	ctx := context.Background()

	h := newHabit(t, ctx, s, alice, "Run")
	require.NoError(t, s.UpdateHabitDetails(ctx, h.ID, "Run 5k", "before work"))

	got, err := s.GetHabit(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, "Run 5k", got.Name)
	assert.Equal(t, "before work", got.Description)
	assert.Equal(t, h.InviteCode, got.InviteCode)
	assert.Equal(t, []string{alice.ID}, got.ParticipantIDs)
}

func testListHabitsForUser(t *testing.T, s storage.Store) {
	defer s.Close()
	ctx := context.Background()

	older := &models.Habit{Name: "Older", InviteCode: inviteCode(), CreatedAt: 1_700_000_000}
	require.NoError(t, s.CreateHabit(ctx, older, alice))
	newer := &models.Habit{Name: "Newer", InviteCode: inviteCode(), CreatedAt: 1_700_000_500}
	require.NoError(t, s.CreateHabit(ctx, newer, bob))
	_, err := s.AddParticipant(ctx, newer.ID, alice)
	require.NoError(t, err)
	other := &models.Habit{Name: "Not mine", InviteCode: inviteCode(), CreatedAt: 1_700_000_900}
	require.NoError(t, s.CreateHabit(ctx, other, carol))

	habits, err := s.ListHabitsForUser(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, habits, 2)
	assert.Equal(t, "Newer", habits[0].Name)
	assert.Equal(t, "Older", habits[1].Name)
	assert.ElementsMatch(t, []string{bob.ID, alice.ID}, habits[0].ParticipantIDs)
}

func testAddParticipant(t *testing.T, s storage.Store) {
	defer s.Close()
	ctx := context.Background()

	h := newHabit(t, ctx, s, alice, "Journal")

	added, err := s.AddParticipant(ctx, h.ID, bob)
	require.NoError(t, err)
	assert.True(t, added)

	rec, err := s.GetStreakRecord(ctx, h.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.CurrentStreak)
	assert.False(t, rec.HasCompletion())
	assert.Equal(t, "Bob", rec.UserName)

	added, err = s.AddParticipant(ctx, h.ID, bob)
	require.NoError(t, err)
	assert.False(t, added)

	added, err = s.AddParticipant(ctx, h.ID, alice)
	require.NoError(t, err)
	assert.False(t, added, "owner is already a member")

	got, err := s.GetHabit(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{alice.ID, bob.ID}, got.ParticipantIDs)

	records, err := s.ListStreakRecords(ctx, h.ID)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func testAtomicUpdate(t *testing.T, s storage.Store) {
	defer s.Close()
	ctx := context.Background()
	today := civil.Date{Year: 2024, Month: time.March, Day: 10}

	h := newHabit(t, ctx, s, alice, "Water")

	rec, err := s.AtomicUpdate(ctx, h.ID, alice.ID, func(cur models.StreakRecord) (models.StreakRecord, bool) {
		next, outcome := streak.CheckIn(cur, today, streak.PolicyStrict)
		return next, outcome.Changed()
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.CurrentStreak)
	assert.Equal(t, today, rec.LastCompletionDate)
	assert.Equal(t, "Alice", rec.UserName, "display fields survive the update")

	stored, err := s.GetStreakRecord(ctx, h.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, rec.SameState(*stored))
	version := stored.Version

	rec, err = s.AtomicUpdate(ctx, h.ID, alice.ID, func(cur models.StreakRecord) (models.StreakRecord, bool) {
		return cur, false
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.CurrentStreak)

	stored, err = s.GetStreakRecord(ctx, h.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, version, stored.Version, "skipped write must not bump the version")

	_, err = s.AtomicUpdate(ctx, "missing", alice.ID, func(cur models.StreakRecord) (models.StreakRecord, bool) {
		cur.CurrentStreak = 1
		return cur, true
	})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testConcurrentCheckIn(t *testing.T, s storage.Store) {
	defer s.Close()
	ctx := context.Background()
	today := civil.Date{Year: 2024, Month: time.March, Day: 10}

	h := newHabit(t, ctx, s, alice, "Walk")
	_, err := s.AtomicUpdate(ctx, h.ID, alice.ID, func(cur models.StreakRecord) (models.StreakRecord, bool) {
		cur.CurrentStreak = 4
		cur.LastCompletionDate = today.AddDays(-1)
		return cur, true
	})
	require.NoError(t, err)

	const workers = 8
	policy := storage.RetryPolicy{MaxRetries: 50, BaseDelay: time.Millisecond}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		streaks   []int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var outcome streak.Outcome
			rec, err := storage.Retry(ctx, s, policy, h.ID, alice.ID, func(cur models.StreakRecord) (models.StreakRecord, bool) {
				next, o := streak.CheckIn(cur, today, streak.PolicyStrict)
				outcome = o
				return next, o.Changed()
			})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if outcome == streak.OutcomeSuccess {
				successes++
			}
			streaks = append(streaks, rec.CurrentStreak)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	for _, n := range streaks {
		assert.Equal(t, 5, n, "every caller observes the post-update value")
	}

	rec, err := s.GetStreakRecord(ctx, h.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, rec.CurrentStreak)
	assert.Equal(t, today, rec.LastCompletionDate)
}

func testNoLostUpdates(t *testing.T, s storage.Store) {
	defer s.Close()
	ctx := context.Background()

	h := newHabit(t, ctx, s, alice, "Pushups")

	const workers = 10
	policy := storage.RetryPolicy{MaxRetries: 100, BaseDelay: time.Millisecond}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := storage.Retry(ctx, s, policy, h.ID, alice.ID, func(cur models.StreakRecord) (models.StreakRecord, bool) {
				cur.CurrentStreak++
				cur.LastCompletionDate = civil.Date{Year: 2024, Month: time.January, Day: 1}
				return cur, true
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rec, err := s.GetStreakRecord(ctx, h.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, workers, rec.CurrentStreak)
}

func testConcurrentJoin(t *testing.T, s storage.Store) {
	defer s.Close()
	ctx := context.Background()

	h := newHabit(t, ctx, s, alice, "Floss")

	const workers = 6
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		added int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// A losing transaction may report a conflict; joining is
			// idempotent so callers simply try again.
			for attempt := 0; attempt < 20; attempt++ {
				ok, err := s.AddParticipant(ctx, h.ID, bob)
				if err != nil {
					time.Sleep(time.Duration(attempt+1) * time.Millisecond)
					continue
				}
				if ok {
					mu.Lock()
					added++
					mu.Unlock()
				}
				return
			}
			t.Error("join never succeeded")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, added)

	got, err := s.GetHabit(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{alice.ID, bob.ID}, got.ParticipantIDs)

	records, err := s.ListStreakRecords(ctx, h.ID)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func testCancelledUpdate(t *testing.T, s storage.Store) {
	defer s.Close()
	ctx := context.Background()

	h := newHabit(t, ctx, s, alice, "Sleep early")

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err := s.AtomicUpdate(cctx, h.ID, alice.ID, func(cur models.StreakRecord) (models.StreakRecord, bool) {
		cur.CurrentStreak = 99
		cur.LastCompletionDate = civil.Date{Year: 2024, Month: time.January, Day: 1}
		return cur, true
	})
	require.Error(t, err)

	rec, err := s.GetStreakRecord(ctx, h.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.CurrentStreak)
}
