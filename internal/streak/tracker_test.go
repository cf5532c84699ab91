package streak

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/habitly/internal/clock"
	"github.com/mmynk/habitly/internal/models"
	"github.com/mmynk/habitly/internal/storage"
	"github.com/mmynk/habitly/internal/storage/sqlite"
)

type trackerFixture struct {
	tracker *Tracker
	store   *sqlite.SQLiteStore
	clock   *clock.Fixed
	habitID string
}

func newTrackerFixture(t *testing.T, policy Policy) *trackerFixture {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	habit := &models.Habit{Name: "Read", InviteCode: "READ01"}
	require.NoError(t, store.CreateHabit(context.Background(), habit, models.User{ID: "alice", DisplayName: "Alice"}))

	clk := clock.NewFixed(civil.Date{Year: 2024, Month: time.March, Day: 1})
	retry := storage.RetryPolicy{MaxRetries: 20, BaseDelay: time.Millisecond}
	return &trackerFixture{
		tracker: NewTracker(store, clk, policy, retry),
		store:   store,
		clock:   clk,
		habitID: habit.ID,
	}
}

func TestTrackerCheckInAcrossDays(t *testing.T) {
	f := newTrackerFixture(t, PolicyStrict)
	ctx := context.Background()

	for day := 1; day <= 3; day++ {
		res, err := f.tracker.CheckIn(ctx, f.habitID, "alice")
		require.NoError(t, err)
		assert.Equal(t, OutcomeSuccess, res.Outcome)
		assert.Equal(t, day, res.Record.CurrentStreak)
		f.clock.Advance(1)
	}

	// Skip a day.
	f.clock.Advance(1)
	res, err := f.tracker.CheckIn(ctx, f.habitID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Record.CurrentStreak)
	assert.Equal(t, "2024-03-05", res.Record.LastCompletionDate.String())

	stored, err := f.store.GetStreakRecord(ctx, f.habitID, "alice")
	require.NoError(t, err)
	assert.True(t, res.Record.SameState(*stored))
}

func TestTrackerAlreadyCompletedAndUndo(t *testing.T) {
	f := newTrackerFixture(t, PolicyStrict)
	ctx := context.Background()

	_, err := f.tracker.CheckIn(ctx, f.habitID, "alice")
	require.NoError(t, err)

	res, err := f.tracker.CheckIn(ctx, f.habitID, "alice")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyCompleted, res.Outcome)
	assert.Equal(t, 1, res.Record.CurrentStreak)

	res, err = f.tracker.Undo(ctx, f.habitID, "alice")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, 0, res.Record.CurrentStreak)
	assert.False(t, res.Record.HasCompletion())

	res, err = f.tracker.Undo(ctx, f.habitID, "alice")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNothingToUndo, res.Outcome)
}

func TestTrackerGraceDay(t *testing.T) {
	f := newTrackerFixture(t, PolicyGraceDay)
	ctx := context.Background()

	_, err := f.tracker.CheckIn(ctx, f.habitID, "alice")
	require.NoError(t, err)
	f.clock.Advance(2)

	res, err := f.tracker.CheckIn(ctx, f.habitID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Record.CurrentStreak)
}

func TestTrackerRejectsOutsiders(t *testing.T) {
	f := newTrackerFixture(t, PolicyStrict)
	ctx := context.Background()

	_, err := f.tracker.CheckIn(ctx, f.habitID, "mallory")
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = f.tracker.Undo(ctx, "missing", "alice")
	assert.ErrorIs(t, err, ErrHabitNotFound)

	_, err = f.tracker.Get(ctx, f.habitID, "mallory")
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = f.store.GetStreakRecord(ctx, f.habitID, "mallory")
	assert.ErrorIs(t, err, storage.ErrNotFound, "outsiders must not get a record")
}

func TestTrackerConcurrentCheckIns(t *testing.T) {
	f := newTrackerFixture(t, PolicyStrict)
	ctx := context.Background()

	const workers = 10
	outcomes := make([]Outcome, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.tracker.CheckIn(ctx, f.habitID, "alice")
			if assert.NoError(t, err) {
				outcomes[i] = res.Outcome
				assert.Equal(t, 1, res.Record.CurrentStreak)
			}
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, o := range outcomes {
		if o == OutcomeSuccess {
			successes++
		}
	}
	assert.Equal(t, 1, successes)
}
