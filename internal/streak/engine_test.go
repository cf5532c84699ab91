package streak

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/habitly/internal/models"
)

var day0 = civil.Date{Year: 2024, Month: time.March, Day: 10}

func record(streak int, last civil.Date) models.StreakRecord {
	return models.StreakRecord{HabitID: "h1", UserID: "u1", CurrentStreak: streak, LastCompletionDate: last}
}

func TestCheckIn(t *testing.T) {
	none := civil.Date{}

	tests := []struct {
		name        string
		in          models.StreakRecord
		policy      Policy
		wantStreak  int
		wantDate    civil.Date
		wantOutcome Outcome
	}{
		{"first ever check-in", record(0, none), PolicyStrict, 1, day0, OutcomeSuccess},
		{"continues from yesterday", record(5, day0.AddDays(-1)), PolicyStrict, 6, day0, OutcomeSuccess},
		{"resets after a missed day", record(5, day0.AddDays(-2)), PolicyStrict, 1, day0, OutcomeSuccess},
		{"resets after a long gap", record(40, day0.AddDays(-30)), PolicyStrict, 1, day0, OutcomeSuccess},
		{"second check-in same day", record(3, day0), PolicyStrict, 3, day0, OutcomeAlreadyCompleted},
		{"grace day continues across one gap", record(5, day0.AddDays(-2)), PolicyGraceDay, 6, day0, OutcomeSuccess},
		{"grace day still resets after two gaps", record(5, day0.AddDays(-3)), PolicyGraceDay, 1, day0, OutcomeSuccess},
		{"grace day from yesterday", record(2, day0.AddDays(-1)), PolicyGraceDay, 3, day0, OutcomeSuccess},
		{"streak without date starts fresh", record(4, none), PolicyStrict, 1, day0, OutcomeSuccess},
		{"date without streak starts fresh", record(0, day0.AddDays(-1)), PolicyStrict, 1, day0, OutcomeSuccess},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, outcome := CheckIn(tt.in, day0, tt.policy)
			assert.Equal(t, tt.wantOutcome, outcome)
			assert.Equal(t, tt.wantStreak, got.CurrentStreak)
			assert.Equal(t, tt.wantDate, got.LastCompletionDate)
			assert.Equal(t, tt.in.HabitID, got.HabitID)
			assert.Equal(t, tt.in.UserID, got.UserID)
		})
	}
}

func TestCheckInIsIdempotentPerDay(t *testing.T) {
	for _, start := range []models.StreakRecord{
		record(0, civil.Date{}),
		record(7, day0.AddDays(-1)),
		record(2, day0.AddDays(-9)),
	} {
		once, _ := CheckIn(start, day0, PolicyStrict)
		twice, outcome := CheckIn(once, day0, PolicyStrict)
		assert.Equal(t, OutcomeAlreadyCompleted, outcome)
		assert.True(t, once.SameState(twice))
	}
}

func TestUndo(t *testing.T) {
	none := civil.Date{}

	tests := []struct {
		name        string
		in          models.StreakRecord
		wantStreak  int
		wantDate    civil.Date
		wantOutcome Outcome
	}{
		{"undo first check-in", record(1, day0), 0, none, OutcomeSuccess},
		{"undo extends back to yesterday", record(6, day0), 5, day0.AddDays(-1), OutcomeSuccess},
		{"nothing completed today", record(6, day0.AddDays(-1)), 6, day0.AddDays(-1), OutcomeNothingToUndo},
		{"never completed", record(0, none), 0, none, OutcomeNothingToUndo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, outcome := Undo(tt.in, day0)
			assert.Equal(t, tt.wantOutcome, outcome)
			assert.Equal(t, tt.wantStreak, got.CurrentStreak)
			assert.Equal(t, tt.wantDate, got.LastCompletionDate)
		})
	}
}

func TestCheckInThenUndoRestoresStreak(t *testing.T) {
	for _, start := range []models.StreakRecord{
		record(0, civil.Date{}),
		record(1, day0.AddDays(-1)),
		record(12, day0.AddDays(-1)),
	} {
		checked, outcome := CheckIn(start, day0, PolicyStrict)
		require.Equal(t, OutcomeSuccess, outcome)

		undone, outcome := Undo(checked, day0)
		require.Equal(t, OutcomeSuccess, outcome)
		assert.Equal(t, start.CurrentStreak, undone.CurrentStreak)
		assert.Equal(t, start.LastCompletionDate, undone.LastCompletionDate)
	}
}

func TestStreakZeroIffNoDate(t *testing.T) {
	r := record(0, civil.Date{})
	today := day0
	ops := []string{"in", "in", "undo", "undo", "in", "skip", "in", "in", "undo", "skip", "skip", "in"}

	for _, op := range ops {
		switch op {
		case "in":
			r, _ = CheckIn(r, today, PolicyStrict)
		case "undo":
			r, _ = Undo(r, today)
		case "skip":
			today = today.AddDays(1)
			continue
		}
		assert.Equal(t, r.CurrentStreak == 0, !r.HasCompletion(), "after %s on %s: %+v", op, today, r)
		assert.GreaterOrEqual(t, r.CurrentStreak, 0)
		today = today.AddDays(1)
	}
}

// Three consecutive days then a gap.
func TestConsecutiveDaysThenGap(t *testing.T) {
	d1 := civil.Date{Year: 2024, Month: time.March, Day: 1}
	r := record(0, civil.Date{})

	r, _ = CheckIn(r, d1, PolicyStrict)
	r, _ = CheckIn(r, d1.AddDays(1), PolicyStrict)
	r, _ = CheckIn(r, d1.AddDays(2), PolicyStrict)
	assert.Equal(t, 3, r.CurrentStreak)
	assert.Equal(t, "2024-03-03", r.LastCompletionDate.String())

	r, _ = CheckIn(r, d1.AddDays(4), PolicyStrict)
	assert.Equal(t, 1, r.CurrentStreak)
	assert.Equal(t, "2024-03-05", r.LastCompletionDate.String())
}

// A mistaken check-in is undone and then redone the same day.
func TestUndoThenRedoSameDay(t *testing.T) {
	d := civil.Date{Year: 2024, Month: time.March, Day: 10}
	r := record(4, d.AddDays(-1))

	r, _ = CheckIn(r, d, PolicyStrict)
	assert.Equal(t, 5, r.CurrentStreak)

	r, _ = Undo(r, d)
	assert.Equal(t, 4, r.CurrentStreak)
	assert.Equal(t, "2024-03-09", r.LastCompletionDate.String())

	r, _ = CheckIn(r, d, PolicyStrict)
	assert.Equal(t, 5, r.CurrentStreak)
	assert.Equal(t, "2024-03-10", r.LastCompletionDate.String())
}

func TestMonthAndYearBoundaries(t *testing.T) {
	feb28 := civil.Date{Year: 2024, Month: time.February, Day: 28}
	r, _ := CheckIn(record(2, feb28), feb28.AddDays(1), PolicyStrict)
	assert.Equal(t, 3, r.CurrentStreak, "leap day continues")

	dec31 := civil.Date{Year: 2023, Month: time.December, Day: 31}
	r, _ = CheckIn(record(9, dec31), civil.Date{Year: 2024, Month: time.January, Day: 1}, PolicyStrict)
	assert.Equal(t, 10, r.CurrentStreak)
}

func TestCompletedTodayAndIsActive(t *testing.T) {
	assert.True(t, CompletedToday(record(1, day0), day0))
	assert.False(t, CompletedToday(record(1, day0.AddDays(-1)), day0))
	assert.False(t, CompletedToday(record(0, civil.Date{}), day0))

	assert.True(t, IsActive(record(3, day0), day0, PolicyStrict))
	assert.True(t, IsActive(record(3, day0.AddDays(-1)), day0, PolicyStrict))
	assert.False(t, IsActive(record(3, day0.AddDays(-2)), day0, PolicyStrict))
	assert.True(t, IsActive(record(3, day0.AddDays(-2)), day0, PolicyGraceDay))
	assert.False(t, IsActive(record(0, civil.Date{}), day0, PolicyGraceDay))
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]Policy{
		"":          PolicyStrict,
		"strict":    PolicyStrict,
		"Grace":     PolicyGraceDay,
		"grace-day": PolicyGraceDay,
	} {
		got, err := ParsePolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParsePolicy("lenient")
	assert.Error(t, err)
}
