// Package api defines the Habitly RPC surface: procedure names, request and
// response messages, and a typed client. Messages travel as JSON over the
// Connect protocol.
package api

const (
	// HabitServiceName is the fully-qualified name of the habit service.
	HabitServiceName = "habitly.v1.HabitService"
	// StreakServiceName is the fully-qualified name of the streak service.
	StreakServiceName = "habitly.v1.StreakService"
)

// Procedure paths.
const (
	CreateHabitProcedure       = "/" + HabitServiceName + "/CreateHabit"
	GetHabitProcedure          = "/" + HabitServiceName + "/GetHabit"
	ListHabitsProcedure        = "/" + HabitServiceName + "/ListHabits"
	UpdateHabitProcedure       = "/" + HabitServiceName + "/UpdateHabit"
	ResolveInviteCodeProcedure = "/" + HabitServiceName + "/ResolveInviteCode"
	JoinHabitProcedure         = "/" + HabitServiceName + "/JoinHabit"
	GetLeaderboardProcedure    = "/" + HabitServiceName + "/GetLeaderboard"

	CheckInProcedure     = "/" + StreakServiceName + "/CheckIn"
	UndoCheckInProcedure = "/" + StreakServiceName + "/UndoCheckIn"
	GetStreakProcedure   = "/" + StreakServiceName + "/GetStreak"
)

// Outcome values reported by CheckIn and UndoCheckIn.
const (
	OutcomeSuccess          = "success"
	OutcomeAlreadyCompleted = "already_completed"
	OutcomeNothingToUndo    = "nothing_to_undo"
)

// Habit is a shared habit as seen by one of its participants.
type Habit struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description,omitempty"`
	OwnerID        string   `json:"owner_id"`
	ParticipantIDs []string `json:"participant_ids"`
	InviteCode     string   `json:"invite_code"`
	CreatedAt      int64    `json:"created_at"`
}

// Streak is one participant's streak in a habit.
type Streak struct {
	HabitID       string `json:"habit_id"`
	UserID        string `json:"user_id"`
	UserName      string `json:"user_name,omitempty"`
	UserPhotoURL  string `json:"user_photo_url,omitempty"`
	CurrentStreak int    `json:"current_streak"`
	// LastCompletionDate is YYYY-MM-DD, empty when never completed.
	LastCompletionDate string `json:"last_completion_date,omitempty"`
	CompletedToday     bool   `json:"completed_today"`
	// Active is false once the streak can no longer be continued.
	Active bool `json:"active"`
}

// LeaderboardEntry is a ranked streak. Tied streaks share a position.
type LeaderboardEntry struct {
	Position int    `json:"position"`
	Streak   Streak `json:"streak"`
}

type CreateHabitRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type CreateHabitResponse struct {
	Habit Habit `json:"habit"`
}

type GetHabitRequest struct {
	HabitID string `json:"habit_id"`
}

type GetHabitResponse struct {
	Habit Habit `json:"habit"`
}

type ListHabitsRequest struct{}

type ListHabitsResponse struct {
	Habits []Habit `json:"habits"`
}

type UpdateHabitRequest struct {
	HabitID     string `json:"habit_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type UpdateHabitResponse struct {
	Habit Habit `json:"habit"`
}

type ResolveInviteCodeRequest struct {
	InviteCode string `json:"invite_code"`
}

// ResolveInviteCodeResponse previews a habit before joining it.
type ResolveInviteCodeResponse struct {
	HabitID          string `json:"habit_id"`
	Name             string `json:"name"`
	Description      string `json:"description,omitempty"`
	ParticipantCount int    `json:"participant_count"`
	AlreadyMember    bool   `json:"already_member"`
}

// JoinHabitRequest names the habit by invite code, or by ID for a caller
// who already resolved the code.
type JoinHabitRequest struct {
	InviteCode string `json:"invite_code,omitempty"`
	HabitID    string `json:"habit_id,omitempty"`
}

type JoinHabitResponse struct {
	Habit Habit `json:"habit"`
	// Joined is false when the caller was already a participant.
	Joined bool `json:"joined"`
}

type GetLeaderboardRequest struct {
	HabitID string `json:"habit_id"`
	// Limit keeps the first Limit entries; zero returns everyone.
	Limit int `json:"limit,omitempty"`
}

type GetLeaderboardResponse struct {
	Entries []LeaderboardEntry `json:"entries"`
	// Today is the server's current date, YYYY-MM-DD.
	Today string `json:"today"`
}

type CheckInRequest struct {
	HabitID string `json:"habit_id"`
}

type CheckInResponse struct {
	Streak  Streak `json:"streak"`
	Outcome string `json:"outcome"`
}

type UndoCheckInRequest struct {
	HabitID string `json:"habit_id"`
}

type UndoCheckInResponse struct {
	Streak  Streak `json:"streak"`
	Outcome string `json:"outcome"`
}

type GetStreakRequest struct {
	HabitID string `json:"habit_id"`
}

type GetStreakResponse struct {
	Streak Streak `json:"streak"`
}
