package api

import (
	"context"
	"strings"

	"connectrpc.com/connect"
)

// Client is a typed client for both Habitly services.
type Client struct {
	createHabit       *connect.Client[CreateHabitRequest, CreateHabitResponse]
	getHabit          *connect.Client[GetHabitRequest, GetHabitResponse]
	listHabits        *connect.Client[ListHabitsRequest, ListHabitsResponse]
	updateHabit       *connect.Client[UpdateHabitRequest, UpdateHabitResponse]
	resolveInviteCode *connect.Client[ResolveInviteCodeRequest, ResolveInviteCodeResponse]
	joinHabit         *connect.Client[JoinHabitRequest, JoinHabitResponse]
	getLeaderboard    *connect.Client[GetLeaderboardRequest, GetLeaderboardResponse]
	checkIn           *connect.Client[CheckInRequest, CheckInResponse]
	undoCheckIn       *connect.Client[UndoCheckInRequest, UndoCheckInResponse]
	getStreak         *connect.Client[GetStreakRequest, GetStreakResponse]
}

// NewClient creates a Client for the server at baseURL. token, when set, is
// sent as a bearer token on every call.
func NewClient(httpClient connect.HTTPClient, baseURL, token string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(JSONCodec{})}, opts...)
	if token != "" {
		opts = append(opts, connect.WithInterceptors(bearer(token)))
	}
	return &Client{
		createHabit:       connect.NewClient[CreateHabitRequest, CreateHabitResponse](httpClient, baseURL+CreateHabitProcedure, opts...),
		getHabit:          connect.NewClient[GetHabitRequest, GetHabitResponse](httpClient, baseURL+GetHabitProcedure, opts...),
		listHabits:        connect.NewClient[ListHabitsRequest, ListHabitsResponse](httpClient, baseURL+ListHabitsProcedure, opts...),
		updateHabit:       connect.NewClient[UpdateHabitRequest, UpdateHabitResponse](httpClient, baseURL+UpdateHabitProcedure, opts...),
		resolveInviteCode: connect.NewClient[ResolveInviteCodeRequest, ResolveInviteCodeResponse](httpClient, baseURL+ResolveInviteCodeProcedure, opts...),
		joinHabit:         connect.NewClient[JoinHabitRequest, JoinHabitResponse](httpClient, baseURL+JoinHabitProcedure, opts...),
		getLeaderboard:    connect.NewClient[GetLeaderboardRequest, GetLeaderboardResponse](httpClient, baseURL+GetLeaderboardProcedure, opts...),
		checkIn:           connect.NewClient[CheckInRequest, CheckInResponse](httpClient, baseURL+CheckInProcedure, opts...),
		undoCheckIn:       connect.NewClient[UndoCheckInRequest, UndoCheckInResponse](httpClient, baseURL+UndoCheckInProcedure, opts...),
		getStreak:         connect.NewClient[GetStreakRequest, GetStreakResponse](httpClient, baseURL+GetStreakProcedure, opts...),
	}
}

func bearer(token string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if req.Spec().IsClient {
				req.Header().Set("Authorization", "Bearer "+token)
			}
			return next(ctx, req)
		}
	}
}

func call[Req, Res any](ctx context.Context, c *connect.Client[Req, Res], req *Req) (*Res, error) {
	resp, err := c.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *Client) CreateHabit(ctx context.Context, req *CreateHabitRequest) (*CreateHabitResponse, error) {
	return call(ctx, c.createHabit, req)
}

func (c *Client) GetHabit(ctx context.Context, req *GetHabitRequest) (*GetHabitResponse, error) {
	return call(ctx, c.getHabit, req)
}

func (c *Client) ListHabits(ctx context.Context, req *ListHabitsRequest) (*ListHabitsResponse, error) {
	return call(ctx, c.listHabits, req)
}

func (c *Client) UpdateHabit(ctx context.Context, req *UpdateHabitRequest) (*UpdateHabitResponse, error) {
	return call(ctx, c.updateHabit, req)
}

func (c *Client) ResolveInviteCode(ctx context.Context, req *ResolveInviteCodeRequest) (*ResolveInviteCodeResponse, error) {
	return call(ctx, c.resolveInviteCode, req)
}

func (c *Client) JoinHabit(ctx context.Context, req *JoinHabitRequest) (*JoinHabitResponse, error) {
	return call(ctx, c.joinHabit, req)
}

func (c *Client) GetLeaderboard(ctx context.Context, req *GetLeaderboardRequest) (*GetLeaderboardResponse, error) {
	return call(ctx, c.getLeaderboard, req)
}

func (c *Client) CheckIn(ctx context.Context, req *CheckInRequest) (*CheckInResponse, error) {
	return call(ctx, c.checkIn, req)
}

func (c *Client) UndoCheckIn(ctx context.Context, req *UndoCheckInRequest) (*UndoCheckInResponse, error) {
	return call(ctx, c.undoCheckIn, req)
}

func (c *Client) GetStreak(ctx context.Context, req *GetStreakRequest) (*GetStreakResponse, error) {
	return call(ctx, c.getStreak, req)
}
