package service

import (
	"context"
	"errors"

	"connectrpc.com/connect"

	"github.com/mmynk/habitly/internal/membership"
	"github.com/mmynk/habitly/internal/storage"
	"github.com/mmynk/habitly/internal/streak"
)

// toConnectError maps domain errors onto Connect codes. Anything unrecognised
// is internal; its detail stays in the server log.
func toConnectError(err error) *connect.Error {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr
	}

	switch {
	case errors.Is(err, membership.ErrHabitNotFound),
		errors.Is(err, streak.ErrHabitNotFound),
		errors.Is(err, membership.ErrInvalidInviteCode),
		errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, streak.ErrNotParticipant),
		errors.Is(err, membership.ErrNotOwner):
		return connect.NewError(connect.CodePermissionDenied, err)
	case errors.Is(err, membership.ErrInvalidHabit),
		errors.Is(err, errInvalidArgument):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, storage.ErrConflict):
		return connect.NewError(connect.CodeAborted, errors.New("too much contention, try again"))
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, errors.New("internal error"))
	}
}

var errInvalidArgument = errors.New("invalid argument")
