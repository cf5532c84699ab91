package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/mmynk/habitly/internal/models"
)

// DefaultMaxRetries is the retry budget used when none is configured.
const DefaultMaxRetries = 5

// RetryPolicy bounds how often a conflicting update is re-run.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries uint64
	// BaseDelay is the first backoff interval; it doubles on each retry.
	BaseDelay time.Duration
	// OnConflict, if set, is called for every conflicting attempt.
	OnConflict func()
}

// DefaultRetryPolicy returns the policy used by the services.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: DefaultMaxRetries, BaseDelay: 10 * time.Millisecond}
}

func (p RetryPolicy) backoff() retry.Backoff {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Millisecond
	}
	b := retry.NewExponential(base)
	b = retry.WithCappedDuration(time.Second, b)
	b = retry.WithJitterPercent(20, b)
	return retry.WithMaxRetries(p.MaxRetries, b)
}

// RetryConflicts runs op, re-running it while it reports ErrConflict. Other
// errors, and context cancellation, stop at once. Once the budget is spent
// the returned error still matches ErrConflict.
func RetryConflicts[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	attempts := 0
	v, err := retry.DoValue(ctx, policy.backoff(), func(ctx context.Context) (T, error) {
		attempts++
		v, err := op(ctx)
		if errors.Is(err, ErrConflict) {
			slog.Debug("Store conflict, retrying", "attempt", attempts, "error", err)
			if policy.OnConflict != nil {
				policy.OnConflict()
			}
			return v, retry.RetryableError(err)
		}
		return v, err
	})
	if err != nil && errors.Is(err, ErrConflict) {
		return v, fmt.Errorf("abandoned after %d attempts: %w", attempts, err)
	}
	return v, err
}

// Retry runs a streak read-modify-write through AtomicUpdate, re-running the
// whole cycle on conflict.
func Retry(ctx context.Context, store Store, policy RetryPolicy, habitID, userID string, fn TransitionFunc) (*models.StreakRecord, error) {
	return RetryConflicts(ctx, policy, func(ctx context.Context) (*models.StreakRecord, error) {
		return store.AtomicUpdate(ctx, habitID, userID, fn)
	})
}
