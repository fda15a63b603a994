package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mmynk/splitledger/internal/models"
)

// RetryPolicy controls how reads are retried after ErrStoreUnavailable.
type RetryPolicy struct {
	// MaxAttempts includes the first try. Values below 2 disable retries.
	MaxAttempts int

	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy is three attempts starting at 50ms.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:     3,
	InitialInterval: 50 * time.Millisecond,
	MaxInterval:     time.Second,
}

// retryingStore retries reads that fail with ErrStoreUnavailable. Writes are
// passed through untouched: retrying them is the caller's decision.
type retryingStore struct {
	Store
	policy RetryPolicy
}

// WithRetry decorates s so its read operations retry with exponential backoff.
func WithRetry(s Store, policy RetryPolicy) Store {
	if policy.MaxAttempts < 2 {
		return s
	}
	return &retryingStore{Store: s, policy: policy}
}

func retryRead[T any](ctx context.Context, p RetryPolicy, op string, fn func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1)), ctx)

	var result T
	err := backoff.RetryNotify(func() error {
		v, err := fn()
		if err != nil {
			if !errors.Is(err, ErrStoreUnavailable) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = v
		return nil
	}, policy, func(err error, wait time.Duration) {
		slog.Warn("Store read failed, retrying", "op", op, "error", err, "wait", wait)
	})
	return result, err
}

func (r *retryingStore) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	return retryRead(ctx, r.policy, "GetGroup", func() (*models.Group, error) {
		return r.Store.GetGroup(ctx, groupID)
	})
}

func (r *retryingStore) ListMembers(ctx context.Context, groupID string) ([]models.Participant, error) {
	return retryRead(ctx, r.policy, "ListMembers", func() ([]models.Participant, error) {
		return r.Store.ListMembers(ctx, groupID)
	})
}

func (r *retryingStore) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	return retryRead(ctx, r.policy, "GetExpense", func() (*models.Expense, error) {
		return r.Store.GetExpense(ctx, expenseID)
	})
}

func (r *retryingStore) ListExpenses(ctx context.Context, groupID string) ([]models.Expense, error) {
	return retryRead(ctx, r.policy, "ListExpenses", func() ([]models.Expense, error) {
		return r.Store.ListExpenses(ctx, groupID)
	})
}

func (r *retryingStore) Snapshot(ctx context.Context, groupID string) (*GroupSnapshot, error) {
	return retryRead(ctx, r.policy, "Snapshot", func() (*GroupSnapshot, error) {
		return r.Store.Snapshot(ctx, groupID)
	})
}

func (r *retryingStore) ListActivities(ctx context.Context, groupID string) ([]models.Activity, error) {
	return retryRead(ctx, r.policy, "ListActivities", func() ([]models.Activity, error) {
		return r.Store.ListActivities(ctx, groupID)
	})
}
