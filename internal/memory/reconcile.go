package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flemzord/recall/internal/telemetry"
)

// Enqueuer hands a locked user to the consolidation workers.
type Enqueuer interface {
	Enqueue(userID string) (<-chan Completion, error)
}

// Reconciler corrects counter drift for active users by recomputing the
// unsummarized count from the durable log.
type Reconciler struct {
	// ActiveUsers lists the users with an open session.
	ActiveUsers func() []string
	Cache       Cache
	Locker      Locker
	Counter     *Counter
	Pool        Enqueuer
	Threshold   int64
	Metrics     *telemetry.Metrics
	Logger      *slog.Logger
}

// Reconcile checks every active user and returns how many counters were
// corrected. Users with a consolidation in flight are skipped since the
// worker resets their counter on completion.
func (r *Reconciler) Reconcile(ctx context.Context) (int, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var (
		corrected int
		errs      []error
	)
	for _, userID := range r.ActiveUsers() {
		if err := ctx.Err(); err != nil {
			return corrected, err
		}
		fixed, err := r.reconcileUser(ctx, userID, logger)
		if err != nil {
			errs = append(errs, fmt.Errorf("user %s: %w", userID, err))
			continue
		}
		if fixed {
			corrected++
		}
	}
	return corrected, errors.Join(errs...)
}

func (r *Reconciler) reconcileUser(ctx context.Context, userID string, logger *slog.Logger) (bool, error) {
	held, err := r.Locker.Held(ctx, userID)
	if err != nil {
		return false, err
	}
	if held {
		return false, nil
	}

	want, err := r.Counter.Pending(ctx, userID)
	if err != nil {
		return false, err
	}
	got, err := r.Cache.Count(ctx, userID)
	if err != nil {
		return false, err
	}

	fixed := false
	if got != want {
		if err := r.Cache.SetCount(ctx, userID, want); err != nil {
			return false, err
		}
		r.Metrics.CounterDrift()
		logger.Info("counter drift corrected", "user", userID, "cached", got, "durable", want)
		fixed = true
	}

	if r.Pool == nil {
		return fixed, nil
	}
	ok, err := r.Counter.ShouldConsolidate(ctx, userID, r.Threshold)
	if err != nil || !ok {
		return fixed, err
	}
	if _, err := r.Pool.Enqueue(userID); err != nil {
		_ = r.Locker.Release(ctx, userID)
		return fixed, err
	}
	return fixed, nil
}
