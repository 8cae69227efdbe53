package memory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flemzord/recall/internal/telemetry"
)

// Counter tracks how many persisted messages are not yet folded into the
// summary and decides when a consolidation run should start. The counter
// and the lock both live in the shared cache.
type Counter struct {
	cache   Cache
	store   SummaryStore
	locker  Locker
	lockTTL time.Duration
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// CounterConfig holds the dependencies of a Counter.
type CounterConfig struct {
	Cache   Cache
	Store   SummaryStore
	Locker  Locker
	LockTTL time.Duration
	Metrics *telemetry.Metrics
	Logger  *slog.Logger
}

// NewCounter creates a Counter.
func NewCounter(cfg CounterConfig) *Counter {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultLockTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Counter{
		cache:   cfg.Cache,
		store:   cfg.Store,
		locker:  cfg.Locker,
		lockTTL: cfg.LockTTL,
		metrics: cfg.Metrics,
		logger:  cfg.Logger.With("component", "memory.counter"),
	}
}

// Initialize seeds the counter from the durable log when the cache holds
// no positive value. A positive cached counter is left untouched.
func (c *Counter) Initialize(ctx context.Context, userID string) error {
	current, err := c.cache.Count(ctx, userID)
	if err != nil {
		return fmt.Errorf("reading counter: %w", err)
	}
	if current > 0 {
		return nil
	}

	n, err := c.Pending(ctx, userID)
	if err != nil {
		return err
	}
	if err := c.cache.SetCount(ctx, userID, n); err != nil {
		return fmt.Errorf("seeding counter: %w", err)
	}
	return nil
}

// Pending counts the durable messages after the summary's last folded seq.
func (c *Counter) Pending(ctx context.Context, userID string) (int64, error) {
	summary, _, err := c.store.ReadSummary(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("reading summary: %w", err)
	}
	n, err := c.store.CountMessagesAfter(ctx, userID, summary.LastFoldedSeq)
	if err != nil {
		return 0, fmt.Errorf("counting unsummarized messages: %w", err)
	}
	return n, nil
}

// Increment records one newly persisted message and returns the new count.
func (c *Counter) Increment(ctx context.Context, userID string) (int64, error) {
	n, err := c.cache.Incr(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("incrementing counter: %w", err)
	}
	return n, nil
}

// ShouldConsolidate reports whether the counter reached threshold and the
// caller won the consolidation lock. A true result transfers the obligation
// to release the lock to the caller. Losing the lock race is not an error.
func (c *Counter) ShouldConsolidate(ctx context.Context, userID string, threshold int64) (bool, error) {
	count, err := c.cache.Count(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("reading counter: %w", err)
	}
	if count < threshold {
		return false, nil
	}

	acquired, err := c.locker.Acquire(ctx, userID, c.lockTTL)
	if err != nil {
		return false, fmt.Errorf("acquiring consolidation lock: %w", err)
	}
	if !acquired {
		c.metrics.LockContended()
		c.logger.Debug("consolidation already in progress", "user", userID, "count", count)
		return false, nil
	}
	return true, nil
}

// Reset zeroes the counter after a successful consolidation.
func (c *Counter) Reset(ctx context.Context, userID string) error {
	if err := c.cache.SetCount(ctx, userID, 0); err != nil {
		return fmt.Errorf("resetting counter: %w", err)
	}
	return nil
}
