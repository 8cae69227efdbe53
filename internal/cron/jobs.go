package cron

import (
	"context"
	"log/slog"
)

// DefaultReconcileSchedule runs counter reconciliation every five minutes.
const DefaultReconcileSchedule = "*/5 * * * *"

// Reconciler recomputes drifted counters and returns how many it fixed.
type Reconciler interface {
	Reconcile(ctx context.Context) (int, error)
}

// CounterReconcileJob periodically realigns cached unsummarized counters
// with the durable message log.
type CounterReconcileJob struct {
	Reconciler   Reconciler
	Logger       *slog.Logger
	ScheduleExpr string // empty = DefaultReconcileSchedule
}

// Compile-time interface check.
var _ Job = (*CounterReconcileJob)(nil)

// Name implements Job.
func (j *CounterReconcileJob) Name() string { return "counter_reconcile" }

// Schedule implements Job.
func (j *CounterReconcileJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return DefaultReconcileSchedule
}

// Run reconciles counters for every active session.
func (j *CounterReconcileJob) Run(ctx context.Context) error {
	n, err := j.Reconciler.Reconcile(ctx)
	if n > 0 && j.Logger != nil {
		j.Logger.Info("cron: corrected counters", "count", n)
	}
	return err
}
