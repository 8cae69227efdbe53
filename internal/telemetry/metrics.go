// Package telemetry owns the Prometheus collectors and the OpenTelemetry
// tracer provider used across the memory subsystem.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "recall"

// Consolidation outcomes used as the "outcome" label.
const (
	OutcomeOK      = "ok"
	OutcomeSkipped = "skipped"
	OutcomeError   = "error"
	// OutcomeRetryable is a failure caused by a transient provider error.
	// The range stays pending and the next trigger retries it.
	OutcomeRetryable = "retryable"
)

// Metrics groups every collector the service exports.
// All methods are safe to call on a nil *Metrics, which records nothing.
type Metrics struct {
	turns            *prometheus.CounterVec
	turnDuration     prometheus.Histogram
	messages         *prometheus.CounterVec
	cacheDegraded    *prometheus.CounterVec
	lockContention   prometheus.Counter
	consolidations   *prometheus.CounterVec
	consolidationDur prometheus.Histogram
	foldedMessages   prometheus.Counter
	queueRejected    prometheus.Counter
	counterDrift     prometheus.Counter
	sessions         prometheus.Gauge
	rateLimited      *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "chat", Name: "turns_total",
			Help: "Chat turns handled, by result.",
		}, []string{"result"}),
		turnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "chat", Name: "turn_duration_seconds",
			Help:    "Wall time of a chat turn including the reply LLM call.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "chat", Name: "messages_persisted_total",
			Help: "Messages written to the durable log, by role.",
		}, []string{"role"}),
		cacheDegraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "degraded_total",
			Help: "Cache operations that failed on the request path, by operation.",
		}, []string{"op"}),
		lockContention: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "memory", Name: "lock_contention_total",
			Help: "Consolidation triggers skipped because the lock was held.",
		}),
		consolidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "memory", Name: "consolidations_total",
			Help: "Consolidation runs, by outcome.",
		}, []string{"outcome"}),
		consolidationDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "memory", Name: "consolidation_duration_seconds",
			Help:    "Wall time of a consolidation run.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		foldedMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "memory", Name: "folded_messages_total",
			Help: "Messages folded into long-term summaries.",
		}),
		queueRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "memory", Name: "queue_rejected_total",
			Help: "Consolidation jobs rejected because the worker queue was full or stopped.",
		}),
		counterDrift: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "memory", Name: "counter_drift_total",
			Help: "Unsummarized counters corrected by the reconcile job.",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "chat", Name: "active_sessions",
			Help: "Currently connected chat sessions.",
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "gateway", Name: "rate_limited_total",
			Help: "Requests or chat frames rejected by a rate limit, by scope.",
		}, []string{"scope"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.turns, m.turnDuration, m.messages, m.cacheDegraded,
			m.lockContention, m.consolidations, m.consolidationDur,
			m.foldedMessages, m.queueRejected, m.counterDrift, m.sessions,
			m.rateLimited,
		)
	}
	return m
}

// TurnFinished records a turn result ("ok" or "error") and its latency.
func (m *Metrics) TurnFinished(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(result).Inc()
	m.turnDuration.Observe(d.Seconds())
}

// MessagePersisted records a durable message write.
func (m *Metrics) MessagePersisted(role string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(role).Inc()
}

// CacheDegraded records a failed cache operation on the request path.
func (m *Metrics) CacheDegraded(op string) {
	if m == nil {
		return
	}
	m.cacheDegraded.WithLabelValues(op).Inc()
}

// LockContended records a trigger that found the lock already held.
func (m *Metrics) LockContended() {
	if m == nil {
		return
	}
	m.lockContention.Inc()
}

// ConsolidationFinished records the outcome of one worker run.
func (m *Metrics) ConsolidationFinished(outcome string, folded int, d time.Duration) {
	if m == nil {
		return
	}
	m.consolidations.WithLabelValues(outcome).Inc()
	m.consolidationDur.Observe(d.Seconds())
	if folded > 0 {
		m.foldedMessages.Add(float64(folded))
	}
}

// QueueRejected records a consolidation job that could not be enqueued.
func (m *Metrics) QueueRejected() {
	if m == nil {
		return
	}
	m.queueRejected.Inc()
}

// CounterDrift records a counter overwritten by reconciliation.
func (m *Metrics) CounterDrift() {
	if m == nil {
		return
	}
	m.counterDrift.Inc()
}

// SessionOpened increments the active session gauge.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

// SessionClosed decrements the active session gauge.
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessions.Dec()
}

// RateLimited records a rejection by the "turn" or "auth" limiter.
func (m *Metrics) RateLimited(scope string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(scope).Inc()
}
