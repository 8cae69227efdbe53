// Package memory implements the conversational memory subsystem: a bounded
// short-term window kept in a shared cache, a durable long-term summary, and
// the counter-triggered, lock-protected consolidation that folds one into
// the other off the request path.
package memory

import (
	"context"
	"time"

	"github.com/flemzord/recall/pkg/message"
)

// Summary is the durable long-term memory of a user.
// LastFoldedSeq is the sequence id of the newest message already folded
// into Text; it never decreases.
type Summary struct {
	UserID        string
	Text          string
	LastFoldedSeq int64
	UpdatedAt     time.Time
}

// Cache is the per-user session context cache. Implementations must live in
// a store shared by every process serving the user, and Push, Incr and every
// TTL refresh must be applied atomically on the server side.
type Cache interface {
	// Push appends msg to the rolling window and trims it to the newest
	// limit entries, refreshing the window TTL in the same atomic unit.
	Push(ctx context.Context, userID string, msg message.Message, limit int) error
	// Window returns the rolling window oldest-first.
	Window(ctx context.Context, userID string) ([]message.Message, error)
	// ClearWindow deletes the rolling window.
	ClearWindow(ctx context.Context, userID string) error
	// Exists reports whether a rolling window is cached for the user.
	Exists(ctx context.Context, userID string) (bool, error)

	// Summary returns the mirrored summary text, or "" when absent.
	Summary(ctx context.Context, userID string) (string, error)
	SetSummary(ctx context.Context, userID, text string) error

	// UserContext returns the profile context blob and whether it is loaded.
	UserContext(ctx context.Context, userID string) (string, bool, error)
	SetUserContext(ctx context.Context, userID, text string) error

	// Count returns the unsummarized message counter (0 when absent).
	Count(ctx context.Context, userID string) (int64, error)
	SetCount(ctx context.Context, userID string, n int64) error
	// Incr atomically increments the counter and returns the new value.
	Incr(ctx context.Context, userID string) (int64, error)
}

// Locker is the distributed per-user consolidation lock.
type Locker interface {
	// Acquire sets the lock only if absent, with expiry ttl. It reports
	// whether this caller now holds the lock.
	Acquire(ctx context.Context, userID string, ttl time.Duration) (bool, error)
	// Release deletes the lock unconditionally.
	Release(ctx context.Context, userID string) error
	// Held reports whether a valid lock currently exists.
	Held(ctx context.Context, userID string) (bool, error)
}

// SummaryStore is the durable source of truth for messages and summaries.
type SummaryStore interface {
	// ReadSummary returns the user's summary and false when none exists yet.
	ReadSummary(ctx context.Context, userID string) (Summary, bool, error)
	// UpsertSummary atomically replaces the text and advances LastFoldedSeq.
	// It returns ErrSummaryRegression instead of moving LastFoldedSeq back.
	UpsertSummary(ctx context.Context, userID, text string, lastFoldedSeq int64) error
	// ReadMessagesAfter returns messages with Seq > afterSeq, ascending.
	ReadMessagesAfter(ctx context.Context, userID string, afterSeq int64) ([]message.Message, error)
	// ReadRecentMessages returns up to limit messages, most recent first.
	ReadRecentMessages(ctx context.Context, userID string, limit int) ([]message.Message, error)
	// ReadMessages returns up to limit messages, most recent first, after
	// skipping the offset newest ones.
	ReadMessages(ctx context.Context, userID string, limit, offset int) ([]message.Message, error)
	// CountMessagesAfter counts messages with Seq > afterSeq.
	CountMessagesAfter(ctx context.Context, userID string, afterSeq int64) (int64, error)
	// AppendMessage persists a turn and returns it as stored, with its
	// sequence id and creation time.
	AppendMessage(ctx context.Context, userID string, role message.Role, content string) (message.Message, error)
}

// UserDirectory resolves user identities to their onboarding profile.
type UserDirectory interface {
	// Profile returns the user's profile, or ErrUnknownUser.
	Profile(ctx context.Context, userID string) (Profile, error)
}

// Config holds the memory tuning knobs. Zero values are replaced by defaults.
type Config struct {
	// WindowLimit is the maximum number of raw messages kept in the window.
	WindowLimit int `yaml:"window_limit"`
	// TriggerCount is the unsummarized message count that triggers consolidation.
	TriggerCount int64 `yaml:"trigger_count"`
	// MaxSummaryWords caps the summary length.
	MaxSummaryWords int `yaml:"max_summary_words"`
	// SummaryMaxTokens bounds the summarization completion.
	SummaryMaxTokens int `yaml:"summary_max_tokens"`
	// LockTTL bounds how long a crashed worker can hold the lock.
	LockTTL time.Duration `yaml:"lock_ttl"`
	// Workers is the number of consolidation goroutines.
	Workers int `yaml:"workers"`
	// QueueSize bounds pending consolidation jobs.
	QueueSize int `yaml:"queue_size"`
	// ReconcileSchedule is the cron expression of the counter reconcile job.
	// "off" disables the job.
	ReconcileSchedule string `yaml:"reconcile_schedule"`
}

// Defaults applied by WithDefaults.
const (
	DefaultWindowLimit      = 3
	DefaultTriggerCount     = 10
	DefaultMaxSummaryWords  = 200
	DefaultSummaryMaxTokens = 300
	DefaultLockTTL          = 120 * time.Second
	DefaultWorkers          = 4
	DefaultQueueSize        = 64
)

// WithDefaults returns a copy of c with zero fields set to their defaults.
func (c Config) WithDefaults() Config {
	if c.WindowLimit <= 0 {
		c.WindowLimit = DefaultWindowLimit
	}
	if c.TriggerCount <= 0 {
		c.TriggerCount = DefaultTriggerCount
	}
	if c.MaxSummaryWords <= 0 {
		c.MaxSummaryWords = DefaultMaxSummaryWords
	}
	if c.SummaryMaxTokens <= 0 {
		c.SummaryMaxTokens = DefaultSummaryMaxTokens
	}
	if c.LockTTL <= 0 {
		c.LockTTL = DefaultLockTTL
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	return c
}
