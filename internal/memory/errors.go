package memory

import "errors"

// Sentinel errors for the memory subsystem.
var (
	// ErrUnknownUser means the user directory has no such user.
	// Bootstrap aborts and the connection must be rejected.
	ErrUnknownUser = errors.New("memory: unknown user")

	// ErrCacheUnavailable wraps cache failures on the request path.
	ErrCacheUnavailable = errors.New("memory: cache unavailable")

	// ErrSummaryRegression is returned when an upsert would move
	// LastFoldedSeq backwards.
	ErrSummaryRegression = errors.New("memory: summary would regress")

	// ErrUnknownMessage is returned when an upsert references a sequence id
	// that is not in the user's message log.
	ErrUnknownMessage = errors.New("memory: folded message does not exist")

	// ErrQueueFull means the consolidation queue is saturated.
	ErrQueueFull = errors.New("memory: consolidation queue full")

	// ErrPoolStopped means the consolidation pool no longer accepts work.
	ErrPoolStopped = errors.New("memory: consolidation pool stopped")
)
