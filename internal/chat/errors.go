package chat

import "errors"

var (
	// ErrPersist wraps a durable write failure on the turn path. The turn
	// fails because the message log is the source of truth.
	ErrPersist = errors.New("chat: persisting message failed")

	// ErrReply wraps a reply generation failure.
	ErrReply = errors.New("chat: generating reply failed")
)
