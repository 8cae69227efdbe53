package chat

import (
	"context"
	"fmt"

	"github.com/flemzord/recall/pkg/message"
)

// History page bounds.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// HistoryLimit returns the page size History uses for a requested limit.
func HistoryLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return limit
	}
}

// History returns one page of userID's durable message log, newest first,
// sized by HistoryLimit.
func (s *Service) History(ctx context.Context, userID string, limit, offset int) ([]message.Message, error) {
	if _, err := s.directory.Profile(ctx, userID); err != nil {
		return nil, err
	}

	msgs, err := s.store.ReadMessages(ctx, userID, HistoryLimit(limit), max(offset, 0))
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	if msgs == nil {
		msgs = []message.Message{}
	}
	return msgs, nil
}
