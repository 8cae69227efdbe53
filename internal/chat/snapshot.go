package chat

import (
	"context"
	"fmt"

	"github.com/flemzord/recall/pkg/message"
)

// Snapshot is a read-only view of a user's memory state.
type Snapshot struct {
	UserID        string            `json:"user_id"`
	Summary       string            `json:"summary"`
	LastFoldedSeq int64             `json:"last_folded_seq"`
	Window        []message.Message `json:"window"`
	Unsummarized  int64             `json:"unsummarized"`
	Consolidating bool              `json:"consolidating"`
	Active        bool              `json:"active"`
}

// Snapshot reads the durable summary and the cached session state of
// userID. Cache failures surface as errors; nothing is repaired.
func (s *Service) Snapshot(ctx context.Context, userID string) (Snapshot, error) {
	if _, err := s.directory.Profile(ctx, userID); err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{UserID: userID}
	sum, _, err := s.store.ReadSummary(ctx, userID)
	if err != nil {
		return snap, fmt.Errorf("reading summary: %w", err)
	}
	snap.Summary = sum.Text
	snap.LastFoldedSeq = sum.LastFoldedSeq

	if snap.Window, err = s.cache.Window(ctx, userID); err != nil {
		return snap, fmt.Errorf("reading window: %w", err)
	}
	if snap.Window == nil {
		snap.Window = []message.Message{}
	}
	if snap.Unsummarized, err = s.cache.Count(ctx, userID); err != nil {
		return snap, fmt.Errorf("reading counter: %w", err)
	}
	if snap.Consolidating, err = s.locker.Held(ctx, userID); err != nil {
		return snap, fmt.Errorf("reading lock: %w", err)
	}

	s.mu.Lock()
	snap.Active = s.sessions[userID] > 0
	s.mu.Unlock()
	return snap, nil
}
