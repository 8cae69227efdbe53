package memorytest

import (
	"context"
	"sync"
	"time"

	"github.com/flemzord/recall/internal/memory"
	"github.com/flemzord/recall/pkg/message"
)

type storedMessage struct {
	userID string
	msg    message.Message
}

// Store is an in-memory memory.SummaryStore and memory.UserDirectory.
type Store struct {
	mu        sync.Mutex
	seq       int64
	messages  []storedMessage
	summaries map[string]memory.Summary
	profiles  map[string]memory.Profile
	lookups   int

	// AppendErr, when set, is returned by AppendMessage.
	AppendErr error
	// UpsertErr, when set, is returned by UpsertSummary.
	UpsertErr error
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		summaries: make(map[string]memory.Summary),
		profiles:  make(map[string]memory.Profile),
	}
}

// AddUser registers a profile in the directory.
func (s *Store) AddUser(p memory.Profile) {
	s.mu.Lock()
	s.profiles[p.UserID] = p
	s.mu.Unlock()
}

// Seed appends n alternating user/assistant messages and returns the last seq.
func (s *Store) Seed(userID string, n int) int64 {
	var last int64
	for i := range n {
		role := message.RoleUser
		if i%2 == 1 {
			role = message.RoleAssistant
		}
		msg, _ := s.AppendMessage(context.Background(), userID, role, "message")
		last = msg.Seq
	}
	return last
}

// Profile implements memory.UserDirectory.
func (s *Store) Profile(_ context.Context, userID string) (memory.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	p, ok := s.profiles[userID]
	if !ok {
		return memory.Profile{}, memory.ErrUnknownUser
	}
	return p, nil
}

// ProfileLookups returns how many times Profile was called.
func (s *Store) ProfileLookups() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookups
}

// ReadSummary implements memory.SummaryStore.
func (s *Store) ReadSummary(_ context.Context, userID string) (memory.Summary, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum, ok := s.summaries[userID]
	if !ok {
		return memory.Summary{UserID: userID}, false, nil
	}
	return sum, true, nil
}

// UpsertSummary implements memory.SummaryStore.
func (s *Store) UpsertSummary(_ context.Context, userID, text string, lastFoldedSeq int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UpsertErr != nil {
		return s.UpsertErr
	}

	found := false
	for _, m := range s.messages {
		if m.userID == userID && m.msg.Seq == lastFoldedSeq {
			found = true
			break
		}
	}
	if !found {
		return memory.ErrUnknownMessage
	}
	if cur, ok := s.summaries[userID]; ok && lastFoldedSeq < cur.LastFoldedSeq {
		return memory.ErrSummaryRegression
	}
	s.summaries[userID] = memory.Summary{
		UserID:        userID,
		Text:          text,
		LastFoldedSeq: lastFoldedSeq,
		UpdatedAt:     time.Now().UTC(),
	}
	return nil
}

// ReadMessagesAfter implements memory.SummaryStore.
func (s *Store) ReadMessagesAfter(_ context.Context, userID string, afterSeq int64) ([]message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []message.Message
	for _, m := range s.messages {
		if m.userID == userID && m.msg.Seq > afterSeq {
			out = append(out, m.msg)
		}
	}
	return out, nil
}

// ReadRecentMessages implements memory.SummaryStore.
func (s *Store) ReadRecentMessages(ctx context.Context, userID string, limit int) ([]message.Message, error) {
	return s.ReadMessages(ctx, userID, limit, 0)
}

// ReadMessages implements memory.SummaryStore.
func (s *Store) ReadMessages(_ context.Context, userID string, limit, offset int) ([]message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []message.Message
	skipped := 0
	for i := len(s.messages) - 1; i >= 0 && len(out) < limit; i-- {
		if s.messages[i].userID != userID {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, s.messages[i].msg)
	}
	return out, nil
}

// CountMessagesAfter implements memory.SummaryStore.
func (s *Store) CountMessagesAfter(_ context.Context, userID string, afterSeq int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, m := range s.messages {
		if m.userID == userID && m.msg.Seq > afterSeq {
			n++
		}
	}
	return n, nil
}

// AppendMessage implements memory.SummaryStore.
func (s *Store) AppendMessage(_ context.Context, userID string, role message.Role, content string) (message.Message, error) {
	msg, err := message.New(role, content)
	if err != nil {
		return msg, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AppendErr != nil {
		return message.Message{}, s.AppendErr
	}
	s.seq++
	msg.Seq = s.seq
	msg.CreatedAt = time.Now().UTC()
	s.messages = append(s.messages, storedMessage{userID: userID, msg: msg})
	return msg, nil
}

// Interface guards.
var (
	_ memory.SummaryStore  = (*Store)(nil)
	_ memory.UserDirectory = (*Store)(nil)
)
