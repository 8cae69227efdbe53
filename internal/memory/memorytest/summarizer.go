package memorytest

import (
	"context"
	"sync"

	"github.com/flemzord/recall/internal/memory"
)

// Summarizer is a test double for memory.Summarizer. An unset
// SummarizeFunc echoes the conversation.
type Summarizer struct {
	SummarizeFunc func(ctx context.Context, req memory.SummaryRequest) (string, error)

	mu    sync.Mutex
	calls []memory.SummaryRequest
}

// Summarize records req and delegates to SummarizeFunc.
func (s *Summarizer) Summarize(ctx context.Context, req memory.SummaryRequest) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()
	if s.SummarizeFunc == nil {
		return req.Conversation, nil
	}
	return s.SummarizeFunc(ctx, req)
}

// Calls returns a copy of every request seen so far.
func (s *Summarizer) Calls() []memory.SummaryRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]memory.SummaryRequest(nil), s.calls...)
}

var _ memory.Summarizer = (*Summarizer)(nil)
