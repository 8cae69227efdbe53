package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/flemzord/recall/internal/provider"
)

// SummaryRequest is the input of a summarization call.
type SummaryRequest struct {
	Existing     string
	Conversation string
	MaxWords     int
}

// Summarizer folds new conversation text into an existing summary.
type Summarizer interface {
	Summarize(ctx context.Context, req SummaryRequest) (string, error)
}

// LLMSummarizer summarizes through a language model provider.
type LLMSummarizer struct {
	Provider  provider.Provider
	MaxTokens int
}

var _ Summarizer = (*LLMSummarizer)(nil)

// Summarize renders the summarization prompt and returns the model output,
// trimmed. Temperature is pinned to 0 for stable summaries.
func (s *LLMSummarizer) Summarize(ctx context.Context, req SummaryRequest) (string, error) {
	maxTokens := s.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultSummaryMaxTokens
	}

	resp, err := s.Provider.Complete(ctx, provider.CompletionRequest{
		Messages: []provider.LLMMessage{
			{Role: provider.MessageRoleUser, Content: SummaryPrompt(req)},
		},
		MaxTokens:   maxTokens,
		Temperature: provider.Float64(0),
	})
	if err != nil {
		return "", fmt.Errorf("summarizing with %s: %w", s.Provider.ModelName(), err)
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", provider.ErrEmptyResponse
	}
	return text, nil
}

// SummaryPrompt renders the instruction sent to the summarization model.
func SummaryPrompt(req SummaryRequest) string {
	maxWords := req.MaxWords
	if maxWords <= 0 {
		maxWords = DefaultMaxSummaryWords
	}
	existing := req.Existing
	if existing == "" {
		existing = "(none)"
	}

	var b strings.Builder
	b.WriteString("You maintain the long-term memory of a health assistant conversation.\n")
	b.WriteString("Update the existing summary with the new messages.\n\n")
	b.WriteString("Rules:\n")
	fmt.Fprintf(&b, "- Keep the summary under %d words.\n", maxWords)
	b.WriteString("- Remove symptoms or issues the user says are resolved or outdated.\n")
	b.WriteString("- Always preserve allergies, chronic conditions and stated preferences.\n")
	b.WriteString("- When new information contradicts the summary, keep the newest fact.\n")
	b.WriteString("- Write plain sentences without headings or lists.\n\n")
	b.WriteString("EXISTING SUMMARY:\n")
	b.WriteString(existing)
	b.WriteString("\n\nNEW MESSAGES:\n")
	b.WriteString(req.Conversation)
	b.WriteString("\n\nOUTPUT: Updated summary only.")
	return b.String()
}

// CapWords returns the first maxWords whitespace-separated words of text,
// joined by single spaces. A non-positive maxWords leaves text unchanged.
func CapWords(text string, maxWords int) string {
	if maxWords <= 0 {
		return text
	}
	words := strings.Fields(text)
	if len(words) <= maxWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:maxWords], " ")
}
