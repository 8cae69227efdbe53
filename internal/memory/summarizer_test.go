package memory_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/flemzord/recall/internal/memory"
	"github.com/flemzord/recall/internal/provider"
	"github.com/flemzord/recall/internal/provider/providertest"
)

func TestCapWords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		max  int
		want string
	}{
		{"under limit", "a b c", 5, "a b c"},
		{"at limit", "a b c", 3, "a b c"},
		{"over limit", "a b c d e", 2, "a b"},
		{"collapses whitespace", "a \n b\t\tc", 10, "a b c"},
		{"zero keeps text", "a  b", 0, "a  b"},
		{"empty", "", 3, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := memory.CapWords(tt.text, tt.max); got != tt.want {
				t.Errorf("CapWords(%q, %d) = %q, want %q", tt.text, tt.max, got, tt.want)
			}
		})
	}
}

func TestSummaryPrompt(t *testing.T) {
	t.Parallel()

	p := memory.SummaryPrompt(memory.SummaryRequest{
		Existing:     "allergic to nuts",
		Conversation: "user: I have a cough",
		MaxWords:     150,
	})
	for _, want := range []string{
		"under 150 words",
		"allergies",
		"EXISTING SUMMARY:\nallergic to nuts",
		"NEW MESSAGES:\nuser: I have a cough",
		"OUTPUT: Updated summary only.",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	empty := memory.SummaryPrompt(memory.SummaryRequest{Conversation: "user: hi"})
	if !strings.Contains(empty, "EXISTING SUMMARY:\n(none)") {
		t.Error("empty summary placeholder missing")
	}
}

func TestLLMSummarizer(t *testing.T) {
	t.Parallel()

	mock := providertest.Reply("  updated summary \n")
	s := &memory.LLMSummarizer{Provider: mock, MaxTokens: 120}

	got, err := s.Summarize(context.Background(), memory.SummaryRequest{Conversation: "user: hi"})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != "updated summary" {
		t.Errorf("got %q", got)
	}

	reqs := mock.Requests()
	if len(reqs) != 1 {
		t.Fatalf("requests = %d", len(reqs))
	}
	if reqs[0].MaxTokens != 120 {
		t.Errorf("MaxTokens = %d", reqs[0].MaxTokens)
	}
	if reqs[0].Temperature == nil || *reqs[0].Temperature != 0 {
		t.Errorf("Temperature = %v, want 0", reqs[0].Temperature)
	}
}

func TestLLMSummarizer_EmptyResponse(t *testing.T) {
	t.Parallel()

	s := &memory.LLMSummarizer{Provider: providertest.Reply("   ")}
	_, err := s.Summarize(context.Background(), memory.SummaryRequest{})
	if !errors.Is(err, provider.ErrEmptyResponse) {
		t.Errorf("err = %v, want ErrEmptyResponse", err)
	}
}
