package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/flemzord/recall/internal/provider"
	"github.com/flemzord/recall/pkg/message"
)

// DefaultReplyTemperature is the sampling temperature of reply calls.
const DefaultReplyTemperature = 0.3

// DefaultSystemPrompt introduces the assistant. The memory summary and the
// user profile are appended to it on every turn.
const DefaultSystemPrompt = "You are a healthcare assistant. Give safe, clear and concise guidance " +
	"and do not answer questions unrelated to health."

// ReplyRequest is everything the reply model sees for one turn.
type ReplyRequest struct {
	Summary string
	// Recent is the rolling window, oldest first. It usually already ends
	// with the current user input.
	Recent  []message.Message
	Input   string
	Profile string
}

// ReplyGenerator produces the assistant reply for a turn.
type ReplyGenerator interface {
	Reply(ctx context.Context, req ReplyRequest) (string, error)
}

// LLMReplier generates replies through a language model provider.
type LLMReplier struct {
	Provider     provider.Provider
	SystemPrompt string
	Temperature  *float64
	MaxTokens    int
}

var _ ReplyGenerator = (*LLMReplier)(nil)

// Reply implements ReplyGenerator.
func (r *LLMReplier) Reply(ctx context.Context, req ReplyRequest) (string, error) {
	temp := r.Temperature
	if temp == nil {
		temp = provider.Float64(DefaultReplyTemperature)
	}

	resp, err := r.Provider.Complete(ctx, provider.CompletionRequest{
		Messages:    r.BuildPrompt(req),
		MaxTokens:   r.MaxTokens,
		Temperature: temp,
	})
	if err != nil {
		return "", fmt.Errorf("generating reply with %s: %w", r.Provider.ModelName(), err)
	}
	reply := strings.TrimSpace(resp.Content)
	if reply == "" {
		return "", provider.ErrEmptyResponse
	}
	return reply, nil
}

// BuildPrompt renders the system message, the window and the user input.
// The input is not repeated when the window already ends with it.
func (r *LLMReplier) BuildPrompt(req ReplyRequest) []provider.LLMMessage {
	base := r.SystemPrompt
	if base == "" {
		base = DefaultSystemPrompt
	}

	var sys strings.Builder
	sys.WriteString(base)
	sys.WriteString("\n\nPATIENT MEMORY SUMMARY:\n")
	sys.WriteString(orNone(req.Summary))
	sys.WriteString("\n\nUSER PROFILE:\n")
	sys.WriteString(orNone(req.Profile))

	msgs := make([]provider.LLMMessage, 0, len(req.Recent)+2)
	msgs = append(msgs, provider.LLMMessage{Role: provider.MessageRoleSystem, Content: sys.String()})
	for _, m := range req.Recent {
		msgs = append(msgs, provider.FromMessage(m))
	}

	if n := len(req.Recent); n == 0 || req.Recent[n-1].Role != message.RoleUser || req.Recent[n-1].Content != req.Input {
		msgs = append(msgs, provider.LLMMessage{Role: provider.MessageRoleUser, Content: req.Input})
	}
	return msgs
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}
