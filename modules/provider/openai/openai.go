// Package openai implements provider.Provider on the official openai-go
// SDK, against any OpenAI-compatible chat completions endpoint.
package openai

import (
	"context"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/flemzord/recall/internal/provider"
)

// Compile-time interface guard.
var _ provider.Provider = (*Provider)(nil)

// Provider sends non-streaming chat completion requests.
type Provider struct {
	model       string
	completions openai.ChatCompletionService
	logger      *slog.Logger
}

// New builds a Provider from cfg.
func New(cfg Config, logger *slog.Logger) (*Provider, error) {
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(ensureTrailingSlash(cfg.BaseURL)),
		option.WithMaxRetries(*cfg.MaxRetries),
		option.WithRequestTimeout(cfg.Timeout),
	}
	for k, v := range cfg.Headers {
		opts = append(opts, option.WithHeader(k, v))
	}

	client := openai.NewClient(opts...)
	return &Provider{
		model:       cfg.Model,
		completions: client.Chat.Completions,
		logger:      logger.With("component", "provider.openai", "model", cfg.Model),
	}, nil
}

// ModelName implements provider.Provider.
func (p *Provider) ModelName() string {
	return p.model
}

// Complete implements provider.Provider.
func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(p.model),
		Messages: convertMessages(req.Messages),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}

	resp, err := p.completions.New(ctx, params)
	if err != nil {
		return provider.CompletionResponse{}, mapError(err)
	}
	if len(resp.Choices) == 0 {
		return provider.CompletionResponse{}, provider.ErrEmptyResponse
	}

	choice := resp.Choices[0]
	out := provider.CompletionResponse{
		Content:      choice.Message.Content,
		FinishReason: mapFinishReason(string(choice.FinishReason)),
		Usage: provider.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
	p.logger.Debug("completion finished",
		"finish_reason", out.FinishReason,
		"prompt_tokens", out.Usage.PromptTokens,
		"completion_tokens", out.Usage.CompletionTokens,
	)
	return out, nil
}

func convertMessages(msgs []provider.LLMMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case provider.MessageRoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case provider.MessageRoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func mapFinishReason(reason string) provider.FinishReason {
	switch reason {
	case "length":
		return provider.FinishReasonLength
	case "content_filter":
		return provider.FinishReasonFiltering
	default:
		return provider.FinishReasonStop
	}
}

func ensureTrailingSlash(u string) string {
	if strings.HasSuffix(u, "/") {
		return u
	}
	return u + "/"
}
