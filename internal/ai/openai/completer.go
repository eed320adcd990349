package openai

import (
	"context"
	"log/slog"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/odfp/odfp/internal/ai"
)

// Completer implements ai.Completer using an OpenAI-compatible chat
// model. Backend failures degrade to the not-configured sentinel so
// callers never see a generative error.
type Completer struct {
	client llms.Model
	logger *slog.Logger
}

// NewCompleter creates a completer from the provided configuration. An
// unconfigured backend yields ai.Unconfigured().
func NewCompleter(cfg *ai.Config) (ai.Completer, error) {
	if !cfg.Configured() || cfg.CompletionModel == "" {
		return ai.Unconfigured(), nil
	}
	token := cfg.Token
	if token == "" {
		token = "none"
	}
	client, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(token),
		openai.WithModel(cfg.CompletionModel),
	)
	if err != nil {
		return nil, err
	}
	return &Completer{
		client: client,
		logger: slog.Default().With("component", "openai-completer"),
	}, nil
}

// Complete generates text for the prompt. On any backend error the
// sentinel message is returned instead of the error.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	response, err := c.client.GenerateContent(ctx, []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(prompt)},
		},
	}, llms.WithTemperature(0.0))
	if err != nil {
		c.logger.Warn("completion failed, returning sentinel", "err", err)
		return ai.NotConfiguredMessage, nil
	}
	if len(response.Choices) == 0 {
		return ai.NotConfiguredMessage, nil
	}
	return response.Choices[0].Content, nil
}
