package llm

import (
	"context"
	"log/slog"

	"github.com/nikhilbhutani/docrag/internal/config"
)

const systemPrompt = "You answer questions about one document using only the excerpts you are given."

// Completer turns a prompt into raw completion text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// GatewayCompleter sends each prompt as a single user turn through a Gateway
// with fixed sampling settings.
type GatewayCompleter struct {
	gateway     Gateway
	provider    string
	model       string
	temperature float64
	maxTokens   int
}

func NewCompleter(gw Gateway, cfg config.LLMConfig) *GatewayCompleter {
	return &GatewayCompleter{
		gateway:     gw,
		provider:    cfg.DefaultProvider,
		model:       cfg.ModelFor(cfg.DefaultProvider),
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

func (c *GatewayCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.gateway.Chat(ctx, ChatRequest{
		Provider: c.provider,
		Model:    c.model,
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", err
	}
	if resp.Truncated() {
		slog.WarnContext(ctx, "completion truncated",
			"provider", resp.Provider,
			"model", resp.Model,
			"max_tokens", c.maxTokens,
			"output_tokens", resp.OutputTokens,
		)
	}
	return resp.Content, nil
}

func (c *GatewayCompleter) Model() string { return c.model }
