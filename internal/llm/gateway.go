package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nikhilbhutani/docrag/internal/config"
	"github.com/nikhilbhutani/docrag/internal/models"
)

// MaxRetries caps automatic completion retries regardless of configuration.
const MaxRetries = 1

type gateway struct {
	providers        map[string]Provider
	defaultProvider  string
	fallbackProvider string
	fallbackModel    string
	maxRetries       int
	timeout          time.Duration
	backoff          time.Duration
}

func NewGateway(cfg config.LLMConfig) Gateway {
	var providers []Provider
	if cfg.OpenAIKey != "" {
		providers = append(providers, NewOpenAIProvider(cfg.OpenAIKey))
	}
	if cfg.GroqKey != "" {
		providers = append(providers, NewOpenAICompatibleProvider("groq", cfg.GroqKey, cfg.GroqBaseURL))
	}
	if cfg.AnthropicKey != "" {
		providers = append(providers, NewAnthropicProvider(cfg.AnthropicKey))
	}
	if cfg.OllamaURL != "" {
		providers = append(providers, NewOllamaProvider(cfg.OllamaURL))
	}
	return newGateway(cfg, providers...)
}

func newGateway(cfg config.LLMConfig, providers ...Provider) *gateway {
	g := &gateway{
		providers:        make(map[string]Provider, len(providers)),
		defaultProvider:  cfg.DefaultProvider,
		fallbackProvider: cfg.FallbackProvider,
		maxRetries:       min(max(cfg.MaxRetries, 0), MaxRetries),
		timeout:          cfg.Timeout,
		backoff:          500 * time.Millisecond,
	}
	if g.fallbackProvider != "" {
		g.fallbackModel = cfg.ModelFor(g.fallbackProvider)
	}
	for _, p := range providers {
		g.providers[p.Name()] = p
	}
	return g
}

func (g *gateway) Provider(name string) (Provider, error) {
	p, ok := g.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not configured", name)
	}
	return p, nil
}

// Chat makes at most 1+maxRetries completion calls. Only a timeout earns the
// retry, and the retry goes to the fallback provider when one is configured.
// Timeouts surface as models.ErrUpstreamTimeout.
func (g *gateway) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	target := req.Provider
	if target == "" {
		target = g.defaultProvider
	}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * g.backoff
			select {
			case <-ctx.Done():
				return nil, models.UpstreamError("llm chat", ctx.Err())
			case <-time.After(backoff):
			}
			if g.hasFallback(target) {
				slog.Warn("provider timed out, retrying on fallback",
					"primary", target,
					"fallback", g.fallbackProvider,
					"error", lastErr,
				)
				target = g.fallbackProvider
				req.Model = g.fallbackModel
			} else {
				slog.Debug("retrying LLM call", "provider", target, "attempt", attempt)
			}
		}

		p, err := g.Provider(target)
		if err != nil {
			return nil, err
		}
		req.Provider = target

		resp, err := g.attempt(ctx, p, req)
		if err == nil {
			slog.Debug("llm call",
				"provider", resp.Provider,
				"model", resp.Model,
				"tokens", resp.TotalTokens,
				"cost_usd", resp.CostUSD,
				"latency_ms", resp.LatencyMs,
			)
			return resp, nil
		}
		lastErr = fmt.Errorf("%s: %w", target, err)

		// only timeouts are worth repeating; the caller's own deadline is final
		if !models.IsTimeout(err) || ctx.Err() != nil {
			break
		}
	}
	return nil, models.UpstreamError("llm chat", lastErr)
}

func (g *gateway) hasFallback(current string) bool {
	if g.fallbackProvider == "" || g.fallbackProvider == current {
		return false
	}
	_, ok := g.providers[g.fallbackProvider]
	return ok
}

func (g *gateway) attempt(ctx context.Context, p Provider, req ChatRequest) (*ChatResponse, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	return p.ChatCompletion(ctx, req)
}

func (g *gateway) Embed(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error) {
	providerName := req.Provider
	if providerName == "" {
		providerName = g.defaultProvider
	}

	p, err := g.Provider(providerName)
	if err != nil {
		return nil, err
	}

	return p.GenerateEmbedding(ctx, req)
}
