package embedding

import (
	"context"
	"fmt"

	"github.com/nikhilbhutani/docrag/internal/config"
	"github.com/nikhilbhutani/docrag/internal/llm"
)

// Embedder maps text to fixed-dimension vectors. For a given model it is
// deterministic, and EmbedBatch returns exactly what per-item Embed would,
// in input order.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension is 0 for remote models until the first successful call.
	Dimension() int
	Model() string
}

// New builds the embedder named by cfg.Provider. A non-nil store adds a
// read-through cache in front of it.
func New(cfg config.EmbeddingConfig, gw llm.Gateway, store Store) (Embedder, error) {
	var e Embedder
	switch cfg.Provider {
	case "hash":
		e = NewHashEmbedder(cfg.Dimension)
	case "openai", "ollama":
		if gw == nil {
			return nil, fmt.Errorf("%s embeddings need an LLM gateway", cfg.Provider)
		}
		e = NewService(gw, cfg)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}

	if store != nil {
		e = NewCachedEmbedder(e, store, cfg.CacheTTL)
	}
	return e, nil
}
