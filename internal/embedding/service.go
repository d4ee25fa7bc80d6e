package embedding

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nikhilbhutani/docrag/internal/config"
	"github.com/nikhilbhutani/docrag/internal/llm"
	"github.com/nikhilbhutani/docrag/internal/models"
)

const defaultBatchSize = 100

// Service embeds through a remote provider behind the LLM gateway.
type Service struct {
	gateway     llm.Gateway
	provider    string
	model       string
	batchSize   int
	concurrency int
	timeout     time.Duration
	dim         atomic.Int64
}

func NewService(gw llm.Gateway, cfg config.EmbeddingConfig) *Service {
	model := cfg.Model
	if model == "" {
		model = "text-embedding-3-small"
		if cfg.Provider == "ollama" {
			model = "nomic-embed-text"
		}
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 || batchSize > defaultBatchSize {
		batchSize = defaultBatchSize
	}
	return &Service{
		gateway:     gw,
		provider:    cfg.Provider,
		model:       model,
		batchSize:   batchSize,
		concurrency: max(cfg.Concurrency, 1),
		timeout:     cfg.Timeout,
	}
}

func (s *Service) Model() string { return s.model }

func (s *Service) Dimension() int { return int(s.dim.Load()) }

// EmbedBatch sends texts in batches of at most 100, several at a time, and
// reassembles the vectors in input order.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i := 0; i < len(texts); i += s.batchSize {
		start, end := i, min(i+s.batchSize, len(texts))
		g.Go(func() error {
			vecs, err := s.embedBatch(ctx, texts[start:end])
			if err != nil {
				return models.UpstreamError(fmt.Sprintf("embed batch %d", start/s.batchSize), err)
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dim := len(out[0])
	for i, v := range out {
		if len(v) != dim || dim == 0 {
			return nil, fmt.Errorf("embedding %d: %w: got %d, want %d", i, models.ErrDimensionMismatch, len(v), dim)
		}
	}
	s.dim.Store(int64(dim))
	return out, nil
}

func (s *Service) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	resp, err := s.gateway.Embed(ctx, llm.EmbeddingRequest{
		Provider: s.provider,
		Model:    s.model,
		Input:    batch,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(batch) {
		return nil, fmt.Errorf("got %d embeddings for %d inputs", len(resp.Embeddings), len(batch))
	}
	return resp.Embeddings, nil
}

func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}
