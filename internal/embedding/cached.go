package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/nikhilbhutani/docrag/internal/cache"
)

// Store is the slice of the cache an embedder needs.
type Store interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// CachedEmbedder is a read-through cache keyed by model and text digest.
// Cache failures never fail a call; they are logged and the wrapped
// embedder answers instead.
type CachedEmbedder struct {
	next  Embedder
	store Store
	ttl   time.Duration
}

func NewCachedEmbedder(next Embedder, store Store, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{next: next, store: store, ttl: ttl}
}

func (c *CachedEmbedder) Model() string { return c.next.Model() }

func (c *CachedEmbedder) Dimension() int { return c.next.Dimension() }

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var (
		missIdx  []int
		missText []string
	)
	for i, t := range texts {
		var v []float32
		err := c.store.Get(ctx, c.key(t), &v)
		switch {
		case err == nil && len(v) > 0:
			out[i] = v
			continue
		case err != nil && !errors.Is(err, cache.ErrMiss):
			slog.Warn("embedding cache read failed", "error", err)
		}
		missIdx = append(missIdx, i)
		missText = append(missText, t)
	}

	if len(missText) == 0 {
		return out, nil
	}

	vecs, err := c.next.EmbedBatch(ctx, missText)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = vecs[j]
		if err := c.store.Set(ctx, c.key(texts[i]), vecs[j], c.ttl); err != nil {
			slog.Warn("embedding cache write failed", "error", err)
		}
	}

	slog.Debug("embedded with cache", "hits", len(texts)-len(missText), "misses", len(missText))
	return out, nil
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "emb:" + c.next.Model() + ":" + hex.EncodeToString(sum[:])
}
