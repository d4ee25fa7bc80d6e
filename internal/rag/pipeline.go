package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nikhilbhutani/docrag/internal/config"
	"github.com/nikhilbhutani/docrag/internal/embedding"
	"github.com/nikhilbhutani/docrag/internal/llm"
	"github.com/nikhilbhutani/docrag/internal/models"
	"github.com/nikhilbhutani/docrag/internal/vectorstore"
	"github.com/nikhilbhutani/docrag/pkg/chunker"
)

const previewRunes = 400

// QueryResponse is what a caller shows for one question: the grounded
// answer, the chunks it was built from, and the rendered output block.
type QueryResponse struct {
	Answer    *models.GroundedAnswer `json:"answer"`
	Retrieved []RetrievedSource      `json:"retrieved"`
	Formatted string                 `json:"formatted"`
}

type RetrievedSource struct {
	ChunkID    int     `json:"chunk_id"`
	Page       int     `json:"page"`
	Section    string  `json:"section,omitempty"`
	Label      string  `json:"label"`
	Similarity float64 `json:"similarity"`
	Percent    int     `json:"similarity_pct"`
	Preview    string  `json:"preview"`
}

// SessionStats summarises a session for display.
type SessionStats struct {
	SessionID       string          `json:"session_id"`
	Document        models.Document `json:"document"`
	TopK            int             `json:"top_k"`
	EmbeddingModel  string          `json:"embedding_model"`
	CompletionModel string          `json:"completion_model,omitempty"`
}

type Pipeline struct {
	retriever *Retriever
	generator *Generator
}

func NewPipeline(r *Retriever, g *Generator) *Pipeline {
	return &Pipeline{retriever: r, generator: g}
}

// NewFromConfig wires a pipeline with the configured chunk window and top-k.
func NewFromConfig(cfg config.RAGConfig, e embedding.Embedder, c llm.Completer) (*Pipeline, error) {
	ch, err := chunker.New(cfg.ChunkOptions())
	if err != nil {
		return nil, fmt.Errorf("create chunker: %w", err)
	}
	return NewPipeline(NewRetriever(ch, e, cfg.TopK), NewGenerator(c)), nil
}

func (p *Pipeline) Index(ctx context.Context, sess *Session, name string, pages []models.Page) (models.Document, error) {
	return p.retriever.IndexDocument(ctx, sess, name, pages)
}

func (p *Pipeline) Search(ctx context.Context, sess *Session, query string, k int) ([]vectorstore.SearchResult, error) {
	return p.retriever.Retrieve(ctx, sess, query, k)
}

func (p *Pipeline) Ask(ctx context.Context, sess *Session, query string, k int) (*QueryResponse, error) {
	results, err := p.retriever.Retrieve(ctx, sess, query, k)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	answer, err := p.generator.Answer(ctx, query, results)
	if err != nil {
		return nil, fmt.Errorf("answer: %w", err)
	}

	slog.Info("query answered",
		"session_id", sess.ID,
		"retrieved", len(results),
		"source", answer.Source,
		"confidence", answer.Confidence,
	)

	return &QueryResponse{
		Answer:    answer,
		Retrieved: Sources(results),
		Formatted: answer.Format(),
	}, nil
}

func (p *Pipeline) Stats(sess *Session) SessionStats {
	return SessionStats{
		SessionID:       sess.ID.String(),
		Document:        sess.Document(),
		TopK:            p.retriever.TopK(),
		EmbeddingModel:  p.retriever.EmbeddingModel(),
		CompletionModel: p.generator.Model(),
	}
}

// Sources describes retrieval results for display, with short previews.
func Sources(results []vectorstore.SearchResult) []RetrievedSource {
	out := make([]RetrievedSource, len(results))
	for i, r := range results {
		out[i] = RetrievedSource{
			ChunkID:    r.Chunk.ID,
			Page:       r.Chunk.Page,
			Section:    r.Chunk.Section,
			Label:      r.Chunk.Label(),
			Similarity: r.Similarity,
			Percent:    percent(r.Similarity),
			Preview:    preview(r.Chunk.Text, previewRunes),
		}
	}
	return out
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
