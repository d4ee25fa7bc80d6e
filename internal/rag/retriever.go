package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nikhilbhutani/docrag/internal/embedding"
	"github.com/nikhilbhutani/docrag/internal/models"
	"github.com/nikhilbhutani/docrag/internal/vectorstore"
	"github.com/nikhilbhutani/docrag/pkg/chunker"
)

const DefaultTopK = 5

type Retriever struct {
	chunker  chunker.Chunker
	embedder embedding.Embedder
	topK     int
}

func NewRetriever(c chunker.Chunker, e embedding.Embedder, topK int) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{chunker: c, embedder: e, topK: topK}
}

// IndexDocument chunks, embeds, and indexes pages into sess, replacing
// whatever it held. The session takes name only once the build succeeds; an
// empty name keeps the current one. Only one build per session may run at a
// time, and a failed build leaves the previous document and index in place.
func (r *Retriever) IndexDocument(ctx context.Context, sess *Session, name string, pages []models.Page) (models.Document, error) {
	if !sess.beginBuild() {
		return models.Document{}, models.ErrIndexBuildInProgress
	}
	defer sess.endBuild()

	doc, err := r.build(ctx, sess, name, pages)
	if err != nil {
		sess.markFailed()
		return models.Document{}, err
	}
	return doc, nil
}

func (r *Retriever) build(ctx context.Context, sess *Session, name string, pages []models.Page) (models.Document, error) {
	start := time.Now()

	chunks, err := ChunkPages(r.chunker, pages)
	if err != nil {
		return models.Document{}, err
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vecs, err := r.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return models.Document{}, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vecs) != len(chunks) {
		return models.Document{}, fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vecs), len(chunks))
	}

	entries := make([]vectorstore.Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = vectorstore.Entry{Chunk: c, Vector: vecs[i]}
	}
	if err := sess.store.Build(entries); err != nil {
		return models.Document{}, fmt.Errorf("build index: %w", err)
	}

	doc := sess.setDocument(name, len(pages), len(chunks))
	slog.Info("document indexed",
		"session_id", sess.ID,
		"document_id", doc.ID,
		"name", doc.Name,
		"pages", doc.Pages,
		"chunks", doc.Chunks,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return doc, nil
}

// Retrieve returns the k chunks of sess most similar to query. k <= 0 means
// the configured default.
func (r *Retriever) Retrieve(ctx context.Context, sess *Session, query string, k int) ([]vectorstore.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, models.ErrInvalidQuery
	}
	if sess.Building() {
		return nil, models.ErrIndexBuildInProgress
	}
	if sess.store.Len() == 0 {
		return nil, models.ErrEmptyIndex
	}
	if k <= 0 {
		k = r.topK
	}

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	return sess.store.Search(queryVec, k)
}

func (r *Retriever) TopK() int { return r.topK }

func (r *Retriever) EmbeddingModel() string { return r.embedder.Model() }
