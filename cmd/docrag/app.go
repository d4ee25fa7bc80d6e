package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/nikhilbhutani/docrag/internal/cache"
	"github.com/nikhilbhutani/docrag/internal/config"
	"github.com/nikhilbhutani/docrag/internal/document"
	"github.com/nikhilbhutani/docrag/internal/embedding"
	"github.com/nikhilbhutani/docrag/internal/llm"
	"github.com/nikhilbhutani/docrag/internal/models"
	"github.com/nikhilbhutani/docrag/internal/rag"
	"github.com/nikhilbhutani/docrag/pkg/chunker"
)

type app struct {
	cfg       *config.Config
	chunker   chunker.Chunker
	extractor document.TextExtractor

	// openPipeline runs on first use so commands that never call a model
	// work without credentials.
	openPipeline func(*config.Config) (*rag.Pipeline, error)
	pipeline     *rag.Pipeline
}

func newApp() *app {
	return &app{
		extractor:    document.NewTextExtractor(),
		openPipeline: buildPipeline,
	}
}

func (a *app) load(path string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to read .env", "error", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ch, err := chunker.New(cfg.RAG.ChunkOptions())
	if err != nil {
		return fmt.Errorf("create chunker: %w", err)
	}
	a.cfg, a.chunker = cfg, ch
	return nil
}

func (a *app) Pipeline() (*rag.Pipeline, error) {
	if a.pipeline != nil {
		return a.pipeline, nil
	}
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	p, err := a.openPipeline(a.cfg)
	if err != nil {
		return nil, err
	}
	a.pipeline = p
	return p, nil
}

func (a *app) readPages(ctx context.Context, path string) ([]models.Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()
	return document.ExtractFile(ctx, a.extractor, f, path, "")
}

// openSession extracts and indexes path into a fresh session.
func (a *app) openSession(ctx context.Context, path string) (*rag.Session, *rag.Pipeline, error) {
	p, err := a.Pipeline()
	if err != nil {
		return nil, nil, err
	}
	pages, err := a.readPages(ctx, path)
	if err != nil {
		return nil, nil, err
	}

	name := filepath.Base(path)
	sess := rag.NewSession(name)
	if _, err := p.Index(ctx, sess, name, pages); err != nil {
		return nil, nil, fmt.Errorf("index %s: %w", path, err)
	}
	return sess, p, nil
}

func buildPipeline(cfg *config.Config) (*rag.Pipeline, error) {
	var store embedding.Store
	if rdb := cache.NewClient(cfg.Redis); rdb != nil {
		store = cache.NewCache(rdb)
	}

	gw := llm.NewGateway(cfg.LLM)
	embedder, err := embedding.New(cfg.Embedding, gw, store)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return rag.NewFromConfig(cfg.RAG, embedder, llm.NewCompleter(gw, cfg.LLM))
}
