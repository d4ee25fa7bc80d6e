package rag

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/docrag/internal/models"
	"github.com/nikhilbhutani/docrag/internal/vectorstore"
)

// Session is the explicit "currently loaded document" context: one
// document's metadata and its index. Independent sessions share nothing.
type Session struct {
	ID        uuid.UUID
	CreatedAt time.Time

	store    vectorstore.VectorStore
	building atomic.Bool

	mu   sync.RWMutex
	name string
	doc  models.Document
}

func NewSession(name string) *Session {
	return &Session{
		ID:        uuid.New(),
		CreatedAt: time.Now().UTC(),
		store:     vectorstore.NewMemoryStore(),
		name:      name,
		doc:       models.Document{Name: name, Status: models.DocStatusEmpty},
	}
}

// Document reports the indexed document. Before the first successful build it
// is empty, or failed once a build has been rejected.
func (s *Session) Document() models.Document {
	s.mu.RLock()
	doc := s.doc
	s.mu.RUnlock()
	if s.building.Load() {
		doc.Status = models.DocStatusIndexing
	}
	return doc
}

func (s *Session) Building() bool { return s.building.Load() }

func (s *Session) beginBuild() bool {
	return s.building.CompareAndSwap(false, true)
}

func (s *Session) endBuild() {
	s.building.Store(false)
}

// setDocument records a successful build. An empty name keeps the current one.
func (s *Session) setDocument(name string, pages, chunks int) models.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name != "" {
		s.name = name
	}
	s.doc = models.Document{
		ID:        uuid.New(),
		Name:      s.name,
		Pages:     pages,
		Chunks:    chunks,
		Status:    models.DocStatusReady,
		IndexedAt: time.Now().UTC(),
	}
	return s.doc
}

// markFailed flags a session that never built successfully. A session that
// already serves a document keeps it.
func (s *Session) markFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc.Status == models.DocStatusEmpty {
		s.doc.Status = models.DocStatusFailed
	}
}
