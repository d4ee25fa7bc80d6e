package session

import (
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/docrag/internal/rag"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrLimit    = errors.New("session limit reached")
)

// Registry holds the live sessions of one process. Nothing outlives it.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*rag.Session
	max      int
}

// NewRegistry caps the number of live sessions at max; max <= 0 means no cap.
func NewRegistry(max int) *Registry {
	return &Registry{sessions: make(map[uuid.UUID]*rag.Session), max: max}
}

func (r *Registry) Create(name string) (*rag.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.max > 0 && len(r.sessions) >= r.max {
		return nil, ErrLimit
	}
	s := rag.NewSession(name)
	r.sessions[s.ID] = s
	slog.Info("session created", "session_id", s.ID, "name", name)
	return s, nil
}

func (r *Registry) Get(id uuid.UUID) (*rag.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Delete drops the session and with it the document and index it held.
func (r *Registry) Delete(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(r.sessions, id)
	slog.Info("session deleted", "session_id", id)
	return nil
}

// List returns sessions oldest first.
func (r *Registry) List() []*rag.Session {
	r.mu.RLock()
	out := make([]*rag.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b *rag.Session) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return slices.Compare(a.ID[:], b.ID[:])
	})
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
