package vectorstore

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"sync/atomic"

	"github.com/nikhilbhutani/docrag/internal/models"
)

// snapshot is immutable once published. Vectors live in one flat arena,
// row i holding the unit-normalized embedding of chunks[i].
type snapshot struct {
	dim     int
	chunks  []models.Chunk
	vectors []float32
}

func (s *snapshot) row(i int) []float32 {
	return s.vectors[i*s.dim : (i+1)*s.dim]
}

// MemoryStore is an exact cosine-similarity index held in memory. Searches
// read the current snapshot without locking; Build swaps in a new one.
type MemoryStore struct {
	snap atomic.Pointer[snapshot]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

var _ VectorStore = (*MemoryStore)(nil)

func (s *MemoryStore) Build(entries []Entry) error {
	if len(entries) == 0 {
		return models.ErrEmptyDocument
	}

	dim := len(entries[0].Vector)
	if dim == 0 {
		return fmt.Errorf("chunk %d: %w: empty vector", entries[0].Chunk.ID, models.ErrDimensionMismatch)
	}

	next := &snapshot{
		dim:     dim,
		chunks:  make([]models.Chunk, len(entries)),
		vectors: make([]float32, len(entries)*dim),
	}
	for i, e := range entries {
		if len(e.Vector) != dim {
			return fmt.Errorf("chunk %d: %w: got %d, want %d",
				e.Chunk.ID, models.ErrDimensionMismatch, len(e.Vector), dim)
		}
		next.chunks[i] = e.Chunk
		copy(next.row(i), e.Vector)
		normalize(next.row(i))
	}

	s.snap.Store(next)
	return nil
}

// Search returns the min(k, Len()) most similar chunks, most similar first,
// ties broken by ascending chunk ID.
func (s *MemoryStore) Search(query []float32, k int) ([]SearchResult, error) {
	snap := s.snap.Load()
	if snap == nil {
		return nil, models.ErrEmptyIndex
	}
	if len(query) != snap.dim {
		return nil, fmt.Errorf("query: %w: got %d, want %d", models.ErrDimensionMismatch, len(query), snap.dim)
	}
	if k <= 0 {
		return []SearchResult{}, nil
	}

	q := make([]float32, len(query))
	copy(q, query)
	normalize(q)

	results := make([]SearchResult, len(snap.chunks))
	for i, c := range snap.chunks {
		results[i] = SearchResult{Chunk: c, Similarity: clamp(dot(snap.row(i), q))}
	}

	slices.SortFunc(results, func(a, b SearchResult) int {
		if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
			return c
		}
		return cmp.Compare(a.Chunk.ID, b.Chunk.ID)
	})

	return results[:min(k, len(results))], nil
}

func (s *MemoryStore) Len() int {
	if snap := s.snap.Load(); snap != nil {
		return len(snap.chunks)
	}
	return 0
}

// Dimension is 0 until the first Build.
func (s *MemoryStore) Dimension() int {
	if snap := s.snap.Load(); snap != nil {
		return snap.dim
	}
	return 0
}

// normalize scales v to unit length in place. The zero vector is left alone.
func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func clamp(x float64) float64 {
	return max(-1, min(1, x))
}
