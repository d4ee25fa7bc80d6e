package vectorstore

import (
	"github.com/nikhilbhutani/docrag/internal/models"
)

// Entry pairs a chunk with its embedding.
type Entry struct {
	Chunk  models.Chunk
	Vector []float32
}

type SearchResult struct {
	Chunk      models.Chunk `json:"chunk"`
	Similarity float64      `json:"similarity"`
}

// VectorStore is a whole-document index: Build replaces everything, there
// are no partial updates.
type VectorStore interface {
	Build(entries []Entry) error
	Search(query []float32, k int) ([]SearchResult, error)
	Len() int
	Dimension() int
}
