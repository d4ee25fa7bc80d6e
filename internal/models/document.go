package models

import (
	"time"

	"github.com/google/uuid"
)

// Page is one unit of extracted text in reading order. Section is empty when
// the extractor found no section label.
type Page struct {
	Number  int    `json:"page_number" yaml:"page_number"`
	Section string `json:"section_label,omitempty" yaml:"section_label,omitempty"`
	Text    string `json:"text" yaml:"text"`
}

// Chunk is a provenance-tagged token window of a single page. ID is the
// insertion order within one document and doubles as the chunk's slot in the
// vector index.
type Chunk struct {
	ID          int    `json:"id"`
	Text        string `json:"text"`
	TokenCount  int    `json:"token_count"`
	Page        int    `json:"page"`
	Section     string `json:"section,omitempty"`
	StartOffset int    `json:"start_offset"`
}

// Label renders the chunk's location the way answers cite it.
func (c Chunk) Label() string {
	return SourceLabel(c.Page, c.Section)
}

type Document struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Pages     int       `json:"pages"`
	Chunks    int       `json:"chunks"`
	Status    string    `json:"status"`
	IndexedAt time.Time `json:"indexed_at,omitempty"`
}

const (
	DocStatusEmpty    = "empty"
	DocStatusIndexing = "indexing"
	DocStatusReady    = "ready"
	DocStatusFailed   = "failed"
)
