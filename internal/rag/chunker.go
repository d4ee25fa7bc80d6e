package rag

import (
	"github.com/nikhilbhutani/docrag/internal/models"
	"github.com/nikhilbhutani/docrag/pkg/chunker"
)

// ChunkPages windows every page on its own and numbers the chunks densely
// across the whole document, in page order.
func ChunkPages(c chunker.Chunker, pages []models.Page) ([]models.Chunk, error) {
	var chunks []models.Chunk
	for _, p := range pages {
		for _, tc := range c.Chunk(p.Text) {
			chunks = append(chunks, models.Chunk{
				ID:          len(chunks),
				Text:        tc.Content,
				TokenCount:  tc.TokenCount,
				Page:        p.Number,
				Section:     p.Section,
				StartOffset: tc.Start,
			})
		}
	}
	if len(chunks) == 0 {
		return nil, models.ErrEmptyDocument
	}
	return chunks, nil
}
