package chunker

import (
	"errors"
	"fmt"

	"github.com/nikhilbhutani/docrag/pkg/tokenizer"
)

type Chunker interface {
	Chunk(text string) []TextChunk
}

// ChunkOptions sizes are in tokens as counted by pkg/tokenizer.
type ChunkOptions struct {
	ChunkSize    int `json:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap int `json:"chunk_overlap" yaml:"chunk_overlap"`
}

// TextChunk is one window of a text. Start and End are byte offsets, so
// Content == text[Start:End].
type TextChunk struct {
	Content    string
	Index      int
	Start      int
	End        int
	TokenCount int
}

func DefaultOptions() ChunkOptions {
	return ChunkOptions{
		ChunkSize:    500,
		ChunkOverlap: 50,
	}
}

func (o ChunkOptions) Validate() error {
	switch {
	case o.ChunkSize <= 0:
		return fmt.Errorf("chunk size must be positive, got %d", o.ChunkSize)
	case o.ChunkOverlap < 0:
		return fmt.Errorf("chunk overlap must not be negative, got %d", o.ChunkOverlap)
	case o.ChunkOverlap >= o.ChunkSize:
		return errors.New("chunk overlap must be smaller than chunk size")
	}
	return nil
}

type windowChunker struct {
	opts ChunkOptions
}

func New(opts ChunkOptions) (Chunker, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &windowChunker{opts: opts}, nil
}

// Chunk slides a ChunkSize-token window over text, advancing by
// ChunkSize-ChunkOverlap tokens. Every window but the last is full.
func (c *windowChunker) Chunk(text string) []TextChunk {
	tokens := tokenizer.Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}

	step := c.opts.ChunkSize - c.opts.ChunkOverlap
	var chunks []TextChunk
	for start, idx := 0, 0; ; start, idx = start+step, idx+1 {
		end := min(start+c.opts.ChunkSize, len(tokens))
		from, to := tokens[start].Start, tokens[end-1].End
		chunks = append(chunks, TextChunk{
			Content:    text[from:to],
			Index:      idx,
			Start:      from,
			End:        to,
			TokenCount: end - start,
		})
		if end == len(tokens) {
			break
		}
	}

	return chunks
}
