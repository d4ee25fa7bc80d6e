package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/docrag/internal/models"
	"github.com/nikhilbhutani/docrag/internal/vectorstore"
	"github.com/nikhilbhutani/docrag/pkg/chunker"
)

func ptr[T any](v T) *T { return &v }

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want ParsedResponse
	}{
		{
			name: "plain",
			raw:  "Answer: Cloud.\nSource: Page 1\nQuote: \"cloud segment\"\nConfidence: 85",
			want: ParsedResponse{Answer: "Cloud.", Source: "Page 1", Quote: ptr("cloud segment"), Confidence: ptr(85)},
		},
		{
			name: "markdown bold and odd spacing",
			raw:  "**Answer:** Cloud.\n  **Source**:   Page 2 / Section Results  \n**Quote:** “grew 12%”\n**Confidence:** 70%",
			want: ParsedResponse{Answer: "Cloud.", Source: "Page 2 / Section Results", Quote: ptr("grew 12%"), Confidence: ptr(70)},
		},
		{
			name: "lower case labels and multi-line answer",
			raw:  "answer: first line\nsecond line\nsource: Page 3\nconfidence: 40",
			want: ParsedResponse{Answer: "first line\nsecond line", Source: "Page 3", Confidence: ptr(40)},
		},
		{
			name: "unusable quote and confidence",
			raw:  "Answer: x\nSource: Page 1\nQuote: N/A\nConfidence: 0.85",
			want: ParsedResponse{Answer: "x", Source: "Page 1"},
		},
		{
			name: "confidence out of range",
			raw:  "Answer: x\nSource: Page 1\nQuote: \"\"\nConfidence: 120",
			want: ParsedResponse{Answer: "x", Source: "Page 1"},
		},
		{
			name: "trailing text after the quote",
			raw:  "Answer: x\nSource: Page 1\nQuote: \"driven by cloud\" (Chunk 1)\nConfidence: 60 (fairly sure)",
			want: ParsedResponse{Answer: "x", Source: "Page 1", Quote: ptr("driven by cloud"), Confidence: ptr(60)},
		},
		{
			name: "note after the quote mentions another quote",
			raw:  "Answer: x\nSource: Page 1\nQuote: \"driven by cloud\"\nThe chunk also says \"flat\" costs.\nConfidence: 60",
			want: ParsedResponse{Answer: "x", Source: "Page 1", Quote: ptr("driven by cloud"), Confidence: ptr(60)},
		},
		{
			name: "quote spanning lines",
			raw:  "Answer: x\nSource: Page 1\nQuote: \"Revenue grew\n12% in Q3\" (Chunk 1)\nConfidence: 60",
			want: ParsedResponse{Answer: "x", Source: "Page 1", Quote: ptr("Revenue grew\n12% in Q3"), Confidence: ptr(60)},
		},
		{
			name: "first occurrence wins",
			raw:  "Answer: one\nSource: Page 1\nAnswer: two",
			want: ParsedResponse{Answer: "one", Source: "Page 1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResponse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestParseResponseMalformed(t *testing.T) {
	_, err := ParseResponse("Answer: something\nConfidence: 90")
	require.ErrorIs(t, err, models.ErrMalformedResponse)

	var mre *models.MalformedResponseError
	require.ErrorAs(t, err, &mre)
	assert.Equal(t, []string{"source"}, mre.Missing)

	_, err = ParseResponse("")
	require.ErrorAs(t, err, &mre)
	assert.Equal(t, []string{"answer", "source"}, mre.Missing)

	// a label without a value counts as missing
	_, err = ParseResponse("Answer:\nSource: Page 1")
	assert.ErrorIs(t, err, models.ErrMalformedResponse)
}

func searchResults(texts ...string) []vectorstore.SearchResult {
	out := make([]vectorstore.SearchResult, len(texts))
	for i, text := range texts {
		out[i] = vectorstore.SearchResult{
			Chunk:      models.Chunk{ID: i, Text: text, Page: i + 1, Section: "S" + string(rune('A'+i))},
			Similarity: 0.8 - 0.1*float64(i),
		}
	}
	return out
}

func TestGround(t *testing.T) {
	rs := searchResults("alpha beta gamma", "delta epsilon beta gamma")

	t.Run("source comes from first matching chunk", func(t *testing.T) {
		got := Ground(&ParsedResponse{Answer: "a", Source: "Page 9", Quote: ptr("beta gamma"), Confidence: ptr(77)}, rs)
		assert.Equal(t, "Page 1 / Section SA", got.Source)
		assert.Equal(t, 77, got.Confidence)
	})
	t.Run("later chunk", func(t *testing.T) {
		got := Ground(&ParsedResponse{Answer: "a", Source: "Page 1", Quote: ptr("epsilon")}, rs)
		assert.Equal(t, "Page 2 / Section SB", got.Source)
		assert.Equal(t, 80, got.Confidence)
	})
	t.Run("quote match is case sensitive", func(t *testing.T) {
		got := Ground(&ParsedResponse{Answer: "a", Source: "Page 1", Quote: ptr("Alpha"), Confidence: ptr(90)}, rs)
		assert.Equal(t, models.SourceUnverified, got.Source)
		assert.Equal(t, 50, got.Confidence)
	})
	t.Run("note after the quote does not break verification", func(t *testing.T) {
		parsed, err := ParseResponse("Answer: a\nSource: Page 2\nQuote: \"epsilon beta\"\nSee also \"alpha\" nearby.\nConfidence: 65")
		require.NoError(t, err)
		got := Ground(parsed, rs)
		assert.Equal(t, "Page 2 / Section SB", got.Source)
		assert.Equal(t, 65, got.Confidence)
	})
	t.Run("missing quote is unverified", func(t *testing.T) {
		got := Ground(&ParsedResponse{Answer: "a", Source: "Page 1", Confidence: ptr(30)}, rs)
		assert.Equal(t, models.SourceUnverified, got.Source)
		assert.Equal(t, 30, got.Confidence)
		assert.Nil(t, got.Quote)
	})
	t.Run("not found by answer sentence", func(t *testing.T) {
		got := Ground(&ParsedResponse{Answer: models.NotFoundMessage, Source: "Page 1", Quote: ptr("alpha"), Confidence: ptr(80)}, rs)
		assert.Equal(t, models.NotFoundAnswer(), got)
	})
	t.Run("not found by source", func(t *testing.T) {
		got := Ground(&ParsedResponse{Answer: "No idea", Source: "NOT FOUND"}, rs)
		assert.Equal(t, models.NotFoundAnswer(), got)
	})
}

func TestGroundingGuarantee(t *testing.T) {
	rs := searchResults("Revenue grew 12% in Q3", "driven by cloud segment", "costs fell")
	quotes := []string{"grew 12%", "cloud", "Cloud", "costs rose", "", "Q3", "segment driven"}

	for _, q := range quotes {
		got := Ground(&ParsedResponse{Answer: "a", Source: "Page 1", Quote: parseQuote(`"` + q + `"`), Confidence: ptr(99)}, rs)
		if !got.Grounded() {
			continue
		}
		require.NotNil(t, got.Quote)
		found := false
		for _, r := range rs {
			found = found || strings.Contains(r.Chunk.Text, *got.Quote)
		}
		assert.True(t, found, "quote %q", q)
	}
}

func TestFallbackConfidence(t *testing.T) {
	assert.Equal(t, 0, fallbackConfidence(nil))
	assert.Equal(t, 0, fallbackConfidence([]vectorstore.SearchResult{{Similarity: -0.4}}))
	assert.Equal(t, 100, fallbackConfidence([]vectorstore.SearchResult{{Similarity: 1}}))
	assert.Equal(t, 67, fallbackConfidence([]vectorstore.SearchResult{{Similarity: 0.665}, {Similarity: 0.2}}))
}

func TestAnswerSkipsCompletionWithoutResults(t *testing.T) {
	c := &fakeCompleter{response: "Answer: x\nSource: Page 1"}
	got, err := NewGenerator(c).Answer(context.Background(), "anything", nil)
	require.NoError(t, err)
	assert.Equal(t, models.NotFoundAnswer(), got)
	assert.Empty(t, c.prompts)
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("  What drove growth?  ", searchResults("alpha", "beta"))

	assert.Contains(t, prompt, models.NotFoundMessage)
	assert.Contains(t, prompt, "Never use general or outside knowledge")
	assert.Contains(t, prompt, "Chunk 1 [Page 1 / Section SA]\nalpha")
	assert.Contains(t, prompt, "Chunk 2 [Page 2 / Section SB]\nbeta")
	assert.Contains(t, prompt, "Confidence: <integer 0-100>")
	assert.True(t, strings.HasSuffix(prompt, "Question: What drove growth?\n"))
}

func TestChunkPages(t *testing.T) {
	ch, err := chunker.New(chunker.ChunkOptions{ChunkSize: 5, ChunkOverlap: 2})
	require.NoError(t, err)

	pages := []models.Page{
		{Number: 1, Section: "Intro", Text: "a1 a2 a3 a4 a5 a6 a7"},
		{Number: 2, Text: ""},
		{Number: 3, Text: "  c1 c2"},
	}
	chunks, err := ChunkPages(ch, pages)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	for i, c := range chunks {
		assert.Equal(t, i, c.ID)
		assert.LessOrEqual(t, c.TokenCount, 5)
	}
	assert.Equal(t, "a1 a2 a3 a4 a5", chunks[0].Text)
	assert.Equal(t, "a4 a5 a6 a7", chunks[1].Text)
	assert.Equal(t, "Intro", chunks[1].Section)
	assert.Equal(t, 9, chunks[1].StartOffset)
	assert.Equal(t, models.Chunk{ID: 2, Text: "c1 c2", TokenCount: 2, Page: 3, StartOffset: 2}, chunks[2])

	_, err = ChunkPages(ch, pages[1:2])
	assert.ErrorIs(t, err, models.ErrEmptyDocument)
}
