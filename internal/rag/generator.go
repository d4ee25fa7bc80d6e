package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/nikhilbhutani/docrag/internal/llm"
	"github.com/nikhilbhutani/docrag/internal/models"
	"github.com/nikhilbhutani/docrag/internal/vectorstore"
)

// Generator turns retrieved chunks into a grounded answer through a
// completion service.
type Generator struct {
	completer llm.Completer
}

func NewGenerator(c llm.Completer) *Generator {
	return &Generator{completer: c}
}

// Answer asks the completion service about query using only results. With
// no results it returns the not-found answer without calling the service. A
// malformed completion degrades to the not-found answer; every other error is
// returned.
func (g *Generator) Answer(ctx context.Context, query string, results []vectorstore.SearchResult) (*models.GroundedAnswer, error) {
	if len(results) == 0 {
		return models.NotFoundAnswer(), nil
	}

	raw, err := g.completer.Complete(ctx, BuildPrompt(query, results))
	if err != nil {
		return nil, models.UpstreamError("complete answer", err)
	}

	parsed, err := ParseResponse(raw)
	if errors.Is(err, models.ErrMalformedResponse) {
		slog.Warn("degrading malformed completion", "error", err, "response_bytes", len(raw))
		return models.NotFoundAnswer(), nil
	}
	if err != nil {
		return nil, err
	}

	return Ground(parsed, results), nil
}

// Model names the completion model when the completer exposes one.
func (g *Generator) Model() string {
	if m, ok := g.completer.(interface{ Model() string }); ok {
		return m.Model()
	}
	return ""
}

// BuildPrompt constrains the model to the retrieved chunks and asks for the
// four labelled fields.
func BuildPrompt(query string, results []vectorstore.SearchResult) string {
	var sb strings.Builder

	sb.WriteString("You answer questions about an uploaded document.\n\n")
	sb.WriteString("Rules:\n")
	sb.WriteString("- Use ONLY the document chunks below. Never use general or outside knowledge.\n")
	fmt.Fprintf(&sb, "- If the chunks do not contain the answer, the Answer must be exactly %q and the Source must be %q.\n",
		models.NotFoundMessage, models.SourceNotFound)
	sb.WriteString("- The Quote must be copied character for character from a single chunk, without changes.\n")
	sb.WriteString("- The Source is the page and section label of the chunk the quote comes from.\n")
	sb.WriteString("- Confidence is an integer from 0 to 100 saying how fully the chunks support the answer.\n\n")

	sb.WriteString("Document chunks:\n\n")
	for i, r := range results {
		fmt.Fprintf(&sb, "Chunk %d [%s]\n%s\n\n", i+1, r.Chunk.Label(), r.Chunk.Text)
	}

	sb.WriteString("Respond in exactly this format and nothing else:\n")
	sb.WriteString("Answer: <answer>\n")
	sb.WriteString("Source: <Page X / Section Y, or Not found>\n")
	sb.WriteString("Quote: \"<exact text from one chunk>\"\n")
	sb.WriteString("Confidence: <integer 0-100>\n\n")

	fmt.Fprintf(&sb, "Question: %s\n", strings.TrimSpace(query))
	return sb.String()
}

// Ground validates a parsed response against the chunks it was produced
// from. A quote is trusted only if it appears verbatim in one of them; the
// source is then taken from the highest ranked such chunk rather than from
// the model.
func Ground(p *ParsedResponse, results []vectorstore.SearchResult) *models.GroundedAnswer {
	if p.notFound() {
		return models.NotFoundAnswer()
	}

	confidence := fallbackConfidence(results)
	if p.Confidence != nil {
		confidence = *p.Confidence
	}

	answer := &models.GroundedAnswer{
		Answer: p.Answer,
		Source: models.SourceUnverified,
		Quote:  p.Quote,
	}
	if p.Quote != nil {
		for _, r := range results {
			if strings.Contains(r.Chunk.Text, *p.Quote) {
				answer.Source = r.Chunk.Label()
				break
			}
		}
	}
	if answer.Source == models.SourceUnverified {
		confidence = min(confidence, models.UnverifiedConfidence)
	}
	answer.Confidence = confidence
	return answer
}

// fallbackConfidence is round(100 * best similarity), clamped to [0,100].
func fallbackConfidence(results []vectorstore.SearchResult) int {
	if len(results) == 0 {
		return 0
	}
	best := results[0].Similarity
	for _, r := range results[1:] {
		best = max(best, r.Similarity)
	}
	return percent(best)
}

// percent maps a similarity to a whole percentage in [0,100].
func percent(similarity float64) int {
	return max(0, min(models.MaxConfidence, int(math.Round(100*similarity))))
}
