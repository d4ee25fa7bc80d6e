package models

import (
	"fmt"
	"strings"
)

const (
	SourceNotFound   = "Not found"
	SourceUnverified = "Unverified"

	// NotFoundMessage is the exact sentence the model is told to use when the
	// retrieved text does not answer the question.
	NotFoundMessage = "This information was not found in the uploaded document."

	MaxConfidence        = 100
	UnverifiedConfidence = 50
)

// GroundedAnswer is the user-visible result of one query.
type GroundedAnswer struct {
	Answer     string  `json:"answer"`
	Source     string  `json:"source"`
	Quote      *string `json:"quote"`
	Confidence int     `json:"confidence"`
}

// NotFoundAnswer is returned when nothing in the document supports an answer.
func NotFoundAnswer() *GroundedAnswer {
	return &GroundedAnswer{
		Answer:     NotFoundMessage,
		Source:     SourceNotFound,
		Confidence: 0,
	}
}

// Grounded reports whether the answer cites a verified location.
func (a *GroundedAnswer) Grounded() bool {
	return a.Source != SourceNotFound && a.Source != SourceUnverified
}

// Format renders the stable four-line output block.
func (a *GroundedAnswer) Format() string {
	quote := "(none)"
	if a.Quote != nil {
		// not %q: escaping would break the verbatim quote
		quote = `"` + *a.Quote + `"`
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Answer:     %s\n", a.Answer)
	fmt.Fprintf(&sb, "Source:     %s\n", a.Source)
	fmt.Fprintf(&sb, "Quote:      %s\n", quote)
	fmt.Fprintf(&sb, "Confidence: %d%%", a.Confidence)
	return sb.String()
}

// SourceLabel formats a page/section location.
func SourceLabel(page int, section string) string {
	if section == "" {
		return fmt.Sprintf("Page %d", page)
	}
	return fmt.Sprintf("Page %d / Section %s", page, section)
}
