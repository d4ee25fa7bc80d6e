package rag

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/nikhilbhutani/docrag/internal/models"
)

// ParsedResponse holds the labelled fields of a completion. Quote and
// Confidence are nil when absent or unusable.
type ParsedResponse struct {
	Answer     string
	Source     string
	Quote      *string
	Confidence *int
}

// labelRE matches a field label at the start of a line, tolerating
// indentation, list markers, and markdown emphasis around the label.
var labelRE = regexp.MustCompile(`(?im)^[ \t]*(?:[-*>#]+[ \t]*)?(?:\*\*|__)?[ \t]*(answer|source|quote|confidence)[ \t]*(?:\*\*|__)?[ \t]*:[ \t]*(?:\*\*|__)?`)

var confidenceRE = regexp.MustCompile(`^(\d{1,3})(?:\s*%)?(?:\s|$)`)

// ParseResponse extracts the four labels from raw. Each value runs until the
// next label; the first occurrence of a label wins. Answer and Source are
// required.
func ParseResponse(raw string) (*ParsedResponse, error) {
	fields := make(map[string]string, 4)

	matches := labelRE.FindAllStringSubmatchIndex(raw, -1)
	for i, m := range matches {
		label := strings.ToLower(raw[m[2]:m[3]])
		end := len(raw)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		if _, seen := fields[label]; seen {
			continue
		}
		fields[label] = cleanValue(raw[m[1]:end])
	}

	var missing []string
	for _, label := range []string{"answer", "source"} {
		if fields[label] == "" {
			missing = append(missing, label)
		}
	}
	if len(missing) > 0 {
		return nil, &models.MalformedResponseError{Missing: missing}
	}

	return &ParsedResponse{
		Answer:     fields["answer"],
		Source:     fields["source"],
		Quote:      parseQuote(fields["quote"]),
		Confidence: parseConfidence(fields["confidence"]),
	}, nil
}

func (p *ParsedResponse) notFound() bool {
	if strings.Contains(strings.ToLower(p.Source), "not found") {
		return true
	}
	sentence := strings.ToLower(strings.TrimSuffix(models.NotFoundMessage, "."))
	return strings.Contains(strings.ToLower(p.Answer), sentence)
}

func cleanValue(s string) string {
	s = strings.TrimSpace(s)
	for _, mark := range []string{"**", "__"} {
		s = strings.TrimSpace(strings.TrimSuffix(s, mark))
	}
	return s
}

var quotePairs = [][2]string{{`"`, `"`}, {"'", "'"}, {"“", "”"}, {"‘", "’"}, {"`", "`"}}

func parseQuote(s string) *string {
	s = strings.TrimSpace(s)
	// the quote closes on its opening line when it can; anything after the
	// closing mark, such as "(Chunk 2)" or a note on a later line, is dropped
	for _, q := range quotePairs {
		if !strings.HasPrefix(s, q[0]) {
			continue
		}
		body := s[len(q[0]):]
		line, _, _ := strings.Cut(body, "\n")
		if end := strings.LastIndex(line, q[1]); end >= 0 {
			s = line[:end]
		} else if end := strings.Index(body, q[1]); end >= 0 {
			s = body[:end]
		}
		break
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "n/a", "na", "none", "null", "-":
		return nil
	}
	return &s
}

func parseConfidence(s string) *int {
	m := confidenceRE.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 0 || n > models.MaxConfidence {
		return nil
	}
	return &n
}
