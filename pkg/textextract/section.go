package textextract

import (
	"strings"
	"unicode"
)

const (
	sectionScanLines    = 5
	sectionMaxTitleWord = 8
)

// DetectSection returns the first heading-like line among the first few
// non-empty lines of text: ALL CAPS, or Title Case with at most eight words.
// It returns "" when no line qualifies.
func DetectSection(text string) string {
	seen := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		seen++
		if seen > sectionScanLines {
			break
		}
		if len(line) <= 3 {
			continue
		}
		if isUpper(line) || (isTitle(line) && len(strings.Fields(line)) <= sectionMaxTitleWord) {
			return line
		}
	}
	return ""
}

// isUpper reports whether s has at least one letter and no lower-case ones.
func isUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter
}

// isTitle reports whether every word starts upper-case and continues
// lower-case, ignoring non-letters.
func isTitle(s string) bool {
	hasLetter := false
	for _, word := range strings.Fields(s) {
		first := true
		for _, r := range word {
			if !unicode.IsLetter(r) {
				first = true
				continue
			}
			hasLetter = true
			if first && !unicode.IsUpper(r) {
				return false
			}
			if !first && unicode.IsUpper(r) {
				return false
			}
			first = false
		}
	}
	return hasLetter
}
