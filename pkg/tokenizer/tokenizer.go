package tokenizer

import (
	"unicode"
	"unicode/utf8"
)

// Token is a whitespace-delimited word with its byte span in the source text.
type Token struct {
	Text  string
	Start int
	End   int
}

// Tokenize splits text on Unicode whitespace, keeping byte offsets so callers
// can slice the original text back out verbatim.
func Tokenize(text string) []Token {
	var tokens []Token
	start := -1
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if unicode.IsSpace(r) {
			if start >= 0 {
				tokens = append(tokens, Token{Text: text[start:i], Start: start, End: i})
				start = -1
			}
		} else if start < 0 {
			start = i
		}
		i += size
	}
	if start >= 0 {
		tokens = append(tokens, Token{Text: text[start:], Start: start, End: len(text)})
	}
	return tokens
}

// CountTokens returns the number of tokens Tokenize would produce.
func CountTokens(text string) int {
	n := 0
	inWord := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			inWord = false
			continue
		}
		if !inWord {
			n++
			inWord = true
		}
	}
	return n
}
