package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	text := "  Revenue grew\t12%\n\nin Q3.  "
	tokens := Tokenize(text)

	words := make([]string, len(tokens))
	for i, tok := range tokens {
		words[i] = tok.Text
		assert.Equal(t, tok.Text, text[tok.Start:tok.End])
	}
	assert.Equal(t, []string{"Revenue", "grew", "12%", "in", "Q3."}, words)
	assert.Equal(t, 2, tokens[0].Start)
}

func TestTokenizeMultibyte(t *testing.T) {
	text := "café naïve — ok"
	tokens := Tokenize(text)
	for _, tok := range tokens {
		assert.Equal(t, tok.Text, text[tok.Start:tok.End])
	}
	assert.Len(t, tokens, 4)
}

func TestTokenizeEmpty(t *testing.T) {
	assert.Empty(t, Tokenize(""))
	assert.Empty(t, Tokenize(" \n\t "))
}

func TestCountTokens(t *testing.T) {
	for _, text := range []string{"", "one", " a b  c ", "x\ny\tz w", "café naïve — ok"} {
		assert.Equal(t, len(Tokenize(text)), CountTokens(text), text)
	}
}
