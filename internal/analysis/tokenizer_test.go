package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func terms(toks []Token) []string {
	out := make([]string, len(toks))
	for i, t := range toks {
		out[i] = t.Term
	}
	return out
}

func TestTokenizeBasic(t *testing.T) {
	toks := Tokenize("The quick brown fox")
	assert.Equal(t, []string{"quick", "brown", "fox"}, terms(toks))
	// "The" is a stop-word; positions count survivors only.
	assert.Equal(t, 0, toks[0].Position)
	assert.Equal(t, 2, toks[2].Position)
}

func TestTokenizeOffsets(t *testing.T) {
	toks := Tokenize("hello, world")
	require.Len(t, toks, 2)
	assert.Equal(t, 0, toks[0].StartChar)
	assert.Equal(t, 5, toks[0].EndChar)
	assert.Equal(t, 7, toks[1].StartChar)
	assert.Equal(t, 12, toks[1].EndChar)
}

func TestTokenizeLowercases(t *testing.T) {
	toks := Tokenize("HELLO World")
	assert.Equal(t, []string{"hello", "world"}, terms(toks))
}

func TestTokenizeDropsShortWords(t *testing.T) {
	toks := Tokenize("x y go run")
	assert.Equal(t, []string{"go", "run"}, terms(toks))
}

func TestStemming(t *testing.T) {
	cases := map[string]string{
		"running":  "runn",
		"quickly":  "quick",
		"parties":  "party",
		"caches":   "cach",
		"walked":   "walk",
		"stations": "station",
		"class":    "class",
		"fox":      "fox",
	}
	for in, want := range cases {
		toks := Normalize(in)
		require.Len(t, toks, 1, "input %q", in)
		assert.Equal(t, want, toks[0].Term, "input %q", in)
	}
}

func TestNormalizeStopWord(t *testing.T) {
	assert.Empty(t, Normalize("the"))
	assert.Empty(t, Normalize("a"))
}

func BenchmarkTokenize(b *testing.B) {
	text := "the quick brown fox jumps over the lazy dog while searching for scattered postings"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Tokenize(text)
	}
}
