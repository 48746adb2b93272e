package postform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillsearch/quill/internal/analysis"
)

func TestCapabilities(t *testing.T) {
	assert.False(t, Existence.Supports(CapFrequency))
	assert.True(t, Frequency.Supports(CapFrequency))
	assert.False(t, Frequency.Supports(CapPositions))
	assert.True(t, Positions.Supports(CapPositions))
	assert.True(t, Characters.Supports(CapPositions|CapCharacters))
	assert.True(t, PositionBoosts.Supports(CapBoosts))
	assert.True(t, CharacterBoosts.Supports(CapCharacters|CapBoosts))
}

func TestWordValuesGroupsOccurrences(t *testing.T) {
	toks := analysis.Tokenize("green eggs and green ham")
	wvs := WordValues(Positions, toks)
	require.Len(t, wvs, 3)
	// Sorted by term.
	assert.Equal(t, "egg", wvs[0].Term)
	assert.Equal(t, "green", wvs[1].Term)
	assert.Equal(t, "ham", wvs[2].Term)

	assert.Equal(t, 2, wvs[1].Freq)
	assert.Equal(t, 2.0, wvs[1].Weight)
	assert.Equal(t, []int{0, 2}, Positions.DecodePositions(wvs[1].Value))
}

func TestExistenceCarriesNoValue(t *testing.T) {
	toks := analysis.Tokenize("fox fox fox")
	wvs := WordValues(Existence, toks)
	require.Len(t, wvs, 1)
	assert.Empty(t, wvs[0].Value)
	assert.Equal(t, 1.0, wvs[0].Weight)
}

func TestFrequencyValue(t *testing.T) {
	toks := analysis.Tokenize("fox fox fox")
	wvs := WordValues(Frequency, toks)
	require.Len(t, wvs, 1)
	assert.Equal(t, 3, Frequency.DecodeFrequency(wvs[0].Value))
	assert.Equal(t, 3.0, wvs[0].Weight)
}

func TestCharactersRoundTrip(t *testing.T) {
	toks := analysis.Tokenize("fox ran, fox hid")
	wvs := WordValues(Characters, toks)
	var foxValue []byte
	for _, wv := range wvs {
		if wv.Term == "fox" {
			foxValue = wv.Value
		}
	}
	require.NotNil(t, foxValue)
	spans := Characters.DecodeCharacters(foxValue)
	require.Len(t, spans, 2)
	assert.Equal(t, Span{Pos: 0, Start: 0, End: 3}, spans[0])
	assert.Equal(t, Span{Pos: 2, Start: 9, End: 12}, spans[1])
}

func TestCombineSumsBoosts(t *testing.T) {
	a := PositionBoosts.encode([]occurrence{{pos: 1, boost: 1.0}})
	b := PositionBoosts.encode([]occurrence{{pos: 1, boost: 2.0}, {pos: 4, boost: 1.0}})
	combined := PositionBoosts.Combine([][]byte{a, b})
	got := PositionBoosts.DecodePositionBoosts(combined)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Pos)
	assert.InDelta(t, 3.0, got[0].Boost, 1e-9)
	assert.Equal(t, 4, got[1].Pos)
}

func TestCombineFrequency(t *testing.T) {
	a := Frequency.encode([]occurrence{{pos: 0}, {pos: 1}})
	b := Frequency.encode([]occurrence{{pos: 0}})
	assert.Equal(t, 3, Frequency.DecodeFrequency(Frequency.Combine([][]byte{a, b})))
}

func TestMustSupportPanics(t *testing.T) {
	assert.Panics(t, func() { Frequency.DecodePositions(nil) })
	assert.Panics(t, func() { Positions.DecodeCharacters(nil) })
}
