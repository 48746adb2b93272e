// Package postform defines the per-field posting formats: what per-occurrence
// information a field retains and how one aggregated posting value is encoded.
//
// The formats form a closed set, each a strict superset of the previous in
// information retained. Callers must check Supports before calling a decoder;
// decoding a capability the format does not store is a programming error and
// panics.
package postform

import (
	"fmt"
	"sort"

	"github.com/quillsearch/quill/internal/analysis"
)

// Capability is a flag for a kind of per-occurrence data a format may store.
type Capability uint8

const (
	CapFrequency Capability = 1 << iota
	CapPositions
	CapCharacters
	CapBoosts
)

func (c Capability) String() string {
	switch c {
	case CapFrequency:
		return "frequency"
	case CapPositions:
		return "positions"
	case CapCharacters:
		return "characters"
	case CapBoosts:
		return "boosts"
	}
	return fmt.Sprintf("capability(%d)", uint8(c))
}

// Format identifies one of the closed set of posting formats.
type Format uint8

const (
	// Existence stores membership only; frequency is fixed at 1.
	Existence Format = iota
	// Frequency stores the per-term occurrence count.
	Frequency
	// Positions stores ordered in-field token positions, delta-encoded.
	Positions
	// Characters adds start/end character offsets per occurrence.
	Characters
	// PositionBoosts adds a per-occurrence boost to Positions.
	PositionBoosts
	// CharacterBoosts adds a per-occurrence boost to Characters.
	CharacterBoosts
)

var formatCaps = map[Format]Capability{
	Existence:       0,
	Frequency:       CapFrequency,
	Positions:       CapFrequency | CapPositions,
	Characters:      CapFrequency | CapPositions | CapCharacters,
	PositionBoosts:  CapFrequency | CapPositions | CapBoosts,
	CharacterBoosts: CapFrequency | CapPositions | CapCharacters | CapBoosts,
}

var formatNames = map[Format]string{
	Existence:       "existence",
	Frequency:       "frequency",
	Positions:       "positions",
	Characters:      "characters",
	PositionBoosts:  "positionboosts",
	CharacterBoosts: "characterboosts",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("format(%d)", uint8(f))
}

// ParseFormat resolves a format name from configuration.
func ParseFormat(name string) (Format, error) {
	for f, n := range formatNames {
		if n == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown posting format %q", name)
}

// Caps returns the capability flags the format stores.
func (f Format) Caps() Capability {
	return formatCaps[f]
}

// Supports reports whether the format stores the given capability.
func (f Format) Supports(c Capability) bool {
	return f.Caps()&c == c
}

func (f Format) mustSupport(c Capability) {
	if !f.Supports(c) {
		panic(fmt.Sprintf("postform: decode %s on format %s which does not store it", c, f))
	}
}

// TermValue is one aggregated posting produced from a token stream: the
// distinct term, its occurrence count, the summed weight, and the encoded
// per-occurrence value string.
type TermValue struct {
	Term   string
	Freq   int
	Weight float64
	Value  []byte
}

// occurrence is the internal per-token record formats encode from.
type occurrence struct {
	pos       int
	startChar int
	endChar   int
	boost     float64
}

// WordValues groups a token stream by distinct term and produces one encoded
// TermValue per term, with weights and frequencies summed. Results are sorted
// by term.
func WordValues(f Format, tokens []analysis.Token) []TermValue {
	grouped := make(map[string][]occurrence)
	for _, t := range tokens {
		boost := t.Boost
		if boost == 0 {
			boost = 1.0
		}
		grouped[t.Term] = append(grouped[t.Term], occurrence{
			pos:       t.Position,
			startChar: t.StartChar,
			endChar:   t.EndChar,
			boost:     boost,
		})
	}
	out := make([]TermValue, 0, len(grouped))
	for term, occs := range grouped {
		out = append(out, TermValue{
			Term:   term,
			Freq:   f.frequencyOf(occs),
			Weight: f.weightOf(occs),
			Value:  f.encode(occs),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Term < out[j].Term })
	return out
}

// frequencyOf returns the stored frequency: always 1 for Existence, the
// occurrence count otherwise.
func (f Format) frequencyOf(occs []occurrence) int {
	if f == Existence {
		return 1
	}
	return len(occs)
}

// weightOf sums per-occurrence boosts for boost-carrying formats and counts
// occurrences otherwise. Existence always weighs 1.
func (f Format) weightOf(occs []occurrence) float64 {
	if f == Existence {
		return 1.0
	}
	if !f.Supports(CapBoosts) {
		return float64(len(occs))
	}
	var w float64
	for _, o := range occs {
		w += o.boost
	}
	return w
}
