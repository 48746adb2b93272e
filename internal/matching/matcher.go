// Package matching implements the matcher tree that walks posting streams in
// document-number order: primitive matchers over single posting lists and
// combinators for boolean composition, plus block-quality-based early
// termination hooks.
//
// A matcher is either active (positioned at a valid current document) or
// exhausted. Advancing is monotonic; a matcher never revisits a lower
// document number. Matchers are positioned on their first match at
// construction time.
package matching

import (
	"github.com/quillsearch/quill/internal/segment"
	"github.com/quillsearch/quill/internal/scoring"
)

// Matcher is a stateful cursor over one conceptual posting stream.
type Matcher interface {
	// IsActive reports whether the matcher has a valid current document.
	IsActive() bool
	// ID returns the current document number. Only valid while active.
	ID() uint32
	// Next advances to the following document, returning the new active
	// state.
	Next() bool
	// SkipTo advances at least to target: afterwards either ID() >= target
	// or the matcher is exhausted. Equivalent to repeated Next.
	SkipTo(target uint32) bool
	// Score returns the current document's score contribution.
	Score() float64
	// Weight returns the current document's raw weight.
	Weight() float64

	// SupportsQuality reports whether the quality hooks return meaningful
	// bounds.
	SupportsQuality() bool
	// MaxQuality bounds every score this matcher can ever produce.
	MaxQuality() float64
	// BlockQuality bounds the scores achievable in the current block.
	BlockQuality() float64
	// SkipToQuality advances past blocks whose quality is not above
	// minQuality, returning the new active state.
	SkipToQuality(minQuality float64) bool
}

// NullMatcher matches nothing; the compiled form of an empty query.
type NullMatcher struct{}

func (NullMatcher) IsActive() bool            { return false }
func (NullMatcher) ID() uint32                { return 0 }
func (NullMatcher) Next() bool                { return false }
func (NullMatcher) SkipTo(uint32) bool        { return false }
func (NullMatcher) Score() float64            { return 0 }
func (NullMatcher) Weight() float64           { return 0 }
func (NullMatcher) SupportsQuality() bool     { return true }
func (NullMatcher) MaxQuality() float64       { return 0 }
func (NullMatcher) BlockQuality() float64     { return 0 }
func (NullMatcher) SkipToQuality(float64) bool { return false }

// ListMatcher walks an in-memory posting slice; used for uncommitted buffer
// postings and fixed id lists. The whole list is one block.
type ListMatcher struct {
	postings []segment.Posting
	pos      int
	scorer   scoring.Scorer
	lengthFn func(doc uint32) uint32
	maxW     float64
}

// NewListMatcher creates a matcher over postings sorted by ascending Doc.
// scorer may be nil, in which case Score returns the raw weight.
func NewListMatcher(postings []segment.Posting, scorer scoring.Scorer, lengthFn func(uint32) uint32) *ListMatcher {
	var maxW float64
	for _, p := range postings {
		if p.Weight > maxW {
			maxW = p.Weight
		}
	}
	return &ListMatcher{postings: postings, scorer: scorer, lengthFn: lengthFn, maxW: maxW}
}

func (m *ListMatcher) IsActive() bool { return m.pos < len(m.postings) }

func (m *ListMatcher) ID() uint32 { return m.postings[m.pos].Doc }

func (m *ListMatcher) Next() bool {
	m.pos++
	return m.IsActive()
}

func (m *ListMatcher) SkipTo(target uint32) bool {
	for m.IsActive() && m.ID() < target {
		m.pos++
	}
	return m.IsActive()
}

func (m *ListMatcher) Weight() float64 { return m.postings[m.pos].Weight }

func (m *ListMatcher) Score() float64 {
	if m.scorer == nil {
		return m.Weight()
	}
	var length uint32
	if m.lengthFn != nil {
		length = m.lengthFn(m.ID())
	}
	return m.scorer.Score(m.Weight(), length)
}

// Value returns the current posting's encoded value.
func (m *ListMatcher) Value() []byte { return m.postings[m.pos].Value }

func (m *ListMatcher) SupportsQuality() bool {
	return m.scorer != nil && m.scorer.SupportsQuality()
}

func (m *ListMatcher) MaxQuality() float64 {
	if m.scorer == nil {
		return m.maxW
	}
	return m.scorer.MaxQuality()
}

func (m *ListMatcher) BlockQuality() float64 {
	if m.scorer == nil {
		return m.maxW
	}
	return m.scorer.BlockQuality(m.maxW)
}

func (m *ListMatcher) SkipToQuality(minQuality float64) bool {
	if m.BlockQuality() <= minQuality {
		m.pos = len(m.postings)
	}
	return m.IsActive()
}
