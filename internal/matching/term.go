package matching

import (
	"github.com/quillsearch/quill/internal/segment"
	"github.com/quillsearch/quill/internal/scoring"
)

// TermMatcher wraps one term's on-disk posting cursor within a segment.
type TermMatcher struct {
	cursor   *segment.PostingCursor
	scorer   scoring.Scorer
	lengthFn func(doc uint32) uint32
}

// NewTermMatcher positions the cursor at its first posting. scorer may be
// nil for unscored (filter-only) matching.
func NewTermMatcher(cursor *segment.PostingCursor, scorer scoring.Scorer, lengthFn func(uint32) uint32) *TermMatcher {
	cursor.Next()
	return &TermMatcher{cursor: cursor, scorer: scorer, lengthFn: lengthFn}
}

func (m *TermMatcher) IsActive() bool { return m.cursor.IsActive() }

func (m *TermMatcher) ID() uint32 { return m.cursor.Doc() }

func (m *TermMatcher) Next() bool { return m.cursor.Next() }

func (m *TermMatcher) SkipTo(target uint32) bool { return m.cursor.SkipTo(target) }

func (m *TermMatcher) Weight() float64 { return m.cursor.Weight() }

// Value returns the current posting's encoded value string.
func (m *TermMatcher) Value() []byte { return m.cursor.Value() }

func (m *TermMatcher) Score() float64 {
	if m.scorer == nil {
		return m.cursor.Weight()
	}
	var length uint32
	if m.lengthFn != nil {
		length = m.lengthFn(m.cursor.Doc())
	}
	return m.scorer.Score(m.cursor.Weight(), length)
}

func (m *TermMatcher) SupportsQuality() bool {
	return m.scorer != nil && m.scorer.SupportsQuality()
}

func (m *TermMatcher) MaxQuality() float64 {
	if m.scorer == nil {
		return m.cursor.MaxWeight()
	}
	return m.scorer.MaxQuality()
}

func (m *TermMatcher) BlockQuality() float64 {
	if m.scorer == nil {
		return m.cursor.BlockMaxWeight()
	}
	return m.scorer.BlockQuality(m.cursor.BlockMaxWeight())
}

// SkipToQuality jumps past whole blocks whose quality bound cannot beat
// minQuality, using block headers only.
func (m *TermMatcher) SkipToQuality(minQuality float64) bool {
	for m.cursor.IsActive() && m.BlockQuality() <= minQuality {
		if !m.cursor.SkipPastBlock() {
			return false
		}
	}
	return m.cursor.IsActive()
}
