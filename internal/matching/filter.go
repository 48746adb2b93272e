package matching

import "github.com/quillsearch/quill/internal/idset"

// FilterMatcher restricts a child matcher to documents allowed by an id set.
// With exclude set, the sense inverts and member documents are dropped.
type FilterMatcher struct {
	child   Matcher
	ids     idset.Set
	exclude bool
}

func NewFilterMatcher(child Matcher, ids idset.Set) *FilterMatcher {
	m := &FilterMatcher{child: child, ids: ids}
	m.align()
	return m
}

// NewExcludeMatcher drops the child's documents that appear in ids.
func NewExcludeMatcher(child Matcher, ids idset.Set) *FilterMatcher {
	m := &FilterMatcher{child: child, ids: ids, exclude: true}
	m.align()
	return m
}

func (m *FilterMatcher) allowed(doc uint32) bool {
	return m.ids.Contains(doc) != m.exclude
}

func (m *FilterMatcher) align() {
	for m.child.IsActive() && !m.allowed(m.child.ID()) {
		m.child.Next()
	}
}

func (m *FilterMatcher) IsActive() bool { return m.child.IsActive() }

func (m *FilterMatcher) ID() uint32 { return m.child.ID() }

func (m *FilterMatcher) Next() bool {
	if !m.child.Next() {
		return false
	}
	m.align()
	return m.child.IsActive()
}

func (m *FilterMatcher) SkipTo(target uint32) bool {
	if !m.child.SkipTo(target) {
		return false
	}
	m.align()
	return m.child.IsActive()
}

func (m *FilterMatcher) Score() float64  { return m.child.Score() }
func (m *FilterMatcher) Weight() float64 { return m.child.Weight() }

func (m *FilterMatcher) SupportsQuality() bool { return m.child.SupportsQuality() }
func (m *FilterMatcher) MaxQuality() float64   { return m.child.MaxQuality() }
func (m *FilterMatcher) BlockQuality() float64 { return m.child.BlockQuality() }

func (m *FilterMatcher) SkipToQuality(minQuality float64) bool {
	if !m.child.SkipToQuality(minQuality) {
		return false
	}
	m.align()
	return m.child.IsActive()
}
