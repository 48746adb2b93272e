package matching

import "github.com/quillsearch/quill/internal/idset"

// ScoreCombiner folds the scores of a parent's matching children into one
// parent score.
type ScoreCombiner func(scores []float64) float64

// SumScores is the default combiner.
func SumScores(scores []float64) float64 {
	var total float64
	for _, s := range scores {
		total += s
	}
	return total
}

// MaxScore keeps the best child score.
func MaxScore(scores []float64) float64 {
	var best float64
	for _, s := range scores {
		if s > best {
			best = s
		}
	}
	return best
}

// NestedParentMatcher maps a child-level matcher up to parent documents.
// parents marks every parent document number; a child belongs to the nearest
// parent at or below it. All children of the current parent are folded into
// one score via the combiner.
type NestedParentMatcher struct {
	parents idset.Set
	child   Matcher
	combine ScoreCombiner

	cur    uint32
	score  float64
	weight float64
	active bool
}

func NewNestedParentMatcher(parents idset.Set, child Matcher, combine ScoreCombiner) *NestedParentMatcher {
	if combine == nil {
		combine = SumScores
	}
	m := &NestedParentMatcher{parents: parents, child: child, combine: combine}
	m.gather()
	return m
}

// parentOf returns the owning parent for a child document.
func (m *NestedParentMatcher) parentOf(child uint32) (uint32, bool) {
	if m.parents.Contains(child) {
		return child, true
	}
	return m.parents.Before(child)
}

// gather consumes every child belonging to the next parent and folds their
// scores.
func (m *NestedParentMatcher) gather() {
	for m.child.IsActive() {
		parent, ok := m.parentOf(m.child.ID())
		if !ok {
			// Orphan children below the first parent are skipped.
			m.child.Next()
			continue
		}
		var scores []float64
		var weight float64
		bound, hasNext := m.parents.After(parent)
		for m.child.IsActive() {
			if hasNext && m.child.ID() >= bound {
				break
			}
			scores = append(scores, m.child.Score())
			weight += m.child.Weight()
			m.child.Next()
		}
		m.cur = parent
		m.score = m.combine(scores)
		m.weight = weight
		m.active = true
		return
	}
	m.active = false
}

func (m *NestedParentMatcher) IsActive() bool { return m.active }

func (m *NestedParentMatcher) ID() uint32 { return m.cur }

func (m *NestedParentMatcher) Next() bool {
	if !m.active {
		return false
	}
	m.gather()
	return m.active
}

func (m *NestedParentMatcher) SkipTo(target uint32) bool {
	for m.active && m.cur < target {
		if m.child.IsActive() && m.child.ID() < target {
			m.child.SkipTo(target)
		}
		m.gather()
	}
	return m.active
}

func (m *NestedParentMatcher) Score() float64  { return m.score }
func (m *NestedParentMatcher) Weight() float64 { return m.weight }

// Combined child scores have no per-block bound, so quality skipping is
// unsupported.
func (m *NestedParentMatcher) SupportsQuality() bool { return false }
func (m *NestedParentMatcher) MaxQuality() float64   { return m.child.MaxQuality() }
func (m *NestedParentMatcher) BlockQuality() float64 { return m.child.MaxQuality() }

func (m *NestedParentMatcher) SkipToQuality(minQuality float64) bool {
	for m.active && m.BlockQuality() <= minQuality {
		m.gather()
	}
	return m.active
}

// NestedChildrenMatcher walks the child documents belonging to parents
// matched by a parent-level matcher. Children inherit the parent's score.
type NestedChildrenMatcher struct {
	parents idset.Set
	parent  Matcher

	cur     uint32
	bound   uint32
	capped  bool
	active  bool
	pscore  float64
	pweight float64
}

func NewNestedChildrenMatcher(parents idset.Set, parent Matcher) *NestedChildrenMatcher {
	m := &NestedChildrenMatcher{parents: parents, parent: parent}
	m.nextParent()
	return m
}

// nextParent advances the parent matcher until one with at least one child
// slot is found and positions cur at its first child.
func (m *NestedChildrenMatcher) nextParent() {
	for m.parent.IsActive() {
		p := m.parent.ID()
		bound, hasNext := m.parents.After(p)
		m.bound = bound
		m.capped = hasNext
		m.cur = p + 1
		m.pscore = m.parent.Score()
		m.pweight = m.parent.Weight()
		m.parent.Next()
		if !m.capped || m.cur < m.bound {
			m.active = true
			return
		}
	}
	m.active = false
}

func (m *NestedChildrenMatcher) IsActive() bool { return m.active }

func (m *NestedChildrenMatcher) ID() uint32 { return m.cur }

func (m *NestedChildrenMatcher) Next() bool {
	if !m.active {
		return false
	}
	m.cur++
	if m.capped && m.cur >= m.bound {
		m.nextParent()
	}
	return m.active
}

func (m *NestedChildrenMatcher) SkipTo(target uint32) bool {
	for m.active && m.cur < target {
		m.Next()
	}
	return m.active
}

func (m *NestedChildrenMatcher) Score() float64  { return m.pscore }
func (m *NestedChildrenMatcher) Weight() float64 { return m.pweight }

func (m *NestedChildrenMatcher) SupportsQuality() bool { return false }
func (m *NestedChildrenMatcher) MaxQuality() float64   { return m.parent.MaxQuality() }
func (m *NestedChildrenMatcher) BlockQuality() float64 { return m.parent.MaxQuality() }

func (m *NestedChildrenMatcher) SkipToQuality(minQuality float64) bool {
	for m.active && m.BlockQuality() <= minQuality {
		m.nextParent()
	}
	return m.active
}
