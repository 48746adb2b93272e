package matching

// MakeBinaryTree folds n matchers into a balanced binary tree of two-child
// combinators, keeping composition depth logarithmic.
func MakeBinaryTree(combine func(a, b Matcher) Matcher, ms []Matcher) Matcher {
	switch len(ms) {
	case 0:
		return NullMatcher{}
	case 1:
		return ms[0]
	}
	mid := len(ms) / 2
	return combine(
		MakeBinaryTree(combine, ms[:mid]),
		MakeBinaryTree(combine, ms[mid:]),
	)
}

// NewUnion builds a union over any number of matchers.
func NewUnion(ms []Matcher) Matcher {
	live := ms[:0]
	for _, m := range ms {
		if _, isNull := m.(NullMatcher); !isNull {
			live = append(live, m)
		}
	}
	return MakeBinaryTree(func(a, b Matcher) Matcher { return NewUnionMatcher(a, b) }, live)
}

// NewIntersection builds an intersection over any number of matchers.
func NewIntersection(ms []Matcher) Matcher {
	for _, m := range ms {
		if _, isNull := m.(NullMatcher); isNull {
			return NullMatcher{}
		}
	}
	return MakeBinaryTree(func(a, b Matcher) Matcher { return NewIntersectionMatcher(a, b) }, ms)
}

// UnionMatcher matches documents present in either child, summing scores
// where both match.
type UnionMatcher struct {
	a, b Matcher
}

func NewUnionMatcher(a, b Matcher) *UnionMatcher {
	return &UnionMatcher{a: a, b: b}
}

func (m *UnionMatcher) IsActive() bool {
	return m.a.IsActive() || m.b.IsActive()
}

func (m *UnionMatcher) ID() uint32 {
	switch {
	case !m.a.IsActive():
		return m.b.ID()
	case !m.b.IsActive():
		return m.a.ID()
	case m.a.ID() <= m.b.ID():
		return m.a.ID()
	default:
		return m.b.ID()
	}
}

func (m *UnionMatcher) Next() bool {
	if !m.IsActive() {
		return false
	}
	id := m.ID()
	if m.a.IsActive() && m.a.ID() == id {
		m.a.Next()
	}
	if m.b.IsActive() && m.b.ID() == id {
		m.b.Next()
	}
	return m.IsActive()
}

func (m *UnionMatcher) SkipTo(target uint32) bool {
	if m.a.IsActive() && m.a.ID() < target {
		m.a.SkipTo(target)
	}
	if m.b.IsActive() && m.b.ID() < target {
		m.b.SkipTo(target)
	}
	return m.IsActive()
}

func (m *UnionMatcher) sumAt(fn func(Matcher) float64) float64 {
	id := m.ID()
	var total float64
	if m.a.IsActive() && m.a.ID() == id {
		total += fn(m.a)
	}
	if m.b.IsActive() && m.b.ID() == id {
		total += fn(m.b)
	}
	return total
}

func (m *UnionMatcher) Score() float64 {
	return m.sumAt(Matcher.Score)
}

func (m *UnionMatcher) Weight() float64 {
	return m.sumAt(Matcher.Weight)
}

func (m *UnionMatcher) SupportsQuality() bool {
	return m.a.SupportsQuality() && m.b.SupportsQuality()
}

func (m *UnionMatcher) MaxQuality() float64 {
	return m.a.MaxQuality() + m.b.MaxQuality()
}

func (m *UnionMatcher) BlockQuality() float64 {
	var q float64
	if m.a.IsActive() {
		q += m.a.BlockQuality()
	}
	if m.b.IsActive() {
		q += m.b.BlockQuality()
	}
	return q
}

// SkipToQuality repeatedly skips the lower-quality child past its current
// block until the combined bound can beat minQuality.
func (m *UnionMatcher) SkipToQuality(minQuality float64) bool {
	for m.IsActive() && m.BlockQuality() <= minQuality {
		aq, bq := 0.0, 0.0
		if m.a.IsActive() {
			aq = m.a.BlockQuality()
		}
		if m.b.IsActive() {
			bq = m.b.BlockQuality()
		}
		switch {
		case !m.a.IsActive():
			m.b.SkipToQuality(minQuality - aq)
		case !m.b.IsActive():
			m.a.SkipToQuality(minQuality - bq)
		case aq <= bq:
			m.a.SkipToQuality(minQuality - bq)
		default:
			m.b.SkipToQuality(minQuality - aq)
		}
	}
	return m.IsActive()
}

// IntersectionMatcher matches documents present in both children, summing
// their scores.
type IntersectionMatcher struct {
	a, b Matcher
}

func NewIntersectionMatcher(a, b Matcher) *IntersectionMatcher {
	m := &IntersectionMatcher{a: a, b: b}
	m.align()
	return m
}

// align advances the children until they agree on a document or one
// exhausts.
func (m *IntersectionMatcher) align() {
	for m.a.IsActive() && m.b.IsActive() && m.a.ID() != m.b.ID() {
		if m.a.ID() < m.b.ID() {
			m.a.SkipTo(m.b.ID())
		} else {
			m.b.SkipTo(m.a.ID())
		}
	}
}

func (m *IntersectionMatcher) IsActive() bool {
	return m.a.IsActive() && m.b.IsActive() && m.a.ID() == m.b.ID()
}

func (m *IntersectionMatcher) ID() uint32 { return m.a.ID() }

func (m *IntersectionMatcher) Next() bool {
	if !m.IsActive() {
		return false
	}
	m.a.Next()
	m.align()
	return m.IsActive()
}

func (m *IntersectionMatcher) SkipTo(target uint32) bool {
	if m.a.IsActive() && m.a.ID() < target {
		m.a.SkipTo(target)
	}
	m.align()
	return m.IsActive()
}

func (m *IntersectionMatcher) Score() float64 {
	return m.a.Score() + m.b.Score()
}

func (m *IntersectionMatcher) Weight() float64 {
	return m.a.Weight() + m.b.Weight()
}

func (m *IntersectionMatcher) SupportsQuality() bool {
	return m.a.SupportsQuality() && m.b.SupportsQuality()
}

func (m *IntersectionMatcher) MaxQuality() float64 {
	return m.a.MaxQuality() + m.b.MaxQuality()
}

func (m *IntersectionMatcher) BlockQuality() float64 {
	return m.a.BlockQuality() + m.b.BlockQuality()
}

func (m *IntersectionMatcher) SkipToQuality(minQuality float64) bool {
	for m.IsActive() && m.BlockQuality() <= minQuality {
		if m.a.BlockQuality() <= m.b.BlockQuality() {
			m.a.SkipToQuality(minQuality - m.b.BlockQuality())
		} else {
			m.b.SkipToQuality(minQuality - m.a.BlockQuality())
		}
		m.align()
	}
	return m.IsActive()
}

// AndNotMatcher matches documents of the positive child absent from the
// negative child; scores come from the positive child alone.
type AndNotMatcher struct {
	pos, neg Matcher
}

func NewAndNotMatcher(pos, neg Matcher) *AndNotMatcher {
	m := &AndNotMatcher{pos: pos, neg: neg}
	m.align()
	return m
}

func (m *AndNotMatcher) align() {
	for m.pos.IsActive() && m.neg.IsActive() {
		if m.neg.ID() < m.pos.ID() {
			m.neg.SkipTo(m.pos.ID())
			continue
		}
		if m.neg.IsActive() && m.neg.ID() == m.pos.ID() {
			m.pos.Next()
			continue
		}
		return
	}
}

func (m *AndNotMatcher) IsActive() bool { return m.pos.IsActive() }

func (m *AndNotMatcher) ID() uint32 { return m.pos.ID() }

func (m *AndNotMatcher) Next() bool {
	if !m.pos.Next() {
		return false
	}
	m.align()
	return m.pos.IsActive()
}

func (m *AndNotMatcher) SkipTo(target uint32) bool {
	if !m.pos.SkipTo(target) {
		return false
	}
	m.align()
	return m.pos.IsActive()
}

func (m *AndNotMatcher) Score() float64  { return m.pos.Score() }
func (m *AndNotMatcher) Weight() float64 { return m.pos.Weight() }

func (m *AndNotMatcher) SupportsQuality() bool { return m.pos.SupportsQuality() }
func (m *AndNotMatcher) MaxQuality() float64   { return m.pos.MaxQuality() }
func (m *AndNotMatcher) BlockQuality() float64 { return m.pos.BlockQuality() }

func (m *AndNotMatcher) SkipToQuality(minQuality float64) bool {
	if !m.pos.SkipToQuality(minQuality) {
		return false
	}
	m.align()
	return m.pos.IsActive()
}

// RequireMatcher matches the intersection of its children but scores only
// from the scored child; the required child acts as a filter.
type RequireMatcher struct {
	inner *IntersectionMatcher
	score Matcher
}

func NewRequireMatcher(scored, required Matcher) *RequireMatcher {
	return &RequireMatcher{inner: NewIntersectionMatcher(scored, required), score: scored}
}

func (m *RequireMatcher) IsActive() bool        { return m.inner.IsActive() }
func (m *RequireMatcher) ID() uint32            { return m.inner.ID() }
func (m *RequireMatcher) Next() bool            { return m.inner.Next() }
func (m *RequireMatcher) SkipTo(t uint32) bool  { return m.inner.SkipTo(t) }
func (m *RequireMatcher) Score() float64        { return m.score.Score() }
func (m *RequireMatcher) Weight() float64       { return m.score.Weight() }
func (m *RequireMatcher) SupportsQuality() bool { return m.score.SupportsQuality() }
func (m *RequireMatcher) MaxQuality() float64   { return m.score.MaxQuality() }
func (m *RequireMatcher) BlockQuality() float64 { return m.score.BlockQuality() }

func (m *RequireMatcher) SkipToQuality(minQuality float64) bool {
	for m.inner.IsActive() && m.BlockQuality() <= minQuality {
		if !m.score.SkipToQuality(minQuality) {
			return false
		}
		m.inner.align()
	}
	return m.inner.IsActive()
}
