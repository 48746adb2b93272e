package matching

// BoostMatcher multiplies a child's scores and quality bounds by a constant.
type BoostMatcher struct {
	child Matcher
	boost float64
}

func NewBoostMatcher(child Matcher, boost float64) Matcher {
	if boost == 1.0 {
		return child
	}
	return &BoostMatcher{child: child, boost: boost}
}

func (m *BoostMatcher) IsActive() bool       { return m.child.IsActive() }
func (m *BoostMatcher) ID() uint32           { return m.child.ID() }
func (m *BoostMatcher) Next() bool           { return m.child.Next() }
func (m *BoostMatcher) SkipTo(t uint32) bool { return m.child.SkipTo(t) }

func (m *BoostMatcher) Score() float64  { return m.child.Score() * m.boost }
func (m *BoostMatcher) Weight() float64 { return m.child.Weight() }

func (m *BoostMatcher) SupportsQuality() bool { return m.child.SupportsQuality() }
func (m *BoostMatcher) MaxQuality() float64   { return m.child.MaxQuality() * m.boost }
func (m *BoostMatcher) BlockQuality() float64 { return m.child.BlockQuality() * m.boost }

func (m *BoostMatcher) SkipToQuality(minQuality float64) bool {
	if m.boost <= 0 {
		return m.child.SkipToQuality(minQuality)
	}
	return m.child.SkipToQuality(minQuality / m.boost)
}
