package matching

// ValueMatcher is a matcher that also exposes the current posting's encoded
// value, needed to recover term positions.
type ValueMatcher interface {
	Matcher
	Value() []byte
}

// PositionsFunc decodes term positions from an encoded posting value.
type PositionsFunc func(value []byte) []int

// PhraseMatcher matches documents containing every word of a phrase with the
// words in order. Slop is the maximum allowed gap between successive words;
// slop 1 means strictly adjacent.
type PhraseMatcher struct {
	words     []ValueMatcher
	positions PositionsFunc
	slop      int
	score     float64
	weight    float64
	active    bool
}

func NewPhraseMatcher(words []ValueMatcher, positions PositionsFunc, slop int) *PhraseMatcher {
	if slop < 1 {
		slop = 1
	}
	m := &PhraseMatcher{words: words, positions: positions, slop: slop}
	if len(words) == 0 {
		return m
	}
	m.align()
	return m
}

// align advances the word matchers until they agree on a document whose
// positions form the phrase.
func (m *PhraseMatcher) align() {
	for {
		if _, ok := m.alignDocs(); !ok {
			m.active = false
			return
		}
		if m.verify() {
			m.active = true
			return
		}
		m.words[0].Next()
	}
}

// alignDocs brings all word matchers onto one common document.
func (m *PhraseMatcher) alignDocs() (uint32, bool) {
	for {
		target := uint32(0)
		for _, w := range m.words {
			if !w.IsActive() {
				return 0, false
			}
			if w.ID() > target {
				target = w.ID()
			}
		}
		same := true
		for _, w := range m.words {
			if w.ID() < target {
				same = false
				if !w.SkipTo(target) {
					return 0, false
				}
			}
		}
		if same {
			return target, true
		}
	}
}

// verify checks ordered position adjacency within the current document and
// records the phrase frequency as the weight.
func (m *PhraseMatcher) verify() bool {
	current := m.positions(m.words[0].Value())
	if len(current) == 0 {
		return false
	}
	for _, w := range m.words[1:] {
		next := m.positions(w.Value())
		current = positionsWithin(current, next, m.slop)
		if len(current) == 0 {
			return false
		}
	}
	m.weight = float64(len(current))
	var total float64
	for _, w := range m.words {
		total += w.Score()
	}
	m.score = total
	return true
}

// positionsWithin keeps each position in next that follows some position in
// prev by at most slop.
func positionsWithin(prev, next []int, slop int) []int {
	var out []int
	i := 0
	for _, pos := range next {
		for i < len(prev) && prev[i] < pos-slop {
			i++
		}
		if i < len(prev) && prev[i] < pos && pos-prev[i] <= slop {
			out = append(out, pos)
		}
	}
	return out
}

func (m *PhraseMatcher) IsActive() bool { return m.active }

func (m *PhraseMatcher) ID() uint32 { return m.words[0].ID() }

func (m *PhraseMatcher) Next() bool {
	if !m.active {
		return false
	}
	m.words[0].Next()
	m.align()
	return m.active
}

func (m *PhraseMatcher) SkipTo(target uint32) bool {
	if !m.active {
		return false
	}
	if m.words[0].IsActive() && m.words[0].ID() < target {
		m.words[0].SkipTo(target)
	}
	m.align()
	return m.active
}

func (m *PhraseMatcher) Score() float64  { return m.score }
func (m *PhraseMatcher) Weight() float64 { return m.weight }

// Phrase frequency is only known after position verification, so block
// bounds from the word terms do not bound the phrase score usefully.
func (m *PhraseMatcher) SupportsQuality() bool { return false }

func (m *PhraseMatcher) MaxQuality() float64 {
	var total float64
	for _, w := range m.words {
		total += w.MaxQuality()
	}
	return total
}

func (m *PhraseMatcher) BlockQuality() float64 { return m.MaxQuality() }

func (m *PhraseMatcher) SkipToQuality(minQuality float64) bool {
	if m.MaxQuality() <= minQuality {
		m.active = false
	}
	return m.active
}
