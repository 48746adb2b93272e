package matching

import "sort"

// defaultWindow is the number of document slots accumulated per refill.
const defaultWindow = 1024

// ArrayUnionMatcher unions many children by draining them into a fixed score
// window instead of composing a binary tree. For wide OR queries this trades
// per-document merging for sequential accumulation. Results are identical to
// the tree union: same documents, same summed scores.
type ArrayUnionMatcher struct {
	children []Matcher
	window   int

	base    uint32
	scores  []float64
	weights []float64
	present []bool
	pos     int
	done    bool
}

func NewArrayUnionMatcher(children []Matcher, window int) *ArrayUnionMatcher {
	if window <= 0 {
		window = defaultWindow
	}
	live := children[:0]
	for _, c := range children {
		if c.IsActive() {
			live = append(live, c)
		}
	}
	m := &ArrayUnionMatcher{
		children: live,
		window:   window,
		scores:   make([]float64, window),
		weights:  make([]float64, window),
		present:  make([]bool, window),
	}
	m.refill()
	return m
}

// refill positions the window at the smallest active child document and
// drains every child's postings that fall inside it.
func (m *ArrayUnionMatcher) refill() {
	for {
		base, any := m.minChildID()
		if !any {
			m.done = true
			return
		}
		m.base = base
		limit := uint32(uint64(base) + uint64(m.window))
		for i := range m.present {
			m.scores[i] = 0
			m.weights[i] = 0
			m.present[i] = false
		}
		filled := false
		for _, c := range m.children {
			for c.IsActive() && c.ID() < limit {
				slot := c.ID() - base
				m.scores[slot] += c.Score()
				m.weights[slot] += c.Weight()
				m.present[slot] = true
				filled = true
				c.Next()
			}
		}
		if filled {
			m.pos = 0
			m.advanceToPresent()
			return
		}
	}
}

func (m *ArrayUnionMatcher) minChildID() (uint32, bool) {
	var min uint32
	any := false
	for _, c := range m.children {
		if !c.IsActive() {
			continue
		}
		if !any || c.ID() < min {
			min = c.ID()
			any = true
		}
	}
	return min, any
}

func (m *ArrayUnionMatcher) advanceToPresent() {
	for m.pos < m.window && !m.present[m.pos] {
		m.pos++
	}
	if m.pos >= m.window {
		m.refill()
	}
}

func (m *ArrayUnionMatcher) IsActive() bool { return !m.done }

func (m *ArrayUnionMatcher) ID() uint32 { return m.base + uint32(m.pos) }

func (m *ArrayUnionMatcher) Next() bool {
	if m.done {
		return false
	}
	m.pos++
	m.advanceToPresent()
	return !m.done
}

func (m *ArrayUnionMatcher) SkipTo(target uint32) bool {
	for !m.done && m.ID() < target {
		if target >= m.base && target < m.base+uint32(m.window) {
			m.pos = int(target - m.base)
			m.advanceToPresent()
		} else {
			m.pos = m.window
			m.advanceToPresent()
		}
	}
	return !m.done
}

func (m *ArrayUnionMatcher) Score() float64  { return m.scores[m.pos] }
func (m *ArrayUnionMatcher) Weight() float64 { return m.weights[m.pos] }

// Window scores are already materialized, so block-level skipping has nothing
// cheaper to offer than plain advancement.
func (m *ArrayUnionMatcher) SupportsQuality() bool { return false }

func (m *ArrayUnionMatcher) MaxQuality() float64 {
	var total float64
	for _, c := range m.children {
		total += c.MaxQuality()
	}
	return total
}

func (m *ArrayUnionMatcher) BlockQuality() float64 { return m.MaxQuality() }

func (m *ArrayUnionMatcher) SkipToQuality(minQuality float64) bool {
	for !m.done && m.BlockQuality() <= minQuality {
		m.pos = m.window
		m.advanceToPresent()
	}
	return !m.done
}

// PreloadedUnionMatcher materializes the whole union eagerly over a known
// document range. Suited to small segments where one pass beats windowing.
type PreloadedUnionMatcher struct {
	docs    []uint32
	scores  map[uint32]float64
	weights map[uint32]float64
	pos     int
	maxQ    float64
}

func NewPreloadedUnionMatcher(children []Matcher) *PreloadedUnionMatcher {
	m := &PreloadedUnionMatcher{
		scores:  make(map[uint32]float64),
		weights: make(map[uint32]float64),
	}
	for _, c := range children {
		m.maxQ += c.MaxQuality()
		for c.IsActive() {
			id := c.ID()
			if _, ok := m.scores[id]; !ok {
				m.docs = append(m.docs, id)
			}
			m.scores[id] += c.Score()
			m.weights[id] += c.Weight()
			c.Next()
		}
	}
	sort.Slice(m.docs, func(i, j int) bool { return m.docs[i] < m.docs[j] })
	return m
}

func (m *PreloadedUnionMatcher) IsActive() bool { return m.pos < len(m.docs) }

func (m *PreloadedUnionMatcher) ID() uint32 { return m.docs[m.pos] }

func (m *PreloadedUnionMatcher) Next() bool {
	m.pos++
	return m.IsActive()
}

func (m *PreloadedUnionMatcher) SkipTo(target uint32) bool {
	for m.IsActive() && m.ID() < target {
		m.pos++
	}
	return m.IsActive()
}

func (m *PreloadedUnionMatcher) Score() float64  { return m.scores[m.docs[m.pos]] }
func (m *PreloadedUnionMatcher) Weight() float64 { return m.weights[m.docs[m.pos]] }

func (m *PreloadedUnionMatcher) SupportsQuality() bool { return false }
func (m *PreloadedUnionMatcher) MaxQuality() float64   { return m.maxQ }
func (m *PreloadedUnionMatcher) BlockQuality() float64 { return m.maxQ }

func (m *PreloadedUnionMatcher) SkipToQuality(minQuality float64) bool {
	if m.maxQ <= minQuality {
		m.pos = len(m.docs)
	}
	return m.IsActive()
}
