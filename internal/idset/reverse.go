package idset

// ReverseSet is a read-mostly complement view over another set within the
// domain [0, limit). Mutations delegate, inverted, to the wrapped set: Add
// discards from the wrapped set and Discard adds to it.
type ReverseSet struct {
	inner Set
	limit uint32
}

func NewReverseSet(inner Set, limit uint32) *ReverseSet {
	return &ReverseSet{inner: inner, limit: limit}
}

func (s *ReverseSet) Contains(id uint32) bool {
	return id < s.limit && !s.inner.Contains(id)
}

func (s *ReverseSet) Add(id uint32) {
	if id < s.limit {
		s.inner.Discard(id)
	}
}

func (s *ReverseSet) Discard(id uint32) {
	if id < s.limit {
		s.inner.Add(id)
	}
}

func (s *ReverseSet) Len() int {
	inside := 0
	it := s.inner.Iterator()
	for id, ok := it.Next(); ok; id, ok = it.Next() {
		if id < s.limit {
			inside++
		}
	}
	return int(s.limit) - inside
}

func (s *ReverseSet) First() (uint32, bool) {
	for id := uint32(0); id < s.limit; id++ {
		if !s.inner.Contains(id) {
			return id, true
		}
	}
	return 0, false
}

func (s *ReverseSet) Last() (uint32, bool) {
	for id := int64(s.limit) - 1; id >= 0; id-- {
		if !s.inner.Contains(uint32(id)) {
			return uint32(id), true
		}
	}
	return 0, false
}

func (s *ReverseSet) After(id uint32) (uint32, bool) {
	for cand := id + 1; cand < s.limit; cand++ {
		if !s.inner.Contains(cand) {
			return cand, true
		}
	}
	return 0, false
}

func (s *ReverseSet) Before(id uint32) (uint32, bool) {
	bound := id
	if bound > s.limit {
		bound = s.limit
	}
	for cand := int64(bound) - 1; cand >= 0; cand-- {
		if !s.inner.Contains(uint32(cand)) {
			return uint32(cand), true
		}
	}
	return 0, false
}

func (s *ReverseSet) Iterator() Iterator {
	return &reverseIterator{set: s, next: 0}
}

type reverseIterator struct {
	set  *ReverseSet
	next uint32
}

func (it *reverseIterator) Next() (uint32, bool) {
	for it.next < it.set.limit {
		id := it.next
		it.next++
		if !it.set.inner.Contains(id) {
			return id, true
		}
	}
	return 0, false
}
