package idset

import "sort"

// SortedSet keeps members in a sorted slice. Best for sparse sets; membership
// and neighbour queries are binary searches.
type SortedSet struct {
	ids []uint32
}

func NewSortedSet(ids ...uint32) *SortedSet {
	s := &SortedSet{}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s *SortedSet) search(id uint32) int {
	return sort.Search(len(s.ids), func(i int) bool { return s.ids[i] >= id })
}

func (s *SortedSet) Contains(id uint32) bool {
	i := s.search(id)
	return i < len(s.ids) && s.ids[i] == id
}

func (s *SortedSet) Add(id uint32) {
	i := s.search(id)
	if i < len(s.ids) && s.ids[i] == id {
		return
	}
	s.ids = append(s.ids, 0)
	copy(s.ids[i+1:], s.ids[i:])
	s.ids[i] = id
}

func (s *SortedSet) Discard(id uint32) {
	i := s.search(id)
	if i < len(s.ids) && s.ids[i] == id {
		s.ids = append(s.ids[:i], s.ids[i+1:]...)
	}
}

func (s *SortedSet) Len() int { return len(s.ids) }

func (s *SortedSet) First() (uint32, bool) {
	if len(s.ids) == 0 {
		return 0, false
	}
	return s.ids[0], true
}

func (s *SortedSet) Last() (uint32, bool) {
	if len(s.ids) == 0 {
		return 0, false
	}
	return s.ids[len(s.ids)-1], true
}

func (s *SortedSet) Before(id uint32) (uint32, bool) {
	i := s.search(id)
	if i == 0 {
		return 0, false
	}
	return s.ids[i-1], true
}

func (s *SortedSet) After(id uint32) (uint32, bool) {
	i := sort.Search(len(s.ids), func(i int) bool { return s.ids[i] > id })
	if i >= len(s.ids) {
		return 0, false
	}
	return s.ids[i], true
}

func (s *SortedSet) Iterator() Iterator {
	return &sliceIterator{ids: s.ids}
}
