package idset

import "math/bits"

// BitSet is a dense bitmap representation, one bit per candidate document
// number. Best when membership density is high.
type BitSet struct {
	words []uint64
	count int
}

// NewBitSet creates a BitSet sized for ids below sizeHint. The set grows as
// needed when larger ids are added.
func NewBitSet(sizeHint uint32) *BitSet {
	return &BitSet{words: make([]uint64, (int(sizeHint)+63)/64)}
}

func (s *BitSet) grow(id uint32) {
	need := int(id)/64 + 1
	if need > len(s.words) {
		words := make([]uint64, need)
		copy(words, s.words)
		s.words = words
	}
}

func (s *BitSet) Contains(id uint32) bool {
	w := int(id) / 64
	return w < len(s.words) && s.words[w]&(1<<(id%64)) != 0
}

func (s *BitSet) Add(id uint32) {
	s.grow(id)
	w, mask := int(id)/64, uint64(1)<<(id%64)
	if s.words[w]&mask == 0 {
		s.words[w] |= mask
		s.count++
	}
}

func (s *BitSet) Discard(id uint32) {
	w := int(id) / 64
	if w >= len(s.words) {
		return
	}
	mask := uint64(1) << (id % 64)
	if s.words[w]&mask != 0 {
		s.words[w] &^= mask
		s.count--
	}
}

func (s *BitSet) Len() int { return s.count }

func (s *BitSet) First() (uint32, bool) {
	for w, word := range s.words {
		if word != 0 {
			return uint32(w*64 + bits.TrailingZeros64(word)), true
		}
	}
	return 0, false
}

func (s *BitSet) Last() (uint32, bool) {
	for w := len(s.words) - 1; w >= 0; w-- {
		if s.words[w] != 0 {
			return uint32(w*64 + 63 - bits.LeadingZeros64(s.words[w])), true
		}
	}
	return 0, false
}

func (s *BitSet) After(id uint32) (uint32, bool) {
	w := int(id) / 64
	if w >= len(s.words) {
		return 0, false
	}
	// Mask off id and everything below it in the first word.
	word := s.words[w] &^ (1<<(id%64+1) - 1)
	if id%64 == 63 {
		word = 0
	}
	for {
		if word != 0 {
			return uint32(w*64 + bits.TrailingZeros64(word)), true
		}
		w++
		if w >= len(s.words) {
			return 0, false
		}
		word = s.words[w]
	}
}

func (s *BitSet) Before(id uint32) (uint32, bool) {
	w := int(id) / 64
	var word uint64
	if w >= len(s.words) {
		w = len(s.words) - 1
		if w < 0 {
			return 0, false
		}
		word = s.words[w]
	} else {
		word = s.words[w] & (1<<(id%64) - 1)
	}
	for {
		if word != 0 {
			return uint32(w*64 + 63 - bits.LeadingZeros64(word)), true
		}
		w--
		if w < 0 {
			return 0, false
		}
		word = s.words[w]
	}
}

func (s *BitSet) Iterator() Iterator {
	return &bitSetIterator{set: s, next: 0, started: false}
}

type bitSetIterator struct {
	set     *BitSet
	next    uint32
	started bool
}

func (it *bitSetIterator) Next() (uint32, bool) {
	if !it.started {
		it.started = true
		if it.set.Contains(0) {
			it.next = 0
			return 0, true
		}
		id, ok := it.set.After(0)
		it.next = id
		return id, ok
	}
	id, ok := it.set.After(it.next)
	it.next = id
	return id, ok
}
