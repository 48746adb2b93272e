package idset

import (
	"math/bits"
	"sort"
)

const (
	chunkShift = 16
	chunkSize  = 1 << chunkShift
	// promoteThreshold is the cardinality at which a chunk switches from a
	// sorted array to a bitmap. The same single threshold is applied on both
	// Add and Discard; there is deliberately no hysteresis band, so a chunk
	// demotes as soon as a Discard takes it back below the threshold.
	promoteThreshold = 1 << 12
)

// RoaringSet partitions the id domain into 2^16-wide chunks. Each chunk holds
// either a sorted uint16 array (sparse) or a 2^16-bit bitmap (dense),
// switching at promoteThreshold members.
type RoaringSet struct {
	keys   []uint32 // sorted chunk numbers
	chunks []*chunk // parallel to keys
}

type chunk struct {
	array  []uint16 // sorted; nil when bitmap != nil
	bitmap []uint64 // 1024 words when present
	count  int
}

func NewRoaringSet(ids ...uint32) *RoaringSet {
	s := &RoaringSet{}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func split(id uint32) (key uint32, low uint16) {
	return id >> chunkShift, uint16(id & (chunkSize - 1))
}

func (s *RoaringSet) findChunk(key uint32) (int, *chunk) {
	i := sort.Search(len(s.keys), func(i int) bool { return s.keys[i] >= key })
	if i < len(s.keys) && s.keys[i] == key {
		return i, s.chunks[i]
	}
	return i, nil
}

func (s *RoaringSet) Contains(id uint32) bool {
	key, low := split(id)
	_, c := s.findChunk(key)
	return c != nil && c.contains(low)
}

func (s *RoaringSet) Add(id uint32) {
	key, low := split(id)
	i, c := s.findChunk(key)
	if c == nil {
		c = &chunk{}
		s.keys = append(s.keys, 0)
		s.chunks = append(s.chunks, nil)
		copy(s.keys[i+1:], s.keys[i:])
		copy(s.chunks[i+1:], s.chunks[i:])
		s.keys[i] = key
		s.chunks[i] = c
	}
	c.add(low)
}

func (s *RoaringSet) Discard(id uint32) {
	key, low := split(id)
	i, c := s.findChunk(key)
	if c == nil {
		return
	}
	c.discard(low)
	if c.count == 0 {
		s.keys = append(s.keys[:i], s.keys[i+1:]...)
		s.chunks = append(s.chunks[:i], s.chunks[i+1:]...)
	}
}

func (s *RoaringSet) Len() int {
	n := 0
	for _, c := range s.chunks {
		n += c.count
	}
	return n
}

func (s *RoaringSet) First() (uint32, bool) {
	if len(s.chunks) == 0 {
		return 0, false
	}
	low, _ := s.chunks[0].first()
	return s.keys[0]<<chunkShift | uint32(low), true
}

func (s *RoaringSet) Last() (uint32, bool) {
	if len(s.chunks) == 0 {
		return 0, false
	}
	i := len(s.chunks) - 1
	low, _ := s.chunks[i].last()
	return s.keys[i]<<chunkShift | uint32(low), true
}

func (s *RoaringSet) After(id uint32) (uint32, bool) {
	key, low := split(id)
	i, c := s.findChunk(key)
	if c != nil {
		if next, ok := c.after(low); ok {
			return key<<chunkShift | uint32(next), true
		}
		i++
	}
	if i < len(s.chunks) {
		next, _ := s.chunks[i].first()
		return s.keys[i]<<chunkShift | uint32(next), true
	}
	return 0, false
}

func (s *RoaringSet) Before(id uint32) (uint32, bool) {
	key, low := split(id)
	i, c := s.findChunk(key)
	if c != nil {
		if prev, ok := c.before(low); ok {
			return key<<chunkShift | uint32(prev), true
		}
	}
	if i > 0 {
		prev, _ := s.chunks[i-1].last()
		return s.keys[i-1]<<chunkShift | uint32(prev), true
	}
	return 0, false
}

func (s *RoaringSet) Iterator() Iterator {
	return &sliceIterator{ids: ToSliceRoaring(s)}
}

// ToSliceRoaring walks chunks in order without going through After, which
// would re-search the chunk index per element.
func ToSliceRoaring(s *RoaringSet) []uint32 {
	out := make([]uint32, 0, s.Len())
	for i, c := range s.chunks {
		base := s.keys[i] << chunkShift
		if c.bitmap != nil {
			for w, word := range c.bitmap {
				for word != 0 {
					b := bits.TrailingZeros64(word)
					out = append(out, base|uint32(w*64+b))
					word &^= 1 << uint(b)
				}
			}
		} else {
			for _, low := range c.array {
				out = append(out, base|uint32(low))
			}
		}
	}
	return out
}

func (c *chunk) contains(low uint16) bool {
	if c.bitmap != nil {
		return c.bitmap[low/64]&(1<<(low%64)) != 0
	}
	i := sort.Search(len(c.array), func(i int) bool { return c.array[i] >= low })
	return i < len(c.array) && c.array[i] == low
}

func (c *chunk) add(low uint16) {
	if c.bitmap != nil {
		w, mask := low/64, uint64(1)<<(low%64)
		if c.bitmap[w]&mask == 0 {
			c.bitmap[w] |= mask
			c.count++
		}
		return
	}
	i := sort.Search(len(c.array), func(i int) bool { return c.array[i] >= low })
	if i < len(c.array) && c.array[i] == low {
		return
	}
	c.array = append(c.array, 0)
	copy(c.array[i+1:], c.array[i:])
	c.array[i] = low
	c.count++
	if c.count > promoteThreshold {
		c.promote()
	}
}

func (c *chunk) discard(low uint16) {
	if c.bitmap != nil {
		w, mask := low/64, uint64(1)<<(low%64)
		if c.bitmap[w]&mask != 0 {
			c.bitmap[w] &^= mask
			c.count--
			if c.count <= promoteThreshold {
				c.demote()
			}
		}
		return
	}
	i := sort.Search(len(c.array), func(i int) bool { return c.array[i] >= low })
	if i < len(c.array) && c.array[i] == low {
		c.array = append(c.array[:i], c.array[i+1:]...)
		c.count--
	}
}

func (c *chunk) promote() {
	bitmap := make([]uint64, chunkSize/64)
	for _, low := range c.array {
		bitmap[low/64] |= 1 << (low % 64)
	}
	c.bitmap = bitmap
	c.array = nil
}

func (c *chunk) demote() {
	array := make([]uint16, 0, c.count)
	for w, word := range c.bitmap {
		for word != 0 {
			b := bits.TrailingZeros64(word)
			array = append(array, uint16(w*64+b))
			word &^= 1 << uint(b)
		}
	}
	c.array = array
	c.bitmap = nil
}

func (c *chunk) first() (uint16, bool) {
	if c.count == 0 {
		return 0, false
	}
	if c.bitmap != nil {
		for w, word := range c.bitmap {
			if word != 0 {
				return uint16(w*64 + bits.TrailingZeros64(word)), true
			}
		}
	}
	return c.array[0], true
}

func (c *chunk) last() (uint16, bool) {
	if c.count == 0 {
		return 0, false
	}
	if c.bitmap != nil {
		for w := len(c.bitmap) - 1; w >= 0; w-- {
			if c.bitmap[w] != 0 {
				return uint16(w*64 + 63 - bits.LeadingZeros64(c.bitmap[w])), true
			}
		}
	}
	return c.array[len(c.array)-1], true
}

func (c *chunk) after(low uint16) (uint16, bool) {
	if c.bitmap != nil {
		if low == chunkSize-1 {
			return 0, false
		}
		for cand := uint32(low) + 1; cand < chunkSize; cand++ {
			w := cand / 64
			word := c.bitmap[w] &^ (1<<(cand%64) - 1)
			if word != 0 {
				return uint16(w*64 + uint32(bits.TrailingZeros64(word))), true
			}
			cand = (w+1)*64 - 1
		}
		return 0, false
	}
	i := sort.Search(len(c.array), func(i int) bool { return c.array[i] > low })
	if i >= len(c.array) {
		return 0, false
	}
	return c.array[i], true
}

func (c *chunk) before(low uint16) (uint16, bool) {
	if c.bitmap != nil {
		for cand := int32(low) - 1; cand >= 0; {
			w := cand / 64
			word := c.bitmap[w] & (1<<(uint32(cand)%64+1) - 1)
			if word != 0 {
				return uint16(w*64 + int32(63-bits.LeadingZeros64(word))), true
			}
			cand = w*64 - 1
		}
		return 0, false
	}
	i := sort.Search(len(c.array), func(i int) bool { return c.array[i] >= low })
	if i == 0 {
		return 0, false
	}
	return c.array[i-1], true
}
