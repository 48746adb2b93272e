// Package idset provides compact, interchangeable representations of sets of
// document numbers: a bitmap, a sorted array, and a roaring-style hybrid that
// switches per-chunk representation by density, plus a complement view.
//
// All representations yield identical membership semantics and iterate in
// ascending order with no duplicates.
package idset

// Set is a mutable set of non-negative document numbers.
type Set interface {
	Contains(id uint32) bool
	Add(id uint32)
	Discard(id uint32)
	Len() int

	// First and Last return the smallest and largest members.
	First() (uint32, bool)
	Last() (uint32, bool)
	// Before returns the nearest member strictly less than id.
	Before(id uint32) (uint32, bool)
	// After returns the nearest member strictly greater than id.
	After(id uint32) (uint32, bool)

	// Iterator walks the members in ascending order.
	Iterator() Iterator
}

// Iterator yields set members in ascending order. Next returns false once the
// set is exhausted.
type Iterator interface {
	Next() (uint32, bool)
}

type sliceIterator struct {
	ids []uint32
	pos int
}

func (it *sliceIterator) Next() (uint32, bool) {
	if it.pos >= len(it.ids) {
		return 0, false
	}
	id := it.ids[it.pos]
	it.pos++
	return id, true
}

// ToSlice collects every member in ascending order.
func ToSlice(s Set) []uint32 {
	out := make([]uint32, 0, s.Len())
	it := s.Iterator()
	for id, ok := it.Next(); ok; id, ok = it.Next() {
		out = append(out, id)
	}
	return out
}

// AddAll adds every member of src to dst.
func AddAll(dst, src Set) {
	it := src.Iterator()
	for id, ok := it.Next(); ok; id, ok = it.Next() {
		dst.Add(id)
	}
}

// Union returns a new set holding every member of a or b, using a's
// representation.
func Union(a, b Set) Set {
	out := emptyLike(a)
	AddAll(out, a)
	AddAll(out, b)
	return out
}

// Intersect returns a new set holding the members present in both a and b.
func Intersect(a, b Set) Set {
	out := emptyLike(a)
	it := a.Iterator()
	for id, ok := it.Next(); ok; id, ok = it.Next() {
		if b.Contains(id) {
			out.Add(id)
		}
	}
	return out
}

// Difference returns a new set holding the members of a absent from b.
func Difference(a, b Set) Set {
	out := emptyLike(a)
	it := a.Iterator()
	for id, ok := it.Next(); ok; id, ok = it.Next() {
		if !b.Contains(id) {
			out.Add(id)
		}
	}
	return out
}

// Invert returns the complement of s within [0, limit).
func Invert(s Set, limit uint32) Set {
	out := emptyLike(s)
	for id := uint32(0); id < limit; id++ {
		if !s.Contains(id) {
			out.Add(id)
		}
	}
	return out
}

func emptyLike(s Set) Set {
	switch s.(type) {
	case *BitSet:
		return NewBitSet(0)
	case *SortedSet:
		return NewSortedSet()
	default:
		return NewRoaringSet()
	}
}
