package idset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// every implementation must satisfy the same membership semantics
var implementations = map[string]func() Set{
	"bitset":  func() Set { return NewBitSet(0) },
	"sorted":  func() Set { return NewSortedSet() },
	"roaring": func() Set { return NewRoaringSet() },
}

func TestDiscardHalf(t *testing.T) {
	for name, mk := range implementations {
		t.Run(name, func(t *testing.T) {
			s := mk()
			for i := uint32(0); i < 100; i++ {
				s.Add(i)
			}
			for i := uint32(1); i < 100; i += 2 {
				s.Discard(i)
			}
			assert.Equal(t, 50, s.Len())
			assert.True(t, s.Contains(12))
			assert.False(t, s.Contains(13))

			next, ok := s.After(10)
			require.True(t, ok)
			assert.Equal(t, uint32(12), next)

			prev, ok := s.Before(10)
			require.True(t, ok)
			assert.Equal(t, uint32(8), prev)
		})
	}
}

func TestFirstLastEmpty(t *testing.T) {
	for name, mk := range implementations {
		t.Run(name, func(t *testing.T) {
			s := mk()
			_, ok := s.First()
			assert.False(t, ok)
			_, ok = s.Last()
			assert.False(t, ok)

			s.Add(42)
			s.Add(7)
			s.Add(99)
			first, ok := s.First()
			require.True(t, ok)
			assert.Equal(t, uint32(7), first)
			last, ok := s.Last()
			require.True(t, ok)
			assert.Equal(t, uint32(99), last)

			_, ok = s.Before(7)
			assert.False(t, ok)
			_, ok = s.After(99)
			assert.False(t, ok)
		})
	}
}

func TestAddIsIdempotent(t *testing.T) {
	for name, mk := range implementations {
		t.Run(name, func(t *testing.T) {
			s := mk()
			s.Add(5)
			s.Add(5)
			assert.Equal(t, 1, s.Len())
			s.Discard(5)
			s.Discard(5)
			assert.Equal(t, 0, s.Len())
		})
	}
}

func TestIterationOrder(t *testing.T) {
	ids := []uint32{900000, 3, 77, 4096, 65536, 12}
	for name, mk := range implementations {
		t.Run(name, func(t *testing.T) {
			s := mk()
			for _, id := range ids {
				s.Add(id)
			}
			assert.Equal(t, []uint32{3, 12, 77, 4096, 65536, 900000}, ToSlice(s))
		})
	}
}

func TestSetAlgebra(t *testing.T) {
	a := NewBitSet(0)
	b := NewSortedSet()
	for i := uint32(0); i < 10; i++ {
		a.Add(i)
	}
	for i := uint32(5); i < 15; i++ {
		b.Add(i)
	}

	assert.Equal(t, 15, Union(a, b).Len())
	assert.Equal(t, []uint32{5, 6, 7, 8, 9}, ToSlice(Intersect(a, b)))
	assert.Equal(t, []uint32{0, 1, 2, 3, 4}, ToSlice(Difference(a, b)))
	assert.Equal(t, []uint32{10, 11, 12, 13, 14}, ToSlice(Difference(b, a)))

	inv := Invert(a, 12)
	assert.Equal(t, []uint32{10, 11}, ToSlice(inv))
}

func TestRoaringPromotion(t *testing.T) {
	s := NewRoaringSet()
	// Cross the array-to-bitmap threshold within one chunk.
	for i := uint32(0); i < 5000; i++ {
		s.Add(i * 2)
	}
	assert.Equal(t, 5000, s.Len())
	assert.True(t, s.Contains(9998))
	assert.False(t, s.Contains(9999))

	// Shrink back below the threshold; membership must be unaffected.
	for i := uint32(2500); i < 5000; i++ {
		s.Discard(i * 2)
	}
	assert.Equal(t, 2500, s.Len())
	assert.True(t, s.Contains(4998))
	assert.False(t, s.Contains(5000))

	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, uint32(4998), last)
}

func TestRoaringSparseChunks(t *testing.T) {
	s := NewRoaringSet(1, 1<<16, 1<<20, 1<<24)
	assert.Equal(t, 4, s.Len())
	assert.Equal(t, []uint32{1, 1 << 16, 1 << 20, 1 << 24}, ToSlice(s))
	next, ok := s.After(1)
	require.True(t, ok)
	assert.Equal(t, uint32(1<<16), next)
}

func TestReverseSet(t *testing.T) {
	inner := NewBitSet(0)
	inner.Add(2)
	inner.Add(4)
	r := NewReverseSet(inner, 6)

	assert.True(t, r.Contains(0))
	assert.False(t, r.Contains(2))
	assert.Equal(t, 4, r.Len())
	assert.Equal(t, []uint32{0, 1, 3, 5}, ToSlice(r))

	// Adding through the view removes from the complement's underlying set.
	r.Discard(1)
	assert.False(t, r.Contains(1))
	assert.True(t, inner.Contains(1))
	r.Add(2)
	assert.True(t, r.Contains(2))
	assert.False(t, inner.Contains(2))
}

func BenchmarkBitSetAfter(b *testing.B) {
	s := NewBitSet(1 << 20)
	for i := uint32(0); i < 1<<20; i += 3 {
		s.Add(i)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.After(uint32(i) % (1 << 20))
	}
}
