package codec

import (
	"github.com/quillsearch/quill/pkg/errors"
)

// DeltaEncode replaces each element of a sorted ascending sequence with its
// difference from the previous element (the first element is kept relative to
// zero). It returns ErrOverflow if the input is not ascending, since a
// negative delta is unrepresentable.
func DeltaEncode(nums []uint64) ([]uint64, error) {
	out := make([]uint64, len(nums))
	var prev uint64
	for i, n := range nums {
		if n < prev {
			return nil, errors.Newf(errors.ErrOverflow, "sequence not ascending at index %d: %d < %d", i, n, prev)
		}
		out[i] = n - prev
		prev = n
	}
	return out, nil
}

// DeltaDecode is the exact inverse of DeltaEncode.
func DeltaDecode(deltas []uint64) []uint64 {
	out := make([]uint64, len(deltas))
	var prev uint64
	for i, d := range deltas {
		prev += d
		out[i] = prev
	}
	return out
}

// WriteDeltas delta-encodes a sorted sequence and appends it to dst using the
// given codec.
func WriteDeltas(c IntCodec, dst []byte, nums []uint64) ([]byte, error) {
	deltas, err := DeltaEncode(nums)
	if err != nil {
		return nil, err
	}
	return c.WriteNums(dst, deltas)
}

// ReadDeltas decodes count delta-encoded values and reconstructs the original
// ascending sequence.
func ReadDeltas(c IntCodec, data []byte, count int) ([]uint64, int, error) {
	deltas, n, err := c.ReadNums(data, count)
	if err != nil {
		return nil, n, err
	}
	return DeltaDecode(deltas), n, nil
}
