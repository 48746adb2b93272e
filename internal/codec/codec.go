// Package codec implements the numeric encodings used by the segment file
// format: varint, group varint, Simple16 word packing, and fixed-width arrays,
// plus delta transforms for sorted sequences.
//
// Every encoding satisfies the round-trip law ReadNums(WriteNums(xs), len(xs))
// == xs for all sequences within its representable range. Values outside the
// range produce ErrOverflow, never a silent truncation.
package codec

import (
	"github.com/quillsearch/quill/pkg/errors"
)

// IntCodec encodes and decodes sequences of non-negative integers. The count
// is not self-describing; callers must supply it to ReadNums.
type IntCodec interface {
	// WriteNums appends the encoding of nums to dst and returns the extended
	// slice.
	WriteNums(dst []byte, nums []uint64) ([]byte, error)
	// ReadNums decodes count values from data, returning the values and the
	// number of bytes consumed.
	ReadNums(data []byte, count int) ([]uint64, int, error)
}

var (
	// Varint is the continuation-bit variable-length codec.
	Varint IntCodec = varintCodec{}
	// GroupVarint packs four values per tag byte.
	GroupVarint IntCodec = groupVarintCodec{}
	// Simple16 packs up to 28 small values per 32-bit word.
	Simple16 IntCodec = simple16Codec{}
	// Byte, UInt16 and UInt32 are fixed-width codecs with O(1) random access.
	Byte   FixedCodec = fixedCodec{width: 1}
	UInt16 FixedCodec = fixedCodec{width: 2}
	UInt32 FixedCodec = fixedCodec{width: 4}
)

// FixedCodec is an IntCodec whose encoding supports O(1) random access.
type FixedCodec interface {
	IntCodec
	// Width returns the number of bytes per value.
	Width() int
	// Get returns the i-th value of an encoded sequence without decoding the
	// rest.
	Get(data []byte, i int) uint64
}

var errOverflow = errors.ErrOverflow
