package codec

import (
	"github.com/quillsearch/quill/pkg/errors"
)

type varintCodec struct{}

// AppendUvarint appends x in continuation-bit form: seven payload bits per
// byte, high bit set on all but the final byte.
func AppendUvarint(dst []byte, x uint64) []byte {
	for x >= 0x80 {
		dst = append(dst, byte(x)|0x80)
		x >>= 7
	}
	return append(dst, byte(x))
}

// Uvarint decodes a single varint from data, returning the value and the
// number of bytes consumed. A truncated input returns n == 0.
func Uvarint(data []byte) (uint64, int) {
	var x uint64
	var shift uint
	for i, b := range data {
		if shift >= 64 {
			return 0, 0
		}
		if b < 0x80 {
			return x | uint64(b)<<shift, i + 1
		}
		x |= uint64(b&0x7f) << shift
		shift += 7
	}
	return 0, 0
}

func (varintCodec) WriteNums(dst []byte, nums []uint64) ([]byte, error) {
	for _, n := range nums {
		dst = AppendUvarint(dst, n)
	}
	return dst, nil
}

func (varintCodec) ReadNums(data []byte, count int) ([]uint64, int, error) {
	nums := make([]uint64, 0, count)
	pos := 0
	for i := 0; i < count; i++ {
		v, n := Uvarint(data[pos:])
		if n == 0 {
			return nil, pos, errors.Newf(errors.ErrCorrupt, "truncated varint at offset %d", pos)
		}
		nums = append(nums, v)
		pos += n
	}
	return nums, pos, nil
}
