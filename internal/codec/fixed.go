package codec

import (
	"encoding/binary"

	"github.com/quillsearch/quill/pkg/errors"
)

// fixedCodec stores every value in the same number of little-endian bytes,
// trading space for O(1) random access via Get.
type fixedCodec struct {
	width int
}

func (c fixedCodec) Width() int { return c.width }

func (c fixedCodec) maxValue() uint64 {
	return 1<<(uint(c.width)*8) - 1
}

func (c fixedCodec) WriteNums(dst []byte, nums []uint64) ([]byte, error) {
	for _, v := range nums {
		if v > c.maxValue() {
			return nil, errors.Newf(errors.ErrOverflow, "value %d exceeds %d-byte fixed-width ceiling %d", v, c.width, c.maxValue())
		}
		switch c.width {
		case 1:
			dst = append(dst, byte(v))
		case 2:
			dst = binary.LittleEndian.AppendUint16(dst, uint16(v))
		default:
			dst = binary.LittleEndian.AppendUint32(dst, uint32(v))
		}
	}
	return dst, nil
}

func (c fixedCodec) ReadNums(data []byte, count int) ([]uint64, int, error) {
	need := count * c.width
	if need > len(data) {
		return nil, 0, errors.Newf(errors.ErrCorrupt, "fixed-width data truncated: need %d bytes, have %d", need, len(data))
	}
	nums := make([]uint64, count)
	for i := range nums {
		nums[i] = c.Get(data, i)
	}
	return nums, need, nil
}

// Get returns the i-th value by direct offset arithmetic. The caller is
// responsible for bounds.
func (c fixedCodec) Get(data []byte, i int) uint64 {
	off := i * c.width
	switch c.width {
	case 1:
		return uint64(data[off])
	case 2:
		return uint64(binary.LittleEndian.Uint16(data[off : off+2]))
	default:
		return uint64(binary.LittleEndian.Uint32(data[off : off+4]))
	}
}
