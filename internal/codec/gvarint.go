package codec

import (
	"encoding/binary"

	"github.com/quillsearch/quill/pkg/errors"
)

// groupVarintCodec packs values in groups of four: one tag byte holding four
// 2-bit byte-length codes, followed by each value in 1-4 little-endian bytes.
type groupVarintCodec struct{}

// GroupVarintMaxValue is the largest value a 4-byte slot can hold.
const GroupVarintMaxValue = 1<<32 - 1

func (groupVarintCodec) WriteNums(dst []byte, nums []uint64) ([]byte, error) {
	for i := 0; i < len(nums); i += 4 {
		group := nums[i:]
		if len(group) > 4 {
			group = group[:4]
		}
		var tag byte
		tagPos := len(dst)
		dst = append(dst, 0)
		for slot, v := range group {
			if v > GroupVarintMaxValue {
				return nil, errors.Newf(errors.ErrOverflow, "value %d exceeds group-varint ceiling %d", v, uint64(GroupVarintMaxValue))
			}
			n := byteLen(uint32(v))
			tag |= byte(n-1) << (uint(slot) * 2)
			var buf [4]byte
			binary.LittleEndian.PutUint32(buf[:], uint32(v))
			dst = append(dst, buf[:n]...)
		}
		dst[tagPos] = tag
	}
	return dst, nil
}

func (groupVarintCodec) ReadNums(data []byte, count int) ([]uint64, int, error) {
	nums := make([]uint64, 0, count)
	pos := 0
	for len(nums) < count {
		if pos >= len(data) {
			return nil, pos, errors.Newf(errors.ErrCorrupt, "truncated group-varint tag at offset %d", pos)
		}
		tag := data[pos]
		pos++
		remaining := count - len(nums)
		slots := 4
		if remaining < 4 {
			slots = remaining
		}
		for slot := 0; slot < slots; slot++ {
			n := int((tag>>(uint(slot)*2))&0x3) + 1
			if pos+n > len(data) {
				return nil, pos, errors.Newf(errors.ErrCorrupt, "truncated group-varint value at offset %d", pos)
			}
			var buf [4]byte
			copy(buf[:], data[pos:pos+n])
			nums = append(nums, uint64(binary.LittleEndian.Uint32(buf[:])))
			pos += n
		}
	}
	return nums, pos, nil
}

func byteLen(v uint32) int {
	switch {
	case v < 1<<8:
		return 1
	case v < 1<<16:
		return 2
	case v < 1<<24:
		return 3
	default:
		return 4
	}
}
