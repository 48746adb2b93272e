package codec

import (
	"encoding/binary"

	"github.com/quillsearch/quill/pkg/errors"
)

// Simple16MaxValue is the hard numeric ceiling of the Simple16 encoding: each
// 32-bit word spends 4 bits on the layout selector, leaving 28 payload bits.
// Callers must fall back to a fixed-width or varint codec for larger values.
const Simple16MaxValue = 1<<28 - 1

// s16Layouts lists, per selector, the bit width of each packed slot. Widths in
// a layout sum to 28. Layouts are ordered by decreasing slot count so that a
// greedy scan picks the densest layout that fits.
var s16Layouts = [16][]uint{
	repeat(1, 28),
	concat(repeat(2, 7), repeat(1, 14)),
	concat(repeat(1, 7), repeat(2, 7), repeat(1, 7)),
	concat(repeat(1, 14), repeat(2, 7)),
	repeat(2, 14),
	concat(repeat(4, 1), repeat(3, 8)),
	concat(repeat(3, 1), repeat(4, 4), repeat(3, 3)),
	repeat(4, 7),
	concat(repeat(5, 4), repeat(4, 2)),
	concat(repeat(4, 2), repeat(5, 4)),
	concat(repeat(6, 3), repeat(5, 2)),
	concat(repeat(5, 2), repeat(6, 3)),
	repeat(7, 4),
	concat(repeat(10, 1), repeat(9, 2)),
	repeat(14, 2),
	repeat(28, 1),
}

func repeat(width uint, n int) []uint {
	out := make([]uint, n)
	for i := range out {
		out[i] = width
	}
	return out
}

func concat(parts ...[]uint) []uint {
	var out []uint
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

type simple16Codec struct{}

func (simple16Codec) WriteNums(dst []byte, nums []uint64) ([]byte, error) {
	pos := 0
	for pos < len(nums) {
		word, packed, err := packWord(nums[pos:])
		if err != nil {
			return nil, err
		}
		dst = binary.LittleEndian.AppendUint32(dst, word)
		pos += packed
	}
	return dst, nil
}

// packWord packs a prefix of nums into one word using the first (densest)
// layout whose slots fit. Slots beyond len(nums) pack as zero, so a word is
// always found for any in-range values.
func packWord(nums []uint64) (word uint32, packed int, err error) {
	for sel, layout := range s16Layouts {
		if fitsLayout(layout, nums) {
			word = uint32(sel) << 28
			shift := uint(0)
			for slot, width := range layout {
				var v uint64
				if slot < len(nums) {
					v = nums[slot]
				}
				word |= uint32(v) << shift
				shift += width
			}
			packed = len(layout)
			if packed > len(nums) {
				packed = len(nums)
			}
			return word, packed, nil
		}
	}
	return 0, 0, errors.Newf(errors.ErrOverflow, "value %d exceeds Simple16 ceiling %d", maxOf(nums), uint64(Simple16MaxValue))
}

func fitsLayout(layout []uint, nums []uint64) bool {
	for slot, width := range layout {
		if slot >= len(nums) {
			return true
		}
		if nums[slot] >= 1<<width {
			return false
		}
	}
	return true
}

func maxOf(nums []uint64) uint64 {
	var m uint64
	for _, n := range nums {
		if n > m {
			m = n
		}
	}
	return m
}

func (simple16Codec) ReadNums(data []byte, count int) ([]uint64, int, error) {
	nums := make([]uint64, 0, count)
	pos := 0
	for len(nums) < count {
		if pos+4 > len(data) {
			return nil, pos, errors.Newf(errors.ErrCorrupt, "truncated Simple16 word at offset %d", pos)
		}
		word := binary.LittleEndian.Uint32(data[pos : pos+4])
		pos += 4
		layout := s16Layouts[word>>28]
		shift := uint(0)
		for _, width := range layout {
			if len(nums) == count {
				break
			}
			nums = append(nums, uint64((word>>shift)&((1<<width)-1)))
			shift += width
		}
	}
	return nums, pos, nil
}
