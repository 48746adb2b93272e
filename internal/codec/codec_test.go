package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillsearch/quill/pkg/errors"
)

func roundTrip(t *testing.T, c IntCodec, nums []uint64) {
	t.Helper()
	data, err := c.WriteNums(nil, nums)
	require.NoError(t, err)
	got, _, err := c.ReadNums(data, len(nums))
	require.NoError(t, err)
	assert.Equal(t, nums, got)
}

func TestVarintRoundTrip(t *testing.T) {
	roundTrip(t, Varint, []uint64{3, 1, 4, 1, 5, 9, 2, 6})
	roundTrip(t, Varint, []uint64{0})
	roundTrip(t, Varint, []uint64{0, 127, 128, 16383, 16384, 1 << 40, 1<<64 - 1})
}

func TestGroupVarintRoundTrip(t *testing.T) {
	roundTrip(t, GroupVarint, []uint64{3, 1, 4, 1, 5, 9, 2, 6})
	roundTrip(t, GroupVarint, []uint64{0, 255, 256, 65535, 65536, 1<<32 - 1})
	// Partial final group.
	roundTrip(t, GroupVarint, []uint64{1, 2, 3, 4, 5})
}

func TestGroupVarintOverflow(t *testing.T) {
	_, err := GroupVarint.WriteNums(nil, []uint64{GroupVarintMaxValue + 1})
	assert.ErrorIs(t, err, errors.ErrOverflow)
}

func TestSimple16RoundTrip(t *testing.T) {
	roundTrip(t, Simple16, []uint64{3, 1, 4, 1, 5, 9, 2, 6})
	roundTrip(t, Simple16, []uint64{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0})

	many := make([]uint64, 300)
	for i := range many {
		many[i] = uint64(i % 7)
	}
	roundTrip(t, Simple16, many)

	// One value per word at the top of the payload range.
	roundTrip(t, Simple16, []uint64{Simple16MaxValue, Simple16MaxValue, 1})
}

func TestSimple16Overflow(t *testing.T) {
	_, err := Simple16.WriteNums(nil, []uint64{Simple16MaxValue + 1})
	assert.ErrorIs(t, err, errors.ErrOverflow)
}

func TestDeltaRoundTrip(t *testing.T) {
	docs := []uint64{2, 3, 5, 8, 13, 21, 1000000}
	deltas, err := DeltaEncode(docs)
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 1, 2, 3, 5, 8, 999979}, deltas)
	assert.Equal(t, docs, DeltaDecode(deltas))
}

func TestDeltaRejectsUnsorted(t *testing.T) {
	_, err := DeltaEncode([]uint64{3, 1, 4})
	assert.Error(t, err)
}

func TestWriteReadDeltas(t *testing.T) {
	docs := []uint64{0, 7, 7, 12, 500}
	_, err := DeltaEncode(docs)
	require.NoError(t, err, "equal neighbours are allowed")

	data, err := WriteDeltas(Varint, nil, docs)
	require.NoError(t, err)
	got, _, err := ReadDeltas(Varint, data, len(docs))
	require.NoError(t, err)
	assert.Equal(t, docs, got)
}

func TestFixedGet(t *testing.T) {
	nums := []uint64{10, 20, 4096, 1<<32 - 1}
	data, err := UInt32.WriteNums(nil, nums)
	require.NoError(t, err)
	for i, want := range nums {
		assert.Equal(t, want, UInt32.Get(data, i))
	}

	_, err = Byte.WriteNums(nil, []uint64{256})
	assert.ErrorIs(t, err, errors.ErrOverflow)

	data16, err := UInt16.WriteNums(nil, []uint64{65535, 1})
	require.NoError(t, err)
	assert.Equal(t, uint64(65535), UInt16.Get(data16, 0))
	assert.Equal(t, uint64(1), UInt16.Get(data16, 1))
}

func BenchmarkVarintWrite(b *testing.B) {
	nums := make([]uint64, 1024)
	for i := range nums {
		nums[i] = uint64(i * 37)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Varint.WriteNums(nil, nums); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSimple16Read(b *testing.B) {
	nums := make([]uint64, 1024)
	for i := range nums {
		nums[i] = uint64(i % 50)
	}
	data, err := Simple16.WriteNums(nil, nums)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := Simple16.ReadNums(data, len(nums)); err != nil {
			b.Fatal(err)
		}
	}
}
