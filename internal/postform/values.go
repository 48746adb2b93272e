package postform

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/quillsearch/quill/internal/codec"
)

// Span is one decoded occurrence with character offsets.
type Span struct {
	Pos   int
	Start int
	End   int
}

// BoostedPos is one decoded occurrence with a per-occurrence boost.
type BoostedPos struct {
	Pos   int
	Boost float64
}

// BoostedSpan is one decoded occurrence with offsets and a boost.
type BoostedSpan struct {
	Span
	Boost float64
}

// encode packs the occurrence list for this format. Occurrences are encoded
// in position order; positions are delta-encoded.
func (f Format) encode(occs []occurrence) []byte {
	if f == Existence {
		return nil
	}
	sort.Slice(occs, func(i, j int) bool { return occs[i].pos < occs[j].pos })
	var out []byte
	out = codec.AppendUvarint(out, uint64(len(occs)))
	if f == Frequency {
		return out
	}
	prevPos := 0
	for _, o := range occs {
		out = codec.AppendUvarint(out, uint64(o.pos-prevPos))
		prevPos = o.pos
		if f.Supports(CapCharacters) {
			out = codec.AppendUvarint(out, uint64(o.startChar))
			out = codec.AppendUvarint(out, uint64(o.endChar-o.startChar))
		}
		if f.Supports(CapBoosts) {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(float32(o.boost)))
		}
	}
	return out
}

// DecodeFrequency returns the stored occurrence count.
func (f Format) DecodeFrequency(value []byte) int {
	f.mustSupport(CapFrequency)
	n, _ := codec.Uvarint(value)
	return int(n)
}

// DecodePositions returns the ascending in-field token positions.
func (f Format) DecodePositions(value []byte) []int {
	f.mustSupport(CapPositions)
	occs := f.decodeOccurrences(value)
	out := make([]int, len(occs))
	for i, o := range occs {
		out[i] = o.pos
	}
	return out
}

// DecodeCharacters returns positions with their character spans.
func (f Format) DecodeCharacters(value []byte) []Span {
	f.mustSupport(CapCharacters)
	occs := f.decodeOccurrences(value)
	out := make([]Span, len(occs))
	for i, o := range occs {
		out[i] = Span{Pos: o.pos, Start: o.startChar, End: o.endChar}
	}
	return out
}

// DecodePositionBoosts returns positions with per-occurrence boosts.
func (f Format) DecodePositionBoosts(value []byte) []BoostedPos {
	f.mustSupport(CapPositions | CapBoosts)
	occs := f.decodeOccurrences(value)
	out := make([]BoostedPos, len(occs))
	for i, o := range occs {
		out[i] = BoostedPos{Pos: o.pos, Boost: o.boost}
	}
	return out
}

// DecodeCharacterBoosts returns positions with spans and boosts.
func (f Format) DecodeCharacterBoosts(value []byte) []BoostedSpan {
	f.mustSupport(CapCharacters | CapBoosts)
	occs := f.decodeOccurrences(value)
	out := make([]BoostedSpan, len(occs))
	for i, o := range occs {
		out[i] = BoostedSpan{
			Span:  Span{Pos: o.pos, Start: o.startChar, End: o.endChar},
			Boost: o.boost,
		}
	}
	return out
}

func (f Format) decodeOccurrences(value []byte) []occurrence {
	count, n := codec.Uvarint(value)
	pos := n
	occs := make([]occurrence, 0, count)
	prevPos := 0
	for i := uint64(0); i < count; i++ {
		o := occurrence{boost: 1.0}
		d, n := codec.Uvarint(value[pos:])
		pos += n
		o.pos = prevPos + int(d)
		prevPos = o.pos
		if f.Supports(CapCharacters) {
			start, n := codec.Uvarint(value[pos:])
			pos += n
			length, n := codec.Uvarint(value[pos:])
			pos += n
			o.startChar = int(start)
			o.endChar = int(start + length)
		}
		if f.Supports(CapBoosts) {
			bits := binary.LittleEndian.Uint32(value[pos : pos+4])
			pos += 4
			o.boost = float64(math.Float32frombits(bits))
		}
		occs = append(occs, o)
	}
	return occs
}

// Combine merges several encoded values for the same term into one, as when
// de-duplicating contributions to a single document. Positions stay sorted and
// unique; duplicate positions keep their first occurrence's data with boosts
// summed.
func (f Format) Combine(values [][]byte) []byte {
	if f == Existence {
		return nil
	}
	if f == Frequency {
		total := 0
		for _, v := range values {
			total += f.DecodeFrequency(v)
		}
		var out []byte
		return codec.AppendUvarint(out, uint64(total))
	}
	byPos := make(map[int]occurrence)
	for _, v := range values {
		for _, o := range f.decodeOccurrences(v) {
			if prev, ok := byPos[o.pos]; ok {
				prev.boost += o.boost
				byPos[o.pos] = prev
			} else {
				byPos[o.pos] = o
			}
		}
	}
	merged := make([]occurrence, 0, len(byPos))
	for _, o := range byPos {
		merged = append(merged, o)
	}
	return f.encode(merged)
}
