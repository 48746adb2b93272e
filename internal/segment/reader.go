package segment

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"sort"

	"github.com/quillsearch/quill/internal/codec"
	"github.com/quillsearch/quill/internal/storage"
	"github.com/quillsearch/quill/pkg/errors"
)

// Reader provides random access to one immutable on-disk segment. Readers
// are safe for concurrent use: the underlying compound file is sealed and
// memory-mapped read-only.
type Reader struct {
	name     string
	compound *storage.CompoundReader
	meta     Meta
	dict     []DictEntry
	postings []byte
	lengths  map[string][]byte
	stored   []map[string]string
}

func OpenReader(name, path string) (*Reader, error) {
	cr, err := storage.OpenCompound(path)
	if err != nil {
		return nil, err
	}
	r := &Reader{name: name, compound: cr, lengths: make(map[string][]byte)}
	if err := r.load(); err != nil {
		cr.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) load() error {
	if err := r.readJSON(metaFile, &r.meta); err != nil {
		return err
	}
	if err := r.readJSON(dictFile, &r.dict); err != nil {
		return err
	}
	if err := r.readJSON(storedFile, &r.stored); err != nil {
		return err
	}
	post, err := r.compound.Open(postingsFile)
	if err != nil {
		return err
	}
	r.postings = post.Bytes()
	for _, field := range r.meta.Fields {
		col, err := r.compound.Open(lengthPrefix + field)
		if err != nil {
			return err
		}
		if int64(int(r.meta.DocCount))*int64(codec.UInt32.Width()) > col.Len() {
			return errors.Newf(errors.ErrCorrupt, "length column for %q truncated in segment %s", field, r.name)
		}
		r.lengths[field] = col.Bytes()
	}
	return nil
}

func (r *Reader) readJSON(name string, v any) error {
	sub, err := r.compound.Open(name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(sub.Bytes(), v); err != nil {
		return errors.Newf(errors.ErrCorrupt, "parsing %s in segment %s: %v", name, r.name, err)
	}
	return nil
}

func (r *Reader) Name() string { return r.name }

func (r *Reader) DocCount() uint32 { return r.meta.DocCount }

func (r *Reader) FieldNames() []string { return r.meta.Fields }

func (r *Reader) FieldLengthTotal(field string) uint64 {
	return r.meta.FieldLengthTotals[field]
}

// TermCount returns the number of distinct (field, term) pairs.
func (r *Reader) TermCount() int { return len(r.dict) }

func (r *Reader) findEntry(field, term string) (DictEntry, bool) {
	i := sort.Search(len(r.dict), func(i int) bool {
		if r.dict[i].Field != field {
			return r.dict[i].Field > field
		}
		return r.dict[i].Term >= term
	})
	if i < len(r.dict) && r.dict[i].Field == field && r.dict[i].Term == term {
		return r.dict[i], true
	}
	return DictEntry{}, false
}

// TermInfo returns a term's aggregate statistics, or ErrNotFound when the
// segment has no postings for it.
func (r *Reader) TermInfo(field, term string) (TermInfo, error) {
	e, ok := r.findEntry(field, term)
	if !ok {
		return TermInfo{}, errors.Newf(errors.ErrNotFound, "term %s:%s not in segment %s", field, term, r.name)
	}
	return TermInfo{
		DocFreq:     e.DocFreq,
		TotalWeight: e.TotalWeight,
		MaxWeight:   e.MaxWeight,
		MinLength:   e.MinLength,
		MaxLength:   e.MaxLength,
	}, nil
}

// Cursor opens a posting cursor for a term, or ErrNotFound. The cursor starts
// unpositioned; call Next before reading.
func (r *Reader) Cursor(field, term string) (*PostingCursor, error) {
	e, ok := r.findEntry(field, term)
	if !ok {
		return nil, errors.Newf(errors.ErrNotFound, "term %s:%s not in segment %s", field, term, r.name)
	}
	if e.Offset < 0 || e.Offset+e.Length > int64(len(r.postings)) {
		return nil, errors.Newf(errors.ErrCorrupt, "postings for %s:%s out of bounds in segment %s", field, term, r.name)
	}
	return &PostingCursor{
		data:      r.postings[e.Offset : e.Offset+e.Length],
		maxWeight: e.MaxWeight,
	}, nil
}

// DictEntries exposes the sorted term dictionary; the merge path walks it.
func (r *Reader) DictEntries() []DictEntry { return r.dict }

// CursorAt opens a cursor directly from a dictionary entry.
func (r *Reader) CursorAt(e DictEntry) (*PostingCursor, error) {
	if e.Offset < 0 || e.Offset+e.Length > int64(len(r.postings)) {
		return nil, errors.Newf(errors.ErrCorrupt, "postings for %s:%s out of bounds in segment %s", e.Field, e.Term, r.name)
	}
	return &PostingCursor{
		data:      r.postings[e.Offset : e.Offset+e.Length],
		maxWeight: e.MaxWeight,
	}, nil
}

// TermsInField yields the dictionary entries of one field.
func (r *Reader) TermsInField(field string) []DictEntry {
	lo := sort.Search(len(r.dict), func(i int) bool { return r.dict[i].Field >= field })
	hi := sort.Search(len(r.dict), func(i int) bool { return r.dict[i].Field > field })
	return r.dict[lo:hi]
}

// FieldLength returns the stored length of one field in one document via the
// fixed-width column's random access.
func (r *Reader) FieldLength(field string, doc uint32) uint32 {
	col, ok := r.lengths[field]
	if !ok || doc >= r.meta.DocCount {
		return 0
	}
	return uint32(codec.UInt32.Get(col, int(doc)))
}

// StoredFields returns a document's stored field values.
func (r *Reader) StoredFields(doc uint32) (map[string]string, error) {
	if int(doc) >= len(r.stored) {
		return nil, errors.Newf(errors.ErrNotFound, "document %d not in segment %s", doc, r.name)
	}
	return r.stored[doc], nil
}

func (r *Reader) Close() error {
	return r.compound.Close()
}

// PostingCursor walks one term's block-encoded posting list in ascending
// document order. Block headers let it skip whole blocks during SkipTo and
// report per-block maximum weights for quality pruning.
type PostingCursor struct {
	data      []byte
	pos       int // offset of the next undecoded block
	maxWeight float64

	docs    []uint32
	weights []float32
	values  [][]byte
	idx     int

	blockMax  float64
	blockLast uint32

	started   bool
	exhausted bool
}

// Next advances to the next posting. It returns false once the list is
// exhausted.
func (c *PostingCursor) Next() bool {
	if c.exhausted {
		return false
	}
	if c.started && c.idx+1 < len(c.docs) {
		c.idx++
		return true
	}
	c.started = true
	return c.decodeNextBlock()
}

func (c *PostingCursor) decodeNextBlock() bool {
	h, ok := c.readBlockHeader()
	if !ok {
		c.exhausted = true
		return false
	}
	c.decodeBlockBody(h)
	c.idx = 0
	return true
}

type blockHeader struct {
	count   int
	lastDoc uint32
	maxW    float64
	bodyLen int
	bodyPos int
}

// readBlockHeader decodes the next block header and advances pos past the
// whole block. Returns false at end of list.
func (c *PostingCursor) readBlockHeader() (blockHeader, bool) {
	if c.pos >= len(c.data) {
		return blockHeader{}, false
	}
	var h blockHeader
	count, n := codec.Uvarint(c.data[c.pos:])
	c.pos += n
	last, n := codec.Uvarint(c.data[c.pos:])
	c.pos += n
	h.maxW = float64(math.Float32frombits(binary.LittleEndian.Uint32(c.data[c.pos : c.pos+4])))
	c.pos += 4
	bodyLen, n := codec.Uvarint(c.data[c.pos:])
	c.pos += n
	h.count = int(count)
	h.lastDoc = uint32(last)
	h.bodyLen = int(bodyLen)
	h.bodyPos = c.pos
	c.pos += h.bodyLen
	return h, true
}

func (c *PostingCursor) decodeBlockBody(h blockHeader) {
	body := c.data[h.bodyPos : h.bodyPos+h.bodyLen]
	docs, n, _ := codec.ReadDeltas(codec.Varint, body, h.count)
	c.docs = make([]uint32, h.count)
	for i, d := range docs {
		c.docs[i] = uint32(d)
	}
	c.weights = make([]float32, h.count)
	for i := 0; i < h.count; i++ {
		c.weights[i] = math.Float32frombits(binary.LittleEndian.Uint32(body[n : n+4]))
		n += 4
	}
	c.values = make([][]byte, h.count)
	for i := 0; i < h.count; i++ {
		vlen, m := codec.Uvarint(body[n:])
		n += m
		c.values[i] = body[n : n+int(vlen)]
		n += int(vlen)
	}
	c.blockMax = h.maxW
	c.blockLast = h.lastDoc
}

// SkipTo advances to the first posting with document number >= target,
// skipping whole blocks from their headers without decoding bodies. It
// returns false when the list exhausts first.
func (c *PostingCursor) SkipTo(target uint32) bool {
	if c.exhausted {
		return false
	}
	if c.started && len(c.docs) > 0 && c.docs[c.idx] >= target {
		return true
	}
	c.started = true
	// Finish the current block if the target is inside it.
	if len(c.docs) > 0 && c.blockLast >= target {
		i := sort.Search(len(c.docs), func(i int) bool { return c.docs[i] >= target })
		if i < len(c.docs) {
			if i > c.idx {
				c.idx = i
			}
			return true
		}
	}
	for {
		h, ok := c.readBlockHeader()
		if !ok {
			c.exhausted = true
			return false
		}
		if h.lastDoc < target {
			continue
		}
		c.decodeBlockBody(h)
		c.idx = sort.Search(len(c.docs), func(i int) bool { return c.docs[i] >= target })
		if c.idx < len(c.docs) {
			return true
		}
	}
}

// SkipPastBlock jumps past the remainder of the current block. Returns false
// if the list exhausts.
func (c *PostingCursor) SkipPastBlock() bool {
	if c.exhausted {
		return false
	}
	c.started = true
	return c.decodeNextBlock()
}

// Doc returns the current document number. Only valid while active.
func (c *PostingCursor) Doc() uint32 { return c.docs[c.idx] }

// Weight returns the current posting's weight.
func (c *PostingCursor) Weight() float64 { return float64(c.weights[c.idx]) }

// Value returns the current posting's encoded value string.
func (c *PostingCursor) Value() []byte { return c.values[c.idx] }

// IsActive reports whether the cursor is positioned at a valid posting.
func (c *PostingCursor) IsActive() bool {
	return c.started && !c.exhausted && c.idx < len(c.docs)
}

// BlockMaxWeight returns the maximum weight within the current block; an
// upper bound used for block-quality pruning.
func (c *PostingCursor) BlockMaxWeight() float64 {
	if !c.started || len(c.docs) == 0 {
		return c.maxWeight
	}
	return c.blockMax
}

// MaxWeight returns the term's maximum weight across the whole list.
func (c *PostingCursor) MaxWeight() float64 { return c.maxWeight }
