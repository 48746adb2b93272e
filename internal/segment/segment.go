// Package segment implements the unit of committed index storage: an
// in-memory accumulation segment for open writers, and the immutable on-disk
// segment format layered on the compound file (term dictionary, block-encoded
// postings, per-field length columns, stored fields).
package segment

// Posting is one term occurrence record within a segment: a local document
// number, the term's weight in that document, and the posting format's
// encoded value string. Document numbers are monotonically increasing within
// a posting list.
type Posting struct {
	Doc    uint32
	Weight float64
	Value  []byte
}

// TermInfo aggregates per-term statistics used for scoring normalization
// without decoding every posting.
type TermInfo struct {
	DocFreq     int
	TotalWeight float64
	MaxWeight   float64
	MinLength   uint32
	MaxLength   uint32
}

// DictEntry is one term dictionary record: the (field, term) pair, its
// statistics, and the byte range of its posting blocks within the postings
// sub-file. Entries are sorted by (field, term).
type DictEntry struct {
	Field       string  `json:"f"`
	Term        string  `json:"t"`
	DocFreq     int     `json:"d"`
	TotalWeight float64 `json:"tw"`
	MaxWeight   float64 `json:"w"`
	MinLength   uint32  `json:"mn"`
	MaxLength   uint32  `json:"mx"`
	Offset      int64   `json:"o"`
	Length      int64   `json:"l"`
}

// Meta is the segment-level metadata stored in the compound file.
type Meta struct {
	DocCount          uint32            `json:"doc_count"`
	Fields            []string          `json:"fields"`
	FieldLengthTotals map[string]uint64 `json:"field_length_totals"`
}

// Source is anything a segment file can be written from: an in-memory
// segment, or a merge view over existing segments.
type Source interface {
	DocCount() uint32
	FieldNames() []string
	// Lengths returns the per-document field length column for a field,
	// indexed by local document number (zero for documents without the field).
	Lengths(field string) []uint32
	// StoredDocs returns per-document stored field values, indexed by local
	// document number.
	StoredDocs() []map[string]string
	FieldLengthTotals() map[string]uint64
	// Terms iterates terms in (field, term) order.
	Terms() TermIterator
}

// TermIterator yields each distinct (field, term) with its postings in
// ascending document-number order.
type TermIterator interface {
	Next() (field, term string, postings []Posting, ok bool)
}

// Sub-file names within a segment's compound file.
const (
	metaFile     = "meta.json"
	dictFile     = "terms.json"
	postingsFile = "postings.bin"
	storedFile   = "stored.json"
	lengthPrefix = "len."
)

// blockSize is the number of postings per block in the postings sub-file.
// Block headers carry the last document number and maximum weight of the
// block, enabling skip-to and block-quality early termination without
// decoding block bodies.
const blockSize = 128
