package segment

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/quillsearch/quill/internal/codec"
	"github.com/quillsearch/quill/internal/storage"
)

// FileSuffix is the extension of segment compound files.
const FileSuffix = ".qseg"

// NewSegmentName returns a fresh, sortable segment file name.
func NewSegmentName() string {
	return fmt.Sprintf("seg_%d%s", time.Now().UnixNano(), FileSuffix)
}

// Writer serialises segment Sources into compound files in a data directory.
type Writer struct {
	dataDir    string
	bufferSize int
}

func NewWriter(dataDir string, bufferSize int) *Writer {
	return &Writer{dataDir: dataDir, bufferSize: bufferSize}
}

// Write creates a new immutable segment file from src and returns its file
// name. The compound writer writes to a temp file and renames on success, so
// a crash mid-write never leaves a live, half-written segment.
func (w *Writer) Write(src Source) (string, error) {
	if src.DocCount() == 0 {
		return "", fmt.Errorf("cannot write empty segment")
	}
	if err := os.MkdirAll(w.dataDir, 0o755); err != nil {
		return "", fmt.Errorf("creating segment directory: %w", err)
	}
	name := NewSegmentName()
	cw := storage.NewCompoundWriter(filepath.Join(w.dataDir, name), w.bufferSize)

	postOut, err := cw.CreateFile(postingsFile)
	if err != nil {
		return "", err
	}
	var dict []DictEntry
	var offset int64
	it := src.Terms()
	for {
		field, term, postings, ok := it.Next()
		if !ok {
			break
		}
		if len(postings) == 0 {
			continue
		}
		blob, err := encodePostings(postings)
		if err != nil {
			return "", fmt.Errorf("encoding postings for %s:%s: %w", field, term, err)
		}
		if _, err := postOut.Write(blob); err != nil {
			return "", fmt.Errorf("writing postings for %s:%s: %w", field, term, err)
		}
		entry := DictEntry{
			Field:   field,
			Term:    term,
			DocFreq: len(postings),
			Offset:  offset,
			Length:  int64(len(blob)),
		}
		entry.MinLength, entry.MaxLength, entry.MaxWeight, entry.TotalWeight = termStats(src, field, postings)
		dict = append(dict, entry)
		offset += entry.Length
	}

	if err := writeJSON(cw, dictFile, dict); err != nil {
		return "", err
	}
	if err := writeJSON(cw, storedFile, src.StoredDocs()); err != nil {
		return "", err
	}
	for _, field := range src.FieldNames() {
		col := src.Lengths(field)
		nums := make([]uint64, len(col))
		for i, v := range col {
			nums[i] = uint64(v)
		}
		encoded, err := codec.UInt32.WriteNums(nil, nums)
		if err != nil {
			return "", fmt.Errorf("encoding length column for %s: %w", field, err)
		}
		out, err := cw.CreateFile(lengthPrefix + field)
		if err != nil {
			return "", err
		}
		if _, err := out.Write(encoded); err != nil {
			return "", fmt.Errorf("writing length column for %s: %w", field, err)
		}
	}
	meta := Meta{
		DocCount:          src.DocCount(),
		Fields:            src.FieldNames(),
		FieldLengthTotals: src.FieldLengthTotals(),
	}
	if err := writeJSON(cw, metaFile, meta); err != nil {
		return "", err
	}
	if err := cw.Finalize(); err != nil {
		return "", fmt.Errorf("finalizing segment: %w", err)
	}
	return name, nil
}

func writeJSON(cw *storage.CompoundWriter, name string, v any) error {
	out, err := cw.CreateFile(name)
	if err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", name, err)
	}
	if _, err := out.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

func termStats(src Source, field string, postings []Posting) (minLen, maxLen uint32, maxWeight, totalWeight float64) {
	lengths := src.Lengths(field)
	minLen = math.MaxUint32
	for _, p := range postings {
		totalWeight += p.Weight
		if p.Weight > maxWeight {
			maxWeight = p.Weight
		}
		if int(p.Doc) < len(lengths) {
			l := lengths[p.Doc]
			if l < minLen {
				minLen = l
			}
			if l > maxLen {
				maxLen = l
			}
		}
	}
	if minLen == math.MaxUint32 {
		minLen = 0
	}
	return minLen, maxLen, maxWeight, totalWeight
}

// encodePostings packs a posting list into fixed-size blocks. Each block
// carries its posting count, last document number, maximum weight, and body
// length, so readers can skip or quality-prune a block from the header alone.
func encodePostings(postings []Posting) ([]byte, error) {
	var out []byte
	for start := 0; start < len(postings); start += blockSize {
		end := start + blockSize
		if end > len(postings) {
			end = len(postings)
		}
		block := postings[start:end]

		var body bytes.Buffer
		docs := make([]uint64, len(block))
		var maxWeight float64
		for i, p := range block {
			docs[i] = uint64(p.Doc)
			if p.Weight > maxWeight {
				maxWeight = p.Weight
			}
		}
		encodedDocs, err := codec.WriteDeltas(codec.Varint, nil, docs)
		if err != nil {
			return nil, err
		}
		body.Write(encodedDocs)
		for _, p := range block {
			var wbuf [4]byte
			binary.LittleEndian.PutUint32(wbuf[:], math.Float32bits(float32(p.Weight)))
			body.Write(wbuf[:])
		}
		for _, p := range block {
			body.Write(codec.AppendUvarint(nil, uint64(len(p.Value))))
			body.Write(p.Value)
		}

		out = codec.AppendUvarint(out, uint64(len(block)))
		out = codec.AppendUvarint(out, uint64(block[len(block)-1].Doc))
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(float32(maxWeight)))
		out = codec.AppendUvarint(out, uint64(body.Len()))
		out = append(out, body.Bytes()...)
	}
	return out, nil
}
