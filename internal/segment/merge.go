package segment

import (
	"container/heap"
	"fmt"
	"sort"

	"github.com/quillsearch/quill/internal/idset"
)

// MergeSource presents several existing segments as one Source, renumbering
// document numbers with a per-segment base offset and dropping deleted
// documents. Feeding it to Writer.Write performs the k-way merge.
type MergeSource struct {
	readers []*Reader
	docmaps [][]int64 // local doc -> merged doc, -1 when deleted
	total   uint32
	fields  []string
}

// NewMergeSource builds a merge view. deleted[i] may be nil when segment i
// has no deletions.
func NewMergeSource(readers []*Reader, deleted []idset.Set) (*MergeSource, error) {
	if len(readers) == 0 {
		return nil, fmt.Errorf("nothing to merge")
	}
	if len(deleted) != len(readers) {
		return nil, fmt.Errorf("deletion sets (%d) do not match readers (%d)", len(deleted), len(readers))
	}
	m := &MergeSource{readers: readers}
	fieldSet := make(map[string]struct{})
	var next int64
	for i, r := range readers {
		docmap := make([]int64, r.DocCount())
		for doc := uint32(0); doc < r.DocCount(); doc++ {
			if deleted[i] != nil && deleted[i].Contains(doc) {
				docmap[doc] = -1
				continue
			}
			docmap[doc] = next
			next++
		}
		m.docmaps = append(m.docmaps, docmap)
		for _, f := range r.FieldNames() {
			fieldSet[f] = struct{}{}
		}
	}
	m.total = uint32(next)
	for f := range fieldSet {
		m.fields = append(m.fields, f)
	}
	sort.Strings(m.fields)
	return m, nil
}

func (m *MergeSource) DocCount() uint32 { return m.total }

// Remap translates a pre-merge (reader index, local doc) pair into the merged
// document number. ok is false for deleted documents.
func (m *MergeSource) Remap(reader int, doc uint32) (uint32, bool) {
	if reader < 0 || reader >= len(m.docmaps) || int(doc) >= len(m.docmaps[reader]) {
		return 0, false
	}
	newDoc := m.docmaps[reader][doc]
	if newDoc < 0 {
		return 0, false
	}
	return uint32(newDoc), true
}

func (m *MergeSource) FieldNames() []string { return m.fields }

func (m *MergeSource) Lengths(field string) []uint32 {
	col := make([]uint32, m.total)
	for i, r := range m.readers {
		for doc := uint32(0); doc < r.DocCount(); doc++ {
			if newDoc := m.docmaps[i][doc]; newDoc >= 0 {
				col[newDoc] = r.FieldLength(field, doc)
			}
		}
	}
	return col
}

func (m *MergeSource) StoredDocs() []map[string]string {
	out := make([]map[string]string, m.total)
	for i, r := range m.readers {
		for doc := uint32(0); doc < r.DocCount(); doc++ {
			newDoc := m.docmaps[i][doc]
			if newDoc < 0 {
				continue
			}
			stored, err := r.StoredFields(doc)
			if err != nil {
				stored = map[string]string{}
			}
			out[newDoc] = stored
		}
	}
	return out
}

func (m *MergeSource) FieldLengthTotals() map[string]uint64 {
	totals := make(map[string]uint64, len(m.fields))
	for _, field := range m.fields {
		for _, l := range m.Lengths(field) {
			totals[field] += uint64(l)
		}
	}
	return totals
}

func (m *MergeSource) Terms() TermIterator {
	h := &mergeHeap{}
	for i, r := range m.readers {
		dict := r.DictEntries()
		if len(dict) > 0 {
			heap.Push(h, mergeCursor{reader: i, dict: dict})
		}
	}
	return &mergeTermIterator{src: m, heads: h}
}

type mergeCursor struct {
	reader int
	dict   []DictEntry
	pos    int
}

func (c mergeCursor) current() DictEntry { return c.dict[c.pos] }

type mergeHeap []mergeCursor

func (h mergeHeap) Len() int { return len(h) }

func (h mergeHeap) Less(i, j int) bool {
	a, b := h[i].current(), h[j].current()
	if a.Field != b.Field {
		return a.Field < b.Field
	}
	if a.Term != b.Term {
		return a.Term < b.Term
	}
	return h[i].reader < h[j].reader
}

func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *mergeHeap) Push(x any) { *h = append(*h, x.(mergeCursor)) }

func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

type mergeTermIterator struct {
	src   *MergeSource
	heads *mergeHeap
}

func (it *mergeTermIterator) Next() (string, string, []Posting, bool) {
	for it.heads.Len() > 0 {
		top := (*it.heads)[0].current()
		field, term := top.Field, top.Term

		var postings []Posting
		for it.heads.Len() > 0 {
			cur := (*it.heads)[0].current()
			if cur.Field != field || cur.Term != term {
				break
			}
			c := heap.Pop(it.heads).(mergeCursor)
			postings = append(postings, it.src.remapPostings(c.reader, cur)...)
			c.pos++
			if c.pos < len(c.dict) {
				heap.Push(it.heads, c)
			}
		}
		if len(postings) > 0 {
			sort.Slice(postings, func(i, j int) bool { return postings[i].Doc < postings[j].Doc })
			return field, term, postings, true
		}
	}
	return "", "", nil, false
}

func (m *MergeSource) remapPostings(reader int, e DictEntry) []Posting {
	cursor, err := m.readers[reader].CursorAt(e)
	if err != nil {
		return nil
	}
	docmap := m.docmaps[reader]
	out := make([]Posting, 0, e.DocFreq)
	for cursor.Next() {
		newDoc := docmap[cursor.Doc()]
		if newDoc < 0 {
			continue
		}
		value := make([]byte, len(cursor.Value()))
		copy(value, cursor.Value())
		out = append(out, Posting{
			Doc:    uint32(newDoc),
			Weight: cursor.Weight(),
			Value:  value,
		})
	}
	return out
}
