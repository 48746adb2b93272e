package segment

import (
	"container/heap"
	"sort"
)

// ConcatSource presents several Sources as one, renumbering each source's
// documents after the previous source's range. The parallel indexing path
// uses it to fold per-worker runs into a single segment.
type ConcatSource struct {
	sources []Source
	bases   []uint32
	total   uint32
	fields  []string
}

func NewConcatSource(sources []Source) *ConcatSource {
	c := &ConcatSource{sources: sources}
	fieldSet := make(map[string]struct{})
	for _, s := range sources {
		c.bases = append(c.bases, c.total)
		c.total += s.DocCount()
		for _, f := range s.FieldNames() {
			fieldSet[f] = struct{}{}
		}
	}
	for f := range fieldSet {
		c.fields = append(c.fields, f)
	}
	sort.Strings(c.fields)
	return c
}

// Base returns the document-number offset of one source within the
// concatenation.
func (c *ConcatSource) Base(source int) uint32 { return c.bases[source] }

func (c *ConcatSource) DocCount() uint32 { return c.total }

func (c *ConcatSource) FieldNames() []string { return c.fields }

func (c *ConcatSource) Lengths(field string) []uint32 {
	col := make([]uint32, 0, c.total)
	for _, s := range c.sources {
		part := s.Lengths(field)
		col = append(col, part...)
		// Pad sources that never saw the field to keep columns aligned.
		for i := len(part); i < int(s.DocCount()); i++ {
			col = append(col, 0)
		}
	}
	return col
}

func (c *ConcatSource) StoredDocs() []map[string]string {
	out := make([]map[string]string, 0, c.total)
	for _, s := range c.sources {
		out = append(out, s.StoredDocs()...)
	}
	return out
}

func (c *ConcatSource) FieldLengthTotals() map[string]uint64 {
	totals := make(map[string]uint64, len(c.fields))
	for _, s := range c.sources {
		for f, t := range s.FieldLengthTotals() {
			totals[f] += t
		}
	}
	return totals
}

func (c *ConcatSource) Terms() TermIterator {
	h := &concatHeap{}
	for i, s := range c.sources {
		it := s.Terms()
		field, term, postings, ok := it.Next()
		if !ok {
			continue
		}
		heap.Push(h, concatCursor{
			source: i, base: c.bases[i], it: it,
			field: field, term: term, postings: postings,
		})
	}
	return &concatTermIterator{heads: h}
}

type concatCursor struct {
	source   int
	base     uint32
	it       TermIterator
	field    string
	term     string
	postings []Posting
}

type concatHeap []concatCursor

func (h concatHeap) Len() int { return len(h) }

func (h concatHeap) Less(i, j int) bool {
	if h[i].field != h[j].field {
		return h[i].field < h[j].field
	}
	if h[i].term != h[j].term {
		return h[i].term < h[j].term
	}
	return h[i].source < h[j].source
}

func (h concatHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *concatHeap) Push(x any) { *h = append(*h, x.(concatCursor)) }

func (h *concatHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

type concatTermIterator struct {
	heads *concatHeap
}

func (it *concatTermIterator) Next() (string, string, []Posting, bool) {
	if it.heads.Len() == 0 {
		return "", "", nil, false
	}
	top := (*it.heads)[0]
	field, term := top.field, top.term

	var postings []Posting
	for it.heads.Len() > 0 {
		cur := (*it.heads)[0]
		if cur.field != field || cur.term != term {
			break
		}
		c := heap.Pop(it.heads).(concatCursor)
		for _, p := range c.postings {
			p.Doc += c.base
			postings = append(postings, p)
		}
		if f, t, ps, ok := c.it.Next(); ok {
			c.field, c.term, c.postings = f, t, ps
			heap.Push(it.heads, c)
		}
	}
	sort.Slice(postings, func(i, j int) bool { return postings[i].Doc < postings[j].Doc })
	return field, term, postings, true
}
