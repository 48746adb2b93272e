package segment

import (
	"sort"
	"sync"

	"github.com/huandu/skiplist"
	farmhash "github.com/leemcloughlin/gofarmhash"

	"github.com/quillsearch/quill/internal/analysis"
	"github.com/quillsearch/quill/internal/postform"
	"github.com/quillsearch/quill/internal/schema"
)

const numStripes = 256

// MemSegment accumulates postings in memory while a writer is open. Posting
// lists are skip lists keyed by document number, so they stay sorted under
// concurrent inserts; writes to the same term contend on a striped lock
// chosen by hashing the term key. Intended for small, short-lived segments;
// a flush turns it into an immutable on-disk segment.
type MemSegment struct {
	sch *schema.Schema

	tableMu sync.RWMutex
	table   map[string]*skiplist.SkipList // field\x00term -> docnum -> Posting
	stripes []sync.Mutex

	docMu        sync.Mutex
	docCount     uint32
	lengths      map[string][]uint32
	lengthTotals map[string]uint64
	stored       []map[string]string
}

func NewMemSegment(sch *schema.Schema) *MemSegment {
	m := &MemSegment{
		sch:          sch,
		table:        make(map[string]*skiplist.SkipList),
		stripes:      make([]sync.Mutex, numStripes),
		lengths:      make(map[string][]uint32),
		lengthTotals: make(map[string]uint64),
	}
	for _, name := range sch.Names() {
		m.lengths[name] = nil
	}
	return m
}

func termKey(field, term string) string {
	return field + "\x00" + term
}

func (m *MemSegment) stripe(key string) *sync.Mutex {
	h := farmhash.Hash32WithSeed([]byte(key), 0)
	return &m.stripes[h%numStripes]
}

// AddDocument analyzes the given field values against the schema and adds the
// resulting postings under the next local document number, which it returns.
// Unknown fields are ignored; schema fields absent from the document get a
// zero length.
func (m *MemSegment) AddDocument(fields map[string]string) uint32 {
	type fieldTokens struct {
		field  *schema.Field
		tokens []analysis.Token
	}
	analyzed := make([]fieldTokens, 0, len(fields))
	for _, name := range m.sch.Names() {
		text, ok := fields[name]
		if !ok {
			continue
		}
		f, _ := m.sch.Field(name)
		analyzed = append(analyzed, fieldTokens{field: f, tokens: analysis.Tokenize(text)})
	}

	m.docMu.Lock()
	docnum := m.docCount
	m.docCount++
	storedDoc := make(map[string]string)
	for _, ft := range analyzed {
		if ft.field.Stored {
			storedDoc[ft.field.Name] = fields[ft.field.Name]
		}
	}
	m.stored = append(m.stored, storedDoc)
	for _, name := range m.sch.Names() {
		n := uint32(0)
		for _, ft := range analyzed {
			if ft.field.Name == name {
				n = uint32(len(ft.tokens))
			}
		}
		m.lengths[name] = append(m.lengths[name], 0)
		m.lengths[name][docnum] = n
		m.lengthTotals[name] += uint64(n)
	}
	m.docMu.Unlock()

	for _, ft := range analyzed {
		for _, tv := range postform.WordValues(ft.field.Format, ft.tokens) {
			m.addPosting(ft.field.Name, tv.Term, Posting{
				Doc:    docnum,
				Weight: tv.Weight,
				Value:  tv.Value,
			})
		}
	}
	return docnum
}

func (m *MemSegment) addPosting(field, term string, p Posting) {
	key := termKey(field, term)
	lock := m.stripe(key)
	lock.Lock()
	defer lock.Unlock()

	m.tableMu.RLock()
	list := m.table[key]
	m.tableMu.RUnlock()
	if list == nil {
		m.tableMu.Lock()
		list = m.table[key]
		if list == nil {
			list = skiplist.New(skiplist.Uint32)
			m.table[key] = list
		}
		m.tableMu.Unlock()
	}
	list.Set(p.Doc, p)
}

// PostingsFor returns a term's postings in ascending document order, or nil
// when the term is absent. Used to search the uncommitted buffer.
func (m *MemSegment) PostingsFor(field, term string) []Posting {
	key := termKey(field, term)
	m.tableMu.RLock()
	list := m.table[key]
	m.tableMu.RUnlock()
	if list == nil {
		return nil
	}
	lock := m.stripe(key)
	lock.Lock()
	defer lock.Unlock()
	out := make([]Posting, 0, list.Len())
	for el := list.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(Posting))
	}
	return out
}

func (m *MemSegment) DocCount() uint32 {
	m.docMu.Lock()
	defer m.docMu.Unlock()
	return m.docCount
}

func (m *MemSegment) FieldNames() []string {
	return m.sch.SortedNames()
}

func (m *MemSegment) Lengths(field string) []uint32 {
	m.docMu.Lock()
	defer m.docMu.Unlock()
	col := make([]uint32, m.docCount)
	copy(col, m.lengths[field])
	return col
}

func (m *MemSegment) StoredDocs() []map[string]string {
	m.docMu.Lock()
	defer m.docMu.Unlock()
	out := make([]map[string]string, len(m.stored))
	copy(out, m.stored)
	return out
}

func (m *MemSegment) FieldLengthTotals() map[string]uint64 {
	m.docMu.Lock()
	defer m.docMu.Unlock()
	out := make(map[string]uint64, len(m.lengthTotals))
	for k, v := range m.lengthTotals {
		out[k] = v
	}
	return out
}

// Terms iterates the accumulated terms in (field, term) order.
func (m *MemSegment) Terms() TermIterator {
	m.tableMu.RLock()
	keys := make([]string, 0, len(m.table))
	for key := range m.table {
		keys = append(keys, key)
	}
	m.tableMu.RUnlock()
	sort.Strings(keys)
	return &memTermIterator{seg: m, keys: keys}
}

type memTermIterator struct {
	seg  *MemSegment
	keys []string
	pos  int
}

func (it *memTermIterator) Next() (string, string, []Posting, bool) {
	if it.pos >= len(it.keys) {
		return "", "", nil, false
	}
	key := it.keys[it.pos]
	it.pos++
	sep := 0
	for i := 0; i < len(key); i++ {
		if key[i] == 0 {
			sep = i
			break
		}
	}
	field, term := key[:sep], key[sep+1:]
	return field, term, it.seg.postingsForKey(key), true
}

func (m *MemSegment) postingsForKey(key string) []Posting {
	m.tableMu.RLock()
	list := m.table[key]
	m.tableMu.RUnlock()
	if list == nil {
		return nil
	}
	out := make([]Posting, 0, list.Len())
	for el := list.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(Posting))
	}
	return out
}

// Reset discards all accumulated state.
func (m *MemSegment) Reset() {
	m.tableMu.Lock()
	m.table = make(map[string]*skiplist.SkipList)
	m.tableMu.Unlock()
	m.docMu.Lock()
	m.docCount = 0
	m.lengths = make(map[string][]uint32)
	m.lengthTotals = make(map[string]uint64)
	m.stored = nil
	m.docMu.Unlock()
}
