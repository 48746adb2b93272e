package segment

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillsearch/quill/internal/idset"
	"github.com/quillsearch/quill/internal/postform"
	"github.com/quillsearch/quill/internal/schema"
	"github.com/quillsearch/quill/pkg/errors"
)

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	return schema.New().
		MustAddField(schema.Field{Name: "body", Format: postform.Positions, Stored: true}).
		MustAddField(schema.Field{Name: "tag", Format: postform.Frequency})
}

func docNums(ps []Posting) []uint32 {
	out := make([]uint32, len(ps))
	for i, p := range ps {
		out[i] = p.Doc
	}
	return out
}

func TestMemSegmentAccumulates(t *testing.T) {
	m := NewMemSegment(testSchema(t))

	d0 := m.AddDocument(map[string]string{"body": "red fox", "tag": "wild"})
	d1 := m.AddDocument(map[string]string{"body": "blue fox"})
	assert.Equal(t, uint32(0), d0)
	assert.Equal(t, uint32(1), d1)
	assert.Equal(t, uint32(2), m.DocCount())

	ps := m.PostingsFor("body", "fox")
	require.Len(t, ps, 2)
	assert.Equal(t, []uint32{0, 1}, docNums(ps))
	assert.Equal(t, 1.0, ps[0].Weight)

	assert.Nil(t, m.PostingsFor("body", "wolf"))
	assert.Equal(t, []uint32{2, 2}, m.Lengths("body"))
	assert.Equal(t, []uint32{1, 0}, m.Lengths("tag"))
	assert.Equal(t, uint64(4), m.FieldLengthTotals()["body"])
}

func TestMemSegmentTermOrder(t *testing.T) {
	m := NewMemSegment(testSchema(t))
	m.AddDocument(map[string]string{"body": "wolf fox", "tag": "wild"})

	it := m.Terms()
	var keys [][2]string
	for {
		field, term, postings, ok := it.Next()
		if !ok {
			break
		}
		require.NotEmpty(t, postings)
		keys = append(keys, [2]string{field, term})
	}
	assert.Equal(t, [][2]string{
		{"body", "fox"},
		{"body", "wolf"},
		{"tag", "wild"},
	}, keys)
}

func TestMemSegmentReset(t *testing.T) {
	m := NewMemSegment(testSchema(t))
	m.AddDocument(map[string]string{"body": "red fox"})
	m.Reset()
	assert.Equal(t, uint32(0), m.DocCount())
	assert.Nil(t, m.PostingsFor("body", "fox"))
	assert.Equal(t, uint32(0), m.AddDocument(map[string]string{"body": "blue fox"}))
}

func TestWriterReaderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := NewMemSegment(testSchema(t))
	m.AddDocument(map[string]string{"body": "red fox", "tag": "wild"})
	m.AddDocument(map[string]string{"body": "blue fox jumped", "tag": "tame"})

	name, err := NewWriter(dir, 1024).Write(m)
	require.NoError(t, err)
	assert.Equal(t, FileSuffix, filepath.Ext(name))

	r, err := OpenReader(name, filepath.Join(dir, name))
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, uint32(2), r.DocCount())
	assert.Equal(t, []string{"body", "tag"}, r.FieldNames())
	assert.Equal(t, uint64(5), r.FieldLengthTotal("body"))

	info, err := r.TermInfo("body", "fox")
	require.NoError(t, err)
	assert.Equal(t, 2, info.DocFreq)
	assert.Equal(t, 2.0, info.TotalWeight)
	assert.Equal(t, 1.0, info.MaxWeight)
	assert.Equal(t, uint32(2), info.MinLength)
	assert.Equal(t, uint32(3), info.MaxLength)

	_, err = r.TermInfo("body", "wolf")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	c, err := r.Cursor("body", "fox")
	require.NoError(t, err)
	require.True(t, c.Next())
	assert.Equal(t, uint32(0), c.Doc())
	assert.Equal(t, 1.0, c.Weight())
	require.True(t, c.Next())
	assert.Equal(t, uint32(1), c.Doc())
	assert.False(t, c.Next())
	assert.False(t, c.IsActive())

	assert.Equal(t, uint32(3), r.FieldLength("body", 1))
	assert.Equal(t, uint32(0), r.FieldLength("body", 99))

	stored, err := r.StoredFields(0)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"body": "red fox"}, stored)

	bodyTerms := r.TermsInField("body")
	require.Len(t, bodyTerms, 4)
	assert.Equal(t, "blue", bodyTerms[0].Term)
	assert.Equal(t, 4+2, r.TermCount())
}

func TestWriterRejectsEmptySource(t *testing.T) {
	m := NewMemSegment(testSchema(t))
	_, err := NewWriter(t.TempDir(), 1024).Write(m)
	assert.Error(t, err)
}

// listSource feeds a single synthetic posting list through the writer,
// long enough to span several blocks.
type listSource struct {
	postings []Posting
	docs     uint32
}

func (s *listSource) DocCount() uint32     { return s.docs }
func (s *listSource) FieldNames() []string { return []string{"body"} }

func (s *listSource) Lengths(string) []uint32 {
	col := make([]uint32, s.docs)
	for i := range col {
		col[i] = 1
	}
	return col
}

func (s *listSource) StoredDocs() []map[string]string {
	return make([]map[string]string, s.docs)
}

func (s *listSource) FieldLengthTotals() map[string]uint64 {
	return map[string]uint64{"body": uint64(s.docs)}
}

func (s *listSource) Terms() TermIterator {
	return &listIterator{postings: s.postings}
}

type listIterator struct {
	postings []Posting
	done     bool
}

func (it *listIterator) Next() (string, string, []Posting, bool) {
	if it.done {
		return "", "", nil, false
	}
	it.done = true
	return "body", "fox", it.postings, true
}

func TestPostingCursorSkipsBlocks(t *testing.T) {
	const n = 300
	src := &listSource{docs: n}
	for i := uint32(0); i < n; i++ {
		src.postings = append(src.postings, Posting{Doc: i, Weight: float64(i%10) + 1})
	}

	dir := t.TempDir()
	name, err := NewWriter(dir, 1024).Write(src)
	require.NoError(t, err)
	r, err := OpenReader(name, filepath.Join(dir, name))
	require.NoError(t, err)
	defer r.Close()

	c, err := r.Cursor("body", "fox")
	require.NoError(t, err)
	assert.Equal(t, 10.0, c.MaxWeight())

	require.True(t, c.Next())
	assert.Equal(t, uint32(0), c.Doc())
	assert.Equal(t, 10.0, c.BlockMaxWeight())

	// Blocks hold 128 postings; skipping the first lands on doc 128.
	require.True(t, c.SkipPastBlock())
	assert.Equal(t, uint32(128), c.Doc())

	require.True(t, c.SkipTo(250))
	assert.Equal(t, uint32(250), c.Doc())
	assert.Equal(t, 1.0, c.Weight())

	// SkipTo below the current position stays put.
	require.True(t, c.SkipTo(100))
	assert.Equal(t, uint32(250), c.Doc())

	require.True(t, c.SkipTo(299))
	assert.Equal(t, uint32(299), c.Doc())
	assert.False(t, c.SkipTo(300))
	assert.False(t, c.IsActive())
}

func TestPostingCursorSkipToFromStart(t *testing.T) {
	src := &listSource{docs: 300}
	for i := uint32(0); i < 300; i++ {
		src.postings = append(src.postings, Posting{Doc: i, Weight: 1})
	}
	dir := t.TempDir()
	name, err := NewWriter(dir, 1024).Write(src)
	require.NoError(t, err)
	r, err := OpenReader(name, filepath.Join(dir, name))
	require.NoError(t, err)
	defer r.Close()

	c, err := r.Cursor("body", "fox")
	require.NoError(t, err)
	// SkipTo on an unpositioned cursor skips header-only past block 0.
	require.True(t, c.SkipTo(200))
	assert.Equal(t, uint32(200), c.Doc())
	require.True(t, c.Next())
	assert.Equal(t, uint32(201), c.Doc())
}

func TestMergeSourceDropsDeleted(t *testing.T) {
	dir := t.TempDir()
	sch := testSchema(t)

	a := NewMemSegment(sch)
	a.AddDocument(map[string]string{"body": "red fox"})
	a.AddDocument(map[string]string{"body": "blue fox"})
	nameA, err := NewWriter(dir, 1024).Write(a)
	require.NoError(t, err)

	b := NewMemSegment(sch)
	b.AddDocument(map[string]string{"body": "green fox"})
	nameB, err := NewWriter(dir, 1024).Write(b)
	require.NoError(t, err)

	ra, err := OpenReader(nameA, filepath.Join(dir, nameA))
	require.NoError(t, err)
	defer ra.Close()
	rb, err := OpenReader(nameB, filepath.Join(dir, nameB))
	require.NoError(t, err)
	defer rb.Close()

	del := idset.NewSortedSet()
	del.Add(0)
	src, err := NewMergeSource([]*Reader{ra, rb}, []idset.Set{del, nil})
	require.NoError(t, err)

	assert.Equal(t, uint32(2), src.DocCount())
	_, ok := src.Remap(0, 0)
	assert.False(t, ok)
	merged, ok := src.Remap(0, 1)
	require.True(t, ok)
	assert.Equal(t, uint32(0), merged)
	merged, ok = src.Remap(1, 0)
	require.True(t, ok)
	assert.Equal(t, uint32(1), merged)

	nameM, err := NewWriter(dir, 1024).Write(src)
	require.NoError(t, err)
	rm, err := OpenReader(nameM, filepath.Join(dir, nameM))
	require.NoError(t, err)
	defer rm.Close()

	assert.Equal(t, uint32(2), rm.DocCount())

	// The deleted document's terms vanish entirely.
	_, err = rm.TermInfo("body", "red")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	c, err := rm.Cursor("body", "fox")
	require.NoError(t, err)
	var docs []uint32
	for c.Next() {
		docs = append(docs, c.Doc())
	}
	assert.Equal(t, []uint32{0, 1}, docs)

	stored, err := rm.StoredFields(0)
	require.NoError(t, err)
	assert.Equal(t, "blue fox", stored["body"])
	stored, err = rm.StoredFields(1)
	require.NoError(t, err)
	assert.Equal(t, "green fox", stored["body"])

	assert.Equal(t, uint64(4), rm.FieldLengthTotal("body"))
}

func TestConcatSourceRenumbers(t *testing.T) {
	sch := testSchema(t)
	a := NewMemSegment(sch)
	a.AddDocument(map[string]string{"body": "red fox"})
	a.AddDocument(map[string]string{"body": "blue wolf"})
	b := NewMemSegment(sch)
	b.AddDocument(map[string]string{"body": "green fox", "tag": "wild"})

	src := NewConcatSource([]Source{a, b})
	assert.Equal(t, uint32(3), src.DocCount())
	assert.Equal(t, uint32(0), src.Base(0))
	assert.Equal(t, uint32(2), src.Base(1))
	assert.Equal(t, []uint32{2, 2, 2}, src.Lengths("body"))
	assert.Equal(t, []uint32{0, 0, 1}, src.Lengths("tag"))
	assert.Equal(t, uint64(6), src.FieldLengthTotals()["body"])

	found := map[string][]uint32{}
	it := src.Terms()
	for {
		field, term, postings, ok := it.Next()
		if !ok {
			break
		}
		found[field+":"+term] = docNums(postings)
	}
	assert.Equal(t, []uint32{0, 2}, found["body:fox"])
	assert.Equal(t, []uint32{1}, found["body:wolf"])
	assert.Equal(t, []uint32{2}, found["body:green"])
	assert.Equal(t, []uint32{2}, found["tag:wild"])

	stored := src.StoredDocs()
	require.Len(t, stored, 3)
	assert.Equal(t, "green fox", stored[2]["body"])
}

// BenchmarkMemSegmentAddDocument measures per-document accumulation
// throughput into the in-memory segment.
func BenchmarkMemSegmentAddDocument(b *testing.B) {
	sch := schema.New().
		MustAddField(schema.Field{Name: "body", Format: postform.Positions}).
		MustAddField(schema.Field{Name: "tag", Format: postform.Frequency})
	m := NewMemSegment(sch)
	fields := map[string]string{
		"body": "quick brown fox jumped over the red wolf near the green station",
		"tag":  "wild",
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.AddDocument(fields)
	}
}

func BenchmarkMemSegmentPostingsFor(b *testing.B) {
	sch := schema.New().
		MustAddField(schema.Field{Name: "body", Format: postform.Positions})
	m := NewMemSegment(sch)
	for i := 0; i < 10000; i++ {
		m.AddDocument(map[string]string{"body": "quick brown fox"})
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if ps := m.PostingsFor("body", "fox"); len(ps) == 0 {
			b.Fatal("missing postings")
		}
	}
}
