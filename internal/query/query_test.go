package query

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillsearch/quill/internal/matching"
	"github.com/quillsearch/quill/internal/postform"
	"github.com/quillsearch/quill/internal/schema"
	"github.com/quillsearch/quill/internal/segment"
	"github.com/quillsearch/quill/pkg/errors"
)

// fakeContext compiles queries against fixed in-memory postings. Posting
// values encode one token position per byte.
type fakeContext struct {
	sch      *schema.Schema
	terms    map[string]map[string][]segment.Posting
	docCount uint32
}

func (c *fakeContext) Schema() *schema.Schema { return c.sch }

func (c *fakeContext) TermMatcher(field, term string) (matching.Matcher, error) {
	ps, ok := c.terms[field][term]
	if !ok {
		return matching.NullMatcher{}, nil
	}
	return matching.NewListMatcher(ps, nil, nil), nil
}

func (c *fakeContext) WordMatcher(field, term string) (matching.ValueMatcher, error) {
	return matching.NewListMatcher(c.terms[field][term], nil, nil), nil
}

func (c *fakeContext) Positions(string) (matching.PositionsFunc, error) {
	return func(value []byte) []int {
		out := make([]int, len(value))
		for i, b := range value {
			out[i] = int(b)
		}
		return out
	}, nil
}

func (c *fakeContext) FieldTerms(field string) ([]string, error) {
	var out []string
	for t := range c.terms[field] {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

func (c *fakeContext) AllMatcher() (matching.Matcher, error) {
	ps := make([]segment.Posting, c.docCount)
	for i := range ps {
		ps[i] = segment.Posting{Doc: uint32(i), Weight: 1}
	}
	return matching.NewListMatcher(ps, nil, nil), nil
}

func posting(doc uint32, positions ...int) segment.Posting {
	value := make([]byte, len(positions))
	for i, p := range positions {
		value[i] = byte(p)
	}
	return segment.Posting{Doc: doc, Weight: float64(len(positions)), Value: value}
}

func newFakeContext(t *testing.T) *fakeContext {
	t.Helper()
	sch := schema.New().
		MustAddField(schema.Field{Name: "body", Format: postform.Positions}).
		MustAddField(schema.Field{Name: "tag", Format: postform.Frequency}).
		MustAddField(schema.Field{Name: "kind", Format: postform.Frequency})
	return &fakeContext{
		sch:      sch,
		docCount: 4,
		terms: map[string]map[string][]segment.Posting{
			"body": {
				"quick": {posting(0, 0), posting(2, 3)},
				"fox":   {posting(0, 1), posting(1, 0), posting(2, 1)},
				"ham":   {posting(1, 1)},
				"green": {posting(3, 0)},
			},
			"tag": {
				"wild": {posting(0, 0), posting(2, 0)},
				"tame": {posting(1, 0), posting(3, 0)},
			},
			"kind": {
				"parent": {posting(0, 0), posting(3, 0)},
			},
		},
	}
}

func docsOf(t *testing.T, ctx Context, q Query) []uint32 {
	t.Helper()
	m, err := q.Normalize().Matcher(ctx)
	require.NoError(t, err)
	var out []uint32
	for m.IsActive() {
		out = append(out, m.ID())
		m.Next()
	}
	return out
}

func TestNormalizeFlattensAnd(t *testing.T) {
	q := And{Subs: []Query{
		Term{Field: "body", Text: "fox"},
		And{Subs: []Query{
			Term{Field: "tag", Text: "wild"},
			Term{Field: "body", Text: "quick"},
		}},
	}}
	n, ok := q.Normalize().(And)
	require.True(t, ok)
	assert.Len(t, n.Subs, 3)
}

// Null subqueries in a conjunction come from terms that analyzed away; they
// are ignored, not absorbing.
func TestNormalizeAndDropsNulls(t *testing.T) {
	q := And{Subs: []Query{Term{Field: "body", Text: "fox"}, NullQuery{}}}
	assert.Equal(t, Term{Field: "body", Text: "fox"}, q.Normalize())

	empty := And{Subs: []Query{NullQuery{}, NullQuery{}}}
	assert.IsType(t, NullQuery{}, empty.Normalize())
}

func TestNormalizeOrDropsNulls(t *testing.T) {
	q := Or{Subs: []Query{NullQuery{}, Term{Field: "body", Text: "fox"}, NullQuery{}}}
	assert.Equal(t, Term{Field: "body", Text: "fox"}, q.Normalize())

	empty := Or{Subs: []Query{NullQuery{}}}
	assert.IsType(t, NullQuery{}, empty.Normalize())
}

func TestNormalizeWildcard(t *testing.T) {
	assert.Equal(t,
		Term{Field: "body", Text: "fox"},
		Wildcard{Field: "body", Pattern: "fox"}.Normalize())
	assert.Equal(t,
		Prefix{Field: "body", Text: "fo"},
		Wildcard{Field: "body", Pattern: "fo*"}.Normalize())
	assert.IsType(t,
		Wildcard{},
		Wildcard{Field: "body", Pattern: "f*x"}.Normalize())
}

func TestNormalizeRange(t *testing.T) {
	assert.IsType(t, NullQuery{},
		Range{Field: "body", Low: "z", High: "a"}.Normalize())
	assert.Equal(t,
		Term{Field: "body", Text: "fox"},
		Range{Field: "body", Low: "fox", High: "fox", IncLow: true, IncHigh: true}.Normalize())
}

func TestNormalizeBoost(t *testing.T) {
	assert.Equal(t,
		Term{Field: "body", Text: "fox", Boost: 3},
		Boost{Sub: Term{Field: "body", Text: "fox"}, Factor: 3}.Normalize())
	assert.Equal(t,
		Term{Field: "body", Text: "fox", Boost: 6},
		Boost{Sub: Boost{Sub: Term{Field: "body", Text: "fox"}, Factor: 2}, Factor: 3}.Normalize())
	assert.Equal(t,
		Term{Field: "body", Text: "fox"},
		Boost{Sub: Term{Field: "body", Text: "fox"}, Factor: 1}.Normalize())
}

func TestNormalizeNotNot(t *testing.T) {
	q := Not{Sub: Not{Sub: Term{Field: "body", Text: "fox"}}}
	assert.Equal(t, Term{Field: "body", Text: "fox"}, q.Normalize())
}

func TestNormalizePhrase(t *testing.T) {
	assert.Equal(t,
		Term{Field: "body", Text: "fox"},
		Phrase{Field: "body", Words: []string{"", "fox"}}.Normalize())
	assert.IsType(t, NullQuery{}, Phrase{Field: "body"}.Normalize())
}

func TestTermMatcher(t *testing.T) {
	ctx := newFakeContext(t)
	assert.Equal(t, []uint32{0, 1, 2}, docsOf(t, ctx, Term{Field: "body", Text: "fox"}))
	assert.Empty(t, docsOf(t, ctx, Term{Field: "body", Text: "wolf"}))
}

func TestAndMatcher(t *testing.T) {
	ctx := newFakeContext(t)
	q := And{Subs: []Query{
		Term{Field: "body", Text: "fox"},
		Term{Field: "tag", Text: "wild"},
	}}
	assert.Equal(t, []uint32{0, 2}, docsOf(t, ctx, q))
}

func TestAndNotMatcher(t *testing.T) {
	ctx := newFakeContext(t)
	q := And{Subs: []Query{
		Term{Field: "body", Text: "fox"},
		Not{Sub: Term{Field: "body", Text: "ham"}},
	}}
	assert.Equal(t, []uint32{0, 2}, docsOf(t, ctx, q))
}

func TestPureNegation(t *testing.T) {
	ctx := newFakeContext(t)
	q := And{Subs: []Query{Not{Sub: Term{Field: "body", Text: "fox"}}}}
	// Conjunction normalization collapses a single sub, leaving a bare Not.
	assert.Equal(t, []uint32{3}, docsOf(t, ctx, q))
}

func TestOrMatcher(t *testing.T) {
	ctx := newFakeContext(t)
	q := Or{Subs: []Query{
		Term{Field: "body", Text: "ham"},
		Term{Field: "body", Text: "green"},
	}}
	assert.Equal(t, []uint32{1, 3}, docsOf(t, ctx, q))
}

func TestPrefixMatcher(t *testing.T) {
	ctx := newFakeContext(t)
	// "g" covers green; "f" covers fox.
	assert.Equal(t, []uint32{3}, docsOf(t, ctx, Prefix{Field: "body", Text: "g"}))
	assert.Equal(t, []uint32{0, 1, 2}, docsOf(t, ctx, Prefix{Field: "body", Text: "fo"}))
}

func TestWildcardMatcher(t *testing.T) {
	ctx := newFakeContext(t)
	assert.Equal(t, []uint32{0, 1, 2}, docsOf(t, ctx, Wildcard{Field: "body", Pattern: "f?x"}))
	assert.Equal(t, []uint32{1}, docsOf(t, ctx, Wildcard{Field: "body", Pattern: "h*"}))
}

func TestRangeMatcher(t *testing.T) {
	ctx := newFakeContext(t)
	q := Range{Field: "body", Low: "g", High: "i", IncLow: true, IncHigh: true}
	assert.Equal(t, []uint32{1, 3}, docsOf(t, ctx, q))

	exclusive := Range{Field: "body", Low: "fox", High: "ham"}
	assert.Equal(t, []uint32{3}, docsOf(t, ctx, exclusive))
}

func TestPhraseMatcher(t *testing.T) {
	ctx := newFakeContext(t)
	q := Phrase{Field: "body", Words: []string{"quick", "fox"}}
	// Doc 0 has quick at 0 and fox at 1; doc 2 has them out of order.
	assert.Equal(t, []uint32{0}, docsOf(t, ctx, q))
}

func TestPhraseOnNonPositionalField(t *testing.T) {
	ctx := newFakeContext(t)
	q := Phrase{Field: "tag", Words: []string{"wild", "tame"}}
	_, err := q.Matcher(ctx)
	assert.ErrorIs(t, err, errors.ErrCapability)
}

func TestPhraseWithMissingWord(t *testing.T) {
	ctx := newFakeContext(t)
	q := Phrase{Field: "body", Words: []string{"quick", "wolf"}}
	m, err := q.Matcher(ctx)
	require.NoError(t, err)
	assert.False(t, m.IsActive())
}

func TestRequireMatcher(t *testing.T) {
	ctx := newFakeContext(t)
	q := Require{
		Scored:   Term{Field: "body", Text: "fox"},
		Required: Term{Field: "tag", Text: "wild"},
	}
	m, err := q.Normalize().Matcher(ctx)
	require.NoError(t, err)
	require.True(t, m.IsActive())
	assert.Equal(t, uint32(0), m.ID())
	// Only the scored leg contributes.
	assert.Equal(t, 1.0, m.Score())
}

func TestBoostMatcher(t *testing.T) {
	ctx := newFakeContext(t)
	plain, err := Term{Field: "body", Text: "fox"}.Matcher(ctx)
	require.NoError(t, err)
	boosted, err := Boost{Sub: Term{Field: "body", Text: "fox"}, Factor: 2}.Normalize().Matcher(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2*plain.Score(), boosted.Score())
}

func TestEveryMatcher(t *testing.T) {
	ctx := newFakeContext(t)
	assert.Equal(t, []uint32{0, 1, 2, 3}, docsOf(t, ctx, Every{}))
	assert.Equal(t, []uint32{0, 1, 2, 3}, docsOf(t, ctx, Every{Field: "tag"}))
	assert.Equal(t, []uint32{0, 3}, docsOf(t, ctx, Every{Field: "kind"}))
}

func TestNestedParentMatcher(t *testing.T) {
	ctx := newFakeContext(t)
	q := NestedParent{
		Parents: Term{Field: "kind", Text: "parent"},
		Child:   Term{Field: "body", Text: "fox"},
	}
	m, err := q.Normalize().Matcher(ctx)
	require.NoError(t, err)
	require.True(t, m.IsActive())
	assert.Equal(t, uint32(0), m.ID())
	// Three matching children fold into their parent's score.
	assert.Equal(t, 3.0, m.Score())
	assert.False(t, m.Next())
}

func TestNestedChildrenMatcher(t *testing.T) {
	ctx := newFakeContext(t)
	q := NestedChildren{
		ParentSet: Term{Field: "kind", Text: "parent"},
		Parent:    Term{Field: "tag", Text: "wild"},
	}
	m, err := q.Normalize().Matcher(ctx)
	require.NoError(t, err)
	var docs []uint32
	for m.IsActive() {
		docs = append(docs, m.ID())
		m.Next()
	}
	assert.Equal(t, []uint32{1, 2}, docs)
}

func TestFields(t *testing.T) {
	q := And{Subs: []Query{
		Term{Field: "body", Text: "fox"},
		Or{Subs: []Query{
			Phrase{Field: "title", Words: []string{"a", "b"}},
			Not{Sub: Range{Field: "author", Low: "a", High: "b"}},
		}},
	}}
	assert.Equal(t, []string{"author", "body", "title"}, Fields(q))
}

func TestStringForms(t *testing.T) {
	assert.Equal(t, "body:fox", Term{Field: "body", Text: "fox"}.String())
	assert.Equal(t, "(body:fox AND tag:wild)",
		And{Subs: []Query{Term{Field: "body", Text: "fox"}, Term{Field: "tag", Text: "wild"}}}.String())
	assert.Equal(t, "body:[a TO f}",
		Range{Field: "body", Low: "a", High: "f", IncLow: true}.String())
	assert.Equal(t, `body:"quick fox"`,
		Phrase{Field: "body", Words: []string{"quick", "fox"}}.String())
	assert.Equal(t, "<null>", NullQuery{}.String())
}
