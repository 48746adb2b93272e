// Package query defines the query tree produced by the parser and the
// compilation of that tree into a matcher over one segment view.
package query

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/quillsearch/quill/internal/idset"
	"github.com/quillsearch/quill/internal/matching"
	"github.com/quillsearch/quill/internal/schema"
	"github.com/quillsearch/quill/pkg/errors"
)

// Context is the view of an index segment that query compilation reads.
type Context interface {
	// Schema returns the index schema.
	Schema() *schema.Schema
	// TermMatcher returns a scored, positioned matcher for a term. A term
	// absent from the segment yields a NullMatcher.
	TermMatcher(field, term string) (matching.Matcher, error)
	// WordMatcher returns a matcher that exposes posting values, for
	// position verification.
	WordMatcher(field, term string) (matching.ValueMatcher, error)
	// Positions returns the position decoder for a field's posting values.
	Positions(field string) (matching.PositionsFunc, error)
	// FieldTerms lists a field's distinct terms in ascending order.
	FieldTerms(field string) ([]string, error)
	// AllMatcher matches every live document in the segment.
	AllMatcher() (matching.Matcher, error)
}

// Query is one node of the parsed query tree.
type Query interface {
	// Normalize returns a simplified equivalent tree. Flattens nested
	// conjunctions, removes empty nodes and may return NullQuery.
	Normalize() Query
	// Matcher compiles the node against one segment view.
	Matcher(ctx Context) (matching.Matcher, error)
	// String renders a canonical form, stable across equivalent parses.
	String() string
}

// NullQuery matches nothing. Parse failures and empty groups reduce to it.
type NullQuery struct{}

func (NullQuery) Normalize() Query { return NullQuery{} }

func (NullQuery) Matcher(Context) (matching.Matcher, error) {
	return matching.NullMatcher{}, nil
}

func (NullQuery) String() string { return "<null>" }

// Term matches documents containing a single analyzed term in a field.
type Term struct {
	Field string
	Text  string
	Boost float64
}

func (q Term) boost() float64 {
	if q.Boost == 0 {
		return 1
	}
	return q.Boost
}

func (q Term) Normalize() Query {
	if q.Text == "" {
		return NullQuery{}
	}
	return q
}

func (q Term) Matcher(ctx Context) (matching.Matcher, error) {
	m, err := ctx.TermMatcher(q.Field, q.Text)
	if err != nil {
		return nil, err
	}
	return matching.NewBoostMatcher(m, q.boost()), nil
}

func (q Term) String() string {
	return fmt.Sprintf("%s:%s", q.Field, q.Text)
}

// Prefix expands to the union of all field terms sharing a prefix.
type Prefix struct {
	Field string
	Text  string
	Boost float64
}

func (q Prefix) Normalize() Query {
	if q.Text == "" {
		return NullQuery{}
	}
	return q
}

func (q Prefix) Matcher(ctx Context) (matching.Matcher, error) {
	return expand(ctx, q.Field, q.Boost, func(term string) bool {
		return strings.HasPrefix(term, q.Text)
	})
}

func (q Prefix) String() string {
	return fmt.Sprintf("%s:%s*", q.Field, q.Text)
}

// Wildcard expands a glob pattern (* and ?) to a union of matching terms.
type Wildcard struct {
	Field   string
	Pattern string
	Boost   float64
}

func (q Wildcard) Normalize() Query {
	if q.Pattern == "" {
		return NullQuery{}
	}
	if !strings.ContainsAny(q.Pattern, "*?") {
		return Term{Field: q.Field, Text: q.Pattern, Boost: q.Boost}.Normalize()
	}
	// A trailing star after a literal head is just a prefix scan.
	if i := strings.IndexAny(q.Pattern, "*?"); i == len(q.Pattern)-1 && q.Pattern[i] == '*' {
		return Prefix{Field: q.Field, Text: q.Pattern[:i], Boost: q.Boost}.Normalize()
	}
	return q
}

func (q Wildcard) Matcher(ctx Context) (matching.Matcher, error) {
	return expand(ctx, q.Field, q.Boost, func(term string) bool {
		ok, err := path.Match(q.Pattern, term)
		return err == nil && ok
	})
}

func (q Wildcard) String() string {
	return fmt.Sprintf("%s:%s", q.Field, q.Pattern)
}

// Range matches terms lexicographically between Low and High. Empty bounds
// are open ends.
type Range struct {
	Field   string
	Low     string
	High    string
	IncLow  bool
	IncHigh bool
	Boost   float64
}

func (q Range) Normalize() Query {
	if q.Low != "" && q.High != "" {
		if q.Low > q.High {
			return NullQuery{}
		}
		if q.Low == q.High && q.IncLow && q.IncHigh {
			return Term{Field: q.Field, Text: q.Low, Boost: q.Boost}
		}
	}
	return q
}

func (q Range) contains(term string) bool {
	if q.Low != "" {
		if q.IncLow {
			if term < q.Low {
				return false
			}
		} else if term <= q.Low {
			return false
		}
	}
	if q.High != "" {
		if q.IncHigh {
			if term > q.High {
				return false
			}
		} else if term >= q.High {
			return false
		}
	}
	return true
}

func (q Range) Matcher(ctx Context) (matching.Matcher, error) {
	return expand(ctx, q.Field, q.Boost, q.contains)
}

func (q Range) String() string {
	lb, rb := "{", "}"
	if q.IncLow {
		lb = "["
	}
	if q.IncHigh {
		rb = "]"
	}
	return fmt.Sprintf("%s:%s%s TO %s%s", q.Field, lb, q.Low, q.High, rb)
}

// expand unions the scored matchers of every field term accepted by keep.
func expand(ctx Context, field string, boost float64, keep func(string) bool) (matching.Matcher, error) {
	terms, err := ctx.FieldTerms(field)
	if err != nil {
		return nil, err
	}
	var ms []matching.Matcher
	for _, t := range terms {
		if !keep(t) {
			continue
		}
		m, err := ctx.TermMatcher(field, t)
		if err != nil {
			return nil, err
		}
		ms = append(ms, m)
	}
	if boost == 0 {
		boost = 1
	}
	return matching.NewBoostMatcher(matching.NewUnion(ms), boost), nil
}

// Phrase matches documents where the words occur in order within Slop.
type Phrase struct {
	Field string
	Words []string
	Slop  int
	Boost float64
}

func (q Phrase) Normalize() Query {
	words := make([]string, 0, len(q.Words))
	for _, w := range q.Words {
		if w != "" {
			words = append(words, w)
		}
	}
	switch len(words) {
	case 0:
		return NullQuery{}
	case 1:
		return Term{Field: q.Field, Text: words[0], Boost: q.Boost}
	}
	q.Words = words
	return q
}

func (q Phrase) Matcher(ctx Context) (matching.Matcher, error) {
	f, err := ctx.Schema().Field(q.Field)
	if err != nil {
		return nil, err
	}
	if !f.SupportsPositions() {
		return nil, errors.Newf(errors.ErrCapability,
			"field %q does not record positions, cannot run phrase query", q.Field)
	}
	positions, err := ctx.Positions(q.Field)
	if err != nil {
		return nil, err
	}
	words := make([]matching.ValueMatcher, 0, len(q.Words))
	for _, w := range q.Words {
		vm, err := ctx.WordMatcher(q.Field, w)
		if err != nil {
			return nil, err
		}
		if !vm.IsActive() {
			return matching.NullMatcher{}, nil
		}
		words = append(words, vm)
	}
	boost := q.Boost
	if boost == 0 {
		boost = 1
	}
	return matching.NewBoostMatcher(matching.NewPhraseMatcher(words, positions, q.Slop), boost), nil
}

func (q Phrase) String() string {
	return fmt.Sprintf("%s:%q", q.Field, strings.Join(q.Words, " "))
}

// And matches documents matching every subquery.
type And struct {
	Subs []Query
}

// Normalize drops null subqueries rather than nulling the conjunction:
// terms that analyze away (stopwords) must not empty the whole query.
func (q And) Normalize() Query {
	subs := flatten[And](q.Subs, func(a And) []Query { return a.Subs })
	live := subs[:0]
	for _, s := range subs {
		if _, isNull := s.(NullQuery); !isNull {
			live = append(live, s)
		}
	}
	switch len(live) {
	case 0:
		return NullQuery{}
	case 1:
		return live[0]
	}
	return And{Subs: live}
}

func (q And) Matcher(ctx Context) (matching.Matcher, error) {
	pos, neg, err := splitNots(ctx, q.Subs)
	if err != nil {
		return nil, err
	}
	if len(pos) == 0 {
		// Pure negation over the whole segment.
		all, err := ctx.AllMatcher()
		if err != nil {
			return nil, err
		}
		pos = append(pos, all)
	}
	m := matching.NewIntersection(pos)
	for _, n := range neg {
		m = matching.NewAndNotMatcher(m, n)
	}
	return m, nil
}

func (q And) String() string { return group("AND", q.Subs) }

// Or matches documents matching at least one subquery.
type Or struct {
	Subs []Query
}

func (q Or) Normalize() Query {
	subs := flatten[Or](q.Subs, func(o Or) []Query { return o.Subs })
	live := subs[:0]
	for _, s := range subs {
		if _, isNull := s.(NullQuery); !isNull {
			live = append(live, s)
		}
	}
	switch len(live) {
	case 0:
		return NullQuery{}
	case 1:
		return live[0]
	}
	return Or{Subs: live}
}

func (q Or) Matcher(ctx Context) (matching.Matcher, error) {
	ms := make([]matching.Matcher, 0, len(q.Subs))
	for _, s := range q.Subs {
		m, err := s.Matcher(ctx)
		if err != nil {
			return nil, err
		}
		ms = append(ms, m)
	}
	return matching.NewUnion(ms), nil
}

func (q Or) String() string { return group("OR", q.Subs) }

// Not excludes its subquery's documents. Only meaningful inside a
// conjunction; a bare Not matches everything except the subquery.
type Not struct {
	Sub Query
}

func (q Not) Normalize() Query {
	sub := q.Sub.Normalize()
	if _, isNull := sub.(NullQuery); isNull {
		return NullQuery{}
	}
	if inner, isNot := sub.(Not); isNot {
		return inner.Sub
	}
	return Not{Sub: sub}
}

func (q Not) Matcher(ctx Context) (matching.Matcher, error) {
	all, err := ctx.AllMatcher()
	if err != nil {
		return nil, err
	}
	sub, err := q.Sub.Matcher(ctx)
	if err != nil {
		return nil, err
	}
	return matching.NewAndNotMatcher(all, sub), nil
}

func (q Not) String() string { return "NOT " + q.Sub.String() }

// Require matches the intersection of Scored and Required but scores only
// from Scored.
type Require struct {
	Scored   Query
	Required Query
}

func (q Require) Normalize() Query {
	scored := q.Scored.Normalize()
	required := q.Required.Normalize()
	if _, isNull := scored.(NullQuery); isNull {
		return NullQuery{}
	}
	if _, isNull := required.(NullQuery); isNull {
		return NullQuery{}
	}
	return Require{Scored: scored, Required: required}
}

func (q Require) Matcher(ctx Context) (matching.Matcher, error) {
	scored, err := q.Scored.Matcher(ctx)
	if err != nil {
		return nil, err
	}
	required, err := q.Required.Matcher(ctx)
	if err != nil {
		return nil, err
	}
	return matching.NewRequireMatcher(scored, required), nil
}

func (q Require) String() string {
	return fmt.Sprintf("(%s REQUIRE %s)", q.Scored.String(), q.Required.String())
}

// Boost scales the scores of its subquery.
type Boost struct {
	Sub    Query
	Factor float64
}

func (q Boost) Normalize() Query {
	sub := q.Sub.Normalize()
	if _, isNull := sub.(NullQuery); isNull {
		return NullQuery{}
	}
	if q.Factor == 1 {
		return sub
	}
	switch s := sub.(type) {
	case Term:
		s.Boost = s.boost() * q.Factor
		return s
	case Boost:
		return Boost{Sub: s.Sub, Factor: s.Factor * q.Factor}.Normalize()
	}
	return Boost{Sub: sub, Factor: q.Factor}
}

func (q Boost) Matcher(ctx Context) (matching.Matcher, error) {
	sub, err := q.Sub.Matcher(ctx)
	if err != nil {
		return nil, err
	}
	return matching.NewBoostMatcher(sub, q.Factor), nil
}

func (q Boost) String() string {
	return fmt.Sprintf("(%s)^%g", q.Sub.String(), q.Factor)
}

// NestedParent promotes matches of Child up to the enclosing parent
// documents selected by Parents.
type NestedParent struct {
	Parents Query
	Child   Query
}

func (q NestedParent) Normalize() Query {
	parents := q.Parents.Normalize()
	child := q.Child.Normalize()
	if _, isNull := parents.(NullQuery); isNull {
		return NullQuery{}
	}
	if _, isNull := child.(NullQuery); isNull {
		return NullQuery{}
	}
	return NestedParent{Parents: parents, Child: child}
}

func (q NestedParent) Matcher(ctx Context) (matching.Matcher, error) {
	parents, err := collectIDs(ctx, q.Parents)
	if err != nil {
		return nil, err
	}
	child, err := q.Child.Matcher(ctx)
	if err != nil {
		return nil, err
	}
	return matching.NewNestedParentMatcher(parents, child, nil), nil
}

func (q NestedParent) String() string {
	return fmt.Sprintf("(parent:%s child:%s)", q.Parents.String(), q.Child.String())
}

// NestedChildren matches the child documents of parents matched by Parent.
type NestedChildren struct {
	ParentSet Query
	Parent    Query
}

func (q NestedChildren) Normalize() Query {
	set := q.ParentSet.Normalize()
	parent := q.Parent.Normalize()
	if _, isNull := set.(NullQuery); isNull {
		return NullQuery{}
	}
	if _, isNull := parent.(NullQuery); isNull {
		return NullQuery{}
	}
	return NestedChildren{ParentSet: set, Parent: parent}
}

func (q NestedChildren) Matcher(ctx Context) (matching.Matcher, error) {
	parents, err := collectIDs(ctx, q.ParentSet)
	if err != nil {
		return nil, err
	}
	parent, err := q.Parent.Matcher(ctx)
	if err != nil {
		return nil, err
	}
	return matching.NewNestedChildrenMatcher(parents, parent), nil
}

func (q NestedChildren) String() string {
	return fmt.Sprintf("(children-of:%s)", q.Parent.String())
}

// Every matches all documents carrying any term in Field, or every document
// when Field is empty.
type Every struct {
	Field string
}

func (q Every) Normalize() Query { return q }

func (q Every) Matcher(ctx Context) (matching.Matcher, error) {
	if q.Field == "" {
		return ctx.AllMatcher()
	}
	return expand(ctx, q.Field, 1, func(string) bool { return true })
}

func (q Every) String() string {
	if q.Field == "" {
		return "*:*"
	}
	return q.Field + ":*"
}

// collectIDs runs a query to completion and captures its document set.
func collectIDs(ctx Context, q Query) (idset.Set, error) {
	m, err := q.Matcher(ctx)
	if err != nil {
		return nil, err
	}
	set := idset.NewSortedSet()
	for m.IsActive() {
		set.Add(m.ID())
		m.Next()
	}
	return set, nil
}

// splitNots compiles conjunction children, separating negated legs.
func splitNots(ctx Context, subs []Query) (pos, neg []matching.Matcher, err error) {
	for _, s := range subs {
		if n, isNot := s.(Not); isNot {
			m, err := n.Sub.Matcher(ctx)
			if err != nil {
				return nil, nil, err
			}
			neg = append(neg, m)
			continue
		}
		m, err := s.Matcher(ctx)
		if err != nil {
			return nil, nil, err
		}
		pos = append(pos, m)
	}
	return pos, neg, nil
}

// flatten normalizes children and splices same-typed groups in place.
func flatten[T Query](subs []Query, children func(T) []Query) []Query {
	out := make([]Query, 0, len(subs))
	for _, s := range subs {
		n := s.Normalize()
		if same, ok := n.(T); ok {
			out = append(out, children(same)...)
			continue
		}
		out = append(out, n)
	}
	return out
}

func group(op string, subs []Query) string {
	parts := make([]string, len(subs))
	for i, s := range subs {
		parts[i] = s.String()
	}
	return "(" + strings.Join(parts, " "+op+" ") + ")"
}

// Fields returns the distinct field names a tree touches, sorted. Used to
// validate queries against the schema before running them.
func Fields(q Query) []string {
	seen := map[string]bool{}
	var walk func(Query)
	walk = func(q Query) {
		switch n := q.(type) {
		case Term:
			seen[n.Field] = true
		case Prefix:
			seen[n.Field] = true
		case Wildcard:
			seen[n.Field] = true
		case Range:
			seen[n.Field] = true
		case Phrase:
			seen[n.Field] = true
		case Every:
			if n.Field != "" {
				seen[n.Field] = true
			}
		case And:
			for _, s := range n.Subs {
				walk(s)
			}
		case Or:
			for _, s := range n.Subs {
				walk(s)
			}
		case Not:
			walk(n.Sub)
		case Require:
			walk(n.Scored)
			walk(n.Required)
		case Boost:
			walk(n.Sub)
		case NestedParent:
			walk(n.Parents)
			walk(n.Child)
		case NestedChildren:
			walk(n.ParentSet)
			walk(n.Parent)
		}
	}
	walk(q)
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
