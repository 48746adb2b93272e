// Package parser turns query strings into query trees. The surface syntax
// covers fielded terms, quoted phrases with optional slop, bracketed term
// ranges, AND/OR/NOT with the usual precedence, +/- prefixes, wildcards and
// ^boosts. Malformed input never fails a search: the parse degrades to a
// NullQuery and the problem is logged.
package parser

import (
	"log/slog"
	"strings"

	"github.com/quillsearch/quill/internal/analysis"
	"github.com/quillsearch/quill/internal/query"
	"github.com/quillsearch/quill/internal/schema"
)

// Parser builds query trees bound to one schema.
type Parser struct {
	schema       *schema.Schema
	defaultField string
	logger       *slog.Logger
}

func New(s *schema.Schema) *Parser {
	return &Parser{
		schema:       s,
		defaultField: s.DefaultField(),
		logger:       slog.Default().With("component", "queryparser"),
	}
}

// Parse returns the normalized tree for text. Any diagnostic is returned
// alongside a NullQuery so callers can treat parse failure as an empty
// result.
func (p *Parser) Parse(text string) (query.Query, error) {
	toks, err := lex(text)
	if err != nil {
		p.logger.Warn("query did not lex", "query", text, "error", err)
		return query.NullQuery{}, err
	}
	ps := &parseState{parser: p, toks: toks}
	q := ps.parseOr()
	return q.Normalize(), nil
}

type parseState struct {
	parser *Parser
	toks   []token
	pos    int
}

func (s *parseState) peek() (token, bool) {
	if s.pos >= len(s.toks) {
		return token{}, false
	}
	return s.toks[s.pos], true
}

func (s *parseState) accept(kind tokKind) bool {
	if t, ok := s.peek(); ok && t.kind == kind {
		s.pos++
		return true
	}
	return false
}

// parseOr handles the loosest-binding operator.
func (s *parseState) parseOr() query.Query {
	subs := []query.Query{s.parseAnd()}
	for s.accept(tOr) {
		subs = append(subs, s.parseAnd())
	}
	if len(subs) == 1 {
		return subs[0]
	}
	return query.Or{Subs: subs}
}

// parseAnd collects units joined by AND or simple adjacency; adjacent units
// conjoin.
func (s *parseState) parseAnd() query.Query {
	subs := []query.Query{s.parseNot()}
	for {
		if s.accept(tAnd) {
			subs = append(subs, s.parseNot())
			continue
		}
		t, ok := s.peek()
		if !ok || t.kind == tOr || t.kind == tClose {
			break
		}
		subs = append(subs, s.parseNot())
	}
	if len(subs) == 1 {
		return subs[0]
	}
	return query.And{Subs: subs}
}

func (s *parseState) parseNot() query.Query {
	if s.accept(tNot) || s.accept(tMinus) {
		return query.Not{Sub: s.parseNot()}
	}
	// A required term inside a conjunction is already a conjunct.
	s.accept(tPlus)
	return s.parseUnit()
}

func (s *parseState) parseUnit() query.Query {
	t, ok := s.peek()
	if !ok {
		return query.NullQuery{}
	}
	var q query.Query
	switch t.kind {
	case tOpen:
		s.pos++
		q = s.parseOr()
		if !s.accept(tClose) {
			s.parser.logger.Warn("unbalanced parenthesis in query", "at", t.at)
		}
	case tWord:
		s.pos++
		q = s.parser.word(t)
	case tPhrase:
		s.pos++
		q = s.parser.phrase(t)
	case tRange:
		s.pos++
		q = s.parser.srange(t)
	default:
		// An operator with nothing to operate on. Drop it.
		s.parser.logger.Warn("dangling token in query", "token", t.describe(), "at", t.at)
		s.pos++
		return s.parseUnit()
	}
	if bt, ok := s.peek(); ok && bt.kind == tBoost {
		s.pos++
		q = query.Boost{Sub: q, Factor: bt.boost}
	}
	return q
}

// field resolves a token's field, falling back to the default field and
// dropping terms aimed at fields the schema does not define.
func (p *Parser) field(t token) (string, bool) {
	name := t.field
	if name == "" {
		name = p.defaultField
	}
	if !p.schema.Has(name) {
		p.logger.Warn("query references unknown field", "field", name)
		return "", false
	}
	return name, true
}

// word turns one bare word into a leaf. Wildcard metacharacters bypass
// analysis; otherwise the word runs through the analyzer and the field's
// multi-token policy decides how several output tokens recombine.
func (p *Parser) word(t token) query.Query {
	field, ok := p.field(t)
	if !ok {
		return query.NullQuery{}
	}
	if t.text == "*" {
		return query.Every{Field: field}
	}
	if strings.ContainsAny(t.text, "*?") {
		return query.Wildcard{Field: field, Pattern: strings.ToLower(t.text)}
	}
	terms := analyzedTerms(t.text)
	switch len(terms) {
	case 0:
		// The word analyzed away entirely (a stopword).
		return query.NullQuery{}
	case 1:
		return query.Term{Field: field, Text: terms[0]}
	}
	return p.recombine(field, terms)
}

// recombine applies the field's multi-token policy.
func (p *Parser) recombine(field string, terms []string) query.Query {
	f, err := p.schema.Field(field)
	if err != nil {
		return query.NullQuery{}
	}
	policy := f.Policy
	if policy == schema.PolicyDefault {
		if f.SupportsPositions() {
			policy = schema.PolicyPhrase
		} else {
			policy = schema.PolicyAnd
		}
	}
	switch policy {
	case schema.PolicyFirst:
		return query.Term{Field: field, Text: terms[0]}
	case schema.PolicyPhrase:
		return query.Phrase{Field: field, Words: terms, Slop: 1}
	case schema.PolicyOr:
		return query.Or{Subs: termQueries(field, terms)}
	default:
		return query.And{Subs: termQueries(field, terms)}
	}
}

func (p *Parser) phrase(t token) query.Query {
	field, ok := p.field(t)
	if !ok {
		return query.NullQuery{}
	}
	return query.Phrase{Field: field, Words: analyzedTerms(t.text), Slop: t.slop}
}

func (p *Parser) srange(t token) query.Query {
	field, ok := p.field(t)
	if !ok {
		return query.NullQuery{}
	}
	return query.Range{
		Field:   field,
		Low:     normalizeBound(t.low),
		High:    normalizeBound(t.high),
		IncLow:  t.incLo,
		IncHigh: t.incHi,
	}
}

// normalizeBound lowercases a range endpoint. Endpoints are not stemmed.
func normalizeBound(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func analyzedTerms(text string) []string {
	toks := analysis.Tokenize(text)
	out := make([]string, 0, len(toks))
	for _, tok := range toks {
		out = append(out, tok.Term)
	}
	return out
}

func termQueries(field string, terms []string) []query.Query {
	out := make([]query.Query, len(terms))
	for i, t := range terms {
		out[i] = query.Term{Field: field, Text: t}
	}
	return out
}
