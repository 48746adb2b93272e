package parser

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/quillsearch/quill/pkg/errors"
)

type tokKind int

const (
	tWord tokKind = iota
	tPhrase
	tRange
	tAnd
	tOr
	tNot
	tPlus
	tMinus
	tOpen
	tClose
	tBoost
)

type token struct {
	kind  tokKind
	field string
	text  string
	slop  int
	low   string
	high  string
	incLo bool
	incHi bool
	boost float64
	at    int
}

// tagger attempts to recognize one token at pos. A successful match must
// consume at least one byte.
type tagger func(l *lexer) (token, int, bool)

type lexer struct {
	input string
	pos   int
}

// taggers are tried in priority order at every position.
var taggers = []tagger{
	tagParen,
	tagPhrase,
	tagRange,
	tagOperator,
	tagPlusMinus,
	tagBoost,
	tagWord,
}

// lex splits the query string into tokens. A position no tagger can advance
// past is a lexer bug, reported as ErrParse rather than looping forever.
func lex(input string) ([]token, error) {
	l := &lexer{input: input}
	var toks []token
	for l.pos < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if unicode.IsSpace(r) {
			l.pos += size
			continue
		}
		matched := false
		for _, tag := range taggers {
			tok, consumed, ok := tag(l)
			if !ok {
				continue
			}
			if consumed <= 0 {
				return nil, errors.Newf(errors.ErrParse,
					"lexer made no progress at offset %d in %q", l.pos, input)
			}
			tok.at = l.pos
			l.pos += consumed
			toks = append(toks, tok)
			matched = true
			break
		}
		if !matched {
			// No tagger wants this byte; consume it as an unknown word rune
			// so a stray character cannot wedge the parse.
			l.pos += size
		}
	}
	return toks, nil
}

func tagParen(l *lexer) (token, int, bool) {
	switch l.input[l.pos] {
	case '(':
		return token{kind: tOpen}, 1, true
	case ')':
		return token{kind: tClose}, 1, true
	}
	return token{}, 0, false
}

// tagPhrase matches [field:]"words..."[~slop].
func tagPhrase(l *lexer) (token, int, bool) {
	rest := l.input[l.pos:]
	field, fieldLen := fieldPrefix(rest)
	body := rest[fieldLen:]
	if len(body) == 0 || body[0] != '"' {
		return token{}, 0, false
	}
	end := strings.IndexByte(body[1:], '"')
	if end < 0 {
		// Unterminated quote runs to end of input.
		return token{kind: tPhrase, field: field, text: body[1:], slop: 1}, len(rest), true
	}
	text := body[1 : 1+end]
	consumed := fieldLen + end + 2
	slop := 1
	tail := rest[consumed:]
	if strings.HasPrefix(tail, "~") {
		digits := leadingDigits(tail[1:])
		if digits != "" {
			if n, err := strconv.Atoi(digits); err == nil && n > 0 {
				slop = n
			}
			consumed += 1 + len(digits)
		}
	}
	return token{kind: tPhrase, field: field, text: text, slop: slop}, consumed, true
}

// tagRange matches [field:] then a bracketed range like [alpha TO omega] or
// {alpha TO omega}, with mixed brackets allowed.
func tagRange(l *lexer) (token, int, bool) {
	rest := l.input[l.pos:]
	field, fieldLen := fieldPrefix(rest)
	body := rest[fieldLen:]
	if len(body) == 0 || (body[0] != '[' && body[0] != '{') {
		return token{}, 0, false
	}
	end := strings.IndexAny(body, "]}")
	if end < 0 {
		return token{}, 0, false
	}
	inner := body[1:end]
	parts := strings.SplitN(inner, " TO ", 2)
	if len(parts) != 2 {
		return token{}, 0, false
	}
	return token{
		kind:  tRange,
		field: field,
		low:   strings.TrimSpace(parts[0]),
		high:  strings.TrimSpace(parts[1]),
		incLo: body[0] == '[',
		incHi: body[end] == ']',
	}, fieldLen + end + 1, true
}

func tagOperator(l *lexer) (token, int, bool) {
	rest := l.input[l.pos:]
	for _, op := range []struct {
		word string
		kind tokKind
	}{
		{"AND", tAnd},
		{"OR", tOr},
		{"NOT", tNot},
	} {
		if strings.HasPrefix(rest, op.word) && atWordBoundary(rest, len(op.word)) {
			return token{kind: op.kind}, len(op.word), true
		}
	}
	return token{}, 0, false
}

func tagPlusMinus(l *lexer) (token, int, bool) {
	rest := l.input[l.pos:]
	if len(rest) < 2 || isSpaceAt(rest, 1) {
		return token{}, 0, false
	}
	switch rest[0] {
	case '+':
		return token{kind: tPlus}, 1, true
	case '-':
		return token{kind: tMinus}, 1, true
	}
	return token{}, 0, false
}

// tagBoost matches ^N or ^N.N, binding to the preceding unit.
func tagBoost(l *lexer) (token, int, bool) {
	rest := l.input[l.pos:]
	if rest[0] != '^' {
		return token{}, 0, false
	}
	num := leadingNumber(rest[1:])
	if num == "" {
		return token{}, 0, false
	}
	factor, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return token{}, 0, false
	}
	return token{kind: tBoost, boost: factor}, 1 + len(num), true
}

// tagWord matches [field:]text where text runs until whitespace or a
// structural character. Wildcard metacharacters stay in the text.
func tagWord(l *lexer) (token, int, bool) {
	rest := l.input[l.pos:]
	field, fieldLen := fieldPrefix(rest)
	body := rest[fieldLen:]
	end := 0
	for end < len(body) {
		r, size := utf8.DecodeRuneInString(body[end:])
		if unicode.IsSpace(r) || strings.ContainsRune(`()"^`, r) {
			break
		}
		end += size
	}
	if end == 0 {
		return token{}, 0, false
	}
	return token{kind: tWord, field: field, text: body[:end]}, fieldLen + end, true
}

// fieldPrefix recognizes an identifier followed by a colon, returning the
// field name and bytes consumed (zero when absent).
func fieldPrefix(s string) (string, int) {
	i := 0
	for i < len(s) {
		c := s[i]
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(i > 0 && c >= '0' && c <= '9') {
			i++
			continue
		}
		break
	}
	if i == 0 || i >= len(s) || s[i] != ':' {
		return "", 0
	}
	return s[:i], i + 1
}

func atWordBoundary(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return unicode.IsSpace(r) || r == '(' || r == ')' || r == '"'
}

func isSpaceAt(s string, i int) bool {
	r, _ := utf8.DecodeRuneInString(s[i:])
	return unicode.IsSpace(r)
}

func leadingDigits(s string) string {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i]
}

func leadingNumber(s string) string {
	i := 0
	dot := false
	for i < len(s) {
		if s[i] >= '0' && s[i] <= '9' {
			i++
			continue
		}
		if s[i] == '.' && !dot && i > 0 {
			dot = true
			i++
			continue
		}
		break
	}
	return s[:i]
}

func (t token) describe() string {
	switch t.kind {
	case tWord:
		return fmt.Sprintf("word %q", t.text)
	case tPhrase:
		return fmt.Sprintf("phrase %q", t.text)
	case tRange:
		return fmt.Sprintf("range [%s TO %s]", t.low, t.high)
	case tAnd:
		return "AND"
	case tOr:
		return "OR"
	case tNot:
		return "NOT"
	case tPlus:
		return "+"
	case tMinus:
		return "-"
	case tOpen:
		return "("
	case tClose:
		return ")"
	case tBoost:
		return fmt.Sprintf("^%g", t.boost)
	}
	return "unknown"
}
