// Package schema describes the fields an index accepts: which posting format
// each field uses, whether its values are stored, how multi-token query terms
// recombine, and per-field scoring parameter overrides.
package schema

import (
	"fmt"
	"sort"

	"github.com/quillsearch/quill/internal/postform"
	"github.com/quillsearch/quill/pkg/errors"
)

// MultiTokenPolicy decides how a single query term that analyzes into several
// tokens recombines into one sub-query.
type MultiTokenPolicy string

const (
	PolicyDefault MultiTokenPolicy = "default"
	PolicyFirst   MultiTokenPolicy = "first"
	PolicyPhrase  MultiTokenPolicy = "phrase"
	PolicyAnd     MultiTokenPolicy = "and"
	PolicyOr      MultiTokenPolicy = "or"
)

// Field describes one named field.
type Field struct {
	Name    string
	Format  postform.Format
	Stored  bool
	Scoring ScoringOverride
	Policy  MultiTokenPolicy
}

// ScoringOverride carries optional per-field weighting parameters. Nil entries
// fall back to the model's globals.
type ScoringOverride struct {
	B  *float64
	K1 *float64
}

// SupportsPositions reports whether the field's format retains token
// positions, required for phrase queries.
func (f *Field) SupportsPositions() bool {
	return f.Format.Supports(postform.CapPositions)
}

// Schema is the ordered collection of fields for an index.
type Schema struct {
	fields       map[string]*Field
	names        []string
	defaultField string
}

func New() *Schema {
	return &Schema{fields: make(map[string]*Field)}
}

// AddField registers a field. The first added field becomes the default
// search field unless SetDefaultField is called.
func (s *Schema) AddField(f Field) (*Schema, error) {
	if f.Name == "" {
		return nil, fmt.Errorf("field name must not be empty")
	}
	if _, exists := s.fields[f.Name]; exists {
		return nil, fmt.Errorf("field %q already defined", f.Name)
	}
	if f.Policy == "" {
		f.Policy = PolicyDefault
	}
	fc := f
	s.fields[f.Name] = &fc
	s.names = append(s.names, f.Name)
	if s.defaultField == "" {
		s.defaultField = f.Name
	}
	return s, nil
}

// MustAddField is AddField for statically-known schemas.
func (s *Schema) MustAddField(f Field) *Schema {
	s2, err := s.AddField(f)
	if err != nil {
		panic(err)
	}
	return s2
}

// Field resolves a field by name, returning ErrUnknownField otherwise.
func (s *Schema) Field(name string) (*Field, error) {
	f, ok := s.fields[name]
	if !ok {
		return nil, errors.Newf(errors.ErrUnknownField, "field %q is not in the schema", name)
	}
	return f, nil
}

// Has reports whether the schema defines the named field.
func (s *Schema) Has(name string) bool {
	_, ok := s.fields[name]
	return ok
}

// Names returns the field names in registration order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// SortedNames returns the field names in lexicographic order, the order terms
// are laid out within a segment.
func (s *Schema) SortedNames() []string {
	out := s.Names()
	sort.Strings(out)
	return out
}

// DefaultField returns the field unqualified query terms bind to.
func (s *Schema) DefaultField() string {
	return s.defaultField
}

// SetDefaultField overrides the default search field.
func (s *Schema) SetDefaultField(name string) error {
	if !s.Has(name) {
		return errors.Newf(errors.ErrUnknownField, "default field %q is not in the schema", name)
	}
	s.defaultField = name
	return nil
}
