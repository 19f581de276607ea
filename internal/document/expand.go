package document

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnevenSubstitutions is returned when substitution lists differ in length.
var ErrUnevenSubstitutions = errors.New("substitution lists have different lengths")

type substitution struct {
	name   string
	values []string
}

/**
 * SubstitutionSet maps placeholder names to same-length value lists
 * @description
 * - Names are kept in insertion order so logs and errors are stable
 * - Value i of every list belongs to expanded document i
 */
type SubstitutionSet struct {
	entries []substitution
}

// Add appends a value to the list of name, creating the list on first use.
func (s *SubstitutionSet) Add(name string, value any) {
	for i := range s.entries {
		if s.entries[i].name == name {
			s.entries[i].values = append(s.entries[i].values, fmt.Sprint(value))
			return
		}
	}
	s.entries = append(s.entries, substitution{name: name, values: []string{fmt.Sprint(value)}})
}

// Set replaces the whole list for name.
func (s *SubstitutionSet) Set(name string, values ...string) {
	for i := range s.entries {
		if s.entries[i].name == name {
			s.entries[i].values = append([]string(nil), values...)
			return
		}
	}
	s.entries = append(s.entries, substitution{name: name, values: append([]string(nil), values...)})
}

// Names lists placeholder names in insertion order.
func (s *SubstitutionSet) Names() []string {
	names := make([]string, len(s.entries))
	for i, e := range s.entries {
		names[i] = e.name
	}
	return names
}

// Values returns the list registered for name.
func (s *SubstitutionSet) Values(name string) []string {
	for _, e := range s.entries {
		if e.name == name {
			return append([]string(nil), e.values...)
		}
	}
	return nil
}

// Len returns the common list length N.
func (s *SubstitutionSet) Len() (int, error) {
	n := -1
	for _, e := range s.entries {
		if n == -1 {
			n = len(e.values)
			continue
		}
		if len(e.values) != n {
			return 0, fmt.Errorf("%w: %q has %d values, expected %d", ErrUnevenSubstitutions, e.name, len(e.values), n)
		}
	}
	if n < 0 {
		return 0, nil
	}
	return n, nil
}

// Placeholder returns the literal token replaced for name.
func Placeholder(name string) string {
	return "${" + name + "}"
}

/**
 * Expand the document once per substitution index
 * @param {SubstitutionSet} set - Placeholder lists, all of length N
 * @returns {[]*Document} N independent documents, empty when N is 0
 * @returns {error} ErrUnevenSubstitutions or a reparse failure
 * @description
 * - Works on the serialized text, every ${NAME} is replaced literally
 * - Each result is reparsed so it owns its own tree
 */
func (d *Document) Expand(set SubstitutionSet) ([]*Document, error) {
	n, err := set.Len()
	if err != nil {
		return nil, err
	}
	text, err := d.Serialize()
	if err != nil {
		return nil, err
	}
	docs := make([]*Document, 0, n)
	for i := 0; i < n; i++ {
		pairs := make([]string, 0, 2*len(set.entries))
		for _, e := range set.entries {
			pairs = append(pairs, Placeholder(e.name), e.values[i])
		}
		expanded := strings.NewReplacer(pairs...).Replace(text)
		doc, err := New([]byte(expanded))
		if err != nil {
			return nil, fmt.Errorf("expand document %d: %w", i, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
