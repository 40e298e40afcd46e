package formula

import (
	"sort"
	"strings"

	"shgcolumns/models"
)

// RefKind tells what an identifier in an expression resolved to
type RefKind int

const (
	RefField RefKind = iota
	RefColumn
	RefProperty
)

// Reference is a resolved identifier. Fields are raw context values looked
// up by name at evaluation time.
type Reference struct {
	Kind RefKind
	ID   string
	Name string
}

// Symbols is the set of columns, properties and known fields an expression
// may reference
type Symbols struct {
	columns    []models.CustomColumn
	properties []models.ColumnProperty
	fields     map[string]string
	fieldList  []string

	// phrases are ids and names containing non-word characters, longest
	// first, matched before plain words so "insurance-percent" is one token
	phrases []phrase
}

type phrase struct {
	text     string
	ref      Reference
	foldCase bool
}

// NewSymbols builds a symbol table. Columns win over properties when an id or
// name is shared.
func NewSymbols(columns []models.CustomColumn, properties []models.ColumnProperty, fields []string) *Symbols {
	s := &Symbols{
		columns:    columns,
		properties: properties,
		fields:     make(map[string]string, len(fields)),
		fieldList:  fields,
	}
	for _, f := range fields {
		s.fields[strings.ToLower(f)] = f
	}

	for _, c := range columns {
		ref := Reference{Kind: RefColumn, ID: c.ID, Name: c.Name}
		s.addPhrase(c.ID, ref, false)
		s.addPhrase(c.Name, ref, true)
	}
	for _, p := range properties {
		ref := Reference{Kind: RefProperty, ID: p.ID, Name: p.Name}
		s.addPhrase(p.ID, ref, false)
		s.addPhrase(p.Name, ref, true)
	}
	sort.SliceStable(s.phrases, func(i, j int) bool {
		return len(s.phrases[i].text) > len(s.phrases[j].text)
	})
	return s
}

func (s *Symbols) addPhrase(text string, ref Reference, foldCase bool) {
	text = strings.TrimSpace(text)
	if text == "" || isWordString(text) || !isIdentStart(text[0]) {
		return
	}
	s.phrases = append(s.phrases, phrase{text: text, ref: ref, foldCase: foldCase})
}

// withColumn returns a copy of the table that also knows the given column id.
// Used so a column under construction can reference itself.
func (s *Symbols) withColumn(id string) *Symbols {
	if id == "" {
		return s
	}
	if s == nil {
		return NewSymbols([]models.CustomColumn{{ID: id}}, nil, nil)
	}
	if _, ok := s.Column(id); ok {
		return s
	}
	cols := append(append([]models.CustomColumn(nil), s.columns...), models.CustomColumn{ID: id, Name: id})
	return NewSymbols(cols, s.properties, s.fieldList)
}

// Column returns the column with the given id
func (s *Symbols) Column(id string) (models.CustomColumn, bool) {
	if s == nil {
		return models.CustomColumn{}, false
	}
	for _, c := range s.columns {
		if c.ID == id {
			return c, true
		}
	}
	return models.CustomColumn{}, false
}

// Property returns the property with the given id
func (s *Symbols) Property(id string) (models.ColumnProperty, bool) {
	if s == nil {
		return models.ColumnProperty{}, false
	}
	for _, p := range s.properties {
		if p.ID == id {
			return p, true
		}
	}
	return models.ColumnProperty{}, false
}

// IsKnownField reports whether name is a declared non-column field
func (s *Symbols) IsKnownField(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.fields[strings.ToLower(name)]
	return ok
}

// lookupWord resolves a plain identifier: exact column id, exact property id,
// then normalized column name and normalized property name
func (s *Symbols) lookupWord(word string) (Reference, bool) {
	if s == nil {
		return Reference{}, false
	}
	for _, c := range s.columns {
		if c.ID == word {
			return Reference{Kind: RefColumn, ID: c.ID, Name: c.Name}, true
		}
	}
	for _, p := range s.properties {
		if p.ID == word {
			return Reference{Kind: RefProperty, ID: p.ID, Name: p.Name}, true
		}
	}
	norm := models.NormalizeName(word)
	for _, c := range s.columns {
		if models.NormalizeName(c.Name) == norm {
			return Reference{Kind: RefColumn, ID: c.ID, Name: c.Name}, true
		}
	}
	for _, p := range s.properties {
		if models.NormalizeName(p.Name) == norm {
			return Reference{Kind: RefProperty, ID: p.ID, Name: p.Name}, true
		}
	}
	return Reference{}, false
}

// matchPhrase returns the longest id or name starting at expr[pos:] that is
// followed by a word boundary
func (s *Symbols) matchPhrase(expr string, pos int) (phrase, bool) {
	if s == nil {
		return phrase{}, false
	}
	rest := expr[pos:]
	for _, ph := range s.phrases {
		n := len(ph.text)
		if n > len(rest) {
			continue
		}
		candidate := rest[:n]
		if ph.foldCase {
			if !strings.EqualFold(candidate, ph.text) {
				continue
			}
		} else if candidate != ph.text {
			continue
		}
		if n < len(rest) && isWordChar(rest[n]) {
			continue
		}
		return ph, true
	}
	return phrase{}, false
}

func isWordChar(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

func isIdentStart(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func isWordString(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isWordChar(s[i]) {
			return false
		}
	}
	return true
}
