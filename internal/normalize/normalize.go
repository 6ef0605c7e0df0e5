// Package normalize turns raw staff tables into canonical records.
package normalize

import (
	"strings"
	"unicode"

	"github.com/JakeFAU/district-staff-crawler/internal/crawler"
)

// Field is one column value of an entity.
type Field struct {
	Name  string
	Value string
}

// Entity is one table row keyed by the text of its first column.
type Entity struct {
	Name   string
	Fields []Field
}

// ToEntities treats the first column of t as the name column. Rows with an
// empty name are skipped, as are columns with a blank header. When two rows share a name the later row's values
// replace the earlier ones in place.
func ToEntities(t crawler.RawTable) []Entity {
	if t.Width() == 0 {
		return nil
	}
	index := make(map[string]int)
	var out []Entity
	for _, row := range t.Rows {
		if len(row) == 0 {
			continue
		}
		name := strings.TrimSpace(row[0])
		if name == "" {
			continue
		}
		e := Entity{Name: name, Fields: make([]Field, 0, len(t.Header)-1)}
		for i := 1; i < len(t.Header) && i < len(row); i++ {
			header := strings.TrimSpace(t.Header[i])
			if header == "" {
				continue
			}
			e.Fields = append(e.Fields, Field{Name: header, Value: row[i]})
		}
		if at, ok := index[name]; ok {
			out[at] = e
			continue
		}
		index[name] = len(out)
		out = append(out, e)
	}
	return out
}

// Canonicalize collapses any field name containing "title" or "position"
// (case-insensitive) to Honorific and returns every other name unchanged.
func Canonicalize(field string) string {
	lower := strings.ToLower(field)
	if strings.Contains(lower, "title") || strings.Contains(lower, "position") {
		return crawler.FieldHonorific
	}
	return field
}

// SplitName splits a display name into first and last parts. A comma means
// "Last, First"; otherwise the first space, then the first period, separates
// "First Last". A name with none of these is used for both parts. All
// whitespace is removed from each part, and an empty part takes the value of
// the other.
func SplitName(name string) (first, last string) {
	switch {
	case strings.Contains(name, ","):
		last, first, _ = strings.Cut(name, ",")
	case strings.Contains(name, " "):
		first, last, _ = strings.Cut(name, " ")
	case strings.Contains(name, "."):
		first, last, _ = strings.Cut(name, ".")
	default:
		first, last = name, name
	}
	first, last = stripSpace(first), stripSpace(last)
	if first == "" {
		first = last
	}
	if last == "" {
		last = first
	}
	return first, last
}

// ToRecord builds the canonical record for e. Table columns are applied after
// the split name, so a non-blank "First Name" or "Last Name" cell wins; a blank
// one leaves the split name in place.
func ToRecord(e Entity) crawler.Record {
	var r crawler.Record
	first, last := SplitName(e.Name)
	for _, f := range e.Fields {
		r.Set(Canonicalize(f.Name), f.Value)
	}
	if strings.TrimSpace(r.FirstName) == "" {
		r.FirstName = first
	}
	if strings.TrimSpace(r.LastName) == "" {
		r.LastName = last
	}
	return r
}

// ToRecords maps ToRecord over entities.
func ToRecords(entities []Entity) []crawler.Record {
	out := make([]crawler.Record, 0, len(entities))
	for _, e := range entities {
		out = append(out, ToRecord(e))
	}
	return out
}

// Table is ToRecords(ToEntities(t)).
func Table(t crawler.RawTable) []crawler.Record {
	return ToRecords(ToEntities(t))
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
