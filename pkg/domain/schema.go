package domain

import (
	"fmt"
	"math"
	"strings"
)

// FieldKind distinguishes text fields from numeric fields for filtering and
// comparison purposes.
type FieldKind string

const (
	FieldText   FieldKind = "text"
	FieldNumber FieldKind = "number"
)

// Range bounds a numeric field. Thresholds set against the field clamp into
// [Min, Max].
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Clamp pins v into the range.
func (r Range) Clamp(v float64) float64 {
	return math.Min(math.Max(v, r.Min), r.Max)
}

// Contains reports whether v lies within the inclusive range.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Field describes one named attribute of a record type. Text fields provide
// Text, numeric fields provide Number; Searchable marks text fields scanned by
// free-text search.
type Field[T any] struct {
	Name       string
	Kind       FieldKind
	Searchable bool
	Range      *Range
	Text       func(T) string
	Number     func(T) float64
}

// FieldError reports a per-field input problem. It is displayed next to the
// offending field and blocks submission.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Schema is the explicit configuration of a record kind: its fields, its
// category dimension and its input validation. Every optional member has a
// documented default:
//
//   - CategoryField empty: the kind has no category dimension and category
//     filters are ignored.
//   - Categories empty: any category string is accepted.
//   - Validate nil: every record is accepted.
type Schema[T any] struct {
	Kind          Kind
	Fields        []Field[T]
	CategoryField string
	Categories    []string
	Validate      func(T) []FieldError
}

// Field returns the named field using a case-insensitive match.
func (s Schema[T]) Field(name string) (Field[T], bool) {
	for _, f := range s.Fields {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return Field[T]{}, false
}

// Category returns the category tag of the record, or "" if the kind has no
// category dimension.
func (s Schema[T]) Category(record T) string {
	if s.CategoryField == "" {
		return ""
	}
	f, ok := s.Field(s.CategoryField)
	if !ok || f.Text == nil {
		return ""
	}
	return f.Text(record)
}

// Check runs the validation hook; nil when the record is acceptable.
func (s Schema[T]) Check(record T) []FieldError {
	if s.Validate == nil {
		return nil
	}
	return s.Validate(record)
}

// Descriptor is the non-generic projection of a schema used by transports.
func (s Schema[T]) Descriptor() SchemaDescriptor {
	fields := make([]FieldDescriptor, 0, len(s.Fields))
	for _, f := range s.Fields {
		fd := FieldDescriptor{Name: f.Name, Kind: f.Kind, Searchable: f.Searchable}
		if f.Range != nil {
			r := *f.Range
			fd.Range = &r
		}
		fields = append(fields, fd)
	}
	return SchemaDescriptor{
		Kind:          s.Kind,
		Fields:        fields,
		CategoryField: s.CategoryField,
		Categories:    append([]string(nil), s.Categories...),
	}
}

// SchemaDescriptor summarises a schema for clients.
type SchemaDescriptor struct {
	Kind          Kind              `json:"kind"`
	Fields        []FieldDescriptor `json:"fields"`
	CategoryField string            `json:"category_field,omitempty"`
	Categories    []string          `json:"categories,omitempty"`
}

// FieldDescriptor summarises one field.
type FieldDescriptor struct {
	Name       string    `json:"name"`
	Kind       FieldKind `json:"kind"`
	Searchable bool      `json:"searchable,omitempty"`
	Range      *Range    `json:"range,omitempty"`
}

// Column returns a textual rendering of the named field for tabular output.
func (s Schema[T]) Column(record T, name string) string {
	f, ok := s.Field(name)
	if !ok {
		return ""
	}
	switch f.Kind {
	case FieldNumber:
		if f.Number == nil {
			return ""
		}
		return formatNumber(f.Number(record))
	default:
		if f.Text == nil {
			return ""
		}
		return f.Text(record)
	}
}

func formatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}
