package core

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"grimoire/pkg/domain"
)

// SlowDeriveThreshold is the derivation time above which collections log a
// warning. A few hundred records should derive well under it.
const SlowDeriveThreshold = 16 * time.Millisecond

// Derive returns the visible subset of records: every active predicate is
// ANDed, then the result is stably sorted when a sort field is set. records
// is never modified and the result is never nil.
//
// Unknown field names in criteria are ignored; holders reject them earlier.
func Derive[T any](records []T, schema domain.Schema[T], criteria domain.Criteria) []T {
	match := predicate(schema, criteria)
	out := make([]T, 0, len(records))
	for _, r := range records {
		if match(r) {
			out = append(out, r)
		}
	}
	if compare := comparator(schema, criteria); compare != nil {
		slices.SortStableFunc(out, compare)
	}
	return out
}

func predicate[T any](schema domain.Schema[T], criteria domain.Criteria) func(T) bool {
	var checks []func(T) bool

	// Blank searches are inactive; otherwise the needle is matched verbatim,
	// surrounding spaces included.
	if strings.TrimSpace(criteria.Search) != "" {
		needle := strings.ToLower(criteria.Search)
		var texts []func(T) string
		for _, f := range schema.Fields {
			if f.Searchable && f.Text != nil {
				texts = append(texts, f.Text)
			}
		}
		checks = append(checks, func(r T) bool {
			for _, text := range texts {
				if strings.Contains(strings.ToLower(text(r)), needle) {
					return true
				}
			}
			return false
		})
	}

	if criteria.CategoryActive() && schema.CategoryField != "" {
		want := criteria.Category
		checks = append(checks, func(r T) bool { return schema.Category(r) == want })
	}

	for name, bound := range criteria.Min {
		if f, ok := schema.Field(name); ok && f.Number != nil {
			number := f.Number
			checks = append(checks, func(r T) bool { return number(r) >= bound })
		}
	}
	for name, bound := range criteria.Max {
		if f, ok := schema.Field(name); ok && f.Number != nil {
			number := f.Number
			checks = append(checks, func(r T) bool { return number(r) <= bound })
		}
	}

	return func(r T) bool {
		for _, check := range checks {
			if !check(r) {
				return false
			}
		}
		return true
	}
}

// comparator returns nil when no usable sort field is set. Text compares
// case-insensitively; desc negates the comparison so equal keys keep their
// insertion order in both directions.
func comparator[T any](schema domain.Schema[T], criteria domain.Criteria) func(a, b T) int {
	if criteria.SortField == "" {
		return nil
	}
	f, ok := schema.Field(criteria.SortField)
	if !ok {
		return nil
	}
	var compare func(a, b T) int
	switch {
	case f.Kind == domain.FieldNumber && f.Number != nil:
		compare = func(a, b T) int { return cmp.Compare(f.Number(a), f.Number(b)) }
	case f.Text != nil:
		compare = func(a, b T) int {
			return strings.Compare(strings.ToLower(f.Text(a)), strings.ToLower(f.Text(b)))
		}
	default:
		return nil
	}
	if criteria.SortDirection == domain.SortDesc {
		asc := compare
		compare = func(a, b T) int { return -asc(a, b) }
	}
	return compare
}
