package domain

import (
	"errors"
	"maps"
	"strings"
)

// SortDirection orders a derived view.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// AllCategories is the category sentinel that disables category filtering.
const AllCategories = "all"

var (
	// ErrUnknownField indicates a criteria setter referenced a field that the
	// schema does not declare, or a field of the wrong kind.
	ErrUnknownField = errors.New("domain: unknown field")
	// ErrInvalidDirection indicates a sort direction other than asc or desc.
	ErrInvalidDirection = errors.New("domain: invalid sort direction")
)

// ParseSortDirection normalises a direction string. Empty defaults to asc.
func ParseSortDirection(raw string) (SortDirection, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(SortAsc):
		return SortAsc, nil
	case string(SortDesc):
		return SortDesc, nil
	default:
		return "", ErrInvalidDirection
	}
}

// Criteria holds independent filter and sort inputs. Each dimension has an
// unset sentinel: empty Search, empty or "all" Category, a missing key in Min
// or Max, and an empty SortField.
type Criteria struct {
	Search        string             `json:"search,omitempty"`
	Category      string             `json:"category,omitempty"`
	Min           map[string]float64 `json:"min,omitempty"`
	Max           map[string]float64 `json:"max,omitempty"`
	SortField     string             `json:"sort_field,omitempty"`
	SortDirection SortDirection      `json:"sort_direction,omitempty"`
}

// Clone returns a deep copy so holders never share maps with callers.
func (c Criteria) Clone() Criteria {
	out := c
	if c.Min != nil {
		out.Min = maps.Clone(c.Min)
	}
	if c.Max != nil {
		out.Max = maps.Clone(c.Max)
	}
	return out
}

// CategoryActive reports whether the category dimension filters anything.
func (c Criteria) CategoryActive() bool {
	return c.Category != "" && !strings.EqualFold(c.Category, AllCategories)
}

// IsNeutral reports whether every dimension sits at its sentinel.
func (c Criteria) IsNeutral() bool {
	return strings.TrimSpace(c.Search) == "" && !c.CategoryActive() &&
		len(c.Min) == 0 && len(c.Max) == 0 && c.SortField == ""
}
