package core

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"grimoire/pkg/domain"
)

// Query parameter names understood by ParseCriteria.
const (
	ParamSearch    = "search"
	ParamCategory  = "category"
	ParamMinPrefix = "min."
	ParamMaxPrefix = "max."
	ParamSort      = "sort"
	ParamDirection = "dir"
)

// CriteriaHolder is the resident criteria of one collection. Each setter
// changes exactly one dimension and notifies subscribers.
type CriteriaHolder[T any] struct {
	schema domain.Schema[T]
	state  *Observable[domain.Criteria]
}

// NewCriteriaHolder returns a holder with every dimension unset.
func NewCriteriaHolder[T any](schema domain.Schema[T]) *CriteriaHolder[T] {
	return &CriteriaHolder[T]{schema: schema, state: NewObservable(domain.Criteria{SortDirection: domain.SortAsc})}
}

// Current returns a copy of the held criteria.
func (h *CriteriaHolder[T]) Current() domain.Criteria { return h.state.Get().Clone() }

// Subscribe registers fn for criteria changes.
func (h *CriteriaHolder[T]) Subscribe(fn func(domain.Criteria)) func() {
	return h.state.Subscribe(func(c domain.Criteria) { fn(c.Clone()) })
}

// SetSearch sets the free-text query. An empty string disables search.
func (h *CriteriaHolder[T]) SetSearch(search string) {
	h.mutate(func(c *domain.Criteria) { c.Search = search })
}

// SetCategory sets the category filter. "" or "all" disables it.
func (h *CriteriaHolder[T]) SetCategory(category string) {
	h.mutate(func(c *domain.Criteria) { c.Category = category })
}

// SetMin sets an inclusive lower bound on a numeric field, clamped to the
// field's range.
func (h *CriteriaHolder[T]) SetMin(field string, value float64) error {
	name, value, err := h.threshold(field, value)
	if err != nil {
		return err
	}
	h.mutate(func(c *domain.Criteria) {
		if c.Min == nil {
			c.Min = make(map[string]float64)
		}
		c.Min[name] = value
	})
	return nil
}

// SetMax sets an inclusive upper bound on a numeric field, clamped to the
// field's range.
func (h *CriteriaHolder[T]) SetMax(field string, value float64) error {
	name, value, err := h.threshold(field, value)
	if err != nil {
		return err
	}
	h.mutate(func(c *domain.Criteria) {
		if c.Max == nil {
			c.Max = make(map[string]float64)
		}
		c.Max[name] = value
	})
	return nil
}

// ClearMin removes the lower bound on field.
func (h *CriteriaHolder[T]) ClearMin(field string) error {
	name, _, err := h.threshold(field, 0)
	if err != nil {
		return err
	}
	h.mutate(func(c *domain.Criteria) { delete(c.Min, name) })
	return nil
}

// ClearMax removes the upper bound on field.
func (h *CriteriaHolder[T]) ClearMax(field string) error {
	name, _, err := h.threshold(field, 0)
	if err != nil {
		return err
	}
	h.mutate(func(c *domain.Criteria) { delete(c.Max, name) })
	return nil
}

// SetSort selects the sort field and direction. An empty field disables
// sorting; an empty direction means ascending.
func (h *CriteriaHolder[T]) SetSort(field string, dir domain.SortDirection) error {
	direction, err := domain.ParseSortDirection(string(dir))
	if err != nil {
		return err
	}
	name := ""
	if field != "" {
		f, ok := h.schema.Field(field)
		if !ok {
			return fmt.Errorf("sort %q: %w", field, domain.ErrUnknownField)
		}
		name = f.Name
	}
	h.mutate(func(c *domain.Criteria) {
		c.SortField = name
		c.SortDirection = direction
	})
	return nil
}

// Apply validates and replaces every dimension at once with a single
// notification.
func (h *CriteriaHolder[T]) Apply(criteria domain.Criteria) error {
	normalized, err := NormalizeCriteria(h.schema, criteria)
	if err != nil {
		return err
	}
	h.state.Set(normalized)
	return nil
}

// Reset returns every dimension to its sentinel.
func (h *CriteriaHolder[T]) Reset() {
	h.state.Set(domain.Criteria{SortDirection: domain.SortAsc})
}

func (h *CriteriaHolder[T]) mutate(fn func(*domain.Criteria)) {
	h.state.Update(func(c domain.Criteria) domain.Criteria {
		next := c.Clone()
		fn(&next)
		return next
	})
}

func (h *CriteriaHolder[T]) threshold(field string, value float64) (string, float64, error) {
	f, ok := h.schema.Field(field)
	if !ok || f.Kind != domain.FieldNumber {
		return "", 0, fmt.Errorf("threshold %q: %w", field, domain.ErrUnknownField)
	}
	if math.IsNaN(value) {
		return "", 0, fmt.Errorf("threshold %q: invalid number %v", field, value)
	}
	if f.Range != nil {
		value = f.Range.Clamp(value)
	}
	return f.Name, value, nil
}

// NormalizeCriteria validates field names and direction against schema,
// canonicalises field names and clamps thresholds.
func NormalizeCriteria[T any](schema domain.Schema[T], criteria domain.Criteria) (domain.Criteria, error) {
	out := domain.Criteria{Search: criteria.Search, Category: criteria.Category}
	direction, err := domain.ParseSortDirection(string(criteria.SortDirection))
	if err != nil {
		return domain.Criteria{}, err
	}
	out.SortDirection = direction
	if criteria.SortField != "" {
		f, ok := schema.Field(criteria.SortField)
		if !ok {
			return domain.Criteria{}, fmt.Errorf("sort %q: %w", criteria.SortField, domain.ErrUnknownField)
		}
		out.SortField = f.Name
	}
	if out.Min, err = normalizeBounds(schema, criteria.Min); err != nil {
		return domain.Criteria{}, err
	}
	if out.Max, err = normalizeBounds(schema, criteria.Max); err != nil {
		return domain.Criteria{}, err
	}
	return out, nil
}

func normalizeBounds[T any](schema domain.Schema[T], bounds map[string]float64) (map[string]float64, error) {
	if len(bounds) == 0 {
		return nil, nil
	}
	out := make(map[string]float64, len(bounds))
	for name, value := range bounds {
		f, ok := schema.Field(name)
		if !ok || f.Kind != domain.FieldNumber {
			return nil, fmt.Errorf("threshold %q: %w", name, domain.ErrUnknownField)
		}
		if math.IsNaN(value) {
			return nil, fmt.Errorf("threshold %q: invalid number %v", name, value)
		}
		if f.Range != nil {
			value = f.Range.Clamp(value)
		}
		out[f.Name] = value
	}
	return out, nil
}

// ParseCriteria builds criteria from query parameters:
//
//	search=<text> category=<tag> min.<field>=<n> max.<field>=<n> sort=<field> dir=asc|desc
//
// Unrelated parameters are ignored.
func ParseCriteria[T any](schema domain.Schema[T], values url.Values) (domain.Criteria, error) {
	criteria := domain.Criteria{
		Search:        values.Get(ParamSearch),
		Category:      values.Get(ParamCategory),
		SortField:     values.Get(ParamSort),
		SortDirection: domain.SortDirection(values.Get(ParamDirection)),
	}
	for key := range values {
		var target *map[string]float64
		var field string
		switch {
		case strings.HasPrefix(key, ParamMinPrefix):
			target, field = &criteria.Min, strings.TrimPrefix(key, ParamMinPrefix)
		case strings.HasPrefix(key, ParamMaxPrefix):
			target, field = &criteria.Max, strings.TrimPrefix(key, ParamMaxPrefix)
		default:
			continue
		}
		raw := strings.TrimSpace(values.Get(key))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) {
			return domain.Criteria{}, fmt.Errorf("%s: invalid number %q", key, raw)
		}
		if *target == nil {
			*target = make(map[string]float64)
		}
		(*target)[field] = v
	}
	return NormalizeCriteria(schema, criteria)
}
