package core

import "slices"

// DefaultPageSize applies when callers pass a non-positive page size.
const DefaultPageSize = 8

// Page is one window over a derived view. When the requested page lies
// outside [1, TotalPages] the window is clamped to the nearest valid page
// and Clamped reports it.
type Page[T any] struct {
	Items      []T  `json:"items"`
	Number     int  `json:"page"`
	Size       int  `json:"page_size"`
	TotalItems int  `json:"total_items"`
	TotalPages int  `json:"total_pages"`
	Requested  int  `json:"requested_page"`
	Clamped    bool `json:"clamped,omitempty"`
}

// Paginate slices items into the requested page. An empty input yields a
// single empty page.
func Paginate[T any](items []T, page, size int) Page[T] {
	if size <= 0 {
		size = DefaultPageSize
	}
	total := max(1, (len(items)+size-1)/size)
	number := min(max(page, 1), total)
	start := min((number-1)*size, len(items))
	end := min(start+size, len(items))
	window := slices.Clone(items[start:end:end])
	if window == nil {
		window = []T{}
	}
	return Page[T]{
		Items:      window,
		Number:     number,
		Size:       size,
		TotalItems: len(items),
		TotalPages: total,
		Requested:  page,
		Clamped:    number != page,
	}
}

// Map converts the page items while keeping the window metadata.
func Map[T, U any](p Page[T], fn func(T) U) Page[U] {
	items := make([]U, len(p.Items))
	for i, item := range p.Items {
		items[i] = fn(item)
	}
	return Page[U]{
		Items:      items,
		Number:     p.Number,
		Size:       p.Size,
		TotalItems: p.TotalItems,
		TotalPages: p.TotalPages,
		Requested:  p.Requested,
		Clamped:    p.Clamped,
	}
}
