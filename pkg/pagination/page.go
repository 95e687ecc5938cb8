package pagination

import (
	"github.com/gantryio/gantry/pkg/filters"
)

// Page is one window of a collection together with the metadata a
// client needs to fetch the rest.
type Page[T any] struct {
	Items  []T   `json:"items"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// NewPage builds the response envelope for one page of items. The
// window is read from the effective pagination filter; total counts the
// whole collection, not the page.
func NewPage[T any](items []T, total int64, window *filters.LimitOffset) Page[T] {
	if items == nil {
		items = []T{}
	}

	page := Page[T]{Items: items, Total: total}
	if window != nil {
		page.Limit = window.Limit
		page.Offset = window.Offset
	}
	return page
}

// HasMore reports whether rows remain beyond this window.
func (p Page[T]) HasMore() bool {
	return int64(p.Offset+len(p.Items)) < p.Total
}
