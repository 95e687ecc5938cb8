package filters

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gantryio/gantry/pkg/errors"
)

// TimeField identifies an audit column a time window can apply to.
type TimeField string

const (
	// FieldCreatedAt filters on the creation timestamp
	FieldCreatedAt TimeField = "created_at"
	// FieldUpdatedAt filters on the last-modification timestamp
	FieldUpdatedAt TimeField = "updated_at"
)

// Filter narrows a repository query. The variant set is closed: BeforeAfter,
// IDFilter and LimitOffset are the only implementations, and repositories
// fail loudly on anything else instead of ignoring it.
//
// Filters compose conjunctively. Apart from pagination, which is always
// applied last, the order of a filter slice does not change the result.
type Filter interface {
	filter()
}

// BeforeAfter keeps entities whose timestamp column falls inside the
// half-open window [After, Before). A nil bound leaves that side open.
type BeforeAfter struct {
	Field  TimeField
	After  *time.Time
	Before *time.Time
}

func (BeforeAfter) filter() {}

// IDFilter keeps entities whose identifier is a member of IDs. An empty
// set matches everything.
type IDFilter struct {
	IDs []uuid.UUID
}

func (IDFilter) filter() {}

// LimitOffset selects one page of the stably ordered result set. It is
// applied after all other filters regardless of position and is ignored
// when counting. When a query carries several, the last one wins.
type LimitOffset struct {
	Limit  int
	Offset int
}

func (LimitOffset) filter() {}

// Validate checks fs against the variant contracts and returns a normalized
// copy. Page sizes above maxPageSize are clamped to it; maxPageSize <= 0
// disables the cap.
func Validate(maxPageSize int, fs ...Filter) ([]Filter, error) {
	out := make([]Filter, 0, len(fs))
	for _, f := range fs {
		switch f := f.(type) {
		case BeforeAfter:
			if f.Field != FieldCreatedAt && f.Field != FieldUpdatedAt {
				return nil, errors.BadRequest(fmt.Sprintf("cannot filter on field %q", string(f.Field)))
			}
			out = append(out, f)
		case IDFilter:
			out = append(out, f)
		case LimitOffset:
			if f.Limit <= 0 {
				return nil, errors.BadRequest("page size must be positive")
			}
			if f.Offset < 0 {
				return nil, errors.BadRequest("page offset must not be negative")
			}
			if maxPageSize > 0 && f.Limit > maxPageSize {
				f.Limit = maxPageSize
			}
			out = append(out, f)
		default:
			return nil, errors.Internal(fmt.Sprintf("unsupported filter type %T", f))
		}
	}
	return out, nil
}

// WithoutPagination returns fs with every LimitOffset removed.
func WithoutPagination(fs []Filter) []Filter {
	out := make([]Filter, 0, len(fs))
	for _, f := range fs {
		if _, ok := f.(LimitOffset); ok {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Pagination returns the last LimitOffset in fs, or nil when absent.
func Pagination(fs []Filter) *LimitOffset {
	var page *LimitOffset
	for _, f := range fs {
		if lo, ok := f.(LimitOffset); ok {
			page = &lo
		}
	}
	return page
}
