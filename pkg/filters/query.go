package filters

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gantryio/gantry/pkg/errors"
)

// Query parameter names for the standard collection filter set.
const (
	ParamIDs           = "ids"
	ParamCreatedAfter  = "created-after"
	ParamCreatedBefore = "created-before"
	ParamUpdatedAfter  = "updated-after"
	ParamUpdatedBefore = "updated-before"
	ParamPage          = "page"
	ParamPageSize      = "page-size"
)

// Defaults supplies the page bounds used when a request omits them.
type Defaults struct {
	PageSize    int
	MaxPageSize int
}

// FromQuery builds the standard filter set for collection endpoints from
// request query parameters.
//
// Timestamps are RFC 3339. The "ids" parameter may be repeated or
// comma-separated. Pagination is one-based: page N with size S becomes
// LimitOffset{S, S*(N-1)}. A pagination filter is always present in the
// result so unbounded listing never reaches the repository.
func FromQuery(values url.Values, def Defaults) ([]Filter, error) {
	var fs []Filter

	if raw, ok := values[ParamIDs]; ok {
		ids, err := parseIDs(raw)
		if err != nil {
			return nil, err
		}
		fs = append(fs, IDFilter{IDs: ids})
	}

	createdWindow, err := parseWindow(values, FieldCreatedAt, ParamCreatedAfter, ParamCreatedBefore)
	if err != nil {
		return nil, err
	}
	if createdWindow != nil {
		fs = append(fs, *createdWindow)
	}

	updatedWindow, err := parseWindow(values, FieldUpdatedAt, ParamUpdatedAfter, ParamUpdatedBefore)
	if err != nil {
		return nil, err
	}
	if updatedWindow != nil {
		fs = append(fs, *updatedWindow)
	}

	page, err := parsePositiveInt(values, ParamPage, 1)
	if err != nil {
		return nil, err
	}
	size, err := parsePositiveInt(values, ParamPageSize, def.PageSize)
	if err != nil {
		return nil, err
	}
	fs = append(fs, LimitOffset{Limit: size, Offset: size * (page - 1)})

	return Validate(def.MaxPageSize, fs...)
}

func parseIDs(raw []string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, chunk := range raw {
		for _, v := range strings.Split(chunk, ",") {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			id, err := uuid.Parse(v)
			if err != nil {
				return nil, errors.BadRequest(fmt.Sprintf("invalid value %q for parameter %q", v, ParamIDs))
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func parseWindow(values url.Values, field TimeField, afterParam, beforeParam string) (*BeforeAfter, error) {
	after, err := parseTime(values, afterParam)
	if err != nil {
		return nil, err
	}
	before, err := parseTime(values, beforeParam)
	if err != nil {
		return nil, err
	}
	if after == nil && before == nil {
		return nil, nil
	}
	return &BeforeAfter{Field: field, After: after, Before: before}, nil
}

func parseTime(values url.Values, param string) (*time.Time, error) {
	raw := values.Get(param)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, errors.BadRequest(fmt.Sprintf("invalid value %q for parameter %q", raw, param))
	}
	return &t, nil
}

func parsePositiveInt(values url.Values, param string, fallback int) (int, error) {
	raw := values.Get(param)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.BadRequest(fmt.Sprintf("invalid value %q for parameter %q", raw, param))
	}
	return n, nil
}
