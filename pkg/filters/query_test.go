package filters

import (
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gantryio/gantry/pkg/errors"
)

func defaults() Defaults {
	return Defaults{PageSize: 20, MaxPageSize: 100}
}

func TestFromQuery(t *testing.T) {
	t.Run("empty query yields default pagination only", func(t *testing.T) {
		fs, err := FromQuery(url.Values{}, defaults())
		require.NoError(t, err)
		require.Len(t, fs, 1)
		assert.Equal(t, LimitOffset{Limit: 20, Offset: 0}, fs[0])
	})

	t.Run("page and page-size become limit and offset", func(t *testing.T) {
		values := url.Values{}
		values.Set(ParamPage, "3")
		values.Set(ParamPageSize, "15")

		fs, err := FromQuery(values, defaults())
		require.NoError(t, err)
		page := Pagination(fs)
		require.NotNil(t, page)
		assert.Equal(t, 15, page.Limit)
		assert.Equal(t, 30, page.Offset)
	})

	t.Run("page size above cap is clamped", func(t *testing.T) {
		values := url.Values{}
		values.Set(ParamPageSize, "9999")

		fs, err := FromQuery(values, defaults())
		require.NoError(t, err)
		assert.Equal(t, 100, Pagination(fs).Limit)
	})

	t.Run("repeated and comma-separated ids are merged", func(t *testing.T) {
		a, b, c := uuid.New(), uuid.New(), uuid.New()
		values := url.Values{}
		values.Add(ParamIDs, a.String()+","+b.String())
		values.Add(ParamIDs, c.String())

		fs, err := FromQuery(values, defaults())
		require.NoError(t, err)

		var idf *IDFilter
		for _, f := range fs {
			if v, ok := f.(IDFilter); ok {
				idf = &v
			}
		}
		require.NotNil(t, idf)
		assert.Equal(t, []uuid.UUID{a, b, c}, idf.IDs)
	})

	t.Run("timestamp windows map to their columns", func(t *testing.T) {
		after := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
		before := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
		values := url.Values{}
		values.Set(ParamCreatedAfter, after.Format(time.RFC3339))
		values.Set(ParamUpdatedBefore, before.Format(time.RFC3339))

		fs, err := FromQuery(values, defaults())
		require.NoError(t, err)

		var created, updated *BeforeAfter
		for _, f := range fs {
			if v, ok := f.(BeforeAfter); ok {
				switch v.Field {
				case FieldCreatedAt:
					created = &v
				case FieldUpdatedAt:
					updated = &v
				}
			}
		}
		require.NotNil(t, created)
		require.NotNil(t, updated)
		assert.True(t, created.After.Equal(after))
		assert.Nil(t, created.Before)
		assert.True(t, updated.Before.Equal(before))
		assert.Nil(t, updated.After)
	})

	t.Run("invalid uuid is a bad request", func(t *testing.T) {
		values := url.Values{}
		values.Set(ParamIDs, "not-a-uuid")

		_, err := FromQuery(values, defaults())
		require.Error(t, err)
		assert.True(t, errors.IsBadRequest(err))
	})

	t.Run("invalid timestamp is a bad request", func(t *testing.T) {
		values := url.Values{}
		values.Set(ParamUpdatedAfter, "yesterday")

		_, err := FromQuery(values, defaults())
		require.Error(t, err)
		assert.True(t, errors.IsBadRequest(err))
	})

	t.Run("zero page is a bad request", func(t *testing.T) {
		values := url.Values{}
		values.Set(ParamPage, "0")

		_, err := FromQuery(values, defaults())
		require.Error(t, err)
		assert.True(t, errors.IsBadRequest(err))
	})
}
