package transaction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	pkgerrors "github.com/gantryio/gantry/pkg/errors"
)

type widget struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&widget{}))
	return db
}

func TestCommitPersistsStagedChanges(t *testing.T) {
	db := newTestDB(t)

	tc, err := Begin(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, StateOpen, tc.State())

	session, err := tc.Session()
	require.NoError(t, err)
	require.NoError(t, session.Create(&widget{Name: "anvil"}).Error)

	require.NoError(t, tc.Commit())
	assert.Equal(t, StateClosed, tc.State())

	var count int64
	require.NoError(t, db.Model(&widget{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestRollbackDiscardsStagedChanges(t *testing.T) {
	db := newTestDB(t)

	tc, err := Begin(context.Background(), db)
	require.NoError(t, err)

	session, err := tc.Session()
	require.NoError(t, err)
	require.NoError(t, session.Create(&widget{Name: "anvil"}).Error)

	require.NoError(t, tc.Rollback())
	assert.Equal(t, StateClosed, tc.State())

	var count int64
	require.NoError(t, db.Model(&widget{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestSecondResolutionFails(t *testing.T) {
	cases := []struct {
		name   string
		first  func(*Context) error
		second func(*Context) error
	}{
		{"commit then commit", (*Context).Commit, (*Context).Commit},
		{"commit then rollback", (*Context).Commit, (*Context).Rollback},
		{"rollback then rollback", (*Context).Rollback, (*Context).Rollback},
		{"rollback then commit", (*Context).Rollback, (*Context).Commit},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			tc, err := Begin(context.Background(), newTestDB(t))
			require.NoError(t, err)

			require.NoError(t, tt.first(tc))

			err = tt.second(tc)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsInvalidState(err))
			assert.Equal(t, StateClosed, tc.State())
		})
	}
}

func TestSessionAfterResolutionFails(t *testing.T) {
	tc, err := Begin(context.Background(), newTestDB(t))
	require.NoError(t, err)
	require.NoError(t, tc.Commit())

	_, err = tc.Session()
	require.Error(t, err)
	assert.True(t, pkgerrors.IsInvalidState(err))
}

func TestRollbackAfterCancellation(t *testing.T) {
	db := newTestDB(t)

	ctx, cancel := context.WithCancel(context.Background())
	tc, err := Begin(ctx, db)
	require.NoError(t, err)

	cancel()

	// The driver may have torn the transaction down already; resolution
	// must still succeed exactly once.
	require.NoError(t, tc.Rollback())
	assert.Equal(t, StateClosed, tc.State())
}

func TestSessionFromContext(t *testing.T) {
	db := newTestDB(t)

	t.Run("falls back to the pool handle", func(t *testing.T) {
		session, err := SessionFromContext(context.Background(), db)
		require.NoError(t, err)
		require.NotNil(t, session)
	})

	t.Run("resolves the carried transaction", func(t *testing.T) {
		tc, err := Begin(context.Background(), db)
		require.NoError(t, err)
		ctx := NewContext(context.Background(), tc)

		got, ok := FromContext(ctx)
		require.True(t, ok)
		assert.Same(t, tc, got)

		session, err := SessionFromContext(ctx, db)
		require.NoError(t, err)
		require.NoError(t, session.Create(&widget{Name: "crate"}).Error)
		require.NoError(t, tc.Rollback())

		var count int64
		require.NoError(t, db.Model(&widget{}).Count(&count).Error)
		assert.EqualValues(t, 0, count)
	})

	t.Run("resolved transaction is unusable", func(t *testing.T) {
		tc, err := Begin(context.Background(), db)
		require.NoError(t, err)
		require.NoError(t, tc.Commit())

		ctx := NewContext(context.Background(), tc)
		_, err = SessionFromContext(ctx, db)
		require.Error(t, err)
		assert.True(t, pkgerrors.IsInvalidState(err))
	})
}
