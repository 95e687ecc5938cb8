package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogrepo "github.com/gantryio/gantry/internal/catalog/repository"
	pkgerrors "github.com/gantryio/gantry/pkg/errors"
	"github.com/gantryio/gantry/pkg/repository"
	"github.com/gantryio/gantry/test/testutil"
)

// TestAuthorRepositoryOnPostgres runs against a real PostgreSQL instance.
// The duplicate-key error text differs from sqlite, so the conflict
// mapping needs its own coverage here.
func TestAuthorRepositoryOnPostgres(t *testing.T) {
	db := testutil.NewPostgresDB(t)
	opts := repository.Options{DefaultSort: "created_at", MaxPageSize: 100}
	authors := catalogrepo.NewAuthorRepository(db, opts)
	ctx := context.Background()

	first := testutil.NewAuthor("First", "pg@example.com")
	require.NoError(t, authors.Create(ctx, first))

	found, err := authors.GetByEmail(ctx, "pg@example.com")
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)

	duplicate := testutil.NewAuthor("Second", "pg@example.com")
	err = authors.Create(ctx, duplicate)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))
}

func TestListByAuthorOnPostgres(t *testing.T) {
	db := testutil.NewPostgresDB(t)
	opts := repository.Options{DefaultSort: "created_at", MaxPageSize: 100}
	authors := catalogrepo.NewAuthorRepository(db, opts)
	books := catalogrepo.NewBookRepository(db, opts)
	ctx := context.Background()

	author := testutil.NewAuthor("Paged", "paged@example.com")
	require.NoError(t, authors.Create(ctx, author))
	for _, isbn := range []string{"pg-isbn-1", "pg-isbn-2", "pg-isbn-3"} {
		require.NoError(t, books.Create(ctx, testutil.NewBook(author.ID, "Book "+isbn, isbn)))
	}

	page, total, err := books.ListByAuthor(ctx, author.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page, 3)
}
