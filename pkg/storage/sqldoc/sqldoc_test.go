package sqldoc_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealodm/pkg/constants"
	"github.com/surrealdb/surrealodm/pkg/query"
	"github.com/surrealdb/surrealodm/pkg/storage/sqldoc"
)

func newStore(t *testing.T) *sqldoc.Store {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// every connection to :memory: is a fresh database
	db.SetMaxOpenConns(1)

	s := sqldoc.New(db, sqldoc.SQLite)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCollection_roundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	posts := newStore(t).Collection("blog_posts")

	id, err := posts.InsertAndReturnID(ctx, map[string]any{"title": "hello", "views": 3})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	_, err = posts.InsertAndReturnID(ctx, map[string]any{"id": "fixed", "title": "second", "views": 10})
	require.NoError(t, err)

	found, err := posts.FindWhere(ctx, query.New("blog_posts").WhereEq("id", id))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "hello", found[0]["title"])
	assert.Equal(t, float64(3), found[0]["views"])

	found, err = posts.FindWhere(ctx, query.New("blog_posts").Where("views", query.Gt, 5))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "fixed", found[0][constants.IdentityKey])
}

func TestCollection_updateWhere(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	posts := newStore(t).Collection("posts")
	_, err := posts.InsertAndReturnID(ctx, map[string]any{"_id": "p1", "title": "a", "draft": true})
	require.NoError(t, err)

	require.NoError(t, posts.UpdateWhere(ctx, query.ByID("p1"), map[string]any{"title": "b", "draft": nil}))

	found, err := posts.FindWhere(ctx, query.New("posts"))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, map[string]any{"_id": "p1", "title": "b"}, found[0])
}

func TestCollection_deleteWhere(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	posts := newStore(t).Collection("posts")
	for _, id := range []string{"a", "b", "c"} {
		_, err := posts.InsertAndReturnID(ctx, map[string]any{"_id": id, "keep": id == "b"})
		require.NoError(t, err)
	}

	require.NoError(t, posts.DeleteWhere(ctx, query.Filter{{Field: "keep", Op: query.Eq, Value: false}}))

	found, err := posts.FindWhere(ctx, query.New("posts"))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "b", found[0]["_id"])
}

func TestDialectByName(t *testing.T) {
	t.Parallel()

	d, err := sqldoc.DialectByName("postgresql")
	require.NoError(t, err)
	assert.Equal(t, "pgx", d.Driver)
	assert.Equal(t, "$2", d.Placeholder(2))

	d, err = sqldoc.DialectByName("sqlite")
	require.NoError(t, err)
	assert.Equal(t, "?", d.Placeholder(2))

	_, err = sqldoc.DialectByName("oracle")
	require.ErrorIs(t, err, constants.ErrUnknownDriver)
}
