package surrealodm_test

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealodm"
	"github.com/surrealdb/surrealodm/pkg/config"
	"github.com/surrealdb/surrealodm/pkg/constants"
	"github.com/surrealdb/surrealodm/pkg/model"
	"github.com/surrealdb/surrealodm/pkg/query"
	"github.com/surrealdb/surrealodm/pkg/storage/memory"
	"github.com/surrealdb/surrealodm/pkg/validation"
)

const userConfig = `
log:
  level: debug
models:
  User:
    timestamps: true
    hidden: [password]
    casts:
      age: int
schemas:
  UserSchema:
    fields:
      email:
        type: string
        required: true
`

func open(t *testing.T, yaml string, opts ...surrealodm.Option) (*surrealodm.Client, *prometheus.Registry) {
	t.Helper()

	conf, err := config.Parse([]byte(yaml))
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	opts = append([]surrealodm.Option{surrealodm.WithRegisterer(reg)}, opts...)
	client, err := surrealodm.Open(context.Background(), conf, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, client.Close()) })
	return client, reg
}

func TestOpen_memory(t *testing.T) {
	var logs bytes.Buffer
	client, _ := open(t, userConfig, surrealodm.WithLogWriter(&logs))
	ctx := context.Background()

	users, err := client.Model("User")
	require.NoError(t, err)
	assert.Equal(t, "users", users.Collection())
	assert.True(t, users.Timestamps())
	assert.Equal(t, []string{"password"}, users.Hidden())

	_, saved, err := users.Create(ctx, map[string]any{"name": "a"})
	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	assert.False(t, saved)

	d, saved, err := users.Create(ctx, map[string]any{"email": "a@b.c", "age": "42", "password": "x"})
	require.NoError(t, err)
	require.True(t, saved)
	assert.Equal(t, int64(42), d.Get("age"))
	assert.NotNil(t, d.Get(constants.CreatedAt))

	found, err := users.Query().Find(ctx, d.ID())
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", found.Get("email"))
	assert.NotContains(t, found.ToMap(true), "password")

	assert.Contains(t, logs.String(), "surrealodm ready")
	assert.Contains(t, logs.String(), "document inserted")
}

func TestOpen_metrics(t *testing.T) {
	client, reg := open(t, userConfig)
	ctx := context.Background()

	users, err := client.Model("User")
	require.NoError(t, err)

	d, _, err := users.Create(ctx, map[string]any{"email": "a@b.c"})
	require.NoError(t, err)
	_, err = d.Save(ctx)
	require.NoError(t, err)
	_, err = d.Delete(ctx)
	require.NoError(t, err)

	ops := client.Metrics().Operations()
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues("User", "save", model.OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues("User", "save", model.OutcomeNoop)))
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues("User", "delete", model.OutcomeSuccess)))

	count, err := testutil.GatherAndCount(reg, "surrealodm_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestOpen_sqlite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "odm.db")
	client, _ := open(t, "storage: {driver: sqlite, url: '"+path+"'}")
	ctx := context.Background()

	notes, err := client.Define("Note", model.WithCastNamed("pinned", "bool"))
	require.NoError(t, err)

	d, saved, err := notes.Create(ctx, map[string]any{"title": "first", "pinned": 1})
	require.NoError(t, err)
	require.True(t, saved)

	require.NoError(t, d.Set("title", "second"))
	_, err = d.Save(ctx)
	require.NoError(t, err)

	found, err := notes.Query().WhereEq("title", "second").First(ctx)
	require.NoError(t, err)
	assert.Equal(t, d.ID(), found.ID())
	assert.Equal(t, true, found.Get("pinned"))
}

func TestOpen_withConnection(t *testing.T) {
	store := memory.New()
	client, _ := open(t, "models: {Post: {collection: articles}}", surrealodm.WithConnection(store))
	ctx := context.Background()

	posts, err := client.Model("Post")
	require.NoError(t, err)
	_, _, err = posts.Create(ctx, map[string]any{"title": "t"})
	require.NoError(t, err)

	docs, err := store.Collection("articles").FindWhere(ctx, query.New("articles"))
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestOpen_failures(t *testing.T) {
	ctx := context.Background()

	conf := config.Default()
	conf.Storage.Driver = "mongo"
	_, err := surrealodm.Open(ctx, conf, surrealodm.WithRegisterer(prometheus.NewRegistry()))
	require.ErrorIs(t, err, constants.ErrUnknownDriver)

	reg := prometheus.NewRegistry()
	first, err := surrealodm.Open(ctx, config.Default(), surrealodm.WithRegisterer(reg))
	require.NoError(t, err)
	defer func() { require.NoError(t, first.Close()) }()

	_, err = surrealodm.Open(ctx, config.Default(), surrealodm.WithRegisterer(reg))
	require.Error(t, err)
}

func TestTypeOptions(t *testing.T) {
	assert.Nil(t, surrealodm.TypeOptions(nil))
	assert.Len(t, surrealodm.TypeOptions(&config.Model{
		Collection: "c",
		Schema:     "S",
		Timestamps: true,
		Hidden:     []string{"h"},
		Casts:      map[string]string{"a": "int", "b": "json"},
	}), 6)
}
