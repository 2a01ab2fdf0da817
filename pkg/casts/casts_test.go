package casts_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealdb.go/pkg/models"
	"github.com/surrealdb/surrealodm/pkg/attributes"
	"github.com/surrealdb/surrealodm/pkg/casts"
	"github.com/surrealdb/surrealodm/pkg/constants"
)

func TestBuiltinCasts(t *testing.T) {
	t.Parallel()

	testcases := []struct {
		name  string
		cast  casts.Cast
		input any
		want  any
	}{
		{name: "int from string", cast: casts.Int{}, input: "42", want: int64(42)},
		{name: "int from float", cast: casts.Int{}, input: 4.9, want: int64(4)},
		{name: "int keeps garbage", cast: casts.Int{}, input: "abc", want: "abc"},
		{name: "float from int", cast: casts.Float{}, input: 3, want: float64(3)},
		{name: "bool from string", cast: casts.Bool{}, input: "true", want: true},
		{name: "bool from int", cast: casts.Bool{}, input: 0, want: false},
		{name: "string from int", cast: casts.String{}, input: 7, want: "7"},
		{name: "json from string", cast: casts.JSON{}, input: `{"a":"b"}`, want: map[string]any{"a": "b"}},
		{name: "json keeps structured", cast: casts.JSON{}, input: []any{"x"}, want: []any{"x"}},
		{name: "record qualifies bare id", cast: casts.Record{Table: "people"}, input: "tobie", want: models.NewRecordID("people", "tobie")},
		{name: "record parses table prefix", cast: casts.Record{}, input: "people:jaime", want: models.NewRecordID("people", "jaime")},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.cast.Write(tc.input))
			assert.Equal(t, tc.want, tc.cast.Read(tc.input))
		})
	}
}

func TestTimestamp_persistFormats(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)

	assert.Equal(t, ts.Unix(), casts.Timestamp{Format: casts.Unix}.Persist(ts))
	assert.Equal(t, ts.UnixMilli(), casts.Timestamp{Format: casts.UnixMilli}.Persist(ts))
	assert.Equal(t, "2024-05-01T10:30:00Z", casts.Timestamp{Format: casts.RFC3339}.Persist(ts))
	assert.Equal(t, models.CustomDateTime{Time: ts}, casts.Timestamp{Format: casts.SurrealDateTime}.Persist(ts))

	assert.Equal(t, ts, casts.Timestamp{}.Write(ts.Unix()))
	assert.Equal(t, ts, casts.Timestamp{}.Write("2024-05-01T10:30:00Z"))
	assert.Equal(t, ts, casts.Timestamp{}.Read(models.CustomDateTime{Time: ts}))
	assert.Equal(t, ts, casts.Timestamp{Format: casts.UnixMilli}.Read(ts.UnixMilli()))
}

func TestJSON_persist(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `{"a":1}`, casts.JSON{}.Persist(map[string]any{"a": 1}))
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := casts.NewRegistry().
		Register("age", casts.Int{}).
		Register("born", casts.Timestamp{Format: casts.Unix})

	assert.True(t, r.HasCast("age"))
	assert.False(t, r.HasCast("name"))
	assert.Equal(t, int64(3), r.WriteCast("age", "3"))
	assert.Equal(t, "x", r.WriteCast("name", "x"))
	assert.Nil(t, r.ReadCast("age", nil))
	assert.Equal(t, int64(3), r.PersistCast("age", int64(3)))
	assert.Equal(t, int64(0), r.PersistCast("born", time.Unix(0, 0)))
}

func TestRegistry_identityAlias(t *testing.T) {
	t.Parallel()

	r := casts.NewRegistry().Register(constants.IdentityAlias, casts.Record{Table: "people"})

	assert.True(t, r.HasCast(constants.IdentityKey))
}

func TestRegistry_mutatorsDriveStore(t *testing.T) {
	t.Parallel()

	r := casts.NewRegistry().Mutate("email",
		func(v any) any { return "<" + v.(string) + ">" },
		func(w attributes.Writer, v any) { w.Put("email", v.(string)+"@example.com") },
	)
	s := attributes.New(attributes.WithCasts(r), attributes.WithMutators(r))

	s.Set("email", "ada")

	raw, _ := s.Raw("email")
	assert.Equal(t, "ada@example.com", raw)
	assert.Equal(t, "<ada@example.com>", s.Get("email"))
	assert.True(t, s.HasChanged("email"))
}

func TestByName(t *testing.T) {
	t.Parallel()

	c, err := casts.ByName("record:people")
	require.NoError(t, err)
	assert.Equal(t, casts.Record{Table: "people"}, c)

	c, err = casts.ByName("Record:BlogPost")
	require.NoError(t, err)
	assert.Equal(t, casts.Record{Table: "BlogPost"}, c)

	c, err = casts.ByName("DateTime:UNIX_MS")
	require.NoError(t, err)
	assert.Equal(t, casts.Timestamp{Format: casts.UnixMilli}, c)

	c, err = casts.ByName("datetime:surreal")
	require.NoError(t, err)
	assert.Equal(t, casts.Timestamp{Format: casts.SurrealDateTime}, c)

	_, err = casts.ByName("nope")
	require.ErrorIs(t, err, constants.ErrUnknownCast)
}
