package query_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/surrealdb/surrealodm/pkg/query"
)

func docs() []map[string]any {
	return []map[string]any{
		{"_id": "1", "name": "ada", "age": int64(36), "active": true},
		{"_id": "2", "name": "grace", "age": 85, "active": false},
		{"_id": "3", "name": "linus", "age": 54.0, "active": true},
	}
}

func ids(in []map[string]any) []any {
	out := make([]any, 0, len(in))
	for _, d := range in {
		out = append(out, d["_id"])
	}
	return out
}

func TestQuery_apply(t *testing.T) {
	t.Parallel()

	testcases := []struct {
		name string
		q    *query.Query
		want []any
	}{
		{name: "eq", q: query.New("people").WhereEq("name", "ada"), want: []any{"1"}},
		{name: "eq across numeric kinds", q: query.New("people").WhereEq("age", 54), want: []any{"3"}},
		{name: "identity alias", q: query.New("people").WhereEq("id", "2"), want: []any{"2"}},
		{name: "ne", q: query.New("people").Where("active", query.Ne, true), want: []any{"2"}},
		{name: "gt", q: query.New("people").Where("age", query.Gt, 40), want: []any{"2", "3"}},
		{name: "lte", q: query.New("people").Where("age", query.Lte, 54), want: []any{"1", "3"}},
		{name: "in", q: query.New("people").WhereIn("_id", "1", "3"), want: []any{"1", "3"}},
		{name: "conjunction", q: query.New("people").WhereEq("active", true).Where("age", query.Gt, 40), want: []any{"3"}},
		{name: "order desc", q: query.New("people").OrderByDesc("age"), want: []any{"2", "3", "1"}},
		{name: "order and paginate", q: query.New("people").OrderBy("name").Skip(1).Take(1), want: []any{"2"}},
		{name: "offset past end", q: query.New("people").Skip(10), want: []any{}},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ids(tc.q.Apply(docs())))
		})
	}
}

func TestFilter_identity(t *testing.T) {
	t.Parallel()

	id, ok := query.ByID("people:1").Identity()
	assert.True(t, ok)
	assert.Equal(t, "people:1", id)

	_, ok = query.Filter{{Field: "name", Op: query.Eq, Value: "x"}}.Identity()
	assert.False(t, ok)
}

func TestQuery_clone(t *testing.T) {
	t.Parallel()

	q := query.New("people").WhereEq("a", 1)
	c := q.Clone().WhereEq("b", 2)

	assert.Len(t, q.Filter, 1)
	assert.Len(t, c.Filter, 2)
}

func TestCompare(t *testing.T) {
	t.Parallel()

	cmp, ok := query.Compare(nil, 1)
	assert.True(t, ok)
	assert.Equal(t, -1, cmp)

	_, ok = query.Compare("a", 1)
	assert.False(t, ok)

	cmp, ok = query.Compare(false, true)
	assert.True(t, ok)
	assert.Equal(t, -1, cmp)
}

func TestEqual_largeIntegers(t *testing.T) {
	t.Parallel()

	const snowflake = int64(9007199254740993) // 2^53 + 1

	assert.True(t, query.Equal(snowflake, snowflake))
	assert.True(t, query.Equal(snowflake, uint64(snowflake)))
	assert.False(t, query.Equal(snowflake, snowflake-1))
	assert.False(t, query.Equal(uint64(1<<63), int64(-1<<63)))
	assert.True(t, query.Equal(int8(-3), int64(-3)))
	assert.True(t, query.Equal(int64(42), 42.0))

	assert.True(t, query.ByID(snowflake).Match(map[string]any{"_id": snowflake}))
	assert.False(t, query.ByID(snowflake-1).Match(map[string]any{"_id": snowflake}))
}

func TestCompare_integers(t *testing.T) {
	t.Parallel()

	testcases := []struct {
		a, b any
		want int
	}{
		{a: int64(9007199254740992), b: int64(9007199254740993), want: -1},
		{a: uint64(18446744073709551615), b: int64(9223372036854775807), want: 1},
		{a: int64(-1), b: uint64(0), want: -1},
		{a: int32(-5), b: int64(-7), want: 1},
		{a: uint8(7), b: 7, want: 0},
		{a: 2, b: 1.5, want: 1},
	}
	for _, tc := range testcases {
		got, ok := query.Compare(tc.a, tc.b)
		assert.True(t, ok)
		assert.Equal(t, tc.want, got, "%v vs %v", tc.a, tc.b)
	}
}
