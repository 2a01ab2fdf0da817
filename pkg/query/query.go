// Package query describes the queries a model type issues against its storage collection.
//
// It is a description, not a translator: storage implementations either evaluate a
// Query in memory with Apply, or hand it to their own query builder.
package query

import (
	"cmp"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/surrealdb/surrealodm/pkg/constants"
)

type Op string

const (
	Eq  Op = "="
	Ne  Op = "!="
	Gt  Op = ">"
	Gte Op = ">="
	Lt  Op = "<"
	Lte Op = "<="
	In  Op = "IN"
)

type Condition struct {
	Field string
	Op    Op
	Value any
}

// Filter is a conjunction of conditions.
type Filter []Condition

// ByID is the identity equality filter used by every single-document operation.
func ByID(id any) Filter {
	return Filter{{Field: constants.IdentityKey, Op: Eq, Value: id}}
}

// Identity returns the identity value when the filter is exactly an identity equality.
func (f Filter) Identity() (any, bool) {
	if len(f) != 1 || f[0].Field != constants.IdentityKey || f[0].Op != Eq {
		return nil, false
	}
	return f[0].Value, true
}

// Match reports whether doc satisfies every condition.
func (f Filter) Match(doc map[string]any) bool {
	for _, c := range f {
		if !c.Match(doc) {
			return false
		}
	}
	return true
}

func (c Condition) Match(doc map[string]any) bool {
	v := doc[constants.ResolveKey(c.Field)]

	switch c.Op {
	case Eq:
		return Equal(v, c.Value)
	case Ne:
		return !Equal(v, c.Value)
	case In:
		rv := reflect.ValueOf(c.Value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return Equal(v, c.Value)
		}
		for i := 0; i < rv.Len(); i++ {
			if Equal(v, rv.Index(i).Interface()) {
				return true
			}
		}
		return false
	}

	cmp, ok := Compare(v, c.Value)
	if !ok {
		return false
	}

	switch c.Op {
	case Gt:
		return cmp > 0
	case Gte:
		return cmp >= 0
	case Lt:
		return cmp < 0
	case Lte:
		return cmp <= 0
	}
	return false
}

type Sort struct {
	Field string
	Desc  bool
}

type Query struct {
	Collection string
	Filter     Filter
	Sorts      []Sort
	Limit      int
	Offset     int
}

func New(collection string) *Query {
	return &Query{Collection: collection}
}

func (q *Query) Where(field string, op Op, value any) *Query {
	q.Filter = append(q.Filter, Condition{Field: constants.ResolveKey(field), Op: op, Value: value})
	return q
}

func (q *Query) WhereEq(field string, value any) *Query {
	return q.Where(field, Eq, value)
}

func (q *Query) WhereIn(field string, values ...any) *Query {
	return q.Where(field, In, values)
}

func (q *Query) OrderBy(field string) *Query {
	q.Sorts = append(q.Sorts, Sort{Field: constants.ResolveKey(field)})
	return q
}

func (q *Query) OrderByDesc(field string) *Query {
	q.Sorts = append(q.Sorts, Sort{Field: constants.ResolveKey(field), Desc: true})
	return q
}

func (q *Query) Take(n int) *Query {
	q.Limit = n
	return q
}

func (q *Query) Skip(n int) *Query {
	q.Offset = n
	return q
}

// Clone returns a copy that can be modified independently.
func (q *Query) Clone() *Query {
	c := *q
	c.Filter = slices.Clone(q.Filter)
	c.Sorts = slices.Clone(q.Sorts)
	return &c
}

// Apply filters, sorts and paginates docs in memory.
func (q *Query) Apply(docs []map[string]any) []map[string]any {
	out := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		if q.Filter.Match(d) {
			out = append(out, d)
		}
	}

	if len(q.Sorts) > 0 {
		slices.SortStableFunc(out, func(a, b map[string]any) int {
			for _, s := range q.Sorts {
				cmp, _ := Compare(a[s.Field], b[s.Field])
				if s.Desc {
					cmp = -cmp
				}
				if cmp != 0 {
					return cmp
				}
			}
			return 0
		})
	}

	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return out[:0]
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(out) {
		out = out[:q.Limit]
	}
	return out
}

// Equal compares two stored values, treating every numeric kind as the same number.
// Integers are compared exactly.
func Equal(a, b any) bool {
	if c, ok := compareNumbers(a, b); ok {
		return c == 0
	}
	return reflect.DeepEqual(a, b)
}

// Compare orders two values of the same family (numbers, strings, times, bools).
// nil sorts before everything. ok is false for values that cannot be ordered.
func Compare(a, b any) (int, bool) {
	switch {
	case a == nil && b == nil:
		return 0, true
	case a == nil:
		return -1, true
	case b == nil:
		return 1, true
	}

	if _, ok := number(a); ok {
		return compareNumbers(a, b)
	}

	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv), true
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv), true
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0, true
			case !av:
				return -1, true
			}
			return 1, true
		}
	}
	return 0, false
}

// compareNumbers orders two numeric values. Two integers are compared exactly,
// anything involving a float is compared as float64.
func compareNumbers(a, b any) (int, bool) {
	ia, aInt := integer(a)
	ib, bInt := integer(b)
	if aInt && bInt {
		return ia.compare(ib), true
	}

	fa, ok := number(a)
	if !ok {
		return 0, false
	}
	fb, ok := number(b)
	if !ok {
		return 0, false
	}
	switch {
	case fa < fb:
		return -1, true
	case fa > fb:
		return 1, true
	}
	return 0, true
}

// wideInt holds any Go integer. neg is set for negative values, which are kept in
// signed; non-negative values are kept in unsigned.
type wideInt struct {
	neg      bool
	signed   int64
	unsigned uint64
}

func (x wideInt) compare(y wideInt) int {
	switch {
	case x.neg && !y.neg:
		return -1
	case !x.neg && y.neg:
		return 1
	case x.neg:
		return cmp.Compare(x.signed, y.signed)
	}
	return cmp.Compare(x.unsigned, y.unsigned)
}

func integer(v any) (wideInt, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := rv.Int()
		if n < 0 {
			return wideInt{neg: true, signed: n}, true
		}
		return wideInt{unsigned: uint64(n)}, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return wideInt{unsigned: rv.Uint()}, true
	}
	return wideInt{}, false
}

func number(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
