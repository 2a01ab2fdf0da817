package model

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealodm/pkg/constants"
	"github.com/surrealdb/surrealodm/pkg/query"
)

// Builder refines a scoped query of one model type and runs it.
type Builder struct {
	typ *Type
	q   *query.Query
}

func (b *Builder) Where(field string, op query.Op, value any) *Builder {
	b.q.Where(field, op, value)
	return b
}

func (b *Builder) WhereEq(field string, value any) *Builder {
	b.q.WhereEq(field, value)
	return b
}

func (b *Builder) WhereIn(field string, values ...any) *Builder {
	b.q.WhereIn(field, values...)
	return b
}

func (b *Builder) OrderBy(field string) *Builder {
	b.q.OrderBy(field)
	return b
}

func (b *Builder) OrderByDesc(field string) *Builder {
	b.q.OrderByDesc(field)
	return b
}

func (b *Builder) Limit(n int) *Builder {
	b.q.Take(n)
	return b
}

func (b *Builder) Offset(n int) *Builder {
	b.q.Skip(n)
	return b
}

// Query returns a copy of the query built so far.
func (b *Builder) Query() *query.Query {
	return b.q.Clone()
}

// Get runs the query and hydrates every record into a Persisted document.
func (b *Builder) Get(ctx context.Context) ([]*Document, error) {
	coll, err := b.typ.store()
	if err != nil {
		return nil, err
	}

	records, err := coll.FindWhere(ctx, b.q.Clone())
	if err != nil {
		b.typ.reg.log.Error("query failed", "model", b.typ.name, "collection", b.typ.collection, "error", err)
		return nil, err
	}

	docs := make([]*Document, 0, len(records))
	for _, r := range records {
		d, err := b.typ.NewInstance(ctx, r, true)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, nil
}

// First returns the first matching document, or an error wrapping constants.ErrNotFound.
func (b *Builder) First(ctx context.Context) (*Document, error) {
	first := &Builder{typ: b.typ, q: b.q.Clone().Take(1)}
	docs, err := first.Get(ctx)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%s: %w", b.typ.name, constants.ErrNotFound)
	}
	return docs[0], nil
}

// Find returns the document with identity id among the documents matching the query.
func (b *Builder) Find(ctx context.Context, id any) (*Document, error) {
	d, err := (&Builder{typ: b.typ, q: b.q.Clone().WhereEq(constants.IdentityKey, id)}).First(ctx)
	if err != nil {
		return nil, fmt.Errorf("find %v: %w", id, err)
	}
	return d, nil
}

func (b *Builder) Count(ctx context.Context) (int, error) {
	coll, err := b.typ.store()
	if err != nil {
		return 0, err
	}
	records, err := coll.FindWhere(ctx, b.q.Clone())
	if err != nil {
		return 0, err
	}
	return len(records), nil
}
