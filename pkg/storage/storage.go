// Package storage defines the document collections model types persist through.
//
// Implementations live in the subpackages: memory for tests and embedding, sqldoc for
// SQLite and Postgres, and surreal for SurrealDB.
package storage

import (
	"context"

	"github.com/surrealdb/surrealodm/pkg/query"
)

// Collection is a named set of documents keyed by the identity field.
type Collection interface {
	// InsertAndReturnID stores doc and returns its identity. When doc carries no
	// identity the collection generates one.
	InsertAndReturnID(ctx context.Context, doc map[string]any) (any, error)
	// UpdateWhere merges partial into every document matching filter.
	UpdateWhere(ctx context.Context, filter query.Filter, partial map[string]any) error
	DeleteWhere(ctx context.Context, filter query.Filter) error
	// FindWhere returns the documents matching q, identity included under the identity key.
	FindWhere(ctx context.Context, q *query.Query) ([]map[string]any, error)
}

// Connection hands out collections by name.
type Connection interface {
	Collection(name string) Collection
	Close() error
}
