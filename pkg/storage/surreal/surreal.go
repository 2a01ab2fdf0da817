// Package surreal persists documents in SurrealDB tables.
//
// Identities are SurrealDB record IDs. A plain identity value handed to the store is
// turned into a record ID on the collection's table.
package surreal

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/contrib/surrealql"
	"github.com/surrealdb/surrealdb.go/pkg/models"
	"github.com/surrealdb/surrealodm/pkg/constants"
	"github.com/surrealdb/surrealodm/pkg/query"
	"github.com/surrealdb/surrealodm/pkg/storage"
)

const recordKey = "id"

var errEmptyResult = errors.New("surrealdb returned no result")

// Client is the part of a SurrealDB connection the store needs.
// Documents crossing it carry their record ID under "id".
type Client interface {
	Create(ctx context.Context, table string, doc map[string]any) (map[string]any, error)
	Merge(ctx context.Context, id models.RecordID, partial map[string]any) error
	Delete(ctx context.Context, id models.RecordID) error
	Select(ctx context.Context, q *query.Query) ([]map[string]any, error)
	Close(ctx context.Context) error
}

type Config struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
}

type Store struct {
	client Client
}

var _ storage.Connection = (*Store)(nil)

// Open connects to SurrealDB, signs in when credentials are set and selects the
// namespace and database.
func Open(ctx context.Context, conf Config) (*Store, error) {
	db, err := surrealdb.FromEndpointURLString(ctx, conf.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if conf.Username != "" && conf.Password != "" {
		if _, err := db.SignIn(ctx, map[string]any{
			"user": conf.Username,
			"pass": conf.Password,
		}); err != nil {
			_ = db.Close(ctx)
			return nil, fmt.Errorf("failed to authenticate: %w", err)
		}
	}

	if err := db.Use(ctx, conf.Namespace, conf.Database); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("failed to use namespace/database: %w", err)
	}

	return New(&dbClient{db: db}), nil
}

func New(client Client) *Store {
	return &Store{client: client}
}

func (s *Store) Collection(name string) storage.Collection {
	return &collection{client: s.client, table: name}
}

func (s *Store) Close() error {
	return s.client.Close(context.Background())
}

type collection struct {
	client Client
	table  string
}

func (c *collection) InsertAndReturnID(ctx context.Context, doc map[string]any) (any, error) {
	created, err := c.client.Create(ctx, c.table, c.toRecord(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s record: %w", c.table, err)
	}
	if created == nil {
		return nil, fmt.Errorf("create %s: %w", c.table, errEmptyResult)
	}
	return created[recordKey], nil
}

func (c *collection) UpdateWhere(ctx context.Context, filter query.Filter, partial map[string]any) error {
	ids, err := c.ids(ctx, filter)
	if err != nil {
		return err
	}

	patch := make(map[string]any, len(partial))
	for k, v := range partial {
		k = constants.ResolveKey(k)
		if k == constants.IdentityKey {
			continue
		}
		if v == nil {
			patch[k] = models.None
			continue
		}
		patch[k] = v
	}

	for _, id := range ids {
		if err := c.client.Merge(ctx, id, patch); err != nil {
			return fmt.Errorf("failed to merge %s: %w", id.String(), err)
		}
	}
	return nil
}

func (c *collection) DeleteWhere(ctx context.Context, filter query.Filter) error {
	ids, err := c.ids(ctx, filter)
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := c.client.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete %s: %w", id.String(), err)
		}
	}
	return nil
}

func (c *collection) FindWhere(ctx context.Context, q *query.Query) ([]map[string]any, error) {
	q = q.Clone()
	q.Collection = c.table
	for i, cond := range q.Filter {
		if cond.Field == constants.IdentityKey {
			q.Filter[i].Value = c.identityValue(cond.Value)
		}
	}

	records, err := c.client.Select(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to select from %s: %w", c.table, err)
	}

	docs := make([]map[string]any, 0, len(records))
	for _, r := range records {
		docs = append(docs, fromRecord(r))
	}
	return docs, nil
}

// ids resolves the record IDs matched by filter. An identity filter needs no round trip.
func (c *collection) ids(ctx context.Context, filter query.Filter) ([]models.RecordID, error) {
	if id, ok := filter.Identity(); ok {
		return []models.RecordID{c.recordID(id)}, nil
	}

	docs, err := c.FindWhere(ctx, &query.Query{Collection: c.table, Filter: filter})
	if err != nil {
		return nil, err
	}
	ids := make([]models.RecordID, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, c.recordID(d[constants.IdentityKey]))
	}
	return ids, nil
}

func (c *collection) recordID(id any) models.RecordID {
	switch v := id.(type) {
	case models.RecordID:
		return v
	case *models.RecordID:
		return *v
	}
	return models.NewRecordID(c.table, id)
}

func (c *collection) identityValue(v any) any {
	if values, ok := v.([]any); ok {
		out := make([]any, 0, len(values))
		for _, id := range values {
			out = append(out, c.recordID(id))
		}
		return out
	}
	return c.recordID(v)
}

func (c *collection) toRecord(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		if constants.ResolveKey(k) == constants.IdentityKey {
			if v != nil {
				out[recordKey] = c.recordID(v)
			}
			continue
		}
		out[k] = v
	}
	return out
}

func fromRecord(r map[string]any) map[string]any {
	doc := maps.Clone(r)
	if id, ok := doc[recordKey]; ok {
		delete(doc, recordKey)
		doc[constants.IdentityKey] = id
	}
	return doc
}

// BuildSelect renders q as a SurrealQL SELECT with bound parameters.
func BuildSelect(q *query.Query) (string, map[string]any) {
	sel := surrealql.SelectFrom(models.Table(q.Collection))

	for _, cond := range q.Filter {
		field := fieldName(cond.Field)
		switch cond.Op {
		case query.Eq:
			sel = sel.WhereEq(field, cond.Value)
		case query.In:
			values, _ := cond.Value.([]any)
			if len(values) == 0 {
				sel = sel.Where("false")
				continue
			}
			sel = sel.WhereIn(field, values...)
		default:
			sel = sel.Where(fmt.Sprintf("%s %s ?", escapeIdent(field), cond.Op), cond.Value)
		}
	}

	for _, s := range q.Sorts {
		if s.Desc {
			sel = sel.OrderByDesc(fieldName(s.Field))
		} else {
			sel = sel.OrderBy(fieldName(s.Field))
		}
	}
	if q.Limit > 0 {
		sel = sel.Limit(q.Limit)
	}
	if q.Offset > 0 {
		sel = sel.Start(q.Offset)
	}

	return sel.Build()
}

func fieldName(field string) string {
	if constants.ResolveKey(field) == constants.IdentityKey {
		return recordKey
	}
	return field
}

// escapeIdent quotes field names the way surrealql does for its own WhereEq and WhereIn.
func escapeIdent(ident string) string {
	if strings.ContainsAny(ident, " -:`") || slices.Contains(reservedWords, strings.ToUpper(ident)) {
		return "`" + strings.ReplaceAll(ident, "`", "\\`") + "`"
	}
	return ident
}

var reservedWords = []string{
	"SELECT", "FROM", "WHERE", "ORDER", "BY", "LIMIT", "START",
	"FETCH", "GROUP", "SPLIT", "RETURN", "PARALLEL", "EXPLAIN",
	"CREATE", "UPDATE", "DELETE", "RELATE", "INSERT", "DEFINE",
	"REMOVE", "INFO", "USE", "BEGIN", "CANCEL", "COMMIT",
	"IF", "ELSE", "THEN", "END", "BREAK", "CONTINUE",
	"FUNCTION", "PARAM", "FIELD", "TYPE", "DEFAULT",
	"ASSERT", "PERMISSIONS", "DURATION", "FLEXIBLE",
}

type dbClient struct {
	db *surrealdb.DB
}

func (c *dbClient) Create(ctx context.Context, table string, doc map[string]any) (map[string]any, error) {
	created, err := surrealdb.Create[map[string]any](ctx, c.db, models.Table(table), doc)
	if err != nil {
		return nil, err
	}
	if created == nil {
		return nil, nil
	}
	return *created, nil
}

func (c *dbClient) Merge(ctx context.Context, id models.RecordID, partial map[string]any) error {
	_, err := surrealdb.Merge[map[string]any](ctx, c.db, id, partial)
	return err
}

func (c *dbClient) Delete(ctx context.Context, id models.RecordID) error {
	_, err := surrealdb.Delete[map[string]any](ctx, c.db, id)
	return err
}

func (c *dbClient) Select(ctx context.Context, q *query.Query) ([]map[string]any, error) {
	sql, vars := BuildSelect(q)

	results, err := surrealdb.Query[[]map[string]any](ctx, c.db, sql, vars)
	if err != nil {
		return nil, err
	}
	if results == nil || len(*results) == 0 {
		return nil, errEmptyResult
	}

	res := (*results)[0]
	if res.Status != "OK" {
		return nil, fmt.Errorf("query status %s", res.Status)
	}
	return res.Result, nil
}

func (c *dbClient) Close(ctx context.Context) error {
	return c.db.Close(ctx)
}
