// Package sqldoc stores documents as JSON in SQL tables, one table per collection with
// an identity column and a document column. SQLite and Postgres are supported.
//
// Filters other than identity equality are evaluated in memory after loading the table.
package sqldoc

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/gofrs/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	"github.com/surrealdb/surrealodm/pkg/constants"
	"github.com/surrealdb/surrealodm/pkg/query"
	"github.com/surrealdb/surrealodm/pkg/storage"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Dialect captures what differs between the supported databases.
type Dialect struct {
	Name   string
	Driver string
	// Placeholder returns the bind parameter for the n-th argument, starting at 1.
	Placeholder func(n int) string
}

var (
	SQLite = Dialect{
		Name:        "sqlite",
		Driver:      "sqlite",
		Placeholder: func(int) string { return "?" },
	}
	Postgres = Dialect{
		Name:        "postgres",
		Driver:      "pgx",
		Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	}
)

// DialectByName resolves "sqlite" or "postgres".
func DialectByName(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case SQLite.Name, "sqlite3":
		return SQLite, nil
	case Postgres.Name, "postgresql", Postgres.Driver:
		return Postgres, nil
	}
	return Dialect{}, fmt.Errorf("%w: %s", constants.ErrUnknownDriver, name)
}

type Store struct {
	db      *sql.DB
	dialect Dialect

	mu      sync.Mutex
	created map[string]bool
}

var _ storage.Connection = (*Store)(nil)

// Open opens dsn with the dialect's driver and pings it.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect.Name, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect.Name, err)
	}
	return New(db, dialect), nil
}

// New wraps an already opened database.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect, created: make(map[string]bool)}
}

func (s *Store) Collection(name string) storage.Collection {
	return &collection{store: s, name: name, table: quoteIdent(name)}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureTable(ctx context.Context, c *collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.created[c.name] {
		return nil
	}
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		doc TEXT NOT NULL
	)`, c.table)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create table %s: %w", c.name, err)
	}
	s.created[c.name] = true
	return nil
}

type collection struct {
	store *Store
	name  string
	table string
}

func (c *collection) ph(n int) string {
	return c.store.dialect.Placeholder(n)
}

func (c *collection) InsertAndReturnID(ctx context.Context, doc map[string]any) (any, error) {
	if err := c.store.ensureTable(ctx, c); err != nil {
		return nil, err
	}

	stored := maps.Clone(doc)
	if stored == nil {
		stored = make(map[string]any)
	}
	if alias, ok := stored[constants.IdentityAlias]; ok {
		delete(stored, constants.IdentityAlias)
		stored[constants.IdentityKey] = alias
	}

	id, ok := stored[constants.IdentityKey]
	if !ok || id == nil {
		u, err := uuid.NewV4()
		if err != nil {
			return nil, err
		}
		id = u.String()
		stored[constants.IdentityKey] = id
	}

	payload, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("encode %s document: %w", c.name, err)
	}

	stmt := fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES (%s, %s)`, c.table, c.ph(1), c.ph(2))
	if _, err := c.store.db.ExecContext(ctx, stmt, identityKey(id), string(payload)); err != nil {
		return nil, fmt.Errorf("insert into %s: %w", c.name, err)
	}
	return id, nil
}

func (c *collection) UpdateWhere(ctx context.Context, filter query.Filter, partial map[string]any) error {
	docs, err := c.match(ctx, filter)
	if err != nil {
		return err
	}

	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt := fmt.Sprintf(`UPDATE %s SET doc = %s WHERE id = %s`, c.table, c.ph(1), c.ph(2))
	for _, d := range docs {
		for k, v := range partial {
			k = constants.ResolveKey(k)
			if k == constants.IdentityKey {
				continue
			}
			if v == nil {
				delete(d, k)
				continue
			}
			d[k] = v
		}

		payload, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("encode %s document: %w", c.name, err)
		}
		if _, err := tx.ExecContext(ctx, stmt, string(payload), identityKey(d[constants.IdentityKey])); err != nil {
			return fmt.Errorf("update %s: %w", c.name, err)
		}
	}
	return tx.Commit()
}

func (c *collection) DeleteWhere(ctx context.Context, filter query.Filter) error {
	docs, err := c.match(ctx, filter)
	if err != nil {
		return err
	}

	stmt := fmt.Sprintf(`DELETE FROM %s WHERE id = %s`, c.table, c.ph(1))
	for _, d := range docs {
		if _, err := c.store.db.ExecContext(ctx, stmt, identityKey(d[constants.IdentityKey])); err != nil {
			return fmt.Errorf("delete from %s: %w", c.name, err)
		}
	}
	return nil
}

func (c *collection) FindWhere(ctx context.Context, q *query.Query) ([]map[string]any, error) {
	docs, err := c.load(ctx, q.Filter)
	if err != nil {
		return nil, err
	}
	return q.Apply(docs), nil
}

func (c *collection) match(ctx context.Context, filter query.Filter) ([]map[string]any, error) {
	docs, err := c.load(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := docs[:0]
	for _, d := range docs {
		if filter.Match(d) {
			out = append(out, d)
		}
	}
	return out, nil
}

// load reads candidate rows. An identity filter narrows the read to a single row.
func (c *collection) load(ctx context.Context, filter query.Filter) ([]map[string]any, error) {
	if err := c.store.ensureTable(ctx, c); err != nil {
		return nil, err
	}

	var (
		rows *sql.Rows
		err  error
	)
	if id, ok := filter.Identity(); ok {
		rows, err = c.store.db.QueryContext(ctx,
			fmt.Sprintf(`SELECT doc FROM %s WHERE id = %s`, c.table, c.ph(1)), identityKey(id))
	} else {
		rows, err = c.store.db.QueryContext(ctx, fmt.Sprintf(`SELECT doc FROM %s ORDER BY id`, c.table))
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", c.name, err)
	}
	defer func() { _ = rows.Close() }()

	var docs []map[string]any
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan %s: %w", c.name, err)
		}
		var d map[string]any
		if err := json.Unmarshal([]byte(payload), &d); err != nil {
			return nil, fmt.Errorf("decode %s document: %w", c.name, err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func identityKey(id any) string {
	if s, ok := id.(string); ok {
		return s
	}
	if s, ok := id.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprint(id)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
