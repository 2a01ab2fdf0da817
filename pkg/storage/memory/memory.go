// Package memory is an in-process storage.Connection. Documents are kept as maps per
// collection and can be dumped to and restored from CBOR.
package memory

import (
	"context"
	"fmt"
	"io"
	"maps"
	"reflect"
	"slices"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/gofrs/uuid"
	"github.com/surrealdb/surrealodm/pkg/constants"
	"github.com/surrealdb/surrealodm/pkg/query"
	"github.com/surrealdb/surrealodm/pkg/storage"
)

type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

var _ storage.Connection = (*Store)(nil)

func New() *Store {
	return &Store{collections: make(map[string]*collection)}
}

// Collection returns the named collection, creating it on first use.
func (s *Store) Collection(name string) storage.Collection {
	return s.collection(name)
}

func (s *Store) collection(name string) *collection {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		c = &collection{name: name}
		s.collections[name] = c
	}
	return c
}

func (s *Store) Close() error {
	return nil
}

// Dump writes every collection to w as a CBOR map of collection name to documents.
func (s *Store) Dump(w io.Writer) error {
	s.mu.RLock()
	snapshot := make(map[string][]map[string]any, len(s.collections))
	for name, c := range s.collections {
		snapshot[name] = c.all()
	}
	s.mu.RUnlock()

	return cbor.NewEncoder(w).Encode(snapshot)
}

// Restore replaces the store content with a snapshot written by Dump.
func (s *Store) Restore(r io.Reader) error {
	dm, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		IntDec:         cbor.IntDecConvertSigned,
	}.DecMode()
	if err != nil {
		return err
	}

	var snapshot map[string][]map[string]any
	if err := dm.NewDecoder(r).Decode(&snapshot); err != nil {
		return fmt.Errorf("restoring memory store: %w", err)
	}

	collections := make(map[string]*collection, len(snapshot))
	for name, docs := range snapshot {
		collections[name] = &collection{name: name, docs: docs}
	}

	s.mu.Lock()
	s.collections = collections
	s.mu.Unlock()
	return nil
}

type collection struct {
	mu   sync.RWMutex
	name string
	docs []map[string]any
}

func (c *collection) all() []map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]map[string]any, 0, len(c.docs))
	for _, d := range c.docs {
		out = append(out, maps.Clone(d))
	}
	return out
}

func (c *collection) InsertAndReturnID(_ context.Context, doc map[string]any) (any, error) {
	stored := maps.Clone(doc)
	if stored == nil {
		stored = make(map[string]any)
	}
	if alias, ok := stored[constants.IdentityAlias]; ok {
		delete(stored, constants.IdentityAlias)
		stored[constants.IdentityKey] = alias
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	id, ok := stored[constants.IdentityKey]
	if !ok || id == nil {
		u, err := uuid.NewV4()
		if err != nil {
			return nil, err
		}
		id = u.String()
		stored[constants.IdentityKey] = id
	}

	if c.indexOf(id) >= 0 {
		return nil, fmt.Errorf("%s %v: %w", c.name, id, constants.ErrDuplicateIdentity)
	}

	c.docs = append(c.docs, stored)
	return id, nil
}

func (c *collection) UpdateWhere(_ context.Context, filter query.Filter, partial map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, d := range c.docs {
		if !filter.Match(d) {
			continue
		}
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
	}
	return nil
}

func (c *collection) DeleteWhere(_ context.Context, filter query.Filter) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.docs = slices.DeleteFunc(c.docs, filter.Match)
	return nil
}

func (c *collection) FindWhere(_ context.Context, q *query.Query) ([]map[string]any, error) {
	found := q.Apply(c.all())
	return found, nil
}

func (c *collection) indexOf(id any) int {
	return slices.IndexFunc(c.docs, func(d map[string]any) bool {
		return query.Equal(d[constants.IdentityKey], id)
	})
}
