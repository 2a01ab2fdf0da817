package model_test

import (
	"context"
	"sync"
	"time"

	"github.com/surrealdb/surrealodm/pkg/query"
	"github.com/surrealdb/surrealodm/pkg/storage"
	"github.com/surrealdb/surrealodm/pkg/storage/memory"
)

// spyCollection counts the calls reaching storage and can be made to fail.
type spyCollection struct {
	storage.Collection

	inserts    int
	updates    int
	deletes    int
	lastInsert map[string]any
	lastUpdate map[string]any
	fail       error
}

func (s *spyCollection) InsertAndReturnID(ctx context.Context, doc map[string]any) (any, error) {
	if s.fail != nil {
		return nil, s.fail
	}
	s.inserts++
	s.lastInsert = doc
	return s.Collection.InsertAndReturnID(ctx, doc)
}

func (s *spyCollection) UpdateWhere(ctx context.Context, filter query.Filter, partial map[string]any) error {
	if s.fail != nil {
		return s.fail
	}
	s.updates++
	s.lastUpdate = partial
	return s.Collection.UpdateWhere(ctx, filter, partial)
}

func (s *spyCollection) DeleteWhere(ctx context.Context, filter query.Filter) error {
	if s.fail != nil {
		return s.fail
	}
	s.deletes++
	return s.Collection.DeleteWhere(ctx, filter)
}

type spyConnection struct {
	mu    sync.Mutex
	mem   *memory.Store
	colls map[string]*spyCollection
}

func newSpyConnection() *spyConnection {
	return &spyConnection{mem: memory.New(), colls: make(map[string]*spyCollection)}
}

func (c *spyConnection) Collection(name string) storage.Collection {
	return c.spy(name)
}

func (c *spyConnection) spy(name string) *spyCollection {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.colls[name]
	if !ok {
		s = &spyCollection{Collection: c.mem.Collection(name)}
		c.colls[name] = s
	}
	return s
}

func (c *spyConnection) Close() error {
	return nil
}

type observation struct {
	model, operation, outcome string
}

type fakeRecorder struct {
	observations []observation
}

func (r *fakeRecorder) Observe(model, operation, outcome string, _ time.Duration) {
	r.observations = append(r.observations, observation{model, operation, outcome})
}
