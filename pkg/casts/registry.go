// Package casts provides the per-key value transformations applied by a model type:
// read casts, write casts, optional persist casts, and mutators that take over a key entirely.
//
// A Registry is class-level state. It is populated while a model type is defined
// and only read afterwards.
package casts

import (
	"github.com/surrealdb/surrealodm/pkg/attributes"
	"github.com/surrealdb/surrealodm/pkg/constants"
)

// Cast converts a value on its way into (Write) and out of (Read) the attribute store.
type Cast interface {
	Read(value any) any
	Write(value any) any
}

// PersistCaster is implemented by casts whose storage representation differs from the
// in-memory one, e.g. a time.Time kept in memory and stored as an epoch integer.
type PersistCaster interface {
	Persist(value any) any
}

// GetMutator computes the value returned for a key.
type GetMutator func(value any) any

// SetMutator decides what is stored when a key is written.
type SetMutator func(w attributes.Writer, value any)

type Registry struct {
	casts   map[string]Cast
	getters map[string]GetMutator
	setters map[string]SetMutator
}

var (
	_ attributes.Casts    = (*Registry)(nil)
	_ attributes.Mutators = (*Registry)(nil)
)

func NewRegistry() *Registry {
	return &Registry{
		casts:   make(map[string]Cast),
		getters: make(map[string]GetMutator),
		setters: make(map[string]SetMutator),
	}
}

// Register sets the cast for key, replacing any previous one.
func (r *Registry) Register(key string, c Cast) *Registry {
	r.casts[constants.ResolveKey(key)] = c
	return r
}

// Mutate registers a get and/or set mutator for key. Either may be nil.
func (r *Registry) Mutate(key string, get GetMutator, set SetMutator) *Registry {
	key = constants.ResolveKey(key)
	if get != nil {
		r.getters[key] = get
	}
	if set != nil {
		r.setters[key] = set
	}
	return r
}

func (r *Registry) Cast(key string) (Cast, bool) {
	c, ok := r.casts[constants.ResolveKey(key)]
	return c, ok
}

func (r *Registry) HasCast(key string) bool {
	_, ok := r.casts[constants.ResolveKey(key)]
	return ok
}

func (r *Registry) ReadCast(key string, value any) any {
	c, ok := r.Cast(key)
	if !ok || value == nil {
		return value
	}
	return c.Read(value)
}

func (r *Registry) WriteCast(key string, value any) any {
	c, ok := r.Cast(key)
	if !ok || value == nil {
		return value
	}
	return c.Write(value)
}

// PersistCast converts an already read-cast value into its storage form.
// Keys without a persist cast are returned unchanged.
func (r *Registry) PersistCast(key string, value any) any {
	c, ok := r.Cast(key)
	if !ok || value == nil {
		return value
	}
	if p, ok := c.(PersistCaster); ok {
		return p.Persist(value)
	}
	return value
}

func (r *Registry) HasGetMutator(key string) bool {
	_, ok := r.getters[constants.ResolveKey(key)]
	return ok
}

func (r *Registry) HasSetMutator(key string) bool {
	_, ok := r.setters[constants.ResolveKey(key)]
	return ok
}

func (r *Registry) MutateGet(key string, value any) any {
	return r.getters[constants.ResolveKey(key)](value)
}

func (r *Registry) MutateSet(w attributes.Writer, key string, value any) {
	r.setters[constants.ResolveKey(key)](w, value)
}
