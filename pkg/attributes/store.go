// Package attributes holds the live field values of a single document together with
// the snapshot taken at the last synchronization and the set of keys changed since.
//
// A Store is owned by exactly one document and is not safe for concurrent use.
package attributes

import (
	"maps"
	"slices"

	"github.com/surrealdb/surrealodm/pkg/constants"
)

// Casts transforms values on their way into and out of the store.
type Casts interface {
	HasCast(key string) bool
	ReadCast(key string, value any) any
	WriteCast(key string, value any) any
}

// Mutators take over reads or writes of a key entirely.
// A set mutator decides what gets stored through the Writer it receives.
type Mutators interface {
	HasGetMutator(key string) bool
	HasSetMutator(key string) bool
	MutateGet(key string, value any) any
	MutateSet(w Writer, key string, value any)
}

// Writer stores a raw value and marks the key as dirty.
type Writer interface {
	Put(key string, value any)
	Raw(key string) (any, bool)
}

// Resolver returns a value for key computed outside of the stored attributes,
// such as a loaded relation. A nil result means "not resolved".
type Resolver func(key string) any

// Option configures a Store.
type Option func(*Store)

// WithCasts wires the cast registry applied on Get and Set.
func WithCasts(c Casts) Option {
	return func(s *Store) {
		s.casts = c
	}
}

// WithMutators wires the mutator registry, which takes priority over casts.
func WithMutators(m Mutators) Option {
	return func(s *Store) {
		s.mutators = m
	}
}

// WithResolver wires the relation resolver consulted first on Get.
func WithResolver(r Resolver) Option {
	return func(s *Store) {
		s.resolver = r
	}
}

type Store struct {
	current  map[string]any
	original map[string]any
	dirty    map[string]struct{}

	casts    Casts
	mutators Mutators
	resolver Resolver
}

// New returns an empty store with an empty baseline.
func New(opts ...Option) *Store {
	s := &Store{
		current:  make(map[string]any),
		original: make(map[string]any),
		dirty:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the value for key after relation resolution, mutators and casts.
// Missing keys yield nil.
func (s *Store) Get(key string) any {
	key = constants.ResolveKey(key)

	if s.resolver != nil {
		if v := s.resolver(key); v != nil {
			return v
		}
	}

	_, ok := s.current[key]
	if ok || (s.mutators != nil && s.mutators.HasGetMutator(key)) {
		return s.value(key)
	}

	return nil
}

func (s *Store) value(key string) any {
	v := s.current[key]

	if s.mutators != nil && s.mutators.HasGetMutator(key) {
		return s.mutators.MutateGet(key, v)
	}

	if s.casts != nil && s.casts.HasCast(key) {
		return s.casts.ReadCast(key, v)
	}

	return v
}

// Set writes value under key. The key is always marked dirty, including when
// value equals what is already stored.
func (s *Store) Set(key string, value any) *Store {
	key = constants.ResolveKey(key)

	if s.mutators != nil && s.mutators.HasSetMutator(key) {
		s.dirty[key] = struct{}{}
		s.mutators.MutateSet(s, key, value)
		return s
	}

	if s.casts != nil && s.casts.HasCast(key) {
		value = s.casts.WriteCast(key, value)
	}

	s.Put(key, value)
	return s
}

// Put stores value without casts or mutators and marks key dirty.
func (s *Store) Put(key string, value any) {
	key = constants.ResolveKey(key)
	s.dirty[key] = struct{}{}
	s.current[key] = value
}

// Raw returns the stored value for key without any transformation.
func (s *Store) Raw(key string) (any, bool) {
	v, ok := s.current[constants.ResolveKey(key)]
	return v, ok
}

// Has reports whether key is physically present.
func (s *Store) Has(key string) bool {
	_, ok := s.current[constants.ResolveKey(key)]
	return ok
}

// Remove deletes key. A key that existed is marked dirty so the removal shows up in Diff as nil.
func (s *Store) Remove(key string) {
	key = constants.ResolveKey(key)
	if _, ok := s.current[key]; !ok {
		return
	}
	delete(s.current, key)
	s.dirty[key] = struct{}{}
}

// SetRaw replaces every attribute, bypassing casts and mutators.
// With sync the new state becomes the baseline.
func (s *Store) SetRaw(attrs map[string]any, sync bool) *Store {
	s.current = make(map[string]any, len(attrs))
	for k, v := range attrs {
		s.current[constants.ResolveKey(k)] = v
	}

	if sync {
		s.Resync()
	}
	return s
}

// MergeRaw routes every key of attrs through Set when force is true or the key is
// absent. Keys already present are left untouched unless force is set.
func (s *Store) MergeRaw(attrs map[string]any, sync, force bool) *Store {
	for _, k := range slices.Sorted(maps.Keys(attrs)) {
		if force || !s.Has(k) {
			s.Set(k, attrs[k])
		}
	}

	if sync {
		s.Resync()
	}
	return s
}

// Diff returns the current values of every dirty key. Keys that no longer exist map to nil.
func (s *Store) Diff() map[string]any {
	diff := make(map[string]any, len(s.dirty))
	for k := range s.dirty {
		diff[k] = s.current[k]
	}
	return diff
}

// HasChanged reports whether anything is dirty, or, when keys are given,
// whether any of them is.
func (s *Store) HasChanged(keys ...string) bool {
	if len(keys) == 0 {
		return len(s.dirty) > 0
	}

	for _, k := range keys {
		if _, ok := s.dirty[constants.ResolveKey(k)]; ok {
			return true
		}
	}
	return false
}

// Dirty returns the dirty keys in lexical order.
func (s *Store) Dirty() []string {
	return slices.Sorted(maps.Keys(s.dirty))
}

// Resync makes the current state the new baseline and clears the dirty set.
func (s *Store) Resync() {
	s.original = maps.Clone(s.current)
	s.dirty = make(map[string]struct{})
}

// Original returns the baseline value for key.
func (s *Store) Original(key string) (any, bool) {
	v, ok := s.original[constants.ResolveKey(key)]
	return v, ok
}

// Originals returns a copy of the baseline.
func (s *Store) Originals() map[string]any {
	return maps.Clone(s.original)
}

// All returns a copy of the raw current attributes.
func (s *Store) All() map[string]any {
	return maps.Clone(s.current)
}

// Keys returns the present keys in lexical order.
func (s *Store) Keys() []string {
	return slices.Sorted(maps.Keys(s.current))
}

func (s *Store) Len() int {
	return len(s.current)
}
