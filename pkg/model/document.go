package model

import (
	"fmt"
	"maps"
	"reflect"
	"slices"

	"github.com/fxamacker/cbor/v2"
	"github.com/goccy/go-json"
	"github.com/surrealdb/surrealodm/pkg/attributes"
	"github.com/surrealdb/surrealodm/pkg/constants"
	"github.com/surrealdb/surrealodm/pkg/query"
)

// State is where a document is in its lifecycle.
type State int

const (
	// Transient documents have never been stored.
	Transient State = iota
	Persisted
	// Deleted is terminal.
	Deleted
)

func (s State) String() string {
	switch s {
	case Persisted:
		return "persisted"
	case Deleted:
		return "deleted"
	default:
		return "transient"
	}
}

var cborEncoder = func() cbor.EncMode {
	em, err := cbor.EncOptions{
		Time:    cbor.TimeRFC3339Nano,
		TimeTag: cbor.EncTagRequired,
		Sort:    cbor.SortCanonical,
	}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// Document is one instance of a model type.
type Document struct {
	typ   *Type
	attrs *attributes.Store

	exists  bool
	deleted bool
	// hydrating lifts the identity guard while Fill runs with exists set.
	hydrating bool
}

func (d *Document) Type() *Type {
	return d.typ
}

func (d *Document) TypeName() string {
	return d.typ.name
}

func (d *Document) Exists() bool {
	return d.exists
}

func (d *Document) State() State {
	switch {
	case d.deleted:
		return Deleted
	case d.exists:
		return Persisted
	}
	return Transient
}

// ID returns the stored identity, or nil.
func (d *Document) ID() any {
	id, _ := d.attrs.Raw(constants.IdentityKey)
	return id
}

// Get returns the value for key. Relations take precedence, then mutators, then casts.
// "id" and "_id" are the same key.
func (d *Document) Get(key string) any {
	return d.attrs.Get(key)
}

// Set writes key and marks it dirty. The identity of a Persisted document cannot
// be changed.
func (d *Document) Set(key string, value any) error {
	if err := d.guardIdentity(key, value); err != nil {
		return err
	}
	d.attrs.Set(key, value)
	return nil
}

// MustSet is Set for keys that cannot be the identity. It panics on error.
func (d *Document) MustSet(key string, value any) *Document {
	if err := d.Set(key, value); err != nil {
		panic(err)
	}
	return d
}

func (d *Document) Has(key string) bool {
	return d.attrs.Has(key)
}

func (d *Document) Remove(key string) error {
	if err := d.guardIdentity(key, nil); err != nil {
		return err
	}
	d.attrs.Remove(key)
	return nil
}

func (d *Document) guardIdentity(key string, value any) error {
	if constants.ResolveKey(key) != constants.IdentityKey || !d.exists || d.hydrating {
		return nil
	}
	if current, ok := d.attrs.Raw(constants.IdentityKey); ok && value != nil && query.Equal(current, value) {
		return nil
	}
	return fmt.Errorf("%s %v: %w", d.typ.name, d.ID(), constants.ErrIdentityImmutable)
}

// Fill routes every key of attrs through Set in lexical key order. With exists set
// the identity guard does not apply, which is how stored records are hydrated.
func (d *Document) Fill(attrs map[string]any, exists bool) error {
	if exists {
		d.hydrating = true
		defer func() { d.hydrating = false }()
	}

	for _, k := range slices.Sorted(maps.Keys(attrs)) {
		if err := d.Set(k, attrs[k]); err != nil {
			return err
		}
	}
	return nil
}

// SetRaw replaces every attribute without casts or mutators. With sync the new
// attributes become the baseline. A Persisted document keeps its identity.
func (d *Document) SetRaw(attrs map[string]any, sync bool) error {
	var id any
	for k, v := range attrs {
		if constants.ResolveKey(k) == constants.IdentityKey {
			id = v
		}
	}
	if err := d.guardIdentity(constants.IdentityKey, id); err != nil {
		return err
	}
	d.attrs.SetRaw(attrs, sync)
	return nil
}

// MergeRaw sets the keys of attrs that are not present yet, or every key when force
// is set. With sync the result becomes the baseline.
func (d *Document) MergeRaw(attrs map[string]any, sync, force bool) error {
	for k, v := range attrs {
		if !force && d.attrs.Has(k) {
			continue
		}
		if err := d.guardIdentity(k, v); err != nil {
			return err
		}
	}
	d.attrs.MergeRaw(attrs, sync, force)
	return nil
}

// IsDirty reports whether anything, or any of keys, changed since the last sync.
func (d *Document) IsDirty(keys ...string) bool {
	return d.attrs.HasChanged(keys...)
}

// Dirty returns the changed keys in lexical order.
func (d *Document) Dirty() []string {
	return d.attrs.Dirty()
}

// Diff returns the stored values of the changed keys. Removed keys map to nil.
func (d *Document) Diff() map[string]any {
	return d.attrs.Diff()
}

// Original returns the value of key as of the last sync.
func (d *Document) Original(key string) (any, bool) {
	return d.attrs.Original(key)
}

// Attributes returns a copy of the stored attributes.
func (d *Document) Attributes() map[string]any {
	return d.attrs.All()
}

// ToMap exports the document with its identity under "id". With persist set, hidden
// keys are left out and persist casts are applied.
func (d *Document) ToMap(persist bool) map[string]any {
	out := make(map[string]any, d.attrs.Len())
	for _, k := range d.attrs.Keys() {
		if persist && d.typ.isHidden(k) {
			continue
		}

		v := d.attrs.Get(k)
		if persist {
			v = d.typ.casts.PersistCast(k, v)
		}

		if k == constants.IdentityKey {
			k = constants.IdentityAlias
		}
		out[k] = v
	}
	return out
}

// payload builds the storage representation of keys: read casts followed by persist
// casts, without mutators or relations.
func (d *Document) payload(keys []string) map[string]any {
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		raw, ok := d.attrs.Raw(k)
		if !ok || raw == nil {
			out[k] = nil
			continue
		}
		out[k] = d.typ.casts.PersistCast(k, d.typ.casts.ReadCast(k, raw))
	}
	return out
}

// Clone returns a Transient copy without the identity.
func (d *Document) Clone() *Document {
	c := newDocument(d.typ)
	attrs := d.attrs.All()
	delete(attrs, constants.IdentityKey)
	for k, v := range attrs {
		c.attrs.Put(k, v)
	}
	return c
}

func (d *Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.ToMap(true))
}

func (d *Document) MarshalCBOR() ([]byte, error) {
	return cborEncoder.Marshal(d.ToMap(true))
}

func (d *Document) String() string {
	return fmt.Sprintf("%s(%v)", d.typ.name, d.ID())
}

// resolve serves relation lookups for the attribute store.
func (d *Document) resolve(key string) any {
	fn, ok := d.typ.relations[key]
	if !ok {
		return nil
	}
	v := fn(d)
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func:
		if rv.IsNil() {
			return nil
		}
	}
	return v
}
