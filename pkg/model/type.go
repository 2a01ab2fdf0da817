package model

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/jinzhu/inflection"
	"github.com/stoewer/go-strcase"
	"github.com/surrealdb/surrealodm/pkg/attributes"
	"github.com/surrealdb/surrealodm/pkg/casts"
	"github.com/surrealdb/surrealodm/pkg/constants"
	"github.com/surrealdb/surrealodm/pkg/events"
	"github.com/surrealdb/surrealodm/pkg/query"
	"github.com/surrealdb/surrealodm/pkg/scopes"
	"github.com/surrealdb/surrealodm/pkg/storage"
)

// RelationFunc computes a related value for a document. A nil result falls back
// to the stored attribute.
type RelationFunc func(d *Document) any

// DocumentListener is a lifecycle listener receiving the document the event is fired for.
type DocumentListener func(ctx context.Context, d *Document) (events.Result, error)

type TypeOption func(t *Type) error

// WithCollection overrides the storage collection name.
func WithCollection(name string) TypeOption {
	return func(t *Type) error {
		t.collection = name
		return nil
	}
}

// WithSchema overrides the validation schema name.
func WithSchema(name string) TypeOption {
	return func(t *Type) error {
		t.schema = name
		return nil
	}
}

// WithStorage sets the connection of this type only.
func WithStorage(c storage.Connection) TypeOption {
	return func(t *Type) error {
		t.conn = c
		return nil
	}
}

// WithValidator sets the validator of this type only.
func WithValidator(v Validator) TypeOption {
	return func(t *Type) error {
		t.validator = v
		return nil
	}
}

// WithTimestamps maintains created_at and updated_at.
func WithTimestamps() TypeOption {
	return func(t *Type) error {
		t.timestamps = true
		return nil
	}
}

func WithClock(clock func() time.Time) TypeOption {
	return func(t *Type) error {
		t.clock = clock
		return nil
	}
}

func WithCast(key string, c casts.Cast) TypeOption {
	return func(t *Type) error {
		t.casts.Register(key, c)
		return nil
	}
}

// WithCastNamed registers a built-in cast by name, see casts.ByName.
func WithCastNamed(key, name string) TypeOption {
	return func(t *Type) error {
		c, err := casts.ByName(name)
		if err != nil {
			return err
		}
		t.casts.Register(key, c)
		return nil
	}
}

func WithMutator(key string, get casts.GetMutator, set casts.SetMutator) TypeOption {
	return func(t *Type) error {
		t.casts.Mutate(key, get, set)
		return nil
	}
}

func WithScope(s scopes.Scope) TypeOption {
	return func(t *Type) error {
		return t.scopes.Register(s)
	}
}

func WithScopeFunc(name string, fn func(q *query.Query, m scopes.Model)) TypeOption {
	return func(t *Type) error {
		return t.scopes.RegisterFunc(name, fn)
	}
}

func WithRelation(key string, fn RelationFunc) TypeOption {
	return func(t *Type) error {
		t.relations[constants.ResolveKey(key)] = fn
		return nil
	}
}

// WithHidden excludes keys from the persisted representation of ToMap.
func WithHidden(keys ...string) TypeOption {
	return func(t *Type) error {
		for _, k := range keys {
			t.hidden[constants.ResolveKey(k)] = struct{}{}
		}
		return nil
	}
}

// OnBoot runs fn while the type is being defined, between booting and booted.
func OnBoot(fn func(t *Type) error) TypeOption {
	return func(t *Type) error {
		t.boot = append(t.boot, fn)
		return nil
	}
}

// Type is the class-level state shared by all documents of one model type.
type Type struct {
	reg *Registry

	name       string
	collection string
	schema     string

	conn      storage.Connection
	validator Validator

	casts     *casts.Registry
	scopes    *scopes.Registry
	relations map[string]RelationFunc
	hidden    map[string]struct{}

	timestamps bool
	clock      func() time.Time
	boot       []func(t *Type) error
}

func newType(r *Registry, name string) *Type {
	return &Type{
		reg:       r,
		name:      name,
		casts:     casts.NewRegistry(),
		scopes:    scopes.NewRegistry(),
		relations: make(map[string]RelationFunc),
		hidden:    make(map[string]struct{}),
	}
}

func (t *Type) applyDefaults() {
	if t.collection == "" {
		t.collection = CollectionName(t.name)
	}
	if t.schema == "" {
		t.schema = t.name + "Schema"
	}
	if t.conn == nil {
		t.conn = t.reg.conn
	}
	if t.validator == nil {
		t.validator = t.reg.validator
	}
	if t.clock == nil {
		t.clock = time.Now
	}
	if t.timestamps {
		for _, key := range []string{constants.CreatedAt, constants.UpdatedAt} {
			if !t.casts.HasCast(key) {
				t.casts.Register(key, casts.Timestamp{})
			}
		}
	}
}

// CollectionName derives the default collection of a type: BlogPost becomes blog_posts.
func CollectionName(typeName string) string {
	return inflection.Plural(strcase.SnakeCase(typeName))
}

func (t *Type) Name() string       { return t.name }
func (t *Type) Collection() string { return t.collection }
func (t *Type) Schema() string     { return t.schema }
func (t *Type) Timestamps() bool   { return t.timestamps }

// Casts returns the cast registry. Register casts before documents are in use.
func (t *Type) Casts() *casts.Registry {
	return t.casts
}

func (t *Type) Scopes() *scopes.Registry {
	return t.scopes
}

// AddScope registers s for every query built by this type.
func (t *Type) AddScope(s scopes.Scope) error {
	return t.scopes.Register(s)
}

// Hidden returns the hidden keys in lexical order.
func (t *Type) Hidden() []string {
	return slices.Sorted(maps.Keys(t.hidden))
}

func (t *Type) isHidden(key string) bool {
	_, ok := t.hidden[key]
	return ok
}

func (t *Type) store() (storage.Collection, error) {
	if t.conn == nil {
		return nil, fmt.Errorf("%s: %w", t.name, constants.ErrNoConnection)
	}
	return t.conn.Collection(t.collection), nil
}

func (t *Type) eventName(p events.Phase) string {
	return events.EventName(p, t.name)
}

func (t *Type) fire(ctx context.Context, p events.Phase, d *Document) (events.Result, error) {
	return t.reg.hub.Fire(ctx, t.eventName(p), d, p.Halts())
}

func (t *Type) observe(operation, outcome string, start time.Time) {
	if t.reg.recorder != nil {
		t.reg.recorder.Observe(t.name, operation, outcome, time.Since(start))
	}
}

// New returns a Transient document. It fires initializing.
func (t *Type) New(ctx context.Context) (*Document, error) {
	d := newDocument(t)
	if _, err := t.fire(ctx, events.Initializing, d); err != nil {
		return nil, err
	}
	return d, nil
}

// NewInstance builds a document from attrs, typically a record read from storage.
// The attributes become the baseline and the document is Persisted when exists is set.
func (t *Type) NewInstance(ctx context.Context, attrs map[string]any, exists bool) (*Document, error) {
	d, err := t.New(ctx)
	if err != nil {
		return nil, err
	}
	if err := d.Fill(attrs, exists); err != nil {
		return nil, err
	}
	d.attrs.Resync()
	d.exists = exists
	return d, nil
}

// Create fills a new document with attrs and saves it. The returned bool is false
// when a listener aborted the save.
func (t *Type) Create(ctx context.Context, attrs map[string]any) (*Document, bool, error) {
	d, err := t.New(ctx)
	if err != nil {
		return nil, false, err
	}
	if err := d.Fill(attrs, false); err != nil {
		return nil, false, err
	}
	saved, err := d.Save(ctx)
	return d, saved, err
}

// Query starts a query on the type's collection with every registered scope applied
// except those named in ignore. The wildcard "*" suppresses all scopes.
func (t *Type) Query(ignore ...string) *Builder {
	q := query.New(t.collection)
	t.scopes.ApplyAll(q, newDocument(t), ignore...)
	return &Builder{typ: t, q: q}
}

// Destroy deletes the documents with the given identities and reports how many
// were deleted. Scopes do not apply.
func (t *Type) Destroy(ctx context.Context, ids ...any) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	docs, err := t.Query(constants.WildcardScope).WhereIn(constants.IdentityKey, ids...).Get(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, d := range docs {
		deleted, err := d.Delete(ctx)
		if err != nil {
			return count, err
		}
		if deleted {
			count++
		}
	}
	return count, nil
}

// On registers l for phase on this type.
func (t *Type) On(phase events.Phase, l DocumentListener) {
	t.reg.hub.Listen(t.eventName(phase), func(ctx context.Context, payload any) (events.Result, error) {
		d, ok := payload.(*Document)
		if !ok {
			return events.NoOpinion, nil
		}
		return l(ctx, d)
	})
}

func (t *Type) Creating(l DocumentListener)   { t.On(events.Creating, l) }
func (t *Type) Created(l DocumentListener)    { t.On(events.Created, l) }
func (t *Type) Updating(l DocumentListener)   { t.On(events.Updating, l) }
func (t *Type) Updated(l DocumentListener)    { t.On(events.Updated, l) }
func (t *Type) Saving(l DocumentListener)     { t.On(events.Saving, l) }
func (t *Type) Saved(l DocumentListener)      { t.On(events.Saved, l) }
func (t *Type) Deleting(l DocumentListener)   { t.On(events.Deleting, l) }
func (t *Type) Deleted(l DocumentListener)    { t.On(events.Deleted, l) }
func (t *Type) Validating(l DocumentListener) { t.On(events.Validating, l) }
func (t *Type) Validated(l DocumentListener)  { t.On(events.Validated, l) }

// newDocument builds an empty document wired to the type's casts and relations.
func newDocument(t *Type) *Document {
	d := &Document{typ: t}
	d.attrs = attributes.New(
		attributes.WithCasts(t.casts),
		attributes.WithMutators(t.casts),
		attributes.WithResolver(d.resolve),
	)
	return d
}
