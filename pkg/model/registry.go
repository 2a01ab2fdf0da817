// Package model ties attribute tracking, casts, scopes and lifecycle hooks together into
// model types and the documents they create.
//
// A Registry owns every model type of a process. Types are defined once, usually during
// start-up, and are read-only afterwards:
//
//	reg := model.NewRegistry(model.WithConnection(memory.New()))
//	users := reg.MustDefine("User", model.WithTimestamps())
//
//	doc, err := users.Create(ctx, map[string]any{"name": "ada"})
//
// Documents are not safe for concurrent use.
package model

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/surrealdb/surrealodm/pkg/constants"
	"github.com/surrealdb/surrealodm/pkg/events"
	"github.com/surrealdb/surrealodm/pkg/logger"
	"github.com/surrealdb/surrealodm/pkg/storage"
)

// Validator checks attributes against a named schema. A missing schema is valid.
type Validator interface {
	SchemaExists(name string) bool
	Validate(attrs map[string]any, schema string) error
}

// Recorder receives one observation per finished lifecycle operation.
type Recorder interface {
	Observe(typeName, operation, outcome string, d time.Duration)
}

// Outcomes passed to a Recorder.
const (
	OutcomeSuccess = "success"
	OutcomeAborted = "aborted"
	OutcomeNoop    = "noop"
	OutcomeError   = "error"
)

type RegistryOption func(*Registry)

// WithLogger sets the logger shared by every type of the registry.
func WithLogger(l logger.Logger) RegistryOption {
	return func(r *Registry) {
		r.log = l
	}
}

// WithRecorder sets the metrics recorder shared by every type of the registry.
func WithRecorder(rec Recorder) RegistryOption {
	return func(r *Registry) {
		r.recorder = rec
	}
}

// WithHub replaces the registry's event hub.
func WithHub(h *events.Hub) RegistryOption {
	return func(r *Registry) {
		r.hub = h
	}
}

// WithConnection sets the storage connection used by types that do not set their own.
func WithConnection(c storage.Connection) RegistryOption {
	return func(r *Registry) {
		r.conn = c
	}
}

// WithDefaultValidator sets the validator used by types that do not set their own.
func WithDefaultValidator(v Validator) RegistryOption {
	return func(r *Registry) {
		r.validator = v
	}
}

type Registry struct {
	mu    sync.RWMutex
	types map[string]*Type
	// names claimed by a Define whose boot hooks are still running
	defining map[string]struct{}

	hub       *events.Hub
	log       logger.Logger
	recorder  Recorder
	conn      storage.Connection
	validator Validator
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		types:    make(map[string]*Type),
		defining: make(map[string]struct{}),
		hub:   events.NewHub(),
		log:   logger.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Hub returns the event hub every type of the registry fires through.
func (r *Registry) Hub() *events.Hub {
	return r.hub
}

// Define registers a new model type. Defining fires booting, runs the OnBoot
// callbacks and fires booted. A name can only be defined once.
func (r *Registry) Define(name string, opts ...TypeOption) (*Type, error) {
	t, err := r.claim(name, opts)
	if err != nil {
		return nil, err
	}

	if err := r.boot(t); err != nil {
		r.mu.Lock()
		delete(r.defining, name)
		r.mu.Unlock()
		return nil, err
	}

	r.mu.Lock()
	delete(r.defining, name)
	r.types[name] = t
	r.mu.Unlock()

	r.log.Debug("model type defined", "model", name, "collection", t.collection)
	return t, nil
}

// claim builds the type and reserves its name. Boot hooks run after the lock is
// released so they can look up other types.
func (r *Registry) claim(name string, opts []TypeOption) (*Type, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.types[name]; ok {
		return nil, fmt.Errorf("%w: %s", constants.ErrModelAlreadyDefined, name)
	}
	if _, ok := r.defining[name]; ok {
		return nil, fmt.Errorf("%w: %s", constants.ErrModelAlreadyDefined, name)
	}

	t := newType(r, name)
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, fmt.Errorf("define %s: %w", name, err)
		}
	}
	t.applyDefaults()

	r.defining[name] = struct{}{}
	return t, nil
}

func (r *Registry) boot(t *Type) error {
	ctx := context.Background()
	if _, err := r.hub.Fire(ctx, events.EventName(events.Booting, t.name), t, false); err != nil {
		return fmt.Errorf("define %s: %w", t.name, err)
	}
	for _, boot := range t.boot {
		if err := boot(t); err != nil {
			return fmt.Errorf("boot %s: %w", t.name, err)
		}
	}
	if _, err := r.hub.Fire(ctx, events.EventName(events.Booted, t.name), t, false); err != nil {
		return fmt.Errorf("define %s: %w", t.name, err)
	}
	return nil
}

// MustDefine is Define for package-level initialization. It panics on error.
func (r *Registry) MustDefine(name string, opts ...TypeOption) *Type {
	t, err := r.Define(name, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

func (r *Registry) Lookup(name string) (*Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.types[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", constants.ErrModelNotDefined, name)
	}
	return t, nil
}

// Names returns the defined type names in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
