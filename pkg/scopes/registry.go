// Package scopes holds the named predicates a model type merges into every query it builds.
package scopes

import (
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/surrealdb/surrealodm/pkg/constants"
	"github.com/surrealdb/surrealodm/pkg/query"
)

// Model is the view of a document a scope receives while being applied.
type Model interface {
	TypeName() string
	Get(key string) any
}

// Scope constrains a query built for a model type.
type Scope interface {
	Apply(q *query.Query, m Model)
}

// Named is implemented by scopes that choose their own registration name.
// Scopes without a name are registered under their Go type.
type Named interface {
	Name() string
}

// Func adapts a function to a named Scope.
type Func struct {
	ScopeName string
	Fn        func(q *query.Query, m Model)
}

func (f Func) Name() string { return f.ScopeName }

func (f Func) Apply(q *query.Query, m Model) { f.Fn(q, m) }

// Registry keeps scopes in registration order. Re-registering a name replaces the
// earlier scope in place.
type Registry struct {
	mu     sync.RWMutex
	names  []string
	scopes map[string]Scope
}

func NewRegistry() *Registry {
	return &Registry{scopes: make(map[string]Scope)}
}

// Register adds s. A nil scope, or one whose name is the wildcard, is rejected
// with constants.ErrInvalidScope.
func (r *Registry) Register(s Scope) error {
	if isNil(s) {
		return fmt.Errorf("%w: nil scope", constants.ErrInvalidScope)
	}
	if f, ok := s.(Func); ok && (f.Fn == nil || f.ScopeName == "") {
		return fmt.Errorf("%w: function scope needs a name and a function", constants.ErrInvalidScope)
	}

	name := NameOf(s)
	if name == constants.WildcardScope {
		return fmt.Errorf("%w: %q is reserved", constants.ErrInvalidScope, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.scopes[name]; !ok {
		r.names = append(r.names, name)
	}
	r.scopes[name] = s
	return nil
}

// RegisterFunc registers fn under name.
func (r *Registry) RegisterFunc(name string, fn func(q *query.Query, m Model)) error {
	return r.Register(Func{ScopeName: name, Fn: fn})
}

// Names returns the registered names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.names)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}

// ApplyAll applies every scope not listed in ignore. The wildcard in ignore suppresses all.
func (r *Registry) ApplyAll(q *query.Query, m Model, ignore ...string) {
	if slices.Contains(ignore, constants.WildcardScope) {
		return
	}

	r.mu.RLock()
	names := slices.Clone(r.names)
	scopes := make([]Scope, 0, len(names))
	for _, n := range names {
		scopes = append(scopes, r.scopes[n])
	}
	r.mu.RUnlock()

	for i, s := range scopes {
		if slices.Contains(ignore, names[i]) {
			continue
		}
		s.Apply(q, m)
	}
}

// NameOf returns the name s is registered under. Scopes that do not name
// themselves use their fully qualified type name, e.g. "*example.com/app/scopes.Tenant".
func NameOf(s Scope) string {
	if n, ok := s.(Named); ok && n.Name() != "" {
		return n.Name()
	}

	t := reflect.TypeOf(s)
	prefix := ""
	for t.Kind() == reflect.Ptr {
		prefix += "*"
		t = t.Elem()
	}
	if t.Name() == "" || t.PkgPath() == "" {
		return reflect.TypeOf(s).String()
	}
	return prefix + t.PkgPath() + "." + t.Name()
}

func isNil(s Scope) bool {
	if s == nil {
		return true
	}
	v := reflect.ValueOf(s)
	switch v.Kind() {
	case reflect.Ptr, reflect.Func, reflect.Map, reflect.Interface, reflect.Slice:
		return v.IsNil()
	}
	return false
}
