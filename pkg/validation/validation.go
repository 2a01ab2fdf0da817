// Package validation checks document attributes against named schemas.
//
// Schemas are YAML documents keyed by schema name. Each schema lists typed fields,
// optional per-field rules and document-level rules. Rules are expr-lang expressions
// that must evaluate to true:
//
//	UserSchema:
//	  fields:
//	    email:
//	      type: string
//	      required: true
//	      rule: 'value contains "@"'
//	    age:
//	      type: int
//	      rule: value >= 0
//	  rules:
//	    - expr: attrs.age == nil || attrs.age < 150
//	      message: age is not plausible
package validation

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"gopkg.in/yaml.v3"
)

type FieldType string

const (
	TypeAny    FieldType = ""
	TypeString FieldType = "string"
	TypeInt    FieldType = "int"
	TypeFloat  FieldType = "float"
	TypeBool   FieldType = "bool"
	TypeTime   FieldType = "time"
	TypeMap    FieldType = "map"
	TypeList   FieldType = "list"
)

type Field struct {
	Type     FieldType `yaml:"type"`
	Required bool      `yaml:"required"`
	Rule     string    `yaml:"rule"`
	Message  string    `yaml:"message"`

	program *vm.Program
}

type Rule struct {
	Expr    string `yaml:"expr"`
	Message string `yaml:"message"`

	program *vm.Program
}

type Schema struct {
	Fields map[string]*Field `yaml:"fields"`
	Rules  []*Rule           `yaml:"rules"`
}

// FieldError describes one failed check. Field is empty for document-level rules.
type FieldError struct {
	Field   string
	Rule    string
	Message string
}

// Error is returned by Validate when attributes do not satisfy a schema.
type Error struct {
	Schema  string
	Details []FieldError
}

func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		if d.Field == "" {
			msgs = append(msgs, d.Message)
			continue
		}
		msgs = append(msgs, d.Field+": "+d.Message)
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Schema, strings.Join(msgs, "; "))
}

// Fields returns the names of the fields that failed, in order.
func (e *Error) Fields() []string {
	var out []string
	for _, d := range e.Details {
		if d.Field != "" && !slices.Contains(out, d.Field) {
			out = append(out, d.Field)
		}
	}
	return out
}

// Validator holds compiled schemas by name and is safe for concurrent use.
type Validator struct {
	mu      sync.RWMutex
	schemas map[string]*Schema
}

func New() *Validator {
	return &Validator{schemas: make(map[string]*Schema)}
}

// Parse reads a YAML document of schemas keyed by name and compiles every rule.
func Parse(data []byte) (map[string]*Schema, error) {
	var schemas map[string]*Schema
	if err := yaml.Unmarshal(data, &schemas); err != nil {
		return nil, fmt.Errorf("parse schemas: %w", err)
	}
	for name, s := range schemas {
		if s == nil {
			s = &Schema{}
			schemas[name] = s
		}
		if err := s.compile(); err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
	}
	return schemas, nil
}

// Load parses data and adds every schema in it.
func (v *Validator) Load(data []byte) error {
	schemas, err := Parse(data)
	if err != nil {
		return err
	}
	for name, s := range schemas {
		v.set(name, s)
	}
	return nil
}

// Add compiles s and registers it under name, replacing an existing schema.
func (v *Validator) Add(name string, s *Schema) error {
	if err := s.compile(); err != nil {
		return fmt.Errorf("schema %s: %w", name, err)
	}
	v.set(name, s)
	return nil
}

func (v *Validator) set(name string, s *Schema) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.schemas[name] = s
}

func (v *Validator) SchemaExists(name string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.schemas[name]
	return ok
}

// Validate checks attrs against the named schema. A schema that does not exist
// accepts everything.
func (v *Validator) Validate(attrs map[string]any, schema string) error {
	v.mu.RLock()
	s, ok := v.schemas[schema]
	v.mu.RUnlock()
	if !ok {
		return nil
	}

	details, err := s.check(attrs)
	if err != nil {
		return fmt.Errorf("validate %s: %w", schema, err)
	}
	if len(details) > 0 {
		return &Error{Schema: schema, Details: details}
	}
	return nil
}

func (s *Schema) compile() error {
	for name, f := range s.Fields {
		if f == nil {
			s.Fields[name] = &Field{}
			continue
		}
		if !f.Type.valid() {
			return fmt.Errorf("field %s: unknown type %q", name, f.Type)
		}
		if f.Rule == "" {
			continue
		}
		program, err := compileRule(f.Rule)
		if err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		f.program = program
	}

	for i, r := range s.Rules {
		if r == nil || r.Expr == "" {
			return fmt.Errorf("rule %d: expression must not be empty", i)
		}
		program, err := compileRule(r.Expr)
		if err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
		r.program = program
	}
	return nil
}

func compileRule(src string) (*vm.Program, error) {
	return expr.Compile(src,
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
}

func (s *Schema) check(attrs map[string]any) ([]FieldError, error) {
	var details []FieldError

	for _, name := range slices.Sorted(maps.Keys(s.Fields)) {
		f := s.Fields[name]
		value, present := attrs[name]

		if !present || value == nil {
			if f.Required {
				details = append(details, FieldError{Field: name, Rule: "required", Message: "is required"})
			}
			continue
		}

		if !f.Type.matches(value) {
			details = append(details, FieldError{
				Field:   name,
				Rule:    "type",
				Message: fmt.Sprintf("must be of type %s, got %T", f.Type, value),
			})
			continue
		}

		if f.program == nil {
			continue
		}
		ok, err := run(f.program, map[string]any{"value": value, "attrs": attrs})
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		if !ok {
			details = append(details, FieldError{Field: name, Rule: f.Rule, Message: message(f.Message, f.Rule)})
		}
	}

	for _, r := range s.Rules {
		env := maps.Clone(attrs)
		if env == nil {
			env = make(map[string]any)
		}
		env["attrs"] = attrs
		ok, err := run(r.program, env)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", r.Expr, err)
		}
		if !ok {
			details = append(details, FieldError{Rule: r.Expr, Message: message(r.Message, r.Expr)})
		}
	}

	return details, nil
}

func run(program *vm.Program, env map[string]any) (bool, error) {
	out, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}
	ok, _ := out.(bool)
	return ok, nil
}

func message(msg, rule string) string {
	if msg != "" {
		return msg
	}
	return "does not satisfy " + rule
}

func (t FieldType) valid() bool {
	switch t {
	case TypeAny, TypeString, TypeInt, TypeFloat, TypeBool, TypeTime, TypeMap, TypeList:
		return true
	}
	return false
}

func (t FieldType) matches(v any) bool {
	rv := reflect.ValueOf(v)
	switch t {
	case TypeString:
		return rv.Kind() == reflect.String
	case TypeInt:
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return true
		case reflect.Float32, reflect.Float64:
			f := rv.Float()
			return f == float64(int64(f))
		}
		return false
	case TypeFloat:
		switch rv.Kind() {
		case reflect.Float32, reflect.Float64,
			reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return true
		}
		return false
	case TypeBool:
		return rv.Kind() == reflect.Bool
	case TypeTime:
		_, ok := v.(time.Time)
		return ok
	case TypeMap:
		return rv.Kind() == reflect.Map
	case TypeList:
		return rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array
	}
	return true
}
