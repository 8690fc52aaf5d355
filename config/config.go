// Package config provides declarative field-set definitions loaded
// from YAML, with rule checks written as expressions and compiled via
// expr. A loaded Schema builds or re-configures a live entity, and
// Holder adds hot reload on top.
package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/expr-lang/expr"
	"gopkg.in/yaml.v3"

	"github.com/artpar/formgate/core/entity"
	"github.com/artpar/formgate/core/schema"
)

// Schema is the root of a declarative field-set definition.
type Schema struct {
	// Entity is the entity key the schema configures.
	Entity string `yaml:"entity"`

	// ValidateOn is the default trigger for rules that don't set
	// their own (touch, change, or demand).
	ValidateOn string `yaml:"validate_on,omitempty"`

	// Fields maps field keys to their specs.
	Fields map[string]FieldSpec `yaml:"fields"`
}

// FieldSpec declares one field.
type FieldSpec struct {
	// Default is the field's initial and reset value.
	Default any `yaml:"default,omitempty"`

	// Required accepts a bool or a custom message string.
	Required RequiredSpec `yaml:"required,omitempty"`

	// Rules run in order after the required check.
	Rules []RuleSpec `yaml:"rules,omitempty"`
}

// RequiredSpec is the bool-or-string form of the required setting.
type RequiredSpec struct {
	Set     bool
	Message string
}

// UnmarshalYAML accepts `required: true` and `required: "message"`.
func (r *RequiredSpec) UnmarshalYAML(node *yaml.Node) error {
	var b bool
	if err := node.Decode(&b); err == nil {
		r.Set = b
		return nil
	}
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("required must be a bool or a string")
	}
	r.Set = true
	r.Message = s
	return nil
}

// RuleSpec declares one validation rule.
type RuleSpec struct {
	// Check is the expression evaluated against the field. It sees
	// `value`, `key`, `touched` and `changed`, plus the helper
	// functions registered in the environment.
	Check string `yaml:"check"`

	// Message is attached when the check fails.
	Message string `yaml:"message"`

	// Type is the message kind on failure (error, warning, info).
	// Empty means error.
	Type string `yaml:"type,omitempty"`

	// TypeIfPassed attaches the message with this kind on a pass.
	TypeIfPassed string `yaml:"type_if_passed,omitempty"`

	// On is the trigger event (touch, change, demand).
	On string `yaml:"on,omitempty"`

	// Async runs the check on its own goroutine.
	Async bool `yaml:"async,omitempty"`
}

// Load reads and parses a schema file.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return Parse(data)
}

// Parse parses schema YAML and validates it, compiling every check
// expression once to surface syntax errors at load time.
func Parse(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the schema for structural problems: unknown kinds
// and events, missing checks, uncompilable expressions.
func (s *Schema) Validate() error {
	if s.Entity == "" {
		return fmt.Errorf("schema: entity key is required")
	}
	if err := validEvent(s.ValidateOn); err != nil {
		return fmt.Errorf("schema: validate_on: %w", err)
	}
	for key, spec := range s.Fields {
		for i, rule := range spec.Rules {
			if strings.TrimSpace(rule.Check) == "" {
				return fmt.Errorf("schema: field %q rule %d: check is required", key, i)
			}
			if _, err := compileCheck(rule.Check); err != nil {
				return fmt.Errorf("schema: field %q rule %d: %w", key, i, err)
			}
			if err := validKind(rule.Type); err != nil {
				return fmt.Errorf("schema: field %q rule %d: type: %w", key, i, err)
			}
			if err := validKind(rule.TypeIfPassed); err != nil {
				return fmt.Errorf("schema: field %q rule %d: type_if_passed: %w", key, i, err)
			}
			if err := validEvent(rule.On); err != nil {
				return fmt.Errorf("schema: field %q rule %d: on: %w", key, i, err)
			}
		}
	}
	return nil
}

// Validation compiles one field spec into an engine config.
func (spec FieldSpec) Validation(defaultOn string) (*schema.Validation, error) {
	v := &schema.Validation{
		On: schema.Event(defaultOn),
	}
	if spec.Required.Set {
		v.Required = schema.Requirement{Set: true, Message: spec.Required.Message}
	}
	for i, rule := range spec.Rules {
		check, err := compileCheck(rule.Check)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		v.Rules = append(v.Rules, schema.Rule{
			Check:    check,
			Message:  rule.Message,
			Kind:     schema.Kind(rule.Type),
			PassKind: schema.Kind(rule.TypeIfPassed),
			On:       schema.Event(rule.On),
			Async:    rule.Async,
		})
	}
	if !v.Required.Set && len(v.Rules) == 0 {
		return nil, nil
	}
	return v, nil
}

// Apply configures a live entity from the schema: missing fields are
// created, defaults updated, and validation configs replaced. Fields
// not named in the schema are left alone.
func (s *Schema) Apply(e *entity.Entity) error {
	for key, spec := range s.Fields {
		f := e.CreateField(key, spec.Default)
		f.SetDefaultValue(spec.Default)

		v, err := spec.Validation(s.ValidateOn)
		if err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		if v != nil {
			f.SetValidation(v)
		}
	}
	return nil
}

// Build creates a fresh entity from the schema.
func (s *Schema) Build(opts ...entity.Option) (*entity.Entity, error) {
	opts = append(opts, entity.WithKey(s.Entity))
	e := entity.New(opts...)
	if err := s.Apply(e); err != nil {
		return nil, err
	}
	return e, nil
}

func validKind(k string) error {
	switch schema.Kind(k) {
	case "", schema.KindError, schema.KindWarning, schema.KindInfo:
		return nil
	}
	return fmt.Errorf("unknown kind %q", k)
}

func validEvent(e string) error {
	switch schema.Event(e) {
	case "", schema.EventTouch, schema.EventChange, schema.EventDemand:
		return nil
	}
	return fmt.Errorf("unknown event %q", e)
}

// checkEnv is the expression environment one check evaluation sees.
func checkEnv(in schema.CheckInput) map[string]any {
	return map[string]any{
		"value":   in.Value,
		"key":     in.Key,
		"touched": in.Touched,
		"changed": in.Changed,
	}
}

// envOptions builds the compile environment for check expressions.
// String helpers like lower, upper and trim come with expr itself;
// empty() exposes the required-check emptiness test.
func envOptions() []expr.Option {
	return []expr.Option{
		expr.Env(checkEnv(schema.CheckInput{})),
		expr.AllowUndefinedVariables(),
		expr.AsBool(),

		expr.Function("empty", func(params ...any) (any, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("empty() requires 1 argument")
			}
			return schema.IsEmpty(params[0]), nil
		}),
	}
}

// compileCheck compiles an expression into a CheckFunc.
func compileCheck(code string) (schema.CheckFunc, error) {
	program, err := expr.Compile(code, envOptions()...)
	if err != nil {
		return nil, fmt.Errorf("compile check: %w", err)
	}
	return func(_ context.Context, in schema.CheckInput) (bool, error) {
		out, err := expr.Run(program, checkEnv(in))
		if err != nil {
			return false, fmt.Errorf("run check: %w", err)
		}
		ok, isBool := out.(bool)
		if !isBool {
			return false, fmt.Errorf("check did not yield a bool")
		}
		return ok, nil
	}, nil
}
