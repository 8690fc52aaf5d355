// Package entity groups fields under one named collection with shared
// validation defaults, bulk value access, and aggregate state. The
// entity owns its fields' registration, not the fields themselves: a
// field removed from the map keeps working standalone.
package entity

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/artpar/formgate/core/field"
	"github.com/artpar/formgate/core/schema"
	"github.com/artpar/formgate/core/validation"
	"github.com/artpar/formgate/ports"
)

// Entity is a named collection of fields.
type Entity struct {
	key string

	mu        sync.Mutex
	fields    map[string]*field.Field
	defaults  *schema.Validation
	destroyed bool

	// unregister removes this entity from whatever registry created
	// it. Injected so the entity never imports the registry.
	unregister func()

	log     zerolog.Logger
	metrics ports.Metrics
	clock   ports.Clock
}

// Option configures an entity at construction.
type Option func(*Entity)

// WithKey sets the entity key.
func WithKey(key string) Option {
	return func(e *Entity) { e.key = key }
}

// WithLogger sets the logger, inherited by created fields.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Entity) { e.log = log }
}

// WithMetrics sets the metrics recorder, inherited by created fields.
func WithMetrics(m ports.Metrics) Option {
	return func(e *Entity) { e.metrics = m }
}

// WithClock sets the clock, inherited by created fields.
func WithClock(c ports.Clock) Option {
	return func(e *Entity) { e.clock = c }
}

// WithDefaults sets the shared validation config fields without their
// own config adopt.
func WithDefaults(v *schema.Validation) Option {
	return func(e *Entity) { e.defaults = v.Clone() }
}

// WithUnregister sets the callback Destroy uses to remove the entity
// from its registry.
func WithUnregister(fn func()) Option {
	return func(e *Entity) { e.unregister = fn }
}

// New creates an empty entity.
func New(opts ...Option) *Entity {
	e := &Entity{
		fields:  make(map[string]*field.Field),
		log:     zerolog.Nop(),
		metrics: ports.NopMetrics{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Key returns the entity key. Implements field.Owner.
func (e *Entity) Key() string { return e.key }

// DefaultValidation returns the shared validation config, or nil.
// Implements field.Owner.
func (e *Entity) DefaultValidation() *schema.Validation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.defaults
}

// SetDefaultValidation replaces the shared validation config. Fields
// that already adopted or set their own config are unaffected.
func (e *Entity) SetDefaultValidation(v *schema.Validation) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.defaults = v.Clone()
}

// CreateField creates a field under the given key, or returns the
// existing one.
func (e *Entity) CreateField(key string, defaultValue any) *field.Field {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.createLocked(key, defaultValue)
}

func (e *Entity) createLocked(key string, defaultValue any) *field.Field {
	if f, ok := e.fields[key]; ok {
		return f
	}
	f := field.New(key, e, defaultValue,
		field.WithLogger(e.log.With().Str("field", key).Logger()),
		field.WithMetrics(e.metrics),
		field.WithClock(e.clock),
	)
	e.fields[key] = f
	e.log.Debug().Str("entity", e.key).Str("field", key).Msg("field created")
	return f
}

// Field returns the field under the key, creating it (with a nil
// default value) when absent.
func (e *Entity) Field(key string) *field.Field {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.createLocked(key, nil)
}

// Lookup is the strict form of Field: it never creates, reporting
// absence instead.
func (e *Entity) Lookup(key string) (*field.Field, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	f, ok := e.fields[key]
	return f, ok
}

// HasField reports whether a field exists under the key.
func (e *Entity) HasField(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.fields[key]
	return ok
}

// DeleteField removes fields by key, returning how many existed.
// Unknown keys are ignored.
func (e *Entity) DeleteField(keys ...string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	removed := 0
	for _, key := range keys {
		if _, ok := e.fields[key]; ok {
			delete(e.fields, key)
			e.metrics.FieldDeleted()
			removed++
		}
	}
	return removed
}

// FieldKeys returns the field keys in sorted order.
func (e *Entity) FieldKeys() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.keysLocked()
}

func (e *Entity) keysLocked() []string {
	keys := make([]string, 0, len(e.fields))
	for k := range e.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// selectFields resolves an optional key subset to concrete fields,
// skipping unknown keys.
func (e *Entity) selectFields(keys []string) []*field.Field {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(keys) == 0 {
		keys = e.keysLocked()
	}
	out := make([]*field.Field, 0, len(keys))
	for _, k := range keys {
		if f, ok := e.fields[k]; ok {
			out = append(out, f)
		}
	}
	return out
}

// Values returns current values by field key, optionally restricted to
// a key subset. Unknown keys are skipped.
func (e *Entity) Values(keys ...string) map[string]any {
	fields := e.selectFields(keys)
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		out[f.Key()] = f.Value()
	}
	return out
}

// DefaultValues returns reset values by field key.
func (e *Entity) DefaultValues(keys ...string) map[string]any {
	fields := e.selectFields(keys)
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		out[f.Key()] = f.DefaultValue()
	}
	return out
}

// SetValues assigns values by field key. Missing fields are created
// with the assigned value as their default, unless strict is true, in
// which case unknown keys are skipped.
func (e *Entity) SetValues(values map[string]any, strict bool) {
	for _, key := range sortedKeys(values) {
		v := values[key]
		f, ok := e.Lookup(key)
		if !ok {
			if strict {
				continue
			}
			f = e.CreateField(key, v)
		}
		f.SetValue(v)
	}
}

// SetDefaultValues assigns reset values by field key, creating missing
// fields unless strict skips them.
func (e *Entity) SetDefaultValues(values map[string]any, strict bool) {
	for _, key := range sortedKeys(values) {
		v := values[key]
		f, ok := e.Lookup(key)
		if !ok {
			if strict {
				continue
			}
			f = e.CreateField(key, v)
		}
		f.SetDefaultValue(v)
	}
}

// Touched returns the sum of all fields' touch counters.
func (e *Entity) Touched() int {
	total := 0
	for _, f := range e.selectFields(nil) {
		total += f.Touched()
	}
	return total
}

// Changed returns the sum of all fields' change counters.
func (e *Entity) Changed() int {
	total := 0
	for _, f := range e.selectFields(nil) {
		total += f.Changed()
	}
	return total
}

// Error reports whether any field has its error flag raised.
func (e *Entity) Error() bool {
	for _, f := range e.selectFields(nil) {
		if f.Error() {
			return true
		}
	}
	return false
}

// Warning reports whether any field has its warning flag raised.
func (e *Entity) Warning() bool {
	for _, f := range e.selectFields(nil) {
		if f.Warning() {
			return true
		}
	}
	return false
}

// Validate runs validation on the selected fields (all when keys is
// empty) and combines the outcomes: the result passes only when every
// field passed, and settles once every field's outcome has settled.
func (e *Entity) Validate(ctx context.Context, event schema.Event, keys ...string) *validation.Outcome {
	fields := e.selectFields(keys)
	outcomes := make([]*validation.Outcome, 0, len(fields))
	for _, f := range fields {
		outcomes = append(outcomes, f.Validate(ctx, event))
	}
	return validation.Combine(outcomes...)
}

// Clear fans out to every field.
func (e *Entity) Clear() {
	for _, f := range e.selectFields(nil) {
		f.Clear()
	}
}

// Reset fans out to every field.
func (e *Entity) Reset() {
	for _, f := range e.selectFields(nil) {
		f.Reset()
	}
}

// Destroy drops the field map and removes the entity from its
// registry. Idempotent.
func (e *Entity) Destroy() {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}
	e.destroyed = true
	count := len(e.fields)
	e.fields = make(map[string]*field.Field)
	unregister := e.unregister
	e.mu.Unlock()

	for i := 0; i < count; i++ {
		e.metrics.FieldDeleted()
	}
	if unregister != nil {
		unregister()
	}
	e.log.Debug().Str("entity", e.key).Msg("entity destroyed")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
