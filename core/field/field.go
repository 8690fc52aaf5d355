// Package field implements the per-field state machine: a value with
// touch/change counters, derived error/warning flags, an ordered
// message list, manual overrides, and listener notification on every
// observable change. Validation is delegated to core/validation and
// fan-out to core/dispatch.
package field

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/artpar/formgate/core/dispatch"
	"github.com/artpar/formgate/core/schema"
	"github.com/artpar/formgate/core/validation"
	"github.com/artpar/formgate/ports"
)

// Owner is the field's optional parent. It is a lookup relation, not
// an ownership edge: the field only reads shared validation defaults
// through it.
type Owner interface {
	// Key identifies the owning entity.
	Key() string

	// DefaultValidation returns the shared validation config a field
	// without its own config adopts, or nil.
	DefaultValidation() *schema.Validation
}

// Field is a single observable value.
type Field struct {
	key   string
	owner Owner

	mu           sync.Mutex
	value        any
	defaultValue any
	touched      int
	changed      int
	err          bool
	warning      bool
	messages     []schema.Message
	custom       []schema.Message
	errOverride  *bool
	warnOverride *bool

	engine  *validation.Engine
	disp    *dispatch.Dispatcher
	log     zerolog.Logger
	metrics ports.Metrics
}

// Option configures a field at construction.
type Option func(*options)

type options struct {
	log        zerolog.Logger
	metrics    ports.Metrics
	clock      ports.Clock
	validation *schema.Validation
}

// WithLogger sets the field's logger. Defaults to a no-op logger.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithMetrics sets the metrics recorder. Defaults to a no-op recorder.
func WithMetrics(m ports.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock sets the clock used for check timing.
func WithClock(c ports.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithValidation sets the initial validation config (deep-copied).
func WithValidation(v *schema.Validation) Option {
	return func(o *options) { o.validation = v }
}

// New creates a field with the given key, optional owner, and default
// value. The value starts at the default.
func New(key string, owner Owner, defaultValue any, opts ...Option) *Field {
	o := options{
		log:     zerolog.Nop(),
		metrics: ports.NopMetrics{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	f := &Field{
		key:          key,
		owner:        owner,
		value:        defaultValue,
		defaultValue: defaultValue,
		disp:         dispatch.New(),
		log:          o.log,
		metrics:      o.metrics,
	}
	f.engine = validation.New(key, o.log, o.metrics, o.clock, f.applyAsync)
	if o.validation != nil {
		f.engine.SetConfig(o.validation.Clone())
	}
	f.metrics.FieldCreated()
	return f
}

// Key returns the field key.
func (f *Field) Key() string { return f.key }

// Owner returns the parent entity reference, or nil.
func (f *Field) Owner() Owner { return f.owner }

// Value returns the current value.
func (f *Field) Value() any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

// DefaultValue returns the reset value.
func (f *Field) DefaultValue() any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.defaultValue
}

// SetDefaultValue replaces the reset value without touching the
// current value or notifying anyone.
func (f *Field) SetDefaultValue(v any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.defaultValue = v
}

// Touched returns the explicit-interaction counter.
func (f *Field) Touched() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.touched
}

// Changed returns the mutation counter. Always >= Touched unless a
// caller overrides the counters directly.
func (f *Field) Changed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.changed
}

// Error returns the derived (or pinned) error flag.
func (f *Field) Error() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Warning returns the derived (or pinned) warning flag.
func (f *Field) Warning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.warning
}

// Messages returns a copy of the composed message list, or nil when
// there are no messages at all.
func (f *Field) Messages() []schema.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return schema.CloneMessages(f.messages)
}

// CustomMessages returns a copy of the custom message source.
func (f *Field) CustomMessages() []schema.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return schema.CloneMessages(f.custom)
}

// ErrorOverride returns the error pin: nil when unset.
func (f *Field) ErrorOverride() *bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyBool(f.errOverride)
}

// WarningOverride returns the warning pin: nil when unset.
func (f *Field) WarningOverride() *bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyBool(f.warnOverride)
}

// SetValue replaces the value, bumps the change counter, validates
// with the change event, and notifies listeners of every parameter
// that observably changed. Assigning an identical value still counts
// as a change.
func (f *Field) SetValue(v any) {
	f.mutate(v, schema.EventChange, false)
}

// Touch replaces the value like SetValue but also bumps the touch
// counter and validates with the touch event.
func (f *Field) Touch(v any) {
	f.mutate(v, schema.EventTouch, true)
}

func (f *Field) mutate(v any, event schema.Event, touch bool) {
	f.adoptOwnerDefaults()

	f.mu.Lock()
	snap := f.snapshotLocked()
	f.value = v
	f.changed++
	if touch {
		f.touched++
	}
	in := f.checkInputLocked()
	f.mu.Unlock()

	_, stale := f.engine.Run(context.Background(), event, in)
	if stale {
		f.recompute(recomputeFull)
	}
	f.notifyDiff(snap)
}

// SetTouched overrides the touch counter, notifying only that
// parameter. No validation runs.
func (f *Field) SetTouched(n int) {
	f.mu.Lock()
	old := f.touched
	f.touched = n
	f.mu.Unlock()
	f.notify(dispatch.ParamTouched, old, n)
}

// SetChanged overrides the change counter, notifying only that
// parameter. No validation runs.
func (f *Field) SetChanged(n int) {
	f.mu.Lock()
	old := f.changed
	f.changed = n
	f.mu.Unlock()
	f.notify(dispatch.ParamChanged, old, n)
}

// SetErrorOverride pins the error flag (non-nil) or releases it (nil),
// re-deriving the flag from current messages. Only the error parameter
// is notified; the message list is untouched.
func (f *Field) SetErrorOverride(pin *bool) {
	f.mu.Lock()
	f.errOverride = copyBool(pin)
	old := f.err
	f.mu.Unlock()

	f.recompute(recomputeError)
	f.notify(dispatch.ParamError, old, f.Error())
}

// SetWarningOverride pins or releases the warning flag. See
// SetErrorOverride.
func (f *Field) SetWarningOverride(pin *bool) {
	f.mu.Lock()
	f.warnOverride = copyBool(pin)
	old := f.warning
	f.mu.Unlock()

	f.recompute(recomputeWarning)
	f.notify(dispatch.ParamWarning, old, f.Warning())
}

// SetCustomMessages replaces the custom message source and recomputes
// the composed list and flags.
func (f *Field) SetCustomMessages(messages []schema.Message) {
	f.mu.Lock()
	snap := f.snapshotLocked()
	f.custom = schema.CloneMessages(messages)
	f.mu.Unlock()

	f.recompute(recomputeFull)
	f.notifyDiff(snap)
}

// ClearValidated drops the required and rule message sources, keeping
// custom messages and overrides.
func (f *Field) ClearValidated() {
	f.mu.Lock()
	snap := f.snapshotLocked()
	f.mu.Unlock()

	f.engine.Invalidate()
	f.recompute(recomputeFull)
	f.notifyDiff(snap)
}

// Clear drops all three message sources and both overrides.
func (f *Field) Clear() {
	f.mu.Lock()
	snap := f.snapshotLocked()
	f.custom = nil
	f.errOverride = nil
	f.warnOverride = nil
	f.mu.Unlock()

	f.engine.Invalidate()
	f.recompute(recomputeFull)
	f.notifyDiff(snap)
}

// Reset restores the default value, zeroes both counters, and clears
// all messages and overrides. Validation config and listeners survive.
func (f *Field) Reset() {
	f.mu.Lock()
	snap := f.snapshotLocked()
	f.value = f.defaultValue
	f.touched = 0
	f.changed = 0
	f.custom = nil
	f.errOverride = nil
	f.warnOverride = nil
	f.mu.Unlock()

	f.engine.Invalidate()
	f.recompute(recomputeFull)
	f.notifyDiff(snap)
}

// Validate runs the validation config for the given event. An empty
// event runs every configured check. The outcome settles immediately
// when all selected checks are synchronous.
func (f *Field) Validate(ctx context.Context, event schema.Event) *validation.Outcome {
	f.adoptOwnerDefaults()

	f.mu.Lock()
	snap := f.snapshotLocked()
	in := f.checkInputLocked()
	f.mu.Unlock()

	out, stale := f.engine.Run(ctx, event, in)
	if stale {
		f.recompute(recomputeFull)
	}
	f.notifyDiff(snap)
	return out
}

// Required returns the field's required setting.
func (f *Field) Required() schema.Requirement {
	return f.engine.Required()
}

// SetRequired updates the required setting, dropping any stale
// required message so the next validation recomputes it. Un-requiring
// a field that has no validation config is a silent no-op.
func (f *Field) SetRequired(req schema.Requirement) {
	f.mu.Lock()
	snap := f.snapshotLocked()
	f.mu.Unlock()

	if f.engine.SetRequired(req) {
		f.recompute(recomputeFull)
		f.notifyDiff(snap)
	}
}

// Validation returns a deep copy of the validation config, or nil.
func (f *Field) Validation() *schema.Validation {
	return f.engine.Config().Clone()
}

// SetValidation replaces the validation config wholesale (deep copy)
// and drops all validated messages.
func (f *Field) SetValidation(v *schema.Validation) {
	f.mu.Lock()
	snap := f.snapshotLocked()
	f.mu.Unlock()

	f.engine.SetConfig(v.Clone())
	f.recompute(recomputeFull)
	f.notifyDiff(snap)
}

// HoldValidation sets the validation hold scope. Names are event
// types; held validations are skipped, not queued.
func (f *Field) HoldValidation(h schema.Hold) {
	f.engine.SetHold(h)
}

// HoldListeners sets the listener hold scope. Names are parameter
// names; held notifications are dropped.
func (f *Field) HoldListeners(h schema.Hold) {
	f.disp.SetHold(h)
}

// AddListener registers a listener for one observable parameter (or
// dispatch.ParamAny for the catch-all) and returns its handle.
func (f *Field) AddListener(param string, fn dispatch.Listener) dispatch.Handle {
	return f.disp.Add(param, fn)
}

// RemoveListener drops a registration, reporting whether the handle
// was registered.
func (f *Field) RemoveListener(h dispatch.Handle) bool {
	return f.disp.Remove(h)
}

// adoptOwnerDefaults materializes the owner's shared validation config
// on a field that has none of its own. Runs lazily before validation,
// so a field configured later keeps its own config.
func (f *Field) adoptOwnerDefaults() {
	if f.owner == nil || f.engine.Config() != nil {
		return
	}
	if d := f.owner.DefaultValidation(); d != nil {
		f.engine.SetConfig(d.Clone())
	}
}

// applyAsync is the engine's hook for async passes whose checks
// changed message slots after Run returned.
func (f *Field) applyAsync() {
	f.mu.Lock()
	snap := f.snapshotLocked()
	f.mu.Unlock()

	f.recompute(recomputeFull)
	f.notifyDiff(snap)
}

func (f *Field) checkInputLocked() schema.CheckInput {
	return schema.CheckInput{
		Key:     f.key,
		Value:   f.value,
		Touched: f.touched,
		Changed: f.changed,
	}
}

func copyBool(p *bool) *bool {
	if p == nil {
		return nil
	}
	b := *p
	return &b
}
