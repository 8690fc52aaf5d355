package schema

import (
	"context"
	"reflect"
)

// CheckInput carries the field state a check function may inspect.
type CheckInput struct {
	// Key is the field key the check is running against.
	Key string

	// Value is the field's current value.
	Value any

	// Touched and Changed are the field's interaction counters.
	Touched int
	Changed int
}

// CheckFunc evaluates a field value. Returning false or a non-nil error
// counts as a failed check; errors never propagate past the engine.
type CheckFunc func(ctx context.Context, in CheckInput) (bool, error)

// Rule is a single validation check with its message and trigger.
type Rule struct {
	// Check evaluates the field value. Required.
	Check CheckFunc

	// Message is the text attached when the check fails (or passes,
	// when PassKind is set).
	Message string

	// Kind is the message kind on failure. Empty means KindError.
	Kind Kind

	// PassKind, when set, attaches the message with this kind on a
	// passing check instead of clearing the rule's message slot.
	PassKind Kind

	// On is the trigger event. Empty falls back to the validation
	// config default, then to EventDemand.
	On Event

	// Async runs the check on its own goroutine; Validate returns
	// before the result settles.
	Async bool
}

// FailKind returns the kind attached on failure.
func (r Rule) FailKind() Kind {
	if r.Kind == "" {
		return KindError
	}
	return r.Kind
}

// Requirement is the tri-form required setting: unset, a plain flag, a
// flag with a custom message, or a full rule overriding everything.
type Requirement struct {
	// Set indicates the field is required at all.
	Set bool `yaml:"set" json:"set"`

	// Message overrides the default required message.
	Message string `yaml:"message,omitempty" json:"message,omitempty"`

	// Rule, when non-nil, overrides check, message, kind and trigger.
	Rule *Rule `yaml:"-" json:"-"`
}

// Require marks a field required with the default check and message.
func Require() Requirement {
	return Requirement{Set: true}
}

// RequireMessage marks a field required with a custom message text.
func RequireMessage(msg string) Requirement {
	return Requirement{Set: true, Message: msg}
}

// RequireRule marks a field required with a full rule override.
func RequireRule(r Rule) Requirement {
	return Requirement{Set: true, Rule: &r}
}

// DefaultRequiredMessage is attached when a required check fails and no
// custom message is configured.
const DefaultRequiredMessage = "Required field"

// DefaultRequiredCheck is the built-in presence check: nil, the empty
// string, and numeric zero all fail it.
func DefaultRequiredCheck(_ context.Context, in CheckInput) (bool, error) {
	return !IsEmpty(in.Value), nil
}

// IsEmpty reports whether a value fails the built-in presence check.
func IsEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case int:
		return x == 0
	case int8, int16, int32, int64:
		return reflect.ValueOf(x).Int() == 0
	case uint, uint8, uint16, uint32, uint64:
		return reflect.ValueOf(x).Uint() == 0
	case float32:
		return x == 0
	case float64:
		return x == 0
	}
	return false
}
