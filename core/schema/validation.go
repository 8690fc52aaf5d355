package schema

import (
	"github.com/tiendc/go-deepcopy"
)

// Validation is a field's complete validation config: an optional
// required check plus an ordered rule list, with defaults that apply
// when individual rules leave them out.
type Validation struct {
	// Required configures the built-in presence check. The zero
	// Requirement means the field is not required.
	Required Requirement

	// Rules run in order after the required check. Message slots are
	// index-stable: rule i always owns slot i of the rule messages.
	Rules []Rule

	// On is the default trigger for rules that don't set their own.
	// Empty means EventDemand.
	On Event

	// RequiredCheck replaces DefaultRequiredCheck for the required
	// check when Required.Rule doesn't already carry one.
	RequiredCheck CheckFunc

	// RequiredMessage replaces DefaultRequiredMessage when neither
	// Required.Message nor Required.Rule supplies one.
	RequiredMessage string
}

// DefaultOn resolves the config-level default trigger.
func (v *Validation) DefaultOn() Event {
	if v.On == "" {
		return EventDemand
	}
	return v.On
}

// RequiredRule resolves the tri-form required setting into one
// concrete rule, filling gaps from config and built-in defaults.
// Returns nil when the field is not required.
func (v *Validation) RequiredRule() *Rule {
	if !v.Required.Set {
		return nil
	}

	rule := Rule{
		Check:   v.RequiredCheck,
		Message: v.Required.Message,
	}
	if v.Required.Rule != nil {
		rule = *v.Required.Rule
	}
	if rule.Check == nil {
		rule.Check = DefaultRequiredCheck
	}
	if rule.Message == "" {
		rule.Message = v.RequiredMessage
	}
	if rule.Message == "" {
		rule.Message = DefaultRequiredMessage
	}
	return &rule
}

// Clone returns a deep copy of the config. Check functions are shared
// by reference; everything else is copied, so mutating the clone never
// leaks into the original.
func (v *Validation) Clone() *Validation {
	if v == nil {
		return nil
	}

	out := &Validation{
		On:              v.On,
		RequiredCheck:   v.RequiredCheck,
		RequiredMessage: v.RequiredMessage,
	}
	out.Required = Requirement{Set: v.Required.Set, Message: v.Required.Message}
	if v.Required.Rule != nil {
		r := *v.Required.Rule
		out.Required.Rule = &r
	}
	if v.Rules != nil {
		out.Rules = make([]Rule, len(v.Rules))
		copy(out.Rules, v.Rules)
	}
	return out
}

// CloneMessages deep-copies a message list, preserving nil.
func CloneMessages(messages []Message) []Message {
	if messages == nil {
		return nil
	}
	var out []Message
	if err := deepcopy.Copy(&out, messages); err != nil {
		return append([]Message(nil), messages...)
	}
	return out
}
