package field

import (
	"github.com/artpar/formgate/core/dispatch"
	"github.com/artpar/formgate/core/schema"
)

// snapshot captures the observable parameters before a mutation so
// notifyDiff can tell which ones actually changed.
type snapshot struct {
	value    any
	touched  int
	changed  int
	err      bool
	warning  bool
	messages []schema.Message
}

func (f *Field) snapshotLocked() snapshot {
	return snapshot{
		value:    f.value,
		touched:  f.touched,
		changed:  f.changed,
		err:      f.err,
		warning:  f.warning,
		messages: f.messages,
	}
}

type recomputeMode int

const (
	// recomputeFull rebuilds the composed message list and re-derives
	// both flags from the three sources.
	recomputeFull recomputeMode = iota
	// recomputeError re-derives only the error flag from the current
	// list, leaving the list and the warning flag untouched.
	recomputeError
	// recomputeWarning re-derives only the warning flag.
	recomputeWarning
)

// recompute is the message composer. The composed order is fixed:
// required message first, rule messages in rule order, custom messages
// in append order. No messages at all composes to nil. A pinned
// override wins over the message-derived flag.
func (f *Field) recompute(mode recomputeMode) {
	switch mode {
	case recomputeError:
		f.mu.Lock()
		f.err = deriveFlag(f.messages, schema.KindError, f.errOverride)
		f.mu.Unlock()
		return
	case recomputeWarning:
		f.mu.Lock()
		f.warning = deriveFlag(f.messages, schema.KindWarning, f.warnOverride)
		f.mu.Unlock()
		return
	}

	validated := f.engine.Messages()

	f.mu.Lock()
	defer f.mu.Unlock()

	var composed []schema.Message
	composed = append(composed, validated...)
	composed = append(composed, f.custom...)
	f.messages = composed
	f.err = deriveFlag(f.messages, schema.KindError, f.errOverride)
	f.warning = deriveFlag(f.messages, schema.KindWarning, f.warnOverride)
}

// deriveFlag resolves one flag: the override pins it when set,
// otherwise any message of the kind raises it.
func deriveFlag(messages []schema.Message, kind schema.Kind, override *bool) bool {
	if override != nil {
		return *override
	}
	return schema.HasKind(messages, kind)
}

// notifyDiff compares the current state against a pre-mutation
// snapshot and notifies listeners of every parameter whose value
// observably differs, followed by one catch-all notification naming
// the changed parameters.
func (f *Field) notifyDiff(before snapshot) {
	f.mu.Lock()
	after := f.snapshotLocked()
	f.mu.Unlock()

	var fired []string
	note := func(param string, old, new any) {
		if f.disp.Notify(param, old, new) {
			f.metrics.ListenersNotified(param)
			fired = append(fired, param)
		}
	}

	note(dispatch.ParamValue, before.value, after.value)
	note(dispatch.ParamTouched, before.touched, after.touched)
	note(dispatch.ParamChanged, before.changed, after.changed)
	note(dispatch.ParamError, before.err, after.err)
	note(dispatch.ParamWarning, before.warning, after.warning)
	note(dispatch.ParamMessages, before.messages, after.messages)

	if len(fired) > 0 {
		f.disp.FireAny(fired)
	}
}

// notify delivers a single-parameter change outside the diff pass
// (counter overrides and flag pins notify only themselves).
func (f *Field) notify(param string, old, new any) {
	if f.disp.Notify(param, old, new) {
		f.metrics.ListenersNotified(param)
	}
}
