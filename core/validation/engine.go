// Package validation evaluates a field's required check and rule list
// against a trigger event. The engine remembers the last message each
// check produced, so a pass that changes nothing triggers no message
// recompute downstream. Checks may run synchronously or on their own
// goroutine; the engine never blocks on an async check.
package validation

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/formgate/core/schema"
	"github.com/artpar/formgate/ports"
)

// Engine runs a field's validation config. Each check owns a message
// slot: slot 0 is the required check, slot i+1 is rule i. Slot memory
// doubles as the field's validated message source.
type Engine struct {
	key string

	mu     sync.Mutex
	config *schema.Validation
	slots  []*schema.Message
	hold   schema.Hold

	// onAsync runs after an async pass settles with changed slots.
	// The owning field recomputes messages and notifies from it.
	onAsync func()

	log     zerolog.Logger
	metrics ports.Metrics
	clock   ports.Clock
}

// New creates an engine for the field with the given key.
func New(key string, log zerolog.Logger, metrics ports.Metrics, clock ports.Clock, onAsync func()) *Engine {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &Engine{
		key:     key,
		onAsync: onAsync,
		log:     log,
		metrics: metrics,
		clock:   clock,
	}
}

// SetConfig replaces the validation config and resets slot memory.
func (e *Engine) SetConfig(cfg *schema.Validation) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.config = cfg
	if cfg == nil {
		e.slots = nil
		return
	}
	e.slots = make([]*schema.Message, 1+len(cfg.Rules))
}

// Config returns the live config reference. Callers that hand it out
// must clone it first.
func (e *Engine) Config() *schema.Validation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.config
}

// SetRequired updates only the required setting of the current config,
// clearing the stale required slot so the next pass recomputes it.
// With no config present, an unset requirement is a silent no-op and a
// set one materializes a config holding just the requirement. Reports
// whether anything was applied.
func (e *Engine) SetRequired(req schema.Requirement) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.config == nil {
		if !req.Set {
			return false
		}
		e.config = &schema.Validation{Required: req}
		e.slots = make([]*schema.Message, 1)
		return true
	}
	e.config.Required = req
	if len(e.slots) > 0 {
		e.slots[0] = nil
	}
	return true
}

// Required returns the current required setting.
func (e *Engine) Required() schema.Requirement {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.config == nil {
		return schema.Requirement{}
	}
	return e.config.Required
}

// SetHold replaces the validation hold scope. Names are event types.
func (e *Engine) SetHold(h schema.Hold) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hold = h
}

// Hold returns the current hold scope.
func (e *Engine) Hold() schema.Hold {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hold
}

// Messages returns the remembered check messages in slot order:
// required first, then rules in config order. Empty slots are omitted.
func (e *Engine) Messages() []schema.Message {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []schema.Message
	for _, m := range e.slots {
		if m != nil {
			out = append(out, *m)
		}
	}
	return out
}

// Invalidate drops all slot memory. Reports whether any slot held a
// message.
func (e *Engine) Invalidate() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	had := false
	for i, m := range e.slots {
		if m != nil {
			had = true
			e.slots[i] = nil
		}
	}
	return had
}

// InvalidateRequired drops only the required check's slot, forcing the
// next pass to recompute it. Reports whether it held a message.
func (e *Engine) InvalidateRequired() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.slots) == 0 || e.slots[0] == nil {
		return false
	}
	e.slots[0] = nil
	return true
}

// work pairs a resolved rule with its message slot.
type work struct {
	slot int
	rule schema.Rule
}

// Run evaluates the config for one event. An empty event runs every
// check regardless of trigger (minus a selective hold); a named event
// runs only checks whose trigger it satisfies. Returns the outcome and
// whether any synchronous check changed its slot (the caller owes a
// message recompute when true). Async slot changes recompute via the
// onAsync hook once all checks from this pass have settled.
func (e *Engine) Run(ctx context.Context, event schema.Event, in schema.CheckInput) (*Outcome, bool) {
	e.mu.Lock()
	hold := e.hold
	var required *schema.Rule
	var rules []schema.Rule
	var defaultOn schema.Event
	if e.config != nil {
		required = e.config.RequiredRule()
		rules = append(rules, e.config.Rules...)
		defaultOn = e.config.DefaultOn()
	}
	hasConfig := e.config != nil
	e.mu.Unlock()

	if !hasConfig {
		return Settled(true), false
	}
	if hold.Active() && !hold.Selective() {
		return Settled(true), false
	}
	if event != "" && hold.Blocks(string(event)) {
		return Settled(true), false
	}

	var selected []work
	appendWork := func(slot int, rule schema.Rule) {
		if rule.Check == nil {
			return
		}
		trigger := rule.On
		if trigger == "" {
			trigger = defaultOn
		}
		if event == "" {
			if hold.Selective() && hold.Blocks(string(trigger)) {
				return
			}
		} else if !event.Satisfies(trigger) {
			return
		}
		selected = append(selected, work{slot: slot, rule: rule})
	}

	if required != nil {
		appendWork(0, *required)
	}
	for i, rule := range rules {
		appendWork(i+1, rule)
	}

	if len(selected) == 0 {
		return Settled(true), false
	}

	syncOK := true
	syncChanged := false
	var asyncWork []work

	for _, w := range selected {
		if w.rule.Async {
			asyncWork = append(asyncWork, w)
			continue
		}
		ok := e.eval(ctx, w.rule, in, false)
		if e.applySlot(w.slot, w.rule, ok) {
			syncChanged = true
		}
		if !ok {
			syncOK = false
		}
	}

	if len(asyncWork) == 0 {
		e.metrics.ValidationCompleted(e.key, syncOK)
		return Settled(syncOK), syncChanged
	}

	out := newOutcome()
	var wg sync.WaitGroup
	var asyncChanged, asyncFailed atomic.Bool

	for _, w := range asyncWork {
		wg.Add(1)
		go func(w work) {
			defer wg.Done()
			ok := e.eval(ctx, w.rule, in, true)
			if e.applySlot(w.slot, w.rule, ok) {
				asyncChanged.Store(true)
			}
			if !ok {
				asyncFailed.Store(true)
			}
		}(w)
	}

	go func() {
		wg.Wait()
		ok := syncOK && !asyncFailed.Load()
		if asyncChanged.Load() && e.onAsync != nil {
			e.onAsync()
		}
		e.metrics.ValidationCompleted(e.key, ok)
		out.settle(ok)
	}()

	return out, syncChanged
}

// eval runs one check. Errors and panics count as failed; neither
// escapes the engine.
func (e *Engine) eval(ctx context.Context, rule schema.Rule, in schema.CheckInput, async bool) (passed bool) {
	start := e.now()
	defer func() {
		if r := recover(); r != nil {
			passed = false
			e.log.Error().
				Str("field", e.key).
				Interface("panic", r).
				Msg("validation check panicked")
		}
		e.metrics.CheckEvaluated(e.key, passed, async, e.now().Sub(start))
	}()

	ok, err := rule.Check(ctx, in)
	if err != nil {
		e.log.Debug().
			Str("field", e.key).
			Err(err).
			Msg("validation check returned error")
		return false
	}
	return ok
}

// applySlot stores the message a check produced (or clears it on a
// plain pass) and reports whether the slot actually changed, compared
// field by field against the previous message.
func (e *Engine) applySlot(slot int, rule schema.Rule, passed bool) bool {
	var next *schema.Message
	if !passed {
		next = &schema.Message{Text: rule.Message, Kind: rule.FailKind()}
	} else if rule.PassKind != "" {
		next = &schema.Message{Text: rule.Message, Kind: rule.PassKind}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Config may have been replaced while an async check was in
	// flight; its slot no longer exists.
	if slot >= len(e.slots) {
		return false
	}
	prev := e.slots[slot]
	if prev == nil && next == nil {
		return false
	}
	if prev != nil && next != nil && *prev == *next {
		return false
	}
	e.slots[slot] = next
	return true
}

func (e *Engine) now() time.Time {
	return e.clock.Now()
}

// systemClock is the fallback when no clock is injected.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
