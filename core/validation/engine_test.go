// Package validation tests for trigger selection, slot memory,
// sync/async evaluation, and outcome combination.
package validation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/formgate/core/schema"
)

func newTestEngine(onAsync func()) *Engine {
	return New("test", zerolog.Nop(), nil, nil, onAsync)
}

func passCheck(_ context.Context, _ schema.CheckInput) (bool, error) {
	return true, nil
}

func failCheck(_ context.Context, _ schema.CheckInput) (bool, error) {
	return false, nil
}

func runSync(t *testing.T, e *Engine, event schema.Event, in schema.CheckInput) (bool, bool) {
	t.Helper()
	out, changed := e.Run(context.Background(), event, in)
	ok, err := out.Wait(context.Background())
	if err != nil {
		t.Fatalf("outcome did not settle: %v", err)
	}
	return ok, changed
}

// -----------------------------------------------------------------------------
// Short-circuit tests
// -----------------------------------------------------------------------------

func TestRunNoConfig(t *testing.T) {
	e := newTestEngine(nil)

	ok, changed := runSync(t, e, "", schema.CheckInput{})
	if !ok || changed {
		t.Errorf("expected clean pass with no config, got ok=%v changed=%v", ok, changed)
	}
}

func TestRunHoldAll(t *testing.T) {
	e := newTestEngine(nil)
	e.SetConfig(&schema.Validation{
		Rules: []schema.Rule{{Check: failCheck, Message: "nope", On: schema.EventChange}},
	})
	e.SetHold(schema.HoldAll())

	ok, changed := runSync(t, e, schema.EventChange, schema.CheckInput{})
	if !ok || changed {
		t.Error("expected held validation to pass silently")
	}
}

func TestRunHoldListedEvent(t *testing.T) {
	e := newTestEngine(nil)
	e.SetConfig(&schema.Validation{
		Rules: []schema.Rule{{Check: failCheck, Message: "nope", On: schema.EventChange}},
	})
	e.SetHold(schema.HoldOnly(string(schema.EventChange)))

	ok, _ := runSync(t, e, schema.EventChange, schema.CheckInput{})
	if !ok {
		t.Error("expected held event to pass silently")
	}

	// Other events still run.
	e.SetConfig(&schema.Validation{
		Rules: []schema.Rule{{Check: failCheck, Message: "nope", On: schema.EventTouch}},
	})
	ok, _ = runSync(t, e, schema.EventTouch, schema.CheckInput{})
	if ok {
		t.Error("expected unheld event to run its rule")
	}
}

func TestRunEmptyEventSkipsHeldTriggers(t *testing.T) {
	e := newTestEngine(nil)
	e.SetConfig(&schema.Validation{
		Rules: []schema.Rule{
			{Check: failCheck, Message: "change rule", On: schema.EventChange},
			{Check: failCheck, Message: "demand rule", On: schema.EventDemand},
		},
	})
	e.SetHold(schema.HoldOnly(string(schema.EventChange)))

	ok, changed := runSync(t, e, "", schema.CheckInput{})
	if ok {
		t.Error("expected demand rule to run and fail")
	}
	if !changed {
		t.Error("expected slot change")
	}

	msgs := e.Messages()
	if len(msgs) != 1 || msgs[0].Text != "demand rule" {
		t.Errorf("messages = %+v, want only the demand rule's", msgs)
	}
}

// -----------------------------------------------------------------------------
// Trigger selection tests
// -----------------------------------------------------------------------------

func TestRunTriggerMatching(t *testing.T) {
	tests := []struct {
		name    string
		ruleOn  schema.Event
		event   schema.Event
		wantRan bool
	}{
		{"change on change", schema.EventChange, schema.EventChange, true},
		{"change on touch", schema.EventChange, schema.EventTouch, true},
		{"touch on change", schema.EventTouch, schema.EventChange, false},
		{"demand on change", schema.EventDemand, schema.EventChange, false},
		{"demand on empty", schema.EventDemand, "", true},
		{"change on empty", schema.EventChange, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ran := false
			e := newTestEngine(nil)
			e.SetConfig(&schema.Validation{
				Rules: []schema.Rule{{
					Check: func(_ context.Context, _ schema.CheckInput) (bool, error) {
						ran = true
						return true, nil
					},
					Message: "m",
					On:      tt.ruleOn,
				}},
			})

			runSync(t, e, tt.event, schema.CheckInput{})
			if ran != tt.wantRan {
				t.Errorf("rule ran = %v, want %v", ran, tt.wantRan)
			}
		})
	}
}

func TestRunConfigLevelDefaultTrigger(t *testing.T) {
	ran := false
	e := newTestEngine(nil)
	e.SetConfig(&schema.Validation{
		On: schema.EventChange,
		Rules: []schema.Rule{{
			Check: func(_ context.Context, _ schema.CheckInput) (bool, error) {
				ran = true
				return true, nil
			},
			Message: "m",
		}},
	})

	runSync(t, e, schema.EventChange, schema.CheckInput{})
	if !ran {
		t.Error("expected rule to inherit the config-level trigger")
	}
}

// -----------------------------------------------------------------------------
// Required check tests
// -----------------------------------------------------------------------------

func TestRunRequiredDefaultCheck(t *testing.T) {
	e := newTestEngine(nil)
	e.SetConfig(&schema.Validation{Required: schema.Require()})

	ok, changed := runSync(t, e, "", schema.CheckInput{Value: 0})
	if ok {
		t.Error("expected zero value to fail the required check")
	}
	if !changed {
		t.Error("expected the required slot to change")
	}

	msgs := e.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Text != schema.DefaultRequiredMessage || msgs[0].Kind != schema.KindError {
		t.Errorf("message = %+v", msgs[0])
	}
}

func TestRunRequiredStringForm(t *testing.T) {
	e := newTestEngine(nil)
	e.SetConfig(&schema.Validation{Required: schema.RequireMessage("need this")})

	runSync(t, e, "", schema.CheckInput{Value: ""})
	msgs := e.Messages()
	if len(msgs) != 1 || msgs[0].Text != "need this" {
		t.Errorf("messages = %+v, want the custom text", msgs)
	}
}

func TestRunRequiredRecovers(t *testing.T) {
	e := newTestEngine(nil)
	e.SetConfig(&schema.Validation{Required: schema.Require()})

	runSync(t, e, "", schema.CheckInput{Value: ""})
	ok, changed := runSync(t, e, "", schema.CheckInput{Value: "filled"})
	if !ok {
		t.Error("expected required check to pass")
	}
	if !changed {
		t.Error("expected the required slot to clear")
	}
	if msgs := e.Messages(); len(msgs) != 0 {
		t.Errorf("expected no messages, got %+v", msgs)
	}
}

// -----------------------------------------------------------------------------
// Slot memory tests
// -----------------------------------------------------------------------------

func TestRunUnchangedSlotReportsNoChange(t *testing.T) {
	e := newTestEngine(nil)
	e.SetConfig(&schema.Validation{
		Rules: []schema.Rule{{Check: failCheck, Message: "always", On: schema.EventChange}},
	})

	_, changed := runSync(t, e, schema.EventChange, schema.CheckInput{})
	if !changed {
		t.Fatal("expected first failure to change the slot")
	}

	_, changed = runSync(t, e, schema.EventChange, schema.CheckInput{})
	if changed {
		t.Error("expected identical failure to leave the slot unchanged")
	}
}

func TestRunPassKind(t *testing.T) {
	e := newTestEngine(nil)
	e.SetConfig(&schema.Validation{
		Rules: []schema.Rule{{
			Check:    passCheck,
			Message:  "looks good",
			PassKind: schema.KindInfo,
			On:       schema.EventChange,
		}},
	})

	ok, changed := runSync(t, e, schema.EventChange, schema.CheckInput{})
	if !ok {
		t.Error("expected the check to pass")
	}
	if !changed {
		t.Error("expected the pass message to land in the slot")
	}

	msgs := e.Messages()
	if len(msgs) != 1 || msgs[0].Kind != schema.KindInfo {
		t.Errorf("messages = %+v, want one info message", msgs)
	}
}

func TestRunRuleMessageOrderIsIndexStable(t *testing.T) {
	e := newTestEngine(nil)
	e.SetConfig(&schema.Validation{
		Rules: []schema.Rule{
			{Check: passCheck, Message: "first", On: schema.EventChange},
			{Check: failCheck, Message: "second", On: schema.EventChange},
			{Check: failCheck, Message: "third", On: schema.EventChange},
		},
	})

	runSync(t, e, schema.EventChange, schema.CheckInput{})
	msgs := e.Messages()
	if len(msgs) != 2 || msgs[0].Text != "second" || msgs[1].Text != "third" {
		t.Errorf("messages = %+v, want [second third]", msgs)
	}
}

func TestInvalidate(t *testing.T) {
	e := newTestEngine(nil)
	e.SetConfig(&schema.Validation{
		Required: schema.Require(),
		Rules:    []schema.Rule{{Check: failCheck, Message: "rule", On: schema.EventChange}},
	})

	runSync(t, e, "", schema.CheckInput{Value: ""})
	if len(e.Messages()) != 2 {
		t.Fatal("expected two messages before invalidate")
	}

	if !e.Invalidate() {
		t.Error("expected Invalidate to report dropped messages")
	}
	if len(e.Messages()) != 0 {
		t.Error("expected no messages after invalidate")
	}
	if e.Invalidate() {
		t.Error("expected second Invalidate to be a no-op")
	}
}

func TestSetRequired(t *testing.T) {
	e := newTestEngine(nil)

	// Un-requiring with no config is a silent no-op.
	if e.SetRequired(schema.Requirement{}) {
		t.Error("expected no-op for unset requirement on empty config")
	}
	if e.Config() != nil {
		t.Error("expected no config to be materialized")
	}

	// Requiring materializes a config.
	if !e.SetRequired(schema.Require()) {
		t.Error("expected requirement to apply")
	}
	ok, _ := runSync(t, e, "", schema.CheckInput{Value: ""})
	if ok {
		t.Error("expected empty value to fail")
	}

	// Updating the requirement clears the stale slot.
	e.SetRequired(schema.RequireMessage("new text"))
	if len(e.Messages()) != 0 {
		t.Error("expected stale required message to be dropped")
	}
	runSync(t, e, "", schema.CheckInput{Value: ""})
	if msgs := e.Messages(); len(msgs) != 1 || msgs[0].Text != "new text" {
		t.Errorf("messages = %+v, want the new text", msgs)
	}
}

// -----------------------------------------------------------------------------
// Failure mode tests
// -----------------------------------------------------------------------------

func TestRunCheckErrorCountsAsFailed(t *testing.T) {
	e := newTestEngine(nil)
	e.SetConfig(&schema.Validation{
		Rules: []schema.Rule{{
			Check: func(_ context.Context, _ schema.CheckInput) (bool, error) {
				return true, errors.New("boom")
			},
			Message: "broken",
			On:      schema.EventChange,
		}},
	})

	ok, _ := runSync(t, e, schema.EventChange, schema.CheckInput{})
	if ok {
		t.Error("expected erroring check to count as failed")
	}
	if msgs := e.Messages(); len(msgs) != 1 || msgs[0].Text != "broken" {
		t.Errorf("messages = %+v", msgs)
	}
}

func TestRunCheckPanicCountsAsFailed(t *testing.T) {
	e := newTestEngine(nil)
	e.SetConfig(&schema.Validation{
		Rules: []schema.Rule{{
			Check: func(_ context.Context, _ schema.CheckInput) (bool, error) {
				panic("kaboom")
			},
			Message: "panicked",
			On:      schema.EventChange,
		}},
	})

	ok, _ := runSync(t, e, schema.EventChange, schema.CheckInput{})
	if ok {
		t.Error("expected panicking check to count as failed")
	}
}

// -----------------------------------------------------------------------------
// Async tests
// -----------------------------------------------------------------------------

func TestRunAsyncDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	e := newTestEngine(nil)
	e.SetConfig(&schema.Validation{
		Rules: []schema.Rule{{
			Check: func(_ context.Context, _ schema.CheckInput) (bool, error) {
				<-release
				return false, nil
			},
			Message: "slow",
			On:      schema.EventChange,
			Async:   true,
		}},
	})

	out, changed := e.Run(context.Background(), schema.EventChange, schema.CheckInput{})
	if changed {
		t.Error("expected no sync slot change")
	}
	if out.Settled() {
		t.Fatal("expected outcome to be pending while the check runs")
	}

	close(release)
	ok, err := out.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if ok {
		t.Error("expected async failure")
	}
	if msgs := e.Messages(); len(msgs) != 1 || msgs[0].Text != "slow" {
		t.Errorf("messages = %+v", msgs)
	}
}

func TestRunAsyncCallsOnAsyncOnce(t *testing.T) {
	var mu sync.Mutex
	applied := 0
	done := make(chan struct{})

	e := New("test", zerolog.Nop(), nil, nil, func() {
		mu.Lock()
		applied++
		mu.Unlock()
	})
	e.SetConfig(&schema.Validation{
		Rules: []schema.Rule{
			{Check: failCheck, Message: "a", On: schema.EventChange, Async: true},
			{Check: failCheck, Message: "b", On: schema.EventChange, Async: true},
		},
	})

	out, _ := e.Run(context.Background(), schema.EventChange, schema.CheckInput{})
	go func() {
		out.Wait(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("outcome never settled")
	}

	mu.Lock()
	defer mu.Unlock()
	if applied != 1 {
		t.Errorf("expected exactly one recompute callback, got %d", applied)
	}
}

func TestRunMixedSyncAsync(t *testing.T) {
	e := newTestEngine(nil)
	e.SetConfig(&schema.Validation{
		Rules: []schema.Rule{
			{Check: failCheck, Message: "sync fail", On: schema.EventChange},
			{Check: passCheck, Message: "async pass", On: schema.EventChange, Async: true},
		},
	})

	out, changed := e.Run(context.Background(), schema.EventChange, schema.CheckInput{})
	if !changed {
		t.Error("expected the sync failure to change its slot before return")
	}

	ok, err := out.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if ok {
		t.Error("expected combined result to fail on the sync rule")
	}
}

// -----------------------------------------------------------------------------
// Outcome tests
// -----------------------------------------------------------------------------

func TestOutcomeSettled(t *testing.T) {
	o := Settled(true)
	if !o.Settled() || !o.OK() {
		t.Error("expected settled passing outcome")
	}

	o = Settled(false)
	if !o.Settled() || o.OK() {
		t.Error("expected settled failing outcome")
	}
}

func TestOutcomeWaitContextCancel(t *testing.T) {
	o := newOutcome()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := o.Wait(ctx); err == nil {
		t.Error("expected context error from Wait")
	}
}

func TestCombine(t *testing.T) {
	if !Combine(Settled(true), Settled(true)).OK() {
		t.Error("expected all-pass combination to pass")
	}
	if Combine(Settled(true), Settled(false)).OK() {
		t.Error("expected any-fail combination to fail")
	}
	if !Combine().OK() {
		t.Error("expected empty combination to pass")
	}
}

func TestCombinePending(t *testing.T) {
	pending := newOutcome()
	combined := Combine(Settled(true), pending)

	if combined.Settled() {
		t.Fatal("expected combination to wait for the pending outcome")
	}

	pending.settle(false)
	ok, err := combined.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if ok {
		t.Error("expected combination to fail once the pending outcome failed")
	}
}
