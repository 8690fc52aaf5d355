// Package dispatch tests for listener registration, storage growth,
// hold scopes, and identity-gated notification.
package dispatch

import (
	"testing"

	"github.com/artpar/formgate/core/schema"
)

func TestAddAndNotify(t *testing.T) {
	d := New()

	var got []Change
	d.Add(ParamValue, func(c Change) { got = append(got, c) })

	if !d.Notify(ParamValue, 1, 2) {
		t.Fatal("expected notification for changed value")
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(got))
	}
	if got[0].Param != ParamValue || got[0].Old != 1 || got[0].New != 2 {
		t.Errorf("unexpected change: %+v", got[0])
	}
}

func TestNotifyUnchangedValueSkipped(t *testing.T) {
	d := New()

	calls := 0
	d.Add(ParamValue, func(Change) { calls++ })

	if d.Notify(ParamValue, "same", "same") {
		t.Error("expected no notification for identical values")
	}
	if calls != 0 {
		t.Errorf("expected 0 deliveries, got %d", calls)
	}
}

func TestDispatchOrderIsRegistrationOrder(t *testing.T) {
	d := New()

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		d.Add(ParamError, func(Change) { order = append(order, i) })
	}

	d.Notify(ParamError, false, true)

	for i, v := range order {
		if v != i {
			t.Fatalf("dispatch order = %v, want ascending", order)
		}
	}
}

// -----------------------------------------------------------------------------
// Storage growth/shrink tests
// -----------------------------------------------------------------------------

func TestSlotGrowsAndShrinks(t *testing.T) {
	d := New()

	h1 := d.Add(ParamValue, func(Change) {})
	s := d.slots[ParamValue]
	if s.many != nil {
		t.Error("expected single-entry storage after first add")
	}

	h2 := d.Add(ParamValue, func(Change) {})
	if d.slots[ParamValue].many == nil {
		t.Error("expected multi-entry storage after second add")
	}

	if !d.Remove(h2) {
		t.Fatal("expected second handle to be registered")
	}
	if d.slots[ParamValue].many != nil {
		t.Error("expected storage to shrink back to a single entry")
	}

	if !d.Remove(h1) {
		t.Fatal("expected first handle to be registered")
	}
	if _, ok := d.slots[ParamValue]; ok {
		t.Error("expected empty parameter to release its storage")
	}
}

func TestRemoveUnknownHandle(t *testing.T) {
	d := New()
	d.Add(ParamValue, func(Change) {})

	if d.Remove(Handle(999)) {
		t.Error("expected removal of unknown handle to report false")
	}
}

func TestReAddAfterEmptyBehavesLikeFirstAdd(t *testing.T) {
	d := New()

	h := d.Add(ParamTouched, func(Change) {})
	d.Remove(h)
	if d.Len(ParamTouched) != 0 {
		t.Fatal("expected empty parameter")
	}

	calls := 0
	d.Add(ParamTouched, func(Change) { calls++ })
	d.Notify(ParamTouched, 0, 1)

	if calls != 1 {
		t.Errorf("expected re-added listener to fire once, got %d", calls)
	}
}

// -----------------------------------------------------------------------------
// Hold tests
// -----------------------------------------------------------------------------

func TestHoldSuppressesDelivery(t *testing.T) {
	d := New()

	calls := 0
	d.Add(ParamValue, func(Change) { calls++ })
	d.SetHold(schema.HoldOnly(ParamValue))

	// The parameter still counts as changed, but nothing is delivered.
	if !d.Notify(ParamValue, 1, 2) {
		t.Error("expected held notification to still report a change")
	}
	if calls != 0 {
		t.Errorf("expected 0 deliveries under hold, got %d", calls)
	}

	d.SetHold(schema.Hold{})
	d.Notify(ParamValue, 2, 3)
	if calls != 1 {
		t.Errorf("expected delivery after hold release, got %d", calls)
	}
}

func TestFireAny(t *testing.T) {
	d := New()

	var got Change
	calls := 0
	d.Add(ParamAny, func(c Change) {
		calls++
		got = c
	})

	d.FireAny([]string{ParamValue, ParamChanged})

	if calls != 1 {
		t.Fatalf("expected 1 catch-all delivery, got %d", calls)
	}
	names, ok := got.New.([]string)
	if !ok || len(names) != 2 {
		t.Errorf("expected changed parameter names, got %#v", got.New)
	}

	d.SetHold(schema.HoldAll())
	d.FireAny([]string{ParamValue})
	if calls != 1 {
		t.Error("expected catch-all to be held")
	}
}

// -----------------------------------------------------------------------------
// Identity tests
// -----------------------------------------------------------------------------

func TestIdentical(t *testing.T) {
	sliceA := []schema.Message{{Text: "a"}}
	sliceB := []schema.Message{{Text: "a"}}
	ptr := &struct{}{}

	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"both nil", nil, nil, true},
		{"nil vs value", nil, 1, false},
		{"equal ints", 1, 1, true},
		{"different ints", 1, 2, false},
		{"equal strings", "x", "x", true},
		{"different types", 1, "1", false},
		{"same slice", sliceA, sliceA, true},
		{"equal but distinct slices", sliceA, sliceB, false},
		{"nil and empty slice", []schema.Message(nil), []schema.Message{}, true},
		{"same pointer", ptr, ptr, true},
		{"bools", true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Identical(tt.a, tt.b); got != tt.want {
				t.Errorf("Identical(%#v, %#v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
