package registry

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestCreateAndGet(t *testing.T) {
	r := New(zerolog.Nop())

	e, err := r.Create("signup")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if e.Key() != "signup" {
		t.Errorf("Key() = %q", e.Key())
	}

	got, ok := r.Get("signup")
	if !ok || got != e {
		t.Error("expected to get the registered entity back")
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestCreateGeneratesKey(t *testing.T) {
	r := New(zerolog.Nop())

	a, err := r.Create("")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	b, err := r.Create("")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.Key() == "" || b.Key() == "" {
		t.Error("expected generated keys")
	}
	if a.Key() == b.Key() {
		t.Error("expected distinct generated keys")
	}
}

func TestCreateDuplicateKeyFails(t *testing.T) {
	r := New(zerolog.Nop())

	if _, err := r.Create("dup"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := r.Create("dup"); err == nil {
		t.Error("expected an error for a duplicate key")
	}
}

func TestDestroyUnregisters(t *testing.T) {
	r := New(zerolog.Nop())
	e, _ := r.Create("signup")

	e.Destroy()
	if _, ok := r.Get("signup"); ok {
		t.Error("expected the destroyed entity to be unregistered")
	}

	// The key is free again.
	if _, err := r.Create("signup"); err != nil {
		t.Errorf("create after destroy: %v", err)
	}
}

func TestRemoveKeepsEntityAlive(t *testing.T) {
	r := New(zerolog.Nop())
	e, _ := r.Create("signup")

	if !r.Remove("signup") {
		t.Fatal("expected removal to succeed")
	}
	if r.Remove("signup") {
		t.Error("expected second removal to report false")
	}

	// The entity still works standalone.
	e.CreateField("name", "x")
	if !e.HasField("name") {
		t.Error("expected the removed entity to stay usable")
	}
}

func TestKeysSorted(t *testing.T) {
	r := New(zerolog.Nop())
	r.Create("zeta")
	r.Create("alpha")

	keys := r.Keys()
	if len(keys) != 2 || keys[0] != "alpha" || keys[1] != "zeta" {
		t.Errorf("Keys() = %v", keys)
	}
}

func TestClear(t *testing.T) {
	r := New(zerolog.Nop())
	r.Create("a")
	r.Create("b")

	r.Clear()
	if r.Len() != 0 {
		t.Errorf("Len() = %d after clear", r.Len())
	}
}
