// Package dispatch provides per-parameter listener fan-out for fields.
// Listeners subscribe to a single observable parameter (or the
// catch-all) and are called synchronously, in registration order,
// whenever that parameter's value observably changes.
package dispatch

import (
	"sync"
	"sync/atomic"

	"github.com/artpar/formgate/core/schema"
)

// Observable parameter names.
const (
	ParamValue    = "value"
	ParamTouched  = "touched"
	ParamChanged  = "changed"
	ParamError    = "error"
	ParamWarning  = "warning"
	ParamMessages = "messages"

	// ParamAny is the catch-all: its listeners fire once per mutation
	// pass, after the per-parameter notifications.
	ParamAny = "any"
)

// Change describes a single parameter transition delivered to
// listeners. Catch-all listeners receive Param == ParamAny with New
// holding the names of the parameters that changed in the pass.
type Change struct {
	Param string
	Old   any
	New   any
}

// Listener receives parameter changes.
type Listener func(c Change)

// Handle identifies a registration for removal. Go functions are not
// comparable, so identity is carried by the handle rather than the
// callback value.
type Handle uint64

type entry struct {
	handle Handle
	fn     Listener
}

// slot stores the listeners of one parameter. It grows from a single
// inline entry to a slice on demand and shrinks back, so an idle
// parameter costs nothing and a single listener costs no slice.
type slot struct {
	one  entry
	many []entry
}

func (s *slot) add(e entry) {
	if s.many != nil {
		s.many = append(s.many, e)
		return
	}
	if s.one.fn == nil {
		s.one = e
		return
	}
	s.many = []entry{s.one, e}
	s.one = entry{}
}

// remove drops the entry with the given handle. Reports whether it was
// present and whether the slot is now empty.
func (s *slot) remove(h Handle) (removed, empty bool) {
	if s.many == nil {
		if s.one.fn != nil && s.one.handle == h {
			s.one = entry{}
			return true, true
		}
		return false, s.one.fn == nil
	}
	for i, e := range s.many {
		if e.handle == h {
			s.many = append(s.many[:i], s.many[i+1:]...)
			if len(s.many) == 1 {
				s.one = s.many[0]
				s.many = nil
			}
			return true, false
		}
	}
	return false, false
}

func (s *slot) entries() []entry {
	if s.many != nil {
		return s.many
	}
	if s.one.fn != nil {
		return []entry{s.one}
	}
	return nil
}

func (s *slot) len() int {
	if s.many != nil {
		return len(s.many)
	}
	if s.one.fn != nil {
		return 1
	}
	return 0
}

// Dispatcher fans parameter changes out to registered listeners.
type Dispatcher struct {
	mu     sync.Mutex
	slots  map[string]*slot
	hold   schema.Hold
	lastID atomic.Uint64
}

// New creates an empty dispatcher.
func New() *Dispatcher {
	return &Dispatcher{slots: make(map[string]*slot)}
}

// Add registers a listener for a parameter and returns its handle.
func (d *Dispatcher) Add(param string, fn Listener) Handle {
	h := Handle(d.lastID.Add(1))

	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.slots[param]
	if !ok {
		s = &slot{}
		d.slots[param] = s
	}
	s.add(entry{handle: h, fn: fn})
	return h
}

// Remove drops a registration. Returns whether the handle was
// registered. An emptied parameter releases its storage entirely.
func (d *Dispatcher) Remove(h Handle) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for param, s := range d.slots {
		removed, empty := s.remove(h)
		if removed {
			if empty {
				delete(d.slots, param)
			}
			return true
		}
	}
	return false
}

// Len returns the number of listeners registered for a parameter.
func (d *Dispatcher) Len(param string) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.slots[param]
	if !ok {
		return 0
	}
	return s.len()
}

// SetHold replaces the listener hold scope.
func (d *Dispatcher) SetHold(h schema.Hold) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hold = h
}

// Hold returns the current hold scope.
func (d *Dispatcher) Hold() schema.Hold {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hold
}

// Notify fires the parameter's listeners when new is observably
// different from old and the parameter is not held. Identity
// comparison only: scalars by equality, references by pointer.
// Reports whether listeners were notified (or would have been, had any
// been registered) — i.e. whether the parameter actually changed.
func (d *Dispatcher) Notify(param string, old, new any) bool {
	if Identical(old, new) {
		return false
	}

	d.mu.Lock()
	if d.hold.Blocks(param) {
		d.mu.Unlock()
		return true
	}
	var fns []entry
	if s, ok := d.slots[param]; ok {
		fns = append(fns, s.entries()...)
	}
	d.mu.Unlock()

	for _, e := range fns {
		e.fn(Change{Param: param, Old: old, New: new})
	}
	return true
}

// FireAny invokes the catch-all listeners once with the names of the
// parameters that changed during a mutation pass.
func (d *Dispatcher) FireAny(changed []string) {
	d.mu.Lock()
	if d.hold.Blocks(ParamAny) {
		d.mu.Unlock()
		return
	}
	var fns []entry
	if s, ok := d.slots[ParamAny]; ok {
		fns = append(fns, s.entries()...)
	}
	d.mu.Unlock()

	for _, e := range fns {
		e.fn(Change{Param: ParamAny, New: changed})
	}
}
