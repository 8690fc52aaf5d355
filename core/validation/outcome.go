package validation

import (
	"context"
	"sync"
	"sync/atomic"
)

// Outcome is the result of one validation pass. Passes with only
// synchronous checks settle before Run returns; passes with async
// checks settle once every check has finished.
type Outcome struct {
	done chan struct{}
	ok   atomic.Bool

	settleOnce sync.Once
}

func newOutcome() *Outcome {
	return &Outcome{done: make(chan struct{})}
}

// Settled returns a pre-resolved outcome.
func Settled(ok bool) *Outcome {
	o := newOutcome()
	o.settle(ok)
	return o
}

func (o *Outcome) settle(ok bool) {
	o.settleOnce.Do(func() {
		o.ok.Store(ok)
		close(o.done)
	})
}

// Done is closed when the outcome has settled.
func (o *Outcome) Done() <-chan struct{} {
	return o.done
}

// Settled reports whether the outcome has already settled.
func (o *Outcome) Settled() bool {
	select {
	case <-o.done:
		return true
	default:
		return false
	}
}

// OK reports whether every check passed. Only meaningful once the
// outcome has settled; before that it returns false.
func (o *Outcome) OK() bool {
	if !o.Settled() {
		return false
	}
	return o.ok.Load()
}

// Wait blocks until the outcome settles or the context is done.
func (o *Outcome) Wait(ctx context.Context) (bool, error) {
	select {
	case <-o.done:
		return o.ok.Load(), nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Combine produces an outcome that settles when every input has
// settled, passing only if all of them passed. Already-settled inputs
// combine without spawning a goroutine.
func Combine(outcomes ...*Outcome) *Outcome {
	all := true
	pending := false
	for _, o := range outcomes {
		if !o.Settled() {
			pending = true
			continue
		}
		if !o.OK() {
			all = false
		}
	}
	if !pending {
		return Settled(all)
	}

	combined := newOutcome()
	go func() {
		ok := true
		for _, o := range outcomes {
			<-o.Done()
			if !o.OK() {
				ok = false
			}
		}
		combined.settle(ok)
	}()
	return combined
}
