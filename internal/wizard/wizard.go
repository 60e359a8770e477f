// Package wizard sequences the multi-step configuration flow that
// assembles a notification draft. The Engine is a generic step sequencer;
// steps.go wires the concrete reminder steps onto it.
package wizard

import (
	"context"
	"sync"

	"remind/internal/notification"
)

// Step is one entry in the wizard sequence.
//
// Valid is a synchronous, side-effect-free predicate; the UI may call it
// repeatedly on re-render. Advance is an optional asynchronous guard that
// runs after Valid holds and may suspend on I/O; a non-nil error blocks
// advancement and leaves the step position unchanged.
type Step struct {
	ID      string
	Title   string
	Valid   func() bool
	Advance func(ctx context.Context) error
}

// StepInfo is the read-only view handed to rendering layers.
type StepInfo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Valid bool   `json:"valid"`
}

// Engine mediates transitions over an ordered list of steps.
//
// Mutating entry points are serialized: while a guard is in flight, a
// second GoNext/GoBack/Reset/Cancel on the same engine fails fast with
// notification.ErrBusy instead of double-invoking the guard.
type Engine struct {
	mu       sync.Mutex
	steps    []Step
	current  int
	inFlight bool

	// epoch invalidates in-flight guard results: Reset/Cancel/GoBack
	// bump it, and a guard that finishes against a stale epoch must
	// discard its result.
	epoch uint64

	// onComplete runs with the engine lock held when GoNext fires on the
	// last step; it must not call back into the engine.
	onComplete func()
	// onReset runs with the lock held on Reset/Cancel and after completion.
	onReset func()
}

func NewEngine(steps []Step) *Engine {
	return &Engine{steps: steps}
}

func (e *Engine) SetOnComplete(fn func()) { e.onComplete = fn }
func (e *Engine) SetOnReset(fn func())    { e.onReset = fn }

// Current returns the zero-based index of the active step.
func (e *Engine) Current() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Steps returns the step list with current validity, for rendering.
func (e *Engine) Steps() []StepInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]StepInfo, len(e.steps))
	for i, s := range e.steps {
		out[i] = StepInfo{ID: s.ID, Title: s.Title, Valid: s.Valid == nil || s.Valid()}
	}
	return out
}

// GoNext advances to the next step.
//
// Returns (advanced, completed, err):
//   - (false, false, nil): the current step's Valid() gate failed; no
//     error is surfaced, the caller disables the control.
//   - (true, false, nil): moved one step forward.
//   - (false, true, nil): the last step passed; the wizard completed and
//     reset. The owner's onComplete hook observed the final state.
//   - err is notification.ErrBusy for re-entrant calls, or the guard's
//     own failure (position unchanged).
func (e *Engine) GoNext(ctx context.Context) (bool, bool, error) {
	e.mu.Lock()
	if e.inFlight {
		e.mu.Unlock()
		return false, false, notification.ErrBusy
	}
	step := e.steps[e.current]
	if step.Valid != nil && !step.Valid() {
		e.mu.Unlock()
		return false, false, nil
	}

	if step.Advance != nil {
		e.inFlight = true
		epoch := e.epoch
		e.mu.Unlock()

		err := step.Advance(ctx)

		e.mu.Lock()
		e.inFlight = false
		if err != nil {
			e.mu.Unlock()
			return false, false, err
		}
		if e.epoch != epoch {
			// The draft was reset or navigated while the guard ran;
			// whatever the guard produced no longer applies.
			e.mu.Unlock()
			return false, false, nil
		}
		// The guard may be what populated the step's fields; re-check.
		if step.Valid != nil && !step.Valid() {
			e.mu.Unlock()
			return false, false, nil
		}
	}
	defer e.mu.Unlock()

	if e.current == len(e.steps)-1 {
		if e.onComplete != nil {
			e.onComplete()
		}
		e.resetLocked()
		return false, true, nil
	}
	e.current++
	return true, false, nil
}

// GoBack moves one step back, clamped at 0. It is never validated, but
// like every mutation it is rejected while a guard is in flight.
func (e *Engine) GoBack() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight || e.current == 0 {
		return false
	}
	e.current--
	e.epoch++
	return true
}

// Reset clears the draft (via onReset) and returns to the first step.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight {
		return notification.ErrBusy
	}
	e.resetLocked()
	return nil
}

// Cancel discards the draft without handing anything to the caller.
// It is Reset under a name the UI contract expects.
func (e *Engine) Cancel() error { return e.Reset() }

func (e *Engine) resetLocked() {
	e.current = 0
	e.epoch++
	if e.onReset != nil {
		e.onReset()
	}
}

// begin/end bracket wizard-level mutations (e.g. template regeneration)
// so they share the engine's in-flight serialization.
func (e *Engine) begin() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight {
		return notification.ErrBusy
	}
	e.inFlight = true
	return nil
}

func (e *Engine) end() {
	e.mu.Lock()
	e.inFlight = false
	e.mu.Unlock()
}

func (e *Engine) currentEpoch() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.epoch
}
