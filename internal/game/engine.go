// internal/game/engine.go
//
// Core game engine for a single prime-or-not session.
// Responsibilities:
//   - Draw numbers uniformly from a closed range (default 1..100).
//   - Score answers against IsPrime, at most once per displayed number.
//   - Count rotations and open the milestone dialog every N of them.
//   - Track seconds on screen for the current number.
//   - Publish an Event to every subscriber after each mutation.
//
// Notes:
//   - Every mutation runs under one mutex and notifies observers before
//     releasing it, so observers see events in mutation order. Observers
//     must not call back into the Engine and must not block.
//   - No operation fails; a submission on a locked round is ignored.
package game

import (
	"crypto/rand"
	"math/big"
	"sync"
)

const (
	DefaultMin            = 1
	DefaultMax            = 100
	DefaultMilestoneEvery = 10
)

// NumberSource returns a value in [min, max].
type NumberSource func(min, max int) int

// Options customizes an Engine; zero values fall back to the defaults.
type Options struct {
	Min            int
	Max            int
	MilestoneEvery int
	Source         NumberSource
}

// Engine owns State and is safe for concurrent use.
type Engine struct {
	mu        sync.Mutex
	min, max  int
	every     int
	source    NumberSource
	st        State
	observers map[int]func(Event)
	nextObs   int
}

// New constructs an engine with a freshly drawn number and zeroed tallies.
// Invalid ranges or milestone periods are replaced by the defaults.
func New(opts Options) *Engine {
	e := &Engine{
		min:       opts.Min,
		max:       opts.Max,
		every:     opts.MilestoneEvery,
		source:    opts.Source,
		observers: make(map[int]func(Event)),
	}
	if (e.min == 0 && e.max == 0) || e.min > e.max || e.max-e.min+1 <= 0 {
		e.min, e.max = DefaultMin, DefaultMax
	}
	if e.every < 1 {
		e.every = DefaultMilestoneEvery
	}
	if e.source == nil {
		e.source = CryptoSource
	}
	e.st.Number = e.draw()
	return e
}

// Tick rotates to a new number and advances the attempt count.
func (e *Engine) Tick() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	retired := Round{
		Number:         e.st.Number,
		Prime:          IsPrime(e.st.Number),
		Answered:       e.st.LastOutcome != nil,
		ElapsedSeconds: e.st.Elapsed,
	}
	if e.st.LastOutcome != nil {
		retired.Correct = *e.st.LastOutcome
	}

	e.st.Number = e.draw()
	e.st.Attempts++
	e.st.LastOutcome = nil
	e.st.Locked = false
	e.st.Elapsed = 0
	if e.st.Attempts%e.every == 0 {
		e.st.Dialog = true
	}
	return e.emit(EventRotated, &retired)
}

// SubmitAnswer scores claimIsPrime against the current number.
// It is a no-op once the round is locked.
func (e *Engine) SubmitAnswer(claimIsPrime bool) Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.st.Locked {
		return e.snapshot()
	}
	ok := IsPrime(e.st.Number) == claimIsPrime
	if ok {
		e.st.Correct++
	} else {
		e.st.Wrong++
	}
	e.st.LastOutcome = &ok
	e.st.Locked = true
	return e.emit(EventAnswered, nil)
}

// DismissDialog hides the milestone summary.
func (e *Engine) DismissDialog() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.st.Dialog = false
	return e.emit(EventDismissed, nil)
}

// Reset zeroes the tallies, the attempt count and the clock and hides the
// dialog. The displayed number and its lock/outcome stay as they are.
func (e *Engine) Reset() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.st.Correct = 0
	e.st.Wrong = 0
	e.st.Attempts = 0
	e.st.Dialog = false
	e.st.Elapsed = 0
	return e.emit(EventReset, nil)
}

// SecondTick advances the on-screen clock by one second.
func (e *Engine) SecondTick() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.st.Elapsed++
	return e.emit(EventClock, nil)
}

// Snapshot returns the current state without mutating it.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot()
}

// Subscribe registers fn for every subsequent Event. The returned func
// removes it and may be called more than once.
func (e *Engine) Subscribe(fn func(Event)) (cancel func()) {
	_, cancel = e.Watch(fn)
	return cancel
}

// Watch is Subscribe that also returns the snapshot current at the moment
// fn was registered. Every Event fn later receives is newer than it.
func (e *Engine) Watch(fn func(Event)) (Snapshot, func()) {
	e.mu.Lock()
	id := e.nextObs
	e.nextObs++
	e.observers[id] = fn
	snap := e.snapshot()
	e.mu.Unlock()

	var once sync.Once
	return snap, func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.observers, id)
			e.mu.Unlock()
		})
	}
}

// emit snapshots the state and fans it out in subscription order.
// Caller holds e.mu.
func (e *Engine) emit(kind EventKind, retired *Round) Snapshot {
	snap := e.snapshot()
	if len(e.observers) == 0 {
		return snap
	}
	ev := Event{Kind: kind, Snapshot: snap, Retired: retired}
	for id := 0; id < e.nextObs; id++ {
		if fn, ok := e.observers[id]; ok {
			fn(ev)
		}
	}
	return snap
}

func (e *Engine) snapshot() Snapshot {
	s := Snapshot{
		Number:         e.st.Number,
		Correct:        e.st.Correct,
		Wrong:          e.st.Wrong,
		Attempts:       e.st.Attempts,
		Locked:         e.st.Locked,
		DialogVisible:  e.st.Dialog,
		ElapsedSeconds: e.st.Elapsed,
		Elapsed:        FormatElapsed(e.st.Elapsed),
		MilestoneEvery: e.every,
	}
	if e.st.LastOutcome != nil {
		v := *e.st.LastOutcome
		s.LastOutcome = &v
	}
	return s
}

// draw asks the source for a number and clamps it into range.
func (e *Engine) draw() int {
	n := e.source(e.min, e.max)
	if n < e.min {
		return e.min
	}
	if n > e.max {
		return e.max
	}
	return n
}

// CryptoSource draws uniformly from [min, max] using crypto/rand.
// An empty or overflowing range yields min.
func CryptoSource(min, max int) int {
	if max-min+1 <= 0 {
		return min
	}
	nBig, err := rand.Int(rand.Reader, big.NewInt(int64(max-min+1)))
	if err != nil {
		return min
	}
	return min + int(nBig.Int64())
}
