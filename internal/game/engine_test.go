package game

import (
	"math"
	"testing"
)

// seq returns a NumberSource that yields nums in order and then repeats the last.
func seq(nums ...int) NumberSource {
	i := 0
	return func(min, max int) int {
		n := nums[i]
		if i < len(nums)-1 {
			i++
		}
		return n
	}
}

func TestNewEngineStartsZeroed(t *testing.T) {
	e := New(Options{Source: seq(42)})
	s := e.Snapshot()
	if s.Number != 42 {
		t.Fatalf("number = %d, want 42", s.Number)
	}
	if s.Correct != 0 || s.Wrong != 0 || s.Attempts != 0 || s.ElapsedSeconds != 0 {
		t.Errorf("expected zero counters, got %+v", s)
	}
	if s.Locked || s.LastOutcome != nil || s.DialogVisible {
		t.Errorf("expected unlocked, no outcome, no dialog: %+v", s)
	}
	if s.Elapsed != "00:00:00" || s.MilestoneEvery != DefaultMilestoneEvery {
		t.Errorf("unexpected defaults: %+v", s)
	}
}

func TestNewEngineFallsBackOnBadOptions(t *testing.T) {
	e := New(Options{Min: 50, Max: 10, MilestoneEvery: -1, Source: seq(1000)})
	s := e.Snapshot()
	if s.Number != DefaultMax {
		t.Errorf("number should clamp into default range, got %d", s.Number)
	}
	if s.MilestoneEvery != DefaultMilestoneEvery {
		t.Errorf("milestoneEvery = %d", s.MilestoneEvery)
	}
}

func TestNewEngineFallsBackOnOverflowingRange(t *testing.T) {
	e := New(Options{Min: math.MinInt, Max: math.MaxInt})
	for i := 0; i < 20; i++ {
		if n := e.Tick().Number; n < DefaultMin || n > DefaultMax {
			t.Fatalf("number %d outside default range", n)
		}
	}
	if n := CryptoSource(math.MinInt, math.MaxInt); n != math.MinInt {
		t.Errorf("CryptoSource on a wrapped range = %d, want min", n)
	}
}

func TestSubmitCorrectPrime(t *testing.T) {
	e := New(Options{Source: seq(7)})
	s := e.SubmitAnswer(true)
	if s.Correct != 1 || s.Wrong != 0 {
		t.Fatalf("counts = %d/%d, want 1/0", s.Correct, s.Wrong)
	}
	if s.LastOutcome == nil || !*s.LastOutcome || !s.Locked {
		t.Errorf("expected locked with outcome=true: %+v", s)
	}
}

func TestSubmitWrongComposite(t *testing.T) {
	e := New(Options{Source: seq(8)})
	s := e.SubmitAnswer(true)
	if s.Wrong != 1 || s.Correct != 0 {
		t.Fatalf("counts = %d/%d, want 0/1", s.Correct, s.Wrong)
	}
	if s.LastOutcome == nil || *s.LastOutcome {
		t.Errorf("expected outcome=false: %+v", s)
	}
}

func TestSubmitIsIgnoredWhileLocked(t *testing.T) {
	e := New(Options{Source: seq(9)})
	first := e.SubmitAnswer(false)
	second := e.SubmitAnswer(true)
	if second.Correct != first.Correct || second.Wrong != first.Wrong {
		t.Fatalf("second submission changed counts: %+v -> %+v", first, second)
	}
	if second.Correct != 1 || second.Wrong != 0 || !*second.LastOutcome {
		t.Errorf("unexpected state after duplicate submit: %+v", second)
	}
}

func TestOneIsNeverPrime(t *testing.T) {
	e := New(Options{Source: seq(1)})
	if s := e.SubmitAnswer(false); s.Correct != 1 {
		t.Errorf("1 classified not prime should be correct: %+v", s)
	}
}

func TestTickRotatesAndUnlocks(t *testing.T) {
	e := New(Options{Source: seq(4, 13)})
	e.SubmitAnswer(false)
	e.SecondTick()
	e.SecondTick()
	s := e.Tick()
	if s.Number != 13 || s.Attempts != 1 {
		t.Fatalf("after tick: %+v", s)
	}
	if s.Locked || s.LastOutcome != nil || s.ElapsedSeconds != 0 {
		t.Errorf("tick should clear lock, outcome and clock: %+v", s)
	}
	if s.Correct != 1 {
		t.Errorf("tick must not touch tallies: %+v", s)
	}
}

func TestTickStaysInRange(t *testing.T) {
	e := New(Options{})
	for i := 1; i <= 500; i++ {
		s := e.Tick()
		if s.Number < 1 || s.Number > 100 {
			t.Fatalf("tick %d drew %d", i, s.Number)
		}
		if s.Attempts != i {
			t.Fatalf("attempts = %d after %d ticks", s.Attempts, i)
		}
	}
}

func TestCustomRange(t *testing.T) {
	e := New(Options{Min: 10, Max: 12})
	for i := 0; i < 100; i++ {
		if n := e.Tick().Number; n < 10 || n > 12 {
			t.Fatalf("drew %d outside [10,12]", n)
		}
	}
}

func TestDialogOnTenthTickOnly(t *testing.T) {
	e := New(Options{Source: seq(5)})
	for i := 1; i <= 10; i++ {
		s := e.Tick()
		if want := i == 10; s.DialogVisible != want {
			t.Fatalf("tick %d: dialogVisible = %v, want %v", i, s.DialogVisible, want)
		}
	}
}

func TestDialogPersistsUntilDismissed(t *testing.T) {
	e := New(Options{Source: seq(5)})
	for i := 0; i < 10; i++ {
		e.Tick()
	}
	s := e.Tick()
	s = e.SubmitAnswer(true)
	s = e.SecondTick()
	if !s.DialogVisible {
		t.Fatal("dialog closed without dismissal")
	}
	s = e.DismissDialog()
	if s.DialogVisible || s.Attempts != 11 || s.Correct != 1 {
		t.Errorf("dismiss should only hide dialog: %+v", s)
	}
	for i := 0; i < 9; i++ {
		s = e.Tick()
	}
	if !s.DialogVisible || s.Attempts != 20 {
		t.Errorf("expected dialog again at attempt 20: %+v", s)
	}
}

func TestCustomMilestonePeriod(t *testing.T) {
	e := New(Options{MilestoneEvery: 3, Source: seq(5)})
	e.Tick()
	e.Tick()
	if s := e.Tick(); !s.DialogVisible {
		t.Errorf("expected dialog after 3 ticks: %+v", s)
	}
}

func TestResetAfterMilestone(t *testing.T) {
	e := New(Options{Source: seq(6, 7)})
	for i := 0; i < 10; i++ {
		e.Tick()
	}
	e.SubmitAnswer(true)
	e.SecondTick()
	s := e.Reset()
	if s.DialogVisible || s.Correct != 0 || s.Wrong != 0 || s.Attempts != 0 || s.ElapsedSeconds != 0 {
		t.Fatalf("reset left state behind: %+v", s)
	}
	if s.Number != 7 || !s.Locked || s.LastOutcome == nil {
		t.Errorf("reset must keep number, lock and outcome: %+v", s)
	}
}

func TestSecondTickIsIndependent(t *testing.T) {
	e := New(Options{Source: seq(3)})
	var s Snapshot
	for i := 0; i < 3661; i++ {
		s = e.SecondTick()
	}
	if s.ElapsedSeconds != 3661 || s.Elapsed != "01:01:01" || s.Attempts != 0 {
		t.Errorf("unexpected clock state: %+v", s)
	}
}

func TestAnsweredNeverExceedsRoundsShown(t *testing.T) {
	e := New(Options{})
	ops := []func() Snapshot{
		func() Snapshot { return e.SubmitAnswer(true) },
		func() Snapshot { return e.SubmitAnswer(false) },
		e.Tick,
		e.SecondTick,
		e.DismissDialog,
		e.Tick,
		func() Snapshot { return e.SubmitAnswer(false) },
		e.Reset,
		func() Snapshot { return e.SubmitAnswer(true) },
	}
	for i := 0; i < 2000; i++ {
		s := ops[(i*7+i/3)%len(ops)]()
		if s.Correct+s.Wrong > s.Attempts+1 {
			t.Fatalf("step %d: %d answers for %d rounds", i, s.Correct+s.Wrong, s.Attempts+1)
		}
		if s.Locked != (s.LastOutcome != nil) {
			t.Fatalf("step %d: lock/outcome mismatch %+v", i, s)
		}
	}
}

func TestSubscribeReceivesEventsInOrder(t *testing.T) {
	e := New(Options{Source: seq(10, 11)})
	var got []Event
	cancel := e.Subscribe(func(ev Event) { got = append(got, ev) })

	e.SubmitAnswer(false)
	e.SubmitAnswer(true) // locked, no event
	e.SecondTick()
	e.Tick()
	e.DismissDialog()
	e.Reset()

	kinds := []EventKind{EventAnswered, EventClock, EventRotated, EventDismissed, EventReset}
	if len(got) != len(kinds) {
		t.Fatalf("got %d events, want %d", len(got), len(kinds))
	}
	for i, k := range kinds {
		if got[i].Kind != k {
			t.Errorf("event %d kind = %s, want %s", i, got[i].Kind, k)
		}
	}
	r := got[2].Retired
	if r == nil || r.Number != 10 || r.Prime || !r.Answered || !r.Correct || r.ElapsedSeconds != 1 {
		t.Errorf("unexpected retired round: %+v", r)
	}
	if got[2].Snapshot.Number != 11 {
		t.Errorf("rotation snapshot number = %d", got[2].Snapshot.Number)
	}

	cancel()
	cancel()
	e.Tick()
	if len(got) != len(kinds) {
		t.Error("cancelled observer still called")
	}
}

func TestWatchBaselinePrecedesEvents(t *testing.T) {
	e := New(Options{Source: seq(4, 5, 6)})
	e.Tick()

	var got []Event
	base, cancel := e.Watch(func(ev Event) { got = append(got, ev) })
	if base.Number != 5 || base.Attempts != 1 {
		t.Fatalf("baseline = %+v", base)
	}
	e.Tick()
	cancel()
	cancel()
	e.Tick()

	if len(got) != 1 || got[0].Snapshot.Attempts != base.Attempts+1 || got[0].Snapshot.Number != 6 {
		t.Fatalf("events after baseline = %+v", got)
	}
}

func TestMilestoneEvent(t *testing.T) {
	e := New(Options{MilestoneEvery: 2, Source: seq(4)})
	var milestones []int
	e.Subscribe(func(ev Event) {
		if ev.Milestone() {
			milestones = append(milestones, ev.Snapshot.Attempts)
		}
	})
	for i := 0; i < 5; i++ {
		e.Tick()
	}
	if len(milestones) != 2 || milestones[0] != 2 || milestones[1] != 4 {
		t.Errorf("milestones = %v, want [2 4]", milestones)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	e := New(Options{Source: seq(2)})
	s := e.SubmitAnswer(true)
	*s.LastOutcome = false
	if again := e.Snapshot(); !*again.LastOutcome {
		t.Error("mutating a snapshot leaked into engine state")
	}
}
