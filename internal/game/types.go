// internal/game/types.go
//
// Core type definitions for the prime-or-not game engine.
// Defines:
//   - State: the mutable round/tally state owned by Engine.
//   - Snapshot: immutable copy handed to observers and the transport layer.
//   - Event: one emission per mutation (kind + snapshot + retired round).

package game

// EventKind names the intent or timer that produced an Event.
type EventKind string

const (
	EventRotated   EventKind = "rotated"
	EventAnswered  EventKind = "answered"
	EventDismissed EventKind = "dismissed"
	EventReset     EventKind = "reset"
	EventClock     EventKind = "clock"
)

// State holds everything the engine tracks for one session.
type State struct {
	Number      int   // Value under evaluation, always within the engine's range.
	Correct     int   // Correct answers since the last reset.
	Wrong       int   // Wrong answers since the last reset.
	Attempts    int   // Rotations since the last reset.
	LastOutcome *bool // nil until an answer is scored for the current number.
	Locked      bool  // True iff LastOutcome != nil.
	Dialog      bool  // Milestone summary is showing.
	Elapsed     int   // Seconds the current number has been on screen.
}

// Snapshot is the renderer-facing view of State.
type Snapshot struct {
	Number         int    `json:"number"`
	Correct        int    `json:"correct"`
	Wrong          int    `json:"wrong"`
	Attempts       int    `json:"attempts"`
	LastOutcome    *bool  `json:"lastOutcome"`
	Locked         bool   `json:"locked"`
	DialogVisible  bool   `json:"dialogVisible"`
	ElapsedSeconds int    `json:"elapsedSeconds"`
	Elapsed        string `json:"elapsed"` // HH:MM:SS
	MilestoneEvery int    `json:"milestoneEvery"`
}

// Round describes a number that has just been rotated away.
type Round struct {
	Number         int  `json:"number"`
	Prime          bool `json:"prime"`
	Answered       bool `json:"answered"`
	Correct        bool `json:"correct"`
	ElapsedSeconds int  `json:"elapsedSeconds"`
}

// Event is what observers receive after every mutation.
// Retired is only set for EventRotated.
type Event struct {
	Kind     EventKind `json:"kind"`
	Snapshot Snapshot  `json:"state"`
	Retired  *Round    `json:"retired,omitempty"`
}

// Milestone reports whether this event is the rotation that opened the
// summary dialog.
func (e Event) Milestone() bool {
	return e.Kind == EventRotated && e.Snapshot.DialogVisible &&
		e.Snapshot.MilestoneEvery > 0 && e.Snapshot.Attempts%e.Snapshot.MilestoneEvery == 0
}
