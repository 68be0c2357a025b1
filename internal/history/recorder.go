package history

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/primegame/internal/game"
)

type jobKind int

const (
	jobRound jobKind = iota
	jobMilestone
	jobPurge
	jobFlush
)

type job struct {
	kind      jobKind
	sessionID string
	round     Round
	milestone Milestone
	done      chan struct{} // closed once the job is applied
}

// Recorder turns engine events into history rows. A single writer goroutine
// (Start) applies them in arrival order, so a purge never races ahead of the
// rows it is meant to delete.
type Recorder struct {
	store *Store
	jobs  chan job
	wg    sync.WaitGroup
}

// NewRecorder buffers up to buffer pending rows; buffer < 1 means 256.
func NewRecorder(store *Store, buffer int) *Recorder {
	if buffer < 1 {
		buffer = 256
	}
	return &Recorder{store: store, jobs: make(chan job, buffer)}
}

// Store exposes the underlying query side.
func (r *Recorder) Store() *Store { return r.store }

// Observer returns an engine observer for one session. It never blocks:
// when the buffer is full the row is dropped and a warning is logged.
func (r *Recorder) Observer(sessionID string) func(game.Event) {
	seq := 0
	return func(ev game.Event) {
		if ev.Kind != game.EventRotated || ev.Retired == nil {
			return
		}
		seq++
		r.offer(job{kind: jobRound, sessionID: sessionID, round: Round{
			SessionID:      sessionID,
			Seq:            seq,
			Number:         ev.Retired.Number,
			Prime:          ev.Retired.Prime,
			Answered:       ev.Retired.Answered,
			Correct:        ev.Retired.Correct,
			ElapsedSeconds: ev.Retired.ElapsedSeconds,
		}})
		if ev.Milestone() {
			r.offer(job{kind: jobMilestone, sessionID: sessionID, milestone: Milestone{
				SessionID: sessionID,
				Attempts:  ev.Snapshot.Attempts,
				Correct:   ev.Snapshot.Correct,
				Wrong:     ev.Snapshot.Wrong,
			}})
		}
	}
}

func (r *Recorder) offer(j job) {
	select {
	case r.jobs <- j:
	default:
		log.Warn().Str("session", j.sessionID).Msg("history buffer full, dropping row")
	}
}

// Forget queues a purge of the session's rows behind everything already
// queued and waits for it to be applied or for ctx to end.
func (r *Recorder) Forget(ctx context.Context, sessionID string) error {
	done := make(chan struct{})
	select {
	case r.jobs <- job{kind: jobPurge, sessionID: sessionID, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush waits until every job queued before the call has been applied.
func (r *Recorder) Flush(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case r.jobs <- job{kind: jobFlush, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start launches the writer goroutine; it applies queued jobs until ctx
// is done.
func (r *Recorder) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case j := <-r.jobs:
				r.apply(ctx, j)
			}
		}
	}()
}

// Wait blocks until the writer goroutine has returned.
func (r *Recorder) Wait() { r.wg.Wait() }

func (r *Recorder) apply(ctx context.Context, j job) {
	var err error
	switch j.kind {
	case jobRound:
		err = r.store.InsertRound(ctx, j.round)
	case jobMilestone:
		err = r.store.InsertMilestone(ctx, j.milestone)
		if err == nil {
			log.Info().Str("session", j.sessionID).Int("attempts", j.milestone.Attempts).
				Int("correct", j.milestone.Correct).Int("wrong", j.milestone.Wrong).Msg("milestone")
		}
	case jobPurge:
		err = r.store.Purge(ctx, j.sessionID)
	}
	if err != nil {
		log.Warn().Err(err).Str("session", j.sessionID).Msg("history write")
	}
	if j.done != nil {
		close(j.done)
	}
}
