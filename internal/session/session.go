// Package session hosts one player's game: an engine, the two recurring
// tasks that drive it, and the observers attached to it.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/primegame/internal/game"
	"github.com/robalobadob/primegame/internal/scheduler"
)

const (
	DefaultRotation = 5 * time.Second
	DefaultClock    = time.Second
)

// Recorder receives a session's events and is told when the session ends.
// history.Recorder satisfies it.
type Recorder interface {
	Observer(sessionID string) func(game.Event)
	Forget(ctx context.Context, sessionID string) error
}

// Options configures Start. Zero intervals use the defaults.
type Options struct {
	ID        string
	Engine    game.Options
	Scheduler scheduler.Scheduler
	Rotation  time.Duration
	Clock     time.Duration
	Recorder  Recorder // optional
	Now       func() time.Time
}

// Session is safe for concurrent use.
type Session struct {
	ID        string
	CreatedAt time.Time
	Engine    *game.Engine

	now      func() time.Time
	rec      Recorder
	tasks    []scheduler.Task
	unsub    func()
	mu       sync.Mutex
	lastSeen time.Time
	streams  int
	closed   bool
	done     chan struct{}
}

// Start builds the engine and schedules rotation and clock tasks.
func Start(opts Options) *Session {
	if opts.Rotation <= 0 {
		opts.Rotation = DefaultRotation
	}
	if opts.Clock <= 0 {
		opts.Clock = DefaultClock
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	now := opts.Now()
	s := &Session{
		ID:        opts.ID,
		CreatedAt: now,
		Engine:    game.New(opts.Engine),
		now:       opts.Now,
		rec:       opts.Recorder,
		lastSeen:  now,
		done:      make(chan struct{}),
	}
	if s.rec != nil {
		s.unsub = s.Engine.Subscribe(s.rec.Observer(s.ID))
	}
	s.tasks = []scheduler.Task{
		opts.Scheduler.Every(opts.Rotation, func() { s.Engine.Tick() }),
		opts.Scheduler.Every(opts.Clock, func() { s.Engine.SecondTick() }),
	}
	log.Info().Str("session", s.ID).Dur("rotation", opts.Rotation).Msg("session started")
	return s
}

// Touch records renderer activity.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastSeen = s.now()
	s.mu.Unlock()
}

// Attach marks a live stream (a WebSocket) watching the session. The
// session never counts as idle while a stream is attached. detach records
// the disconnect as activity; calling it more than once is harmless.
func (s *Session) Attach() (detach func()) {
	s.mu.Lock()
	s.streams++
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.streams--
			s.lastSeen = s.now()
			s.mu.Unlock()
		})
	}
}

// Idle reports how long it has been since the last Touch, or zero while a
// stream is attached.
func (s *Session) Idle(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.streams > 0 {
		return 0
	}
	return now.Sub(s.lastSeen)
}

// Closed reports whether Close has run.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} { return s.done }

// Close stops the tasks, detaches the recorder and purges the session's
// history. Later calls do nothing.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	for _, t := range s.tasks {
		t.Stop()
	}
	if s.unsub != nil {
		s.unsub()
	}
	if s.rec != nil {
		if err := s.rec.Forget(ctx, s.ID); err != nil {
			log.Warn().Err(err).Str("session", s.ID).Msg("purge history")
		}
	}
	snap := s.Engine.Snapshot()
	log.Info().Str("session", s.ID).Int("attempts", snap.Attempts).
		Int("correct", snap.Correct).Int("wrong", snap.Wrong).Msg("session ended")
}
