// internal/store/memory.go
//
// In-memory registry of live game sessions.
//
// Characteristics:
//   - Stores *session.Session values keyed by ID in a map.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - Sessions never outlive the process; Sweep closes idle ones.

package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/primegame/internal/session"
)

// ErrNotFound is returned by Get for unknown IDs.
var ErrNotFound = errors.New("not found")

// Store defines the registry interface for live sessions.
type Store interface {
	// Save adds or replaces a session.
	Save(ctx context.Context, s *session.Session) error

	// Get retrieves a session by ID or returns ErrNotFound.
	Get(ctx context.Context, id string) (*session.Session, error)

	// Delete removes a session and closes it. Unknown IDs return ErrNotFound.
	Delete(ctx context.Context, id string) error

	// Sweep closes and removes sessions idle for longer than idle.
	Sweep(ctx context.Context, now time.Time, idle time.Duration) int

	// CloseAll closes and removes every session.
	CloseAll(ctx context.Context)

	// Len reports how many sessions are live.
	Len() int
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu       sync.RWMutex                // guards sessions map
	sessions map[string]*session.Session // keyed by Session.ID
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{sessions: make(map[string]*session.Session)}
}

func (m *memory) Save(ctx context.Context, s *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *memory) Get(ctx context.Context, id string) (*session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	return nil, ErrNotFound
}

func (m *memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.Close(ctx)
	return nil
}

func (m *memory) Sweep(ctx context.Context, now time.Time, idle time.Duration) int {
	m.mu.Lock()
	var stale []*session.Session
	for id, s := range m.sessions {
		if s.Idle(now) > idle {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	// Close outside the lock; it waits on tickers and the history writer.
	for _, s := range stale {
		log.Info().Str("session", s.ID).Msg("expiring idle session")
		s.Close(ctx)
	}
	return len(stale)
}

func (m *memory) CloseAll(ctx context.Context) {
	m.mu.Lock()
	all := make([]*session.Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	for _, s := range all {
		s.Close(ctx)
	}
}

func (m *memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
