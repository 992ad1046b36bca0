// internal/store/memory.go
//
// In-memory store of live game sessions.
//
// Characteristics:
//   - Stores *game.Session objects keyed by ID in a map.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - State is lost when the process restarts; finished runs are recorded
//     separately by the results package.
//   - Sweep evicts idle sessions and stops their timers.

package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robalobadob/sitepick/internal/game"
)

// ErrNotFound is returned by Get for unknown IDs.
var ErrNotFound = errors.New("store: session not found")

// Store defines the persistence interface for live sessions.
type Store interface {
	// Save persists or replaces a session.
	Save(ctx context.Context, s *game.Session) error

	// Get retrieves a session by ID or returns ErrNotFound.
	Get(ctx context.Context, id string) (*game.Session, error)

	// Delete removes a session and stops its timers. Unknown IDs are ignored.
	Delete(ctx context.Context, id string) error

	// Sweep removes sessions whose last activity is before cutoff and
	// returns how many were removed.
	Sweep(ctx context.Context, cutoff time.Time) int
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu       sync.RWMutex             // guards sessions map
	sessions map[string]*game.Session // keyed by Session.ID
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{sessions: make(map[string]*game.Session)}
}

// Save adds or updates the session in the map.
func (m *memory) Save(ctx context.Context, s *game.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

// Get looks up a session by ID.
func (m *memory) Get(ctx context.Context, id string) (*game.Session, error) {
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
	if ok {
		s.Close()
	}
	return nil
}

func (m *memory) Sweep(ctx context.Context, cutoff time.Time) int {
	var evicted []*game.Session

	m.mu.Lock()
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			evicted = append(evicted, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	// Close outside the map lock; Close takes the session's own lock.
	for _, s := range evicted {
		s.Close()
	}
	return len(evicted)
}

// Janitor calls Sweep every interval, evicting sessions idle for longer
// than ttl, until ctx is done.
func Janitor(ctx context.Context, st Store, interval, ttl time.Duration, onSweep func(n int)) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n := st.Sweep(ctx, now.Add(-ttl))
			if onSweep != nil {
				onSweep(n)
			}
		}
	}
}
