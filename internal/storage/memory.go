// Package storage keeps the latest snapshot of each coaching session.
package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/hammamikhairi/rendezvouscoach/internal/domain"
	"github.com/hammamikhairi/rendezvouscoach/internal/logger"
)

var _ domain.SessionStore = (*MemoryStore)(nil)

// MemoryStore holds one snapshot per session. Saves and loads copy, so
// the coach loop and readers such as the TUI never share a Session.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	log      *logger.Logger
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(log *logger.Logger) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*domain.Session),
		log:      log,
	}
}

// Save replaces the snapshot for session.ID.
func (s *MemoryStore) Save(ctx context.Context, session *domain.Session) error {
	snap := session.Clone()
	s.mu.Lock()
	s.sessions[snap.ID] = snap
	s.mu.Unlock()

	s.log.Debug("saved %s (status=%s, band=%s, cue=%s)", snap.ID, snap.Status, snap.Pacing.Band, snap.Scheduler.State)
	return nil
}

// Load returns a copy of the snapshot.
func (s *MemoryStore) Load(ctx context.Context, id string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return sess.Clone(), nil
}

// Delete drops a snapshot.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

// ListActive returns copies of live sessions, oldest first.
func (s *MemoryStore) ListActive(ctx context.Context) ([]*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Session
	for _, sess := range s.sessions {
		if sess.Status.Live() {
			out = append(out, sess.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}
