package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/context-assistant/internal/core/domain"
)

type entry struct {
	session *domain.Session
	touched time.Time
}

// Store keeps sessions in process memory. Sessions idle for longer than the TTL are dropped;
// a zero TTL keeps them until the process exits.
type Store struct {
	mu       sync.Mutex
	sessions map[string]entry
	idleTTL  time.Duration
	now      func() time.Time
}

func NewStore(idleTTL time.Duration) *Store {
	return &Store{
		sessions: make(map[string]entry),
		idleTTL:  idleTTL,
		now:      time.Now,
	}
}

func (s *Store) Load(_ context.Context, sessionID string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.sessions[sessionID]
	if !ok || s.expired(item, s.now()) {
		delete(s.sessions, sessionID)
		return nil, domain.WrapError(domain.ErrSessionNotFound, "load session", fmt.Errorf("session %s", sessionID))
	}
	item.touched = s.now()
	s.sessions[sessionID] = item
	return item.session.Clone(), nil
}

func (s *Store) Save(_ context.Context, session *domain.Session) error {
	if session == nil {
		return domain.WrapError(domain.ErrInvalidInput, "save session", fmt.Errorf("session is nil"))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = entry{session: session.Clone(), touched: s.now()}
	return nil
}

func (s *Store) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes every idle session and returns how many were dropped.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, item := range s.sessions {
		if s.expired(item, now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// RunJanitor sweeps on every tick until ctx is done.
func (s *Store) RunJanitor(ctx context.Context, interval time.Duration) {
	if s.idleTTL <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.Sweep(); removed > 0 {
				slog.Info("session_sweep", "removed", removed)
			}
		}
	}
}

func (s *Store) expired(item entry, now time.Time) bool {
	return s.idleTTL > 0 && now.Sub(item.touched) > s.idleTTL
}
