package checkout

import (
	"context"
	"sync"
	"time"
)

type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

func (s *MemoryStore) Upsert(ctx context.Context, session Session) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

func (s *MemoryStore) ListExpirable(ctx context.Context, asOf time.Time) ([]Session, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Session
	for _, session := range s.sessions {
		if isNonTerminal(session.Status) && !session.ExpiresAt.After(asOf) {
			out = append(out, session)
		}
	}
	return out, nil
}

func isNonTerminal(s Status) bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusExpired:
		return false
	default:
		return true
	}
}
