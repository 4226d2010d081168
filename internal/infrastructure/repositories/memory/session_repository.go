package memory

import (
	"context"
	"sync"
	"time"

	"livetranslate/internal/core/domain"
	"livetranslate/internal/core/ports"
)

type MemorySessionRepository struct {
	sessions map[domain.SessionID]*domain.Session
	mu       sync.RWMutex
}

func NewMemorySessionRepository() ports.SessionRepository {
	return &MemorySessionRepository{
		sessions: make(map[domain.SessionID]*domain.Session),
	}
}

func (r *MemorySessionRepository) Create(ctx context.Context, session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[session.ID] = cloneSession(session)
	return nil
}

func (r *MemorySessionRepository) GetByID(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, exists := r.sessions[id]
	if !exists {
		return nil, domain.ErrSessionNotFound
	}
	return cloneSession(session), nil
}

func (r *MemorySessionRepository) MarkEnded(ctx context.Context, id domain.SessionID, endedAt time.Time) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[id]
	if !exists {
		return nil, domain.ErrSessionNotFound
	}
	session.Status = domain.SessionEnded
	session.EndedAt = &endedAt
	return cloneSession(session), nil
}

func (r *MemorySessionRepository) ListActiveVisible(ctx context.Context, viewer domain.UserID) ([]*domain.Session, error) {
	return r.list(func(s *domain.Session) bool {
		return s.Active() && s.VisibleTo(viewer)
	}), nil
}

func (r *MemorySessionRepository) ListActiveByHost(ctx context.Context, hostID domain.UserID) ([]*domain.Session, error) {
	return r.list(func(s *domain.Session) bool {
		return s.Active() && s.HostID == hostID
	}), nil
}

// list returns matching sessions newest first.
func (r *MemorySessionRepository) list(match func(*domain.Session) bool) []*domain.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Session, 0)
	for _, s := range r.sessions {
		if match(s) {
			result = append(result, cloneSession(s))
		}
	}
	domain.SortNewestFirst(result)
	return result
}

func cloneSession(s *domain.Session) *domain.Session {
	copied := *s
	if s.Description != nil {
		d := *s.Description
		copied.Description = &d
	}
	if s.EndedAt != nil {
		e := *s.EndedAt
		copied.EndedAt = &e
	}
	return &copied
}
