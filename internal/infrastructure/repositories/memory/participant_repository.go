package memory

import (
	"context"
	"sync"
	"time"

	"livetranslate/internal/core/domain"
	"livetranslate/internal/core/ports"
)

type activeKey struct {
	session domain.SessionID
	user    domain.UserID
}

type MemoryParticipantRepository struct {
	participants map[domain.ParticipantID]*domain.Participant
	active       map[activeKey]domain.ParticipantID
	mu           sync.RWMutex
}

func NewMemoryParticipantRepository() ports.ParticipantRepository {
	return &MemoryParticipantRepository{
		participants: make(map[domain.ParticipantID]*domain.Participant),
		active:       make(map[activeKey]domain.ParticipantID),
	}
}

func (r *MemoryParticipantRepository) Create(ctx context.Context, participant *domain.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := activeKey{participant.SessionID, participant.UserID}
	if _, exists := r.active[key]; exists {
		return domain.ErrAlreadyJoined
	}

	r.participants[participant.ID] = cloneParticipant(participant)
	if participant.Active() {
		r.active[key] = participant.ID
	}
	return nil
}

func (r *MemoryParticipantRepository) FindActive(ctx context.Context, sessionID domain.SessionID, userID domain.UserID) (*domain.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.active[activeKey{sessionID, userID}]
	if !exists {
		return nil, domain.ErrParticipantNotFound
	}
	return cloneParticipant(r.participants[id]), nil
}

func (r *MemoryParticipantRepository) MarkLeft(ctx context.Context, id domain.ParticipantID, leftAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.participants[id]
	if !exists || !p.Active() {
		return domain.ErrParticipantNotFound
	}
	p.LeftAt = &leftAt
	delete(r.active, activeKey{p.SessionID, p.UserID})
	return nil
}

func (r *MemoryParticipantRepository) ListBySession(ctx context.Context, sessionID domain.SessionID) ([]*domain.Participant, error) {
	return r.list(func(p *domain.Participant) bool { return p.SessionID == sessionID }), nil
}

func (r *MemoryParticipantRepository) ListActiveByUser(ctx context.Context, userID domain.UserID) ([]*domain.Participant, error) {
	return r.list(func(p *domain.Participant) bool { return p.UserID == userID && p.Active() }), nil
}

// list returns matching rows in join order.
func (r *MemoryParticipantRepository) list(match func(*domain.Participant) bool) []*domain.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Participant, 0)
	for _, p := range r.participants {
		if match(p) {
			result = append(result, cloneParticipant(p))
		}
	}
	domain.SortByJoinTime(result)
	return result
}

func cloneParticipant(p *domain.Participant) *domain.Participant {
	copied := *p
	if p.LeftAt != nil {
		l := *p.LeftAt
		copied.LeftAt = &l
	}
	return &copied
}
