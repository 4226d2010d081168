package services

import (
	"context"
	"time"

	"livetranslate/internal/core/domain"
	"livetranslate/internal/core/ports"
	"livetranslate/pkg/cache"
)

const activeListPrefix = "sessions:active:"

// CachedSessionService caches the per-caller active listing and drops it on every mutation.
// Invalidation is process-local; other instances serve their copy until the TTL runs out.
type CachedSessionService struct {
	baseService ports.SessionService
	cache       *cache.CacheWithFallback
	listTTL     time.Duration
}

func NewCachedSessionService(baseService ports.SessionService, listTTL time.Duration) *CachedSessionService {
	return &CachedSessionService{
		baseService: baseService,
		cache:       cache.NewCacheWithFallback(listTTL),
		listTTL:     listTTL,
	}
}

func (s *CachedSessionService) CreateSession(ctx context.Context, hostID domain.UserID, req domain.NewSession) (*domain.SessionDetails, error) {
	details, err := s.baseService.CreateSession(ctx, hostID, req)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(activeListPrefix)
	return details, nil
}

func (s *CachedSessionService) JoinSession(ctx context.Context, userID domain.UserID, sessionID domain.SessionID, language domain.Language) (*domain.ParticipantDetails, error) {
	participant, err := s.baseService.JoinSession(ctx, userID, sessionID, language)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(activeListPrefix)
	return participant, nil
}

func (s *CachedSessionService) EndSession(ctx context.Context, callerID domain.UserID, sessionID domain.SessionID) (*domain.Session, error) {
	session, err := s.baseService.EndSession(ctx, callerID, sessionID)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(activeListPrefix)
	return session, nil
}

func (s *CachedSessionService) LeaveSession(ctx context.Context, callerID domain.UserID, sessionID domain.SessionID) error {
	if err := s.baseService.LeaveSession(ctx, callerID, sessionID); err != nil {
		return err
	}
	s.cache.Invalidate(activeListPrefix)
	return nil
}

func (s *CachedSessionService) ListActiveSessions(ctx context.Context, callerID domain.UserID) ([]*domain.SessionDetails, error) {
	value, err := s.cache.GetOrSet(ctx, activeListPrefix+string(callerID), func(ctx context.Context) (interface{}, error) {
		return s.baseService.ListActiveSessions(ctx, callerID)
	}, s.listTTL)
	if err != nil {
		return nil, err
	}
	return value.([]*domain.SessionDetails), nil
}

func (s *CachedSessionService) CanWatch(ctx context.Context, viewer domain.UserID, sessionID domain.SessionID) error {
	return s.baseService.CanWatch(ctx, viewer, sessionID)
}

// Stop releases the cache's cleanup goroutine.
func (s *CachedSessionService) Stop() {
	s.cache.Stop()
}
