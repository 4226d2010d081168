package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"livetranslate/internal/core/domain"
)

type MockSessionService struct {
	mock.Mock
}

func (m *MockSessionService) CreateSession(ctx context.Context, hostID domain.UserID, req domain.NewSession) (*domain.SessionDetails, error) {
	args := m.Called(ctx, hostID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SessionDetails), args.Error(1)
}

func (m *MockSessionService) JoinSession(ctx context.Context, userID domain.UserID, sessionID domain.SessionID, language domain.Language) (*domain.ParticipantDetails, error) {
	args := m.Called(ctx, userID, sessionID, language)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ParticipantDetails), args.Error(1)
}

func (m *MockSessionService) EndSession(ctx context.Context, callerID domain.UserID, sessionID domain.SessionID) (*domain.Session, error) {
	args := m.Called(ctx, callerID, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockSessionService) LeaveSession(ctx context.Context, callerID domain.UserID, sessionID domain.SessionID) error {
	args := m.Called(ctx, callerID, sessionID)
	return args.Error(0)
}

func (m *MockSessionService) ListActiveSessions(ctx context.Context, callerID domain.UserID) ([]*domain.SessionDetails, error) {
	args := m.Called(ctx, callerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.SessionDetails), args.Error(1)
}

func (m *MockSessionService) CanWatch(ctx context.Context, viewer domain.UserID, sessionID domain.SessionID) error {
	args := m.Called(ctx, viewer, sessionID)
	return args.Error(0)
}

func TestCachedSessionService_ListIsCachedPerCaller(t *testing.T) {
	base := &MockSessionService{}
	listA := []*domain.SessionDetails{{Session: domain.Session{ID: "s1"}}}
	listB := []*domain.SessionDetails{}
	base.On("ListActiveSessions", mock.Anything, domain.UserID("a")).Return(listA, nil).Once()
	base.On("ListActiveSessions", mock.Anything, domain.UserID("b")).Return(listB, nil).Once()

	svc := NewCachedSessionService(base, time.Minute)
	defer svc.Stop()

	for i := 0; i < 3; i++ {
		got, err := svc.ListActiveSessions(context.Background(), "a")
		require.NoError(t, err)
		assert.Equal(t, listA, got)
	}
	got, err := svc.ListActiveSessions(context.Background(), "b")
	require.NoError(t, err)
	assert.Empty(t, got)

	base.AssertExpectations(t)
}

func TestCachedSessionService_MutationsInvalidate(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(m *MockSessionService)
		mutate func(svc *CachedSessionService) error
	}{
		{
			name: "create",
			setup: func(m *MockSessionService) {
				m.On("CreateSession", mock.Anything, domain.UserID("a"), mock.Anything).Return(&domain.SessionDetails{}, nil)
			},
			mutate: func(svc *CachedSessionService) error {
				_, err := svc.CreateSession(context.Background(), "a", domain.NewSession{})
				return err
			},
		},
		{
			name: "join",
			setup: func(m *MockSessionService) {
				m.On("JoinSession", mock.Anything, domain.UserID("a"), domain.SessionID("s1"), domain.LanguageEnglish).Return(&domain.ParticipantDetails{}, nil)
			},
			mutate: func(svc *CachedSessionService) error {
				_, err := svc.JoinSession(context.Background(), "a", "s1", domain.LanguageEnglish)
				return err
			},
		},
		{
			name: "end",
			setup: func(m *MockSessionService) {
				m.On("EndSession", mock.Anything, domain.UserID("a"), domain.SessionID("s1")).Return(&domain.Session{}, nil)
			},
			mutate: func(svc *CachedSessionService) error {
				_, err := svc.EndSession(context.Background(), "a", "s1")
				return err
			},
		},
		{
			name: "leave",
			setup: func(m *MockSessionService) {
				m.On("LeaveSession", mock.Anything, domain.UserID("a"), domain.SessionID("s1")).Return(nil)
			},
			mutate: func(svc *CachedSessionService) error {
				return svc.LeaveSession(context.Background(), "a", "s1")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := &MockSessionService{}
			base.On("ListActiveSessions", mock.Anything, domain.UserID("a")).Return([]*domain.SessionDetails{}, nil).Twice()
			tt.setup(base)

			svc := NewCachedSessionService(base, time.Minute)
			defer svc.Stop()

			_, err := svc.ListActiveSessions(context.Background(), "a")
			require.NoError(t, err)
			require.NoError(t, tt.mutate(svc))
			_, err = svc.ListActiveSessions(context.Background(), "a")
			require.NoError(t, err)

			base.AssertExpectations(t)
		})
	}
}

func TestCachedSessionService_FailedMutationKeepsCache(t *testing.T) {
	base := &MockSessionService{}
	base.On("ListActiveSessions", mock.Anything, domain.UserID("a")).Return([]*domain.SessionDetails{}, nil).Once()
	base.On("EndSession", mock.Anything, domain.UserID("a"), domain.SessionID("s1")).Return(nil, domain.ErrNotSessionHost)

	svc := NewCachedSessionService(base, time.Minute)
	defer svc.Stop()

	_, err := svc.ListActiveSessions(context.Background(), "a")
	require.NoError(t, err)
	_, err = svc.EndSession(context.Background(), "a", "s1")
	assert.ErrorIs(t, err, domain.ErrNotSessionHost)
	_, err = svc.ListActiveSessions(context.Background(), "a")
	require.NoError(t, err)

	base.AssertExpectations(t)
}

func TestCachedSessionService_CanWatchPassesThrough(t *testing.T) {
	base := &MockSessionService{}
	base.On("CanWatch", mock.Anything, domain.UserID("a"), domain.SessionID("s1")).Return(domain.ErrNotSessionMember).Twice()

	svc := NewCachedSessionService(base, time.Minute)
	defer svc.Stop()

	assert.ErrorIs(t, svc.CanWatch(context.Background(), "a", "s1"), domain.ErrNotSessionMember)
	assert.ErrorIs(t, svc.CanWatch(context.Background(), "a", "s1"), domain.ErrNotSessionMember)
	base.AssertExpectations(t)
}

func TestCachedSessionService_ListLoadedDuringMutationNotCached(t *testing.T) {
	base := &MockSessionService{}
	var svc *CachedSessionService
	stale := []*domain.SessionDetails{{Session: domain.Session{ID: "s1"}}}
	fresh := []*domain.SessionDetails{}
	base.On("LeaveSession", mock.Anything, domain.UserID("b"), domain.SessionID("s1")).Return(nil).Once()
	base.On("ListActiveSessions", mock.Anything, domain.UserID("a")).Return(stale, nil).Once().
		Run(func(mock.Arguments) {
			require.NoError(t, svc.LeaveSession(context.Background(), "b", "s1"))
		})
	base.On("ListActiveSessions", mock.Anything, domain.UserID("a")).Return(fresh, nil).Once()

	svc = NewCachedSessionService(base, time.Minute)
	defer svc.Stop()

	got, err := svc.ListActiveSessions(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, stale, got)

	for i := 0; i < 2; i++ {
		got, err = svc.ListActiveSessions(context.Background(), "a")
		require.NoError(t, err)
		assert.Empty(t, got)
	}
	base.AssertExpectations(t)
}
