package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"livetranslate/internal/core/domain"
	"livetranslate/internal/core/ports"
	"livetranslate/internal/infrastructure/repositories/memory"
	"livetranslate/pkg/retry"
)

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, event domain.SessionEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func eventOfType(t domain.EventType) interface{} {
	return mock.MatchedBy(func(e domain.SessionEvent) bool { return e.Type == t })
}

type recordingMetrics struct {
	mu           sync.Mutex
	created      int
	ended        int
	joined       map[domain.Language]int
	left         int
	transitions  map[string]int
	resetFailure int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		joined:      make(map[domain.Language]int),
		transitions: make(map[string]int),
	}
}

func (m *recordingMetrics) RecordSessionCreated(domain.Language) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created++
}

func (m *recordingMetrics) RecordSessionEnded(float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ended++
}

func (m *recordingMetrics) RecordParticipantJoined(lang domain.Language) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.joined[lang]++
}

func (m *recordingMetrics) RecordParticipantLeft() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.left++
}

func (m *recordingMetrics) RecordRoleTransition(from, to domain.UserRole, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions[from.String()+">"+to.String()+":"+result]++
}

func (m *recordingMetrics) RecordRoleResetFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetFailure++
}

// failingRoleUpdates wraps a user store and fails UpdateRole for selected users.
type failingRoleUpdates struct {
	ports.UserRepository
	failFor map[domain.UserID]error
}

func (f *failingRoleUpdates) UpdateRole(ctx context.Context, id domain.UserID, role domain.UserRole) (*domain.User, error) {
	if err, ok := f.failFor[id]; ok {
		return nil, err
	}
	return f.UserRepository.UpdateRole(ctx, id, role)
}

type fixture struct {
	users        ports.UserRepository
	sessions     ports.SessionRepository
	participants ports.ParticipantRepository
	metrics      *recordingMetrics
	events       *MockEventPublisher
	roles        ports.RoleService
	sessionSvc   *sessionService
	authSvc      *authService
	clock        time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithUsers(t, memory.NewMemoryUserRepository())
}

func newFixtureWithUsers(t *testing.T, users ports.UserRepository) *fixture {
	t.Helper()
	logger := zap.NewNop().Sugar()

	f := &fixture{
		users:        users,
		sessions:     memory.NewMemorySessionRepository(),
		participants: memory.NewMemoryParticipantRepository(),
		metrics:      newRecordingMetrics(),
		events:       &MockEventPublisher{},
		clock:        time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC),
	}
	f.events.On("Publish", mock.Anything, mock.Anything).Return(nil).Maybe()

	f.roles = NewRoleService(f.users, f.metrics, logger)

	resetRetry := retry.Config{
		Enabled:      true,
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Multiplier:   2,
	}
	f.sessionSvc = NewSessionService(f.sessions, f.participants, f.users, f.roles, f.events, f.metrics, resetRetry, logger).(*sessionService)
	f.sessionSvc.now = f.now

	f.authSvc = NewAuthService(AuthConfig{
		JWTSecret:  "test-secret",
		TokenTTL:   time.Hour,
		BcryptCost: bcrypt.MinCost,
	}, f.users, f.sessions, f.participants, f.roles, logger).(*authService)

	return f
}

// now advances the clock by a second per call so timestamps stay ordered.
func (f *fixture) now() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fixture) register(t *testing.T, email string) *domain.User {
	t.Helper()
	user, _, err := f.authSvc.Register(context.Background(), email, "secret1", "User "+email)
	require.NoError(t, err)
	return user
}

func (f *fixture) setRole(t *testing.T, id domain.UserID, role domain.UserRole) *domain.User {
	t.Helper()
	u, err := f.users.UpdateRole(context.Background(), id, role)
	require.NoError(t, err)
	return u
}

func (f *fixture) role(t *testing.T, id domain.UserID) domain.UserRole {
	t.Helper()
	u, err := f.users.GetByID(context.Background(), id)
	require.NoError(t, err)
	return u.Role
}

func (f *fixture) createSession(t *testing.T, host domain.UserID, public bool) *domain.SessionDetails {
	t.Helper()
	s, err := f.sessionSvc.CreateSession(context.Background(), host, domain.NewSession{
		Title:       "Standup",
		DefaultLang: domain.LanguageEnglish,
		IsPublic:    public,
	})
	require.NoError(t, err)
	return s
}
