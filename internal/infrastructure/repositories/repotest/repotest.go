// Package repotest holds behavioural checks shared by every repository backend.
package repotest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livetranslate/internal/core/domain"
	"livetranslate/internal/core/ports"
)

// Stores bundles one backend's repositories. All three must share the same underlying store.
type Stores struct {
	Users        ports.UserRepository
	Sessions     ports.SessionRepository
	Participants ports.ParticipantRepository
}

var base = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func NewUser(email string) *domain.User {
	return &domain.User{
		ID:           domain.UserID(uuid.NewString()),
		Email:        email,
		PasswordHash: "$2a$04$hash",
		Name:         "User " + email,
		Role:         domain.RoleNone,
		CreatedAt:    base,
		UpdatedAt:    base,
	}
}

func NewSession(host domain.UserID, public bool, createdAt time.Time) *domain.Session {
	return &domain.Session{
		ID:          domain.SessionID(uuid.NewString()),
		Title:       "Session",
		DefaultLang: domain.LanguageEnglish,
		IsPublic:    public,
		Status:      domain.SessionActive,
		HostID:      host,
		CreatedAt:   createdAt,
	}
}

func NewParticipant(session domain.SessionID, user domain.UserID, joinedAt time.Time) *domain.Participant {
	return &domain.Participant{
		ID:        domain.ParticipantID(uuid.NewString()),
		SessionID: session,
		UserID:    user,
		Language:  domain.LanguageUkrainian,
		JoinedAt:  joinedAt,
	}
}

// Run executes the shared suite. newStores must return empty stores on every call.
func Run(t *testing.T, newStores func(t *testing.T) Stores) {
	t.Run("users", func(t *testing.T) { testUsers(t, newStores(t)) })
	t.Run("sessions", func(t *testing.T) { testSessions(t, newStores(t)) })
	t.Run("participants", func(t *testing.T) { testParticipants(t, newStores(t)) })
	t.Run("concurrent join", func(t *testing.T) { testConcurrentJoin(t, newStores(t)) })
}

func testUsers(t *testing.T, s Stores) {
	ctx := context.Background()

	u := NewUser("alice@example.com")
	require.NoError(t, s.Users.Create(ctx, u))

	err := s.Users.Create(ctx, NewUser("alice@example.com"))
	assert.ErrorIs(t, err, domain.ErrEmailTaken)

	got, err := s.Users.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, u.PasswordHash, got.PasswordHash)
	assert.Equal(t, domain.RoleNone, got.Role)

	_, err = s.Users.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	_, err = s.Users.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	updated, err := s.Users.UpdateRole(ctx, u.ID, domain.RoleHost)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleHost, updated.Role)

	got, err = s.Users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleHost, got.Role)

	updated, err = s.Users.UpdateRole(ctx, u.ID, domain.RoleNone)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleNone, updated.Role)

	_, err = s.Users.UpdateRole(ctx, "missing", domain.RoleClient)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func testSessions(t *testing.T, s Stores) {
	ctx := context.Background()

	host := NewUser("host@example.com")
	other := NewUser("other@example.com")
	require.NoError(t, s.Users.Create(ctx, host))
	require.NoError(t, s.Users.Create(ctx, other))

	desc := "weekly sync"
	public := NewSession(host.ID, true, base)
	public.Description = &desc
	private := NewSession(host.ID, false, base.Add(time.Minute))
	foreign := NewSession(other.ID, false, base.Add(2*time.Minute))
	for _, sess := range []*domain.Session{public, private, foreign} {
		require.NoError(t, s.Sessions.Create(ctx, sess))
	}

	got, err := s.Sessions.GetByID(ctx, public.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Description)
	assert.Equal(t, desc, *got.Description)
	assert.True(t, got.CreatedAt.Equal(base))
	assert.Nil(t, got.EndedAt)

	_, err = s.Sessions.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	visible, err := s.Sessions.ListActiveVisible(ctx, host.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.SessionID{private.ID, public.ID}, sessionIDs(visible), "newest first")

	visible, err = s.Sessions.ListActiveVisible(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.SessionID{foreign.ID, public.ID}, sessionIDs(visible))

	hosted, err := s.Sessions.ListActiveByHost(ctx, host.ID)
	require.NoError(t, err)
	assert.Len(t, hosted, 2)

	endedAt := base.Add(time.Hour)
	ended, err := s.Sessions.MarkEnded(ctx, public.ID, endedAt)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionEnded, ended.Status)
	require.NotNil(t, ended.EndedAt)
	assert.True(t, ended.EndedAt.Equal(endedAt))

	visible, err = s.Sessions.ListActiveVisible(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.SessionID{foreign.ID}, sessionIDs(visible))

	hosted, err = s.Sessions.ListActiveByHost(ctx, host.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.SessionID{private.ID}, sessionIDs(hosted))

	_, err = s.Sessions.MarkEnded(ctx, "missing", endedAt)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func testParticipants(t *testing.T, s Stores) {
	ctx := context.Background()

	host := NewUser("host@example.com")
	guest := NewUser("guest@example.com")
	require.NoError(t, s.Users.Create(ctx, host))
	require.NoError(t, s.Users.Create(ctx, guest))
	sess := NewSession(host.ID, true, base)
	require.NoError(t, s.Sessions.Create(ctx, sess))

	first := NewParticipant(sess.ID, guest.ID, base.Add(time.Minute))
	require.NoError(t, s.Participants.Create(ctx, first))

	err := s.Participants.Create(ctx, NewParticipant(sess.ID, guest.ID, base.Add(2*time.Minute)))
	assert.ErrorIs(t, err, domain.ErrAlreadyJoined)

	active, err := s.Participants.FindActive(ctx, sess.ID, guest.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, active.ID)
	assert.Equal(t, domain.LanguageUkrainian, active.Language)

	_, err = s.Participants.FindActive(ctx, sess.ID, host.ID)
	assert.ErrorIs(t, err, domain.ErrParticipantNotFound)

	byUser, err := s.Participants.ListActiveByUser(ctx, guest.ID)
	require.NoError(t, err)
	assert.Len(t, byUser, 1)

	leftAt := base.Add(10 * time.Minute)
	require.NoError(t, s.Participants.MarkLeft(ctx, first.ID, leftAt))
	assert.ErrorIs(t, s.Participants.MarkLeft(ctx, first.ID, leftAt), domain.ErrParticipantNotFound)

	_, err = s.Participants.FindActive(ctx, sess.ID, guest.ID)
	assert.ErrorIs(t, err, domain.ErrParticipantNotFound)

	byUser, err = s.Participants.ListActiveByUser(ctx, guest.ID)
	require.NoError(t, err)
	assert.Empty(t, byUser)

	// rejoining after leaving opens a new row
	second := NewParticipant(sess.ID, guest.ID, base.Add(20*time.Minute))
	require.NoError(t, s.Participants.Create(ctx, second))

	all, err := s.Participants.ListBySession(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID, "join order")
	require.NotNil(t, all[0].LeftAt)
	assert.True(t, all[0].LeftAt.Equal(leftAt))
	assert.Nil(t, all[1].LeftAt)
}

func testConcurrentJoin(t *testing.T, s Stores) {
	ctx := context.Background()

	host := NewUser("host@example.com")
	guest := NewUser("guest@example.com")
	require.NoError(t, s.Users.Create(ctx, host))
	require.NoError(t, s.Users.Create(ctx, guest))
	sess := NewSession(host.ID, true, base)
	require.NoError(t, s.Sessions.Create(ctx, sess))

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Participants.Create(ctx, NewParticipant(sess.ID, guest.ID, base))
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, domain.ErrAlreadyJoined)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	all, err := s.Participants.ListBySession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func sessionIDs(sessions []*domain.Session) []domain.SessionID {
	ids := make([]domain.SessionID, 0, len(sessions))
	for _, s := range sessions {
		ids = append(ids, s.ID)
	}
	return ids
}
