package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"livetranslate/internal/core/domain"
)

func TestCreateSession(t *testing.T) {
	f := newFixture(t)
	host := f.setRole(t, f.register(t, "host@example.com").ID, domain.RoleHost)
	desc := "weekly sync"

	details, err := f.sessionSvc.CreateSession(context.Background(), host.ID, domain.NewSession{
		Title:       "  Standup  ",
		Description: &desc,
		DefaultLang: domain.LanguageGerman,
		IsPublic:    true,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, details.ID)
	assert.Equal(t, "Standup", details.Title)
	assert.Equal(t, domain.SessionActive, details.Status)
	assert.Equal(t, host.ID, details.HostID)
	assert.Equal(t, host.ID, details.Host.ID)
	assert.Nil(t, details.EndedAt)
	assert.NotNil(t, details.Participants)
	assert.Empty(t, details.Participants)
	assert.Equal(t, 1, f.metrics.created)

	stored, err := f.sessions.GetByID(context.Background(), details.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LanguageGerman, stored.DefaultLang)
	assert.Equal(t, "weekly sync", *stored.Description)
}

func TestCreateSession_Validation(t *testing.T) {
	f := newFixture(t)
	host := f.register(t, "host@example.com")

	tests := []struct {
		name  string
		req   domain.NewSession
		field string
	}{
		{"blank title", domain.NewSession{Title: "  ", DefaultLang: domain.LanguageEnglish}, "title"},
		{"unknown language", domain.NewSession{Title: "x", DefaultLang: "FR"}, "defaultLang"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.sessionSvc.CreateSession(context.Background(), host.ID, tt.req)
			var validationErr *domain.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.field, validationErr.Field)
		})
	}
}

func TestCreateSession_UnknownHost(t *testing.T) {
	f := newFixture(t)
	req := domain.NewSession{Title: "x", DefaultLang: domain.LanguageEnglish}

	_, err := f.sessionSvc.CreateSession(context.Background(), "", req)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = f.sessionSvc.CreateSession(context.Background(), "ghost", req)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestJoinSession(t *testing.T) {
	f := newFixture(t)
	host := f.register(t, "host@example.com")
	client := f.register(t, "client@example.com")
	session := f.createSession(t, host.ID, true)

	joined, err := f.sessionSvc.JoinSession(context.Background(), client.ID, session.ID, domain.LanguageUkrainian)
	require.NoError(t, err)

	assert.Equal(t, session.ID, joined.SessionID)
	assert.Equal(t, client.ID, joined.UserID)
	assert.Equal(t, domain.LanguageUkrainian, joined.Language)
	assert.Nil(t, joined.LeftAt)
	assert.Equal(t, client.Email, joined.User.Email)
	assert.Equal(t, 1, f.metrics.joined[domain.LanguageUkrainian])
	f.events.AssertCalled(t, "Publish", mock.Anything, eventOfType(domain.EventParticipantJoined))
}

func TestJoinSession_RepeatedJoinReturnsOpenParticipation(t *testing.T) {
	f := newFixture(t)
	host := f.register(t, "host@example.com")
	client := f.register(t, "client@example.com")
	session := f.createSession(t, host.ID, true)

	first, err := f.sessionSvc.JoinSession(context.Background(), client.ID, session.ID, domain.LanguageGerman)
	require.NoError(t, err)
	second, err := f.sessionSvc.JoinSession(context.Background(), client.ID, session.ID, domain.LanguageEnglish)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, domain.LanguageGerman, second.Language)

	rows, err := f.participants.ListBySession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, 1, f.metrics.joined[domain.LanguageGerman])
}

func TestJoinSession_Errors(t *testing.T) {
	f := newFixture(t)
	host := f.register(t, "host@example.com")
	client := f.register(t, "client@example.com")
	session := f.createSession(t, host.ID, true)

	_, err := f.sessionSvc.JoinSession(context.Background(), client.ID, "missing", domain.LanguageEnglish)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = f.sessionSvc.JoinSession(context.Background(), client.ID, session.ID, "FR")
	var validationErr *domain.ValidationError
	assert.ErrorAs(t, err, &validationErr)

	_, err = f.sessionSvc.EndSession(context.Background(), host.ID, session.ID)
	require.NoError(t, err)

	_, err = f.sessionSvc.JoinSession(context.Background(), client.ID, session.ID, domain.LanguageEnglish)
	assert.ErrorIs(t, err, domain.ErrSessionNotActive)

	rows, err := f.participants.ListBySession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Empty(t, rows, "join on an ended session must not create a participant")
}

func TestEndSession_OnlyHost(t *testing.T) {
	f := newFixture(t)
	host := f.register(t, "host@example.com")
	other := f.register(t, "other@example.com")
	session := f.createSession(t, host.ID, true)

	_, err := f.sessionSvc.EndSession(context.Background(), other.ID, session.ID)
	assert.ErrorIs(t, err, domain.ErrNotSessionHost)

	stored, err := f.sessions.GetByID(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionActive, stored.Status)
	assert.Nil(t, stored.EndedAt)

	_, err = f.sessionSvc.EndSession(context.Background(), host.ID, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestEndSession_ResetsRoles(t *testing.T) {
	f := newFixture(t)
	host := f.setRole(t, f.register(t, "host@example.com").ID, domain.RoleHost)
	a := f.setRole(t, f.register(t, "a@example.com").ID, domain.RoleClient)
	b := f.setRole(t, f.register(t, "b@example.com").ID, domain.RoleClient)
	gone := f.setRole(t, f.register(t, "gone@example.com").ID, domain.RoleClient)
	session := f.createSession(t, host.ID, false)

	for _, u := range []*domain.User{a, b, gone} {
		_, err := f.sessionSvc.JoinSession(context.Background(), u.ID, session.ID, domain.LanguageEnglish)
		require.NoError(t, err)
	}
	// gone left earlier and picked a role again for some other reason; end must not touch it
	require.NoError(t, f.sessionSvc.LeaveSession(context.Background(), gone.ID, session.ID))
	f.setRole(t, gone.ID, domain.RoleClient)

	ended, err := f.sessionSvc.EndSession(context.Background(), host.ID, session.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.SessionEnded, ended.Status)
	require.NotNil(t, ended.EndedAt)
	assert.True(t, ended.EndedAt.After(ended.CreatedAt))

	assert.Equal(t, domain.RoleNone, f.role(t, host.ID))
	assert.Equal(t, domain.RoleNone, f.role(t, a.ID))
	assert.Equal(t, domain.RoleNone, f.role(t, b.ID))
	assert.Equal(t, domain.RoleClient, f.role(t, gone.ID))

	assert.Equal(t, 1, f.metrics.ended)
	assert.Zero(t, f.metrics.resetFailure)
	f.events.AssertCalled(t, "Publish", mock.Anything, eventOfType(domain.EventSessionEnded))
}

func TestEndSession_AlreadyEnded(t *testing.T) {
	f := newFixture(t)
	host := f.register(t, "host@example.com")
	session := f.createSession(t, host.ID, true)

	first, err := f.sessionSvc.EndSession(context.Background(), host.ID, session.ID)
	require.NoError(t, err)

	_, err = f.sessionSvc.EndSession(context.Background(), host.ID, session.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotActive)

	stored, err := f.sessions.GetByID(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, *first.EndedAt, *stored.EndedAt, "endedAt is written once")
}

func TestEndSession_RoleResetFailureDoesNotRollBack(t *testing.T) {
	base := newFixture(t)
	host := base.setRole(t, base.register(t, "host@example.com").ID, domain.RoleHost)
	client := base.setRole(t, base.register(t, "client@example.com").ID, domain.RoleClient)

	f := newFixtureWithUsers(t, &failingRoleUpdates{
		UserRepository: base.users,
		failFor:        map[domain.UserID]error{client.ID: errors.New("store down")},
	})
	session := f.createSession(t, host.ID, true)
	_, err := f.sessionSvc.JoinSession(context.Background(), client.ID, session.ID, domain.LanguageEnglish)
	require.NoError(t, err)

	ended, err := f.sessionSvc.EndSession(context.Background(), host.ID, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionEnded, ended.Status)

	assert.Equal(t, domain.RoleNone, f.role(t, host.ID))
	assert.Equal(t, domain.RoleClient, f.role(t, client.ID))
	assert.Equal(t, 1, f.metrics.resetFailure)
	// first call plus two retries
	assert.Equal(t, 3, f.metrics.transitions["CLIENT>none:failed"])
}

func TestEndSession_CancelledCallerStillResetsRoles(t *testing.T) {
	f := newFixture(t)
	host := f.setRole(t, f.register(t, "host@example.com").ID, domain.RoleHost)
	session := f.createSession(t, host.ID, true)

	// the in-memory stores ignore ctx, so only the cleanup path observes the cancellation
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.sessionSvc.EndSession(ctx, host.ID, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleNone, f.role(t, host.ID))
	assert.Zero(t, f.metrics.resetFailure)
}

func TestEndSession_PublishFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.events.ExpectedCalls = nil
	f.events.On("Publish", mock.Anything, mock.Anything).Return(errors.New("bus down"))

	host := f.register(t, "host@example.com")
	session := f.createSession(t, host.ID, true)

	_, err := f.sessionSvc.EndSession(context.Background(), host.ID, session.ID)
	assert.NoError(t, err)
	f.events.AssertNumberOfCalls(t, "Publish", 1)
}

func TestLeaveSession(t *testing.T) {
	f := newFixture(t)
	host := f.register(t, "host@example.com")
	client := f.setRole(t, f.register(t, "client@example.com").ID, domain.RoleClient)
	session := f.createSession(t, host.ID, true)

	joined, err := f.sessionSvc.JoinSession(context.Background(), client.ID, session.ID, domain.LanguageEnglish)
	require.NoError(t, err)

	require.NoError(t, f.sessionSvc.LeaveSession(context.Background(), client.ID, session.ID))

	rows, err := f.participants.ListBySession(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, joined.ID, rows[0].ID)
	require.NotNil(t, rows[0].LeftAt)
	assert.True(t, rows[0].LeftAt.After(rows[0].JoinedAt))

	assert.Equal(t, domain.RoleNone, f.role(t, client.ID))
	assert.Equal(t, 1, f.metrics.left)
	f.events.AssertCalled(t, "Publish", mock.Anything, eventOfType(domain.EventParticipantLeft))

	err = f.sessionSvc.LeaveSession(context.Background(), client.ID, session.ID)
	assert.ErrorIs(t, err, domain.ErrParticipantNotFound, "second leave finds no active row")
}

func TestLeaveSession_NeverJoined(t *testing.T) {
	f := newFixture(t)
	host := f.register(t, "host@example.com")
	stranger := f.register(t, "stranger@example.com")
	session := f.createSession(t, host.ID, true)

	err := f.sessionSvc.LeaveSession(context.Background(), stranger.ID, session.ID)
	assert.ErrorIs(t, err, domain.ErrParticipantNotFound)
	assert.Zero(t, f.metrics.left)
}

func TestLeaveSession_EndedSessionKeepsOtherRole(t *testing.T) {
	f := newFixture(t)
	firstHost := f.register(t, "first@example.com")
	secondHost := f.register(t, "second@example.com")
	client := f.setRole(t, f.register(t, "client@example.com").ID, domain.RoleClient)

	ended := f.createSession(t, firstHost.ID, true)
	_, err := f.sessionSvc.JoinSession(context.Background(), client.ID, ended.ID, domain.LanguageGerman)
	require.NoError(t, err)
	_, err = f.sessionSvc.EndSession(context.Background(), firstHost.ID, ended.ID)
	require.NoError(t, err)

	client = f.setRole(t, client.ID, domain.RoleClient)
	current := f.createSession(t, secondHost.ID, true)
	_, err = f.sessionSvc.JoinSession(context.Background(), client.ID, current.ID, domain.LanguageEnglish)
	require.NoError(t, err)

	err = f.sessionSvc.LeaveSession(context.Background(), client.ID, ended.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotActive)
	assert.Equal(t, domain.RoleClient, f.role(t, client.ID))
	assert.Zero(t, f.metrics.left)
}

func TestLeaveSession_UnknownSession(t *testing.T) {
	f := newFixture(t)
	client := f.register(t, "client@example.com")

	err := f.sessionSvc.LeaveSession(context.Background(), client.ID, "0d1f2a8e-34b7-4c55-9a7e-0b7f2a9c1d11")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestLeaveAndRejoin(t *testing.T) {
	f := newFixture(t)
	host := f.register(t, "host@example.com")
	client := f.register(t, "client@example.com")
	session := f.createSession(t, host.ID, true)

	first, err := f.sessionSvc.JoinSession(context.Background(), client.ID, session.ID, domain.LanguageEnglish)
	require.NoError(t, err)
	require.NoError(t, f.sessionSvc.LeaveSession(context.Background(), client.ID, session.ID))
	second, err := f.sessionSvc.JoinSession(context.Background(), client.ID, session.ID, domain.LanguageUkrainian)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	rows, err := f.participants.ListBySession(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, first.ID, rows[0].ID)
	assert.Equal(t, second.ID, rows[1].ID)
}

func TestListActiveSessions(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice@example.com")
	bob := f.register(t, "bob@example.com")

	public := f.createSession(t, alice.ID, true)
	private := f.createSession(t, alice.ID, false)
	ended := f.createSession(t, bob.ID, true)
	_, err := f.sessionSvc.EndSession(context.Background(), bob.ID, ended.ID)
	require.NoError(t, err)

	_, err = f.sessionSvc.JoinSession(context.Background(), bob.ID, public.ID, domain.LanguageGerman)
	require.NoError(t, err)

	forAlice, err := f.sessionSvc.ListActiveSessions(context.Background(), alice.ID)
	require.NoError(t, err)
	require.Len(t, forAlice, 2)
	assert.Equal(t, private.ID, forAlice[0].ID, "newest first")
	assert.Equal(t, public.ID, forAlice[1].ID)
	assert.Equal(t, alice.Email, forAlice[1].Host.Email)
	require.Len(t, forAlice[1].Participants, 1)
	assert.Equal(t, bob.ID, forAlice[1].Participants[0].User.ID)

	forBob, err := f.sessionSvc.ListActiveSessions(context.Background(), bob.ID)
	require.NoError(t, err)
	require.Len(t, forBob, 1)
	assert.Equal(t, public.ID, forBob[0].ID)
}

func TestListActiveSessions_Empty(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "u@example.com")

	list, err := f.sessionSvc.ListActiveSessions(context.Background(), user.ID)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestCanWatch(t *testing.T) {
	f := newFixture(t)
	host := f.register(t, "host@example.com")
	member := f.register(t, "member@example.com")
	stranger := f.register(t, "stranger@example.com")

	public := f.createSession(t, host.ID, true)
	private := f.createSession(t, host.ID, false)
	_, err := f.sessionSvc.JoinSession(context.Background(), member.ID, private.ID, domain.LanguageEnglish)
	require.NoError(t, err)

	assert.NoError(t, f.sessionSvc.CanWatch(context.Background(), stranger.ID, public.ID))
	assert.NoError(t, f.sessionSvc.CanWatch(context.Background(), host.ID, private.ID))
	assert.NoError(t, f.sessionSvc.CanWatch(context.Background(), member.ID, private.ID))
	assert.ErrorIs(t, f.sessionSvc.CanWatch(context.Background(), stranger.ID, private.ID), domain.ErrNotSessionMember)
	assert.ErrorIs(t, f.sessionSvc.CanWatch(context.Background(), stranger.ID, "missing"), domain.ErrSessionNotFound)

	_, err = f.sessionSvc.EndSession(context.Background(), host.ID, public.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, f.sessionSvc.CanWatch(context.Background(), stranger.ID, public.ID), domain.ErrSessionNotActive)
}

// A full host/client round trip through auth, role changes and the session lifecycle.
func TestHostClientLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	hostUser, _, err := f.authSvc.Register(ctx, "a@example.com", "secret1", "Alice")
	require.NoError(t, err)
	hostUser, changed, err := f.authSvc.UpdateRole(ctx, hostUser, domain.RoleHost)
	require.NoError(t, err)
	require.True(t, changed)
	require.NoError(t, f.authSvc.RequireHost(hostUser))

	session, err := f.sessionSvc.CreateSession(ctx, hostUser.ID, domain.NewSession{
		Title:       "Demo",
		DefaultLang: domain.LanguageEnglish,
		IsPublic:    true,
	})
	require.NoError(t, err)

	clientUser, _, err := f.authSvc.Register(ctx, "b@example.com", "secret1", "Bob")
	require.NoError(t, err)
	clientUser, _, err = f.authSvc.UpdateRole(ctx, clientUser, domain.RoleClient)
	require.NoError(t, err)
	assert.ErrorIs(t, f.authSvc.RequireHost(clientUser), domain.ErrHostRequired)

	_, err = f.sessionSvc.JoinSession(ctx, clientUser.ID, session.ID, domain.LanguageGerman)
	require.NoError(t, err)

	list, err := f.sessionSvc.ListActiveSessions(ctx, clientUser.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Len(t, list[0].Participants, 1)

	_, err = f.sessionSvc.EndSession(ctx, clientUser.ID, session.ID)
	assert.ErrorIs(t, err, domain.ErrNotSessionHost)

	ended, err := f.sessionSvc.EndSession(ctx, hostUser.ID, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionEnded, ended.Status)
	assert.Equal(t, domain.RoleNone, f.role(t, hostUser.ID))
	assert.Equal(t, domain.RoleNone, f.role(t, clientUser.ID))

	list, err = f.sessionSvc.ListActiveSessions(ctx, clientUser.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = f.sessionSvc.JoinSession(ctx, clientUser.ID, session.ID, domain.LanguageGerman)
	assert.ErrorIs(t, err, domain.ErrSessionNotActive)
}
