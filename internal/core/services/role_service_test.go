package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livetranslate/internal/core/domain"
)

func TestApplyRoleTransition_AllPairs(t *testing.T) {
	roles := []domain.UserRole{domain.RoleNone, domain.RoleHost, domain.RoleClient}

	for _, from := range roles {
		for _, to := range roles {
			t.Run(from.String()+"->"+to.String(), func(t *testing.T) {
				f := newFixture(t)
				user := f.register(t, "u@example.com")
				user = f.setRole(t, user.ID, from)

				updated, changed, err := f.roles.ApplyRoleTransition(context.Background(), user, to)

				switch {
				case from == to:
					require.NoError(t, err)
					assert.False(t, changed)
					assert.Equal(t, from, updated.Role)
				case domain.CanTransition(from, to):
					require.NoError(t, err)
					assert.True(t, changed)
					assert.Equal(t, to, updated.Role)
					assert.Equal(t, to, f.role(t, user.ID))
				default:
					var transitionErr *domain.InvalidTransitionError
					require.ErrorAs(t, err, &transitionErr)
					assert.Equal(t, from, transitionErr.From)
					assert.Equal(t, to, transitionErr.To)
					assert.Equal(t, from, f.role(t, user.ID), "rejected transition must not persist")
				}
			})
		}
	}
}

func TestApplyRoleTransition_HostToClientRejected(t *testing.T) {
	f := newFixture(t)
	user := f.setRole(t, f.register(t, "h@example.com").ID, domain.RoleHost)

	_, _, err := f.roles.ApplyRoleTransition(context.Background(), user, domain.RoleClient)
	assert.EqualError(t, err, "invalid role transition: HOST -> CLIENT")
	assert.Equal(t, 1, f.metrics.transitions["HOST>CLIENT:rejected"])
}

func TestApplyRoleTransition_UnknownRole(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "u@example.com")

	_, _, err := f.roles.ApplyRoleTransition(context.Background(), user, domain.UserRole("ADMIN"))
	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "role", validationErr.Field)
}

func TestApplyRoleTransition_StoreFailure(t *testing.T) {
	boom := errors.New("store down")
	base := newFixture(t)
	user := base.register(t, "u@example.com")

	f := newFixtureWithUsers(t, &failingRoleUpdates{
		UserRepository: base.users,
		failFor:        map[domain.UserID]error{user.ID: boom},
	})

	_, changed, err := f.roles.ApplyRoleTransition(context.Background(), user, domain.RoleHost)
	assert.ErrorIs(t, err, boom)
	assert.False(t, changed)
	assert.Equal(t, 1, f.metrics.transitions["none>HOST:failed"])
}
