package http

import (
	"errors"

	"livetranslate/internal/core/domain"
	apperrors "livetranslate/pkg/errors"

	"github.com/gin-gonic/gin"
)

// toAppError maps domain failures onto the public error taxonomy.
func toAppError(err error) *apperrors.AppError {
	if appErr := apperrors.GetAppError(err); appErr != nil {
		return appErr
	}

	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		return apperrors.NewInvalidInputError(validationErr.Error()).
			WithContext("field", validationErr.Field)
	}

	var transitionErr *domain.InvalidTransitionError
	if errors.As(err, &transitionErr) {
		return apperrors.NewInvalidTransitionError("Invalid role transition").
			WithContext("currentRole", roleValue(transitionErr.From)).
			WithContext("requestedRole", roleValue(transitionErr.To)).
			WithContext("validTransitions", transitionViews())
	}

	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return apperrors.NewUnauthorizedError("Authentication required")
	case errors.Is(err, domain.ErrInvalidCredentials):
		return apperrors.NewInvalidCredentialsError()
	case errors.Is(err, domain.ErrHostRequired):
		return apperrors.NewForbiddenError("This action requires host privileges")
	case errors.Is(err, domain.ErrNotSessionHost):
		return apperrors.NewForbiddenError("Only the host can end the session")
	case errors.Is(err, domain.ErrNotSessionMember):
		return apperrors.NewForbiddenError("Not allowed to watch this session")
	case errors.Is(err, domain.ErrUserNotFound):
		return apperrors.NewNotFoundError("User not found")
	case errors.Is(err, domain.ErrSessionNotFound):
		return apperrors.NewNotFoundError("Session not found")
	case errors.Is(err, domain.ErrParticipantNotFound):
		return apperrors.NewNotFoundError("Participant not found in session")
	case errors.Is(err, domain.ErrEmailTaken):
		return apperrors.NewConflictError("Email already in use")
	case errors.Is(err, domain.ErrAlreadyJoined):
		return apperrors.NewConflictError("Already joined this session")
	case errors.Is(err, domain.ErrSessionNotActive):
		return apperrors.NewInvalidStateError("Session is not active")
	}

	return apperrors.WrapError(err, apperrors.ErrCodeInternal, "Internal server error", 500)
}

func respondError(c *gin.Context, err error) {
	_ = c.Error(toAppError(err))
}

// roleValue renders RoleNone as JSON null.
func roleValue(r domain.UserRole) interface{} {
	if r == domain.RoleNone {
		return nil
	}
	return string(r)
}

func transitionViews() []gin.H {
	transitions := domain.ValidRoleTransitions()
	out := make([]gin.H, 0, len(transitions))
	for _, t := range transitions {
		out = append(out, gin.H{"from": roleValue(t.From), "to": roleValue(t.To)})
	}
	return out
}
