package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrSessionNotFound     = errors.New("session not found")
	ErrParticipantNotFound = errors.New("participant not found in session")
	ErrEmailTaken          = errors.New("email already in use")
	ErrAlreadyJoined       = errors.New("user already has an active participation in session")
	ErrSessionNotActive    = errors.New("session is not active")
	ErrNotSessionHost      = errors.New("only the host can end the session")
	ErrNotSessionMember    = errors.New("not allowed to watch this session")
	ErrHostRequired        = errors.New("this action requires host privileges")
	ErrUnauthenticated     = errors.New("authentication required")
	ErrInvalidCredentials  = errors.New("invalid credentials")
)

// ValidationError reports malformed input for a single field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func NewValidationError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Reason: err.Error()}
}
