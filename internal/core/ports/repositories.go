package ports

import (
	"context"
	"time"

	"livetranslate/internal/core/domain"
)

type UserRepository interface {
	// Create fails with domain.ErrEmailTaken when the email is already registered.
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id domain.UserID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateRole(ctx context.Context, id domain.UserID, role domain.UserRole) (*domain.User, error)
}

type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	GetByID(ctx context.Context, id domain.SessionID) (*domain.Session, error)
	// MarkEnded sets status ENDED and endedAt.
	MarkEnded(ctx context.Context, id domain.SessionID, endedAt time.Time) (*domain.Session, error)
	// ListActiveVisible returns ACTIVE sessions that are public or hosted by viewer.
	ListActiveVisible(ctx context.Context, viewer domain.UserID) ([]*domain.Session, error)
	ListActiveByHost(ctx context.Context, hostID domain.UserID) ([]*domain.Session, error)
}

type ParticipantRepository interface {
	// Create fails with domain.ErrAlreadyJoined when an active row exists for the pair.
	Create(ctx context.Context, participant *domain.Participant) error
	FindActive(ctx context.Context, sessionID domain.SessionID, userID domain.UserID) (*domain.Participant, error)
	MarkLeft(ctx context.Context, id domain.ParticipantID, leftAt time.Time) error
	ListBySession(ctx context.Context, sessionID domain.SessionID) ([]*domain.Participant, error)
	ListActiveByUser(ctx context.Context, userID domain.UserID) ([]*domain.Participant, error)
}
