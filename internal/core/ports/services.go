package ports

import (
	"context"

	"livetranslate/internal/core/domain"
)

type RoleService interface {
	// ApplyRoleTransition moves user to requested along a sanctioned edge. changed is false
	// when the user already held the requested role.
	ApplyRoleTransition(ctx context.Context, user *domain.User, requested domain.UserRole) (updated *domain.User, changed bool, err error)
}

type SessionService interface {
	CreateSession(ctx context.Context, hostID domain.UserID, req domain.NewSession) (*domain.SessionDetails, error)
	JoinSession(ctx context.Context, userID domain.UserID, sessionID domain.SessionID, language domain.Language) (*domain.ParticipantDetails, error)
	EndSession(ctx context.Context, callerID domain.UserID, sessionID domain.SessionID) (*domain.Session, error)
	LeaveSession(ctx context.Context, callerID domain.UserID, sessionID domain.SessionID) error
	ListActiveSessions(ctx context.Context, callerID domain.UserID) ([]*domain.SessionDetails, error)
	// CanWatch reports whether viewer may subscribe to the session's event stream.
	CanWatch(ctx context.Context, viewer domain.UserID, sessionID domain.SessionID) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event domain.SessionEvent) error
}

type MetricsRecorder interface {
	RecordSessionCreated(lang domain.Language)
	RecordSessionEnded(duration float64)
	RecordParticipantJoined(lang domain.Language)
	RecordParticipantLeft()
	RecordRoleTransition(from, to domain.UserRole, result string)
	RecordRoleResetFailure()
}
