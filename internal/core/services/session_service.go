package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"livetranslate/internal/core/domain"
	"livetranslate/internal/core/ports"
	"livetranslate/pkg/retry"
	"livetranslate/pkg/tracing"
	"livetranslate/pkg/validation"
)

type sessionService struct {
	sessions     ports.SessionRepository
	participants ports.ParticipantRepository
	users        ports.UserRepository
	roles        ports.RoleService
	events       ports.EventPublisher
	metrics      ports.MetricsRecorder
	logger       *zap.SugaredLogger
	resetRetry   retry.Config
	now          func() time.Time
}

func NewSessionService(
	sessions ports.SessionRepository,
	participants ports.ParticipantRepository,
	users ports.UserRepository,
	roles ports.RoleService,
	events ports.EventPublisher,
	metrics ports.MetricsRecorder,
	resetRetry retry.Config,
	logger *zap.SugaredLogger,
) ports.SessionService {
	resetRetry.NonRetryableErrors = append(resetRetry.NonRetryableErrors, domain.ErrUserNotFound)
	return &sessionService{
		sessions:     sessions,
		participants: participants,
		users:        users,
		roles:        roles,
		events:       publisherOrNoop(events),
		metrics:      metricsOrNoop(metrics),
		logger:       logger,
		resetRetry:   resetRetry,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *sessionService) CreateSession(ctx context.Context, hostID domain.UserID, req domain.NewSession) (*domain.SessionDetails, error) {
	ctx, span := tracing.TraceSessionOperation(ctx, "create", "", string(hostID))
	defer span.End()

	if hostID == "" {
		return nil, domain.ErrUnauthenticated
	}
	if err := validateNewSession(req); err != nil {
		return nil, err
	}

	host, err := s.users.GetByID(ctx, hostID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUnauthenticated
		}
		tracing.RecordError(ctx, err)
		return nil, fmt.Errorf("load host: %w", err)
	}

	session := &domain.Session{
		ID:          domain.SessionID(uuid.NewString()),
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		DefaultLang: req.DefaultLang,
		IsPublic:    req.IsPublic,
		Status:      domain.SessionActive,
		HostID:      hostID,
		CreatedAt:   s.now(),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		tracing.RecordError(ctx, err)
		return nil, fmt.Errorf("create session: %w", err)
	}
	tracing.AddSpanAttributes(ctx, tracing.SessionIDKey.String(string(session.ID)))

	s.metrics.RecordSessionCreated(session.DefaultLang)
	s.logger.Infow("session created",
		"session_id", session.ID,
		"host_id", hostID,
		"public", session.IsPublic,
		"default_lang", session.DefaultLang,
	)

	return &domain.SessionDetails{
		Session:      *session,
		Host:         host.Summary(),
		Participants: []domain.ParticipantDetails{},
	}, nil
}

func (s *sessionService) JoinSession(ctx context.Context, userID domain.UserID, sessionID domain.SessionID, language domain.Language) (*domain.ParticipantDetails, error) {
	ctx, span := tracing.TraceSessionOperation(ctx, "join", string(sessionID), string(userID))
	defer span.End()

	if err := validation.ValidateLanguage(string(language)); err != nil {
		return nil, domain.NewValidationError("language", err)
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	if !session.Active() {
		return nil, domain.ErrSessionNotActive
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUnauthenticated
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	// A repeated join hands back the open participation instead of opening a second one.
	existing, err := s.participants.FindActive(ctx, sessionID, userID)
	switch {
	case err == nil:
		return &domain.ParticipantDetails{Participant: *existing, User: user.Summary()}, nil
	case !errors.Is(err, domain.ErrParticipantNotFound):
		return nil, fmt.Errorf("find participation: %w", err)
	}

	participant := &domain.Participant{
		ID:        domain.ParticipantID(uuid.NewString()),
		SessionID: sessionID,
		UserID:    userID,
		Language:  language,
		JoinedAt:  s.now(),
	}
	if err := s.participants.Create(ctx, participant); err != nil {
		if !errors.Is(err, domain.ErrAlreadyJoined) {
			tracing.RecordError(ctx, err)
			return nil, fmt.Errorf("create participant: %w", err)
		}
		// lost a race with a concurrent join of the same user
		existing, err = s.participants.FindActive(ctx, sessionID, userID)
		if err != nil {
			return nil, fmt.Errorf("find participation: %w", err)
		}
		return &domain.ParticipantDetails{Participant: *existing, User: user.Summary()}, nil
	}

	s.metrics.RecordParticipantJoined(language)
	s.logger.Infow("participant joined",
		"session_id", sessionID,
		"user_id", userID,
		"language", language,
	)
	s.publish(ctx, domain.SessionEvent{
		Type:      domain.EventParticipantJoined,
		SessionID: sessionID,
		UserID:    userID,
		Language:  language,
		Timestamp: participant.JoinedAt,
	})

	return &domain.ParticipantDetails{Participant: *participant, User: user.Summary()}, nil
}

func (s *sessionService) EndSession(ctx context.Context, callerID domain.UserID, sessionID domain.SessionID) (*domain.Session, error) {
	ctx, span := tracing.TraceSessionOperation(ctx, "end", string(sessionID), string(callerID))
	defer span.End()

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	if session.HostID != callerID {
		return nil, domain.ErrNotSessionHost
	}
	if !session.Active() {
		return nil, domain.ErrSessionNotActive
	}

	// Read membership before the status write so the fan-out covers everyone present at the end.
	participants, err := s.participants.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}

	ended, err := s.sessions.MarkEnded(ctx, sessionID, s.now())
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, fmt.Errorf("end session: %w", err)
	}

	// Role cleanup is secondary: failures are logged and left for login read-repair.
	cleanupCtx := context.WithoutCancel(ctx)
	reset := map[domain.UserID]bool{session.HostID: true}
	s.resetRole(cleanupCtx, session.HostID)
	for _, p := range participants {
		if !p.Active() || reset[p.UserID] {
			continue
		}
		reset[p.UserID] = true
		s.resetRole(cleanupCtx, p.UserID)
	}

	if ended.EndedAt != nil {
		s.metrics.RecordSessionEnded(ended.EndedAt.Sub(ended.CreatedAt).Seconds())
	}
	s.logger.Infow("session ended",
		"session_id", sessionID,
		"host_id", callerID,
		"roles_reset", len(reset),
	)
	s.publish(cleanupCtx, domain.SessionEvent{
		Type:      domain.EventSessionEnded,
		SessionID: sessionID,
		UserID:    callerID,
		Timestamp: s.now(),
	})

	return ended, nil
}

func (s *sessionService) LeaveSession(ctx context.Context, callerID domain.UserID, sessionID domain.SessionID) error {
	ctx, span := tracing.TraceSessionOperation(ctx, "leave", string(sessionID), string(callerID))
	defer span.End()

	// Rows of an ended session stay open; leaving one would reset a role the
	// caller may now hold in another session.
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		tracing.RecordError(ctx, err)
		return err
	}
	if !session.Active() {
		return domain.ErrSessionNotActive
	}

	participant, err := s.participants.FindActive(ctx, sessionID, callerID)
	if err != nil {
		tracing.RecordError(ctx, err)
		return err
	}

	leftAt := s.now()
	if err := s.participants.MarkLeft(ctx, participant.ID, leftAt); err != nil {
		tracing.RecordError(ctx, err)
		if errors.Is(err, domain.ErrParticipantNotFound) {
			return err
		}
		return fmt.Errorf("leave session: %w", err)
	}

	cleanupCtx := context.WithoutCancel(ctx)
	s.resetRole(cleanupCtx, callerID)

	s.metrics.RecordParticipantLeft()
	s.logger.Infow("participant left",
		"session_id", sessionID,
		"user_id", callerID,
	)
	s.publish(cleanupCtx, domain.SessionEvent{
		Type:      domain.EventParticipantLeft,
		SessionID: sessionID,
		UserID:    callerID,
		Language:  participant.Language,
		Timestamp: leftAt,
	})
	return nil
}

func (s *sessionService) ListActiveSessions(ctx context.Context, callerID domain.UserID) ([]*domain.SessionDetails, error) {
	ctx, span := tracing.TraceSessionOperation(ctx, "list_active", "", string(callerID))
	defer span.End()

	sessions, err := s.sessions.ListActiveVisible(ctx, callerID)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	summaries := make(map[domain.UserID]domain.UserSummary)
	summary := func(id domain.UserID) (domain.UserSummary, error) {
		if cached, ok := summaries[id]; ok {
			return cached, nil
		}
		u, err := s.users.GetByID(ctx, id)
		if err != nil {
			if !errors.Is(err, domain.ErrUserNotFound) {
				return domain.UserSummary{}, err
			}
			s.logger.Warnw("session references unknown user", "user_id", id)
			summaries[id] = domain.UserSummary{ID: id}
			return summaries[id], nil
		}
		summaries[id] = u.Summary()
		return summaries[id], nil
	}

	result := make([]*domain.SessionDetails, 0, len(sessions))
	for _, session := range sessions {
		host, err := summary(session.HostID)
		if err != nil {
			return nil, fmt.Errorf("load host: %w", err)
		}
		participants, err := s.participants.ListBySession(ctx, session.ID)
		if err != nil {
			return nil, fmt.Errorf("list participants: %w", err)
		}

		details := &domain.SessionDetails{
			Session:      *session,
			Host:         host,
			Participants: make([]domain.ParticipantDetails, 0, len(participants)),
		}
		for _, p := range participants {
			user, err := summary(p.UserID)
			if err != nil {
				return nil, fmt.Errorf("load participant: %w", err)
			}
			details.Participants = append(details.Participants, domain.ParticipantDetails{Participant: *p, User: user})
		}
		result = append(result, details)
	}
	return result, nil
}

func (s *sessionService) CanWatch(ctx context.Context, viewer domain.UserID, sessionID domain.SessionID) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if !session.Active() {
		return domain.ErrSessionNotActive
	}
	if session.VisibleTo(viewer) {
		return nil
	}
	if _, err := s.participants.FindActive(ctx, sessionID, viewer); err != nil {
		if errors.Is(err, domain.ErrParticipantNotFound) {
			return domain.ErrNotSessionMember
		}
		return err
	}
	return nil
}

// resetRole moves userID back to no role, retrying transient store failures.
func (s *sessionService) resetRole(ctx context.Context, userID domain.UserID) {
	err := retry.Retry(ctx, s.resetRetry, func() error {
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		_, _, err = s.roles.ApplyRoleTransition(ctx, user, domain.RoleNone)
		return err
	})
	if err != nil {
		s.metrics.RecordRoleResetFailure()
		s.logger.Errorw("failed to reset role",
			"user_id", userID,
			"error", err,
		)
	}
}

func (s *sessionService) publish(ctx context.Context, event domain.SessionEvent) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warnw("failed to publish session event",
			"type", event.Type,
			"session_id", event.SessionID,
			"error", err,
		)
	}
}

func validateNewSession(req domain.NewSession) error {
	if err := validation.ValidateSessionTitle(req.Title); err != nil {
		return domain.NewValidationError("title", err)
	}
	if err := validation.ValidateSessionDescription(req.Description); err != nil {
		return domain.NewValidationError("description", err)
	}
	if err := validation.ValidateLanguage(string(req.DefaultLang)); err != nil {
		return domain.NewValidationError("defaultLang", err)
	}
	return nil
}
