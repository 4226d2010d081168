package services

import (
	"context"

	"go.uber.org/zap"

	"livetranslate/internal/core/domain"
	"livetranslate/internal/core/ports"
	"livetranslate/pkg/tracing"
)

const (
	TransitionApplied  = "applied"
	TransitionNoop     = "noop"
	TransitionRejected = "rejected"
	TransitionFailed   = "failed"
)

type roleService struct {
	users   ports.UserRepository
	metrics ports.MetricsRecorder
	logger  *zap.SugaredLogger
}

// NewRoleService returns the only writer of User.Role.
func NewRoleService(users ports.UserRepository, metrics ports.MetricsRecorder, logger *zap.SugaredLogger) ports.RoleService {
	return &roleService{
		users:   users,
		metrics: metricsOrNoop(metrics),
		logger:  logger,
	}
}

func (s *roleService) ApplyRoleTransition(ctx context.Context, user *domain.User, requested domain.UserRole) (*domain.User, bool, error) {
	ctx, span := tracing.TraceRoleTransition(ctx, string(user.ID), user.Role.String(), requested.String())
	defer span.End()

	if !requested.Valid() {
		err := &domain.ValidationError{Field: "role", Reason: "must be HOST, CLIENT or null"}
		tracing.RecordError(ctx, err)
		return nil, false, err
	}

	if user.Role == requested {
		s.metrics.RecordRoleTransition(user.Role, requested, TransitionNoop)
		return user, false, nil
	}

	if !domain.CanTransition(user.Role, requested) {
		s.metrics.RecordRoleTransition(user.Role, requested, TransitionRejected)
		err := &domain.InvalidTransitionError{From: user.Role, To: requested}
		tracing.RecordError(ctx, err)
		return nil, false, err
	}

	updated, err := s.users.UpdateRole(ctx, user.ID, requested)
	if err != nil {
		s.metrics.RecordRoleTransition(user.Role, requested, TransitionFailed)
		tracing.RecordError(ctx, err)
		return nil, false, err
	}

	s.metrics.RecordRoleTransition(user.Role, requested, TransitionApplied)
	s.logger.Infow("role changed",
		"user_id", user.ID,
		"from", user.Role.String(),
		"to", requested.String(),
	)
	return updated, true, nil
}
