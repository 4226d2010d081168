package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"livetranslate/internal/core/domain"
	"livetranslate/internal/core/ports"
	"livetranslate/pkg/tracing"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) ports.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (err error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "insert", "users")
	defer func() { tracing.RecordError(ctx, err); span.End() }()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&UserModel{}).Where("email = ?", user.Email).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check email: %w", err)
		}
		if count > 0 {
			return domain.ErrEmailTaken
		}
		if err := tx.Create(userToModel(user)).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.ErrEmailTaken
			}
			return fmt.Errorf("failed to insert user: %w", err)
		}
		return nil
	})
}

func (r *UserRepository) GetByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	return r.first(ctx, "id = ?", string(id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *UserRepository) first(ctx context.Context, query string, arg string) (user *domain.User, err error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "select", "users")
	defer func() { tracing.RecordError(ctx, err); span.End() }()

	var m UserModel
	if err := r.db.WithContext(ctx).Where(query, arg).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return m.toDomain(), nil
}

func (r *UserRepository) UpdateRole(ctx context.Context, id domain.UserID, role domain.UserRole) (user *domain.User, err error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "update", "users")
	defer func() { tracing.RecordError(ctx, err); span.End() }()

	var m UserModel
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&UserModel{}).Where("id = ?", string(id)).Updates(map[string]interface{}{
			"role":       roleColumn(role),
			"updated_at": time.Now().UTC(),
		})
		if res.Error != nil {
			return fmt.Errorf("failed to update role: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.ErrUserNotFound
		}
		return tx.Where("id = ?", string(id)).First(&m).Error
	})
	if err != nil {
		return nil, err
	}
	return m.toDomain(), nil
}

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) ports.SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session *domain.Session) (err error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "insert", "sessions")
	defer func() { tracing.RecordError(ctx, err); span.End() }()

	if err := r.db.WithContext(ctx).Create(sessionToModel(session)).Error; err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetByID(ctx context.Context, id domain.SessionID) (session *domain.Session, err error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "select", "sessions")
	defer func() { tracing.RecordError(ctx, err); span.End() }()

	var m SessionModel
	if err := r.db.WithContext(ctx).Where("id = ?", string(id)).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return m.toDomain(), nil
}

func (r *SessionRepository) MarkEnded(ctx context.Context, id domain.SessionID, endedAt time.Time) (session *domain.Session, err error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "update", "sessions")
	defer func() { tracing.RecordError(ctx, err); span.End() }()

	var m SessionModel
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&SessionModel{}).Where("id = ?", string(id)).Updates(map[string]interface{}{
			"status":   string(domain.SessionEnded),
			"ended_at": endedAt,
		})
		if res.Error != nil {
			return fmt.Errorf("failed to end session: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.ErrSessionNotFound
		}
		return tx.Where("id = ?", string(id)).First(&m).Error
	})
	if err != nil {
		return nil, err
	}
	return m.toDomain(), nil
}

func (r *SessionRepository) ListActiveVisible(ctx context.Context, viewer domain.UserID) ([]*domain.Session, error) {
	return r.list(ctx, "status = ? AND (is_public = ? OR host_id = ?)", string(domain.SessionActive), true, string(viewer))
}

func (r *SessionRepository) ListActiveByHost(ctx context.Context, hostID domain.UserID) ([]*domain.Session, error) {
	return r.list(ctx, "status = ? AND host_id = ?", string(domain.SessionActive), string(hostID))
}

func (r *SessionRepository) list(ctx context.Context, query string, args ...interface{}) (sessions []*domain.Session, err error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "select", "sessions")
	defer func() { tracing.RecordError(ctx, err); span.End() }()

	var models []SessionModel
	if err := r.db.WithContext(ctx).Where(query, args...).Order("created_at DESC, id ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	sessions = make([]*domain.Session, 0, len(models))
	for i := range models {
		sessions = append(sessions, models[i].toDomain())
	}
	return sessions, nil
}

type ParticipantRepository struct {
	db *gorm.DB
}

func NewParticipantRepository(db *gorm.DB) ports.ParticipantRepository {
	return &ParticipantRepository{db: db}
}

func (r *ParticipantRepository) Create(ctx context.Context, participant *domain.Participant) (err error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "insert", "session_participants")
	defer func() { tracing.RecordError(ctx, err); span.End() }()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if participant.Active() {
			var count int64
			err := tx.Model(&ParticipantModel{}).
				Where("session_id = ? AND user_id = ? AND left_at IS NULL", string(participant.SessionID), string(participant.UserID)).
				Count(&count).Error
			if err != nil {
				return fmt.Errorf("failed to check participation: %w", err)
			}
			if count > 0 {
				return domain.ErrAlreadyJoined
			}
		}
		if err := tx.Create(participantToModel(participant)).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.ErrAlreadyJoined
			}
			return fmt.Errorf("failed to insert participant: %w", err)
		}
		return nil
	})
}

func (r *ParticipantRepository) FindActive(ctx context.Context, sessionID domain.SessionID, userID domain.UserID) (p *domain.Participant, err error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "select", "session_participants")
	defer func() { tracing.RecordError(ctx, err); span.End() }()

	var m ParticipantModel
	err = r.db.WithContext(ctx).
		Where("session_id = ? AND user_id = ? AND left_at IS NULL", string(sessionID), string(userID)).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to load participant: %w", err)
	}
	return m.toDomain(), nil
}

func (r *ParticipantRepository) MarkLeft(ctx context.Context, id domain.ParticipantID, leftAt time.Time) (err error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "update", "session_participants")
	defer func() { tracing.RecordError(ctx, err); span.End() }()

	res := r.db.WithContext(ctx).Model(&ParticipantModel{}).
		Where("id = ? AND left_at IS NULL", string(id)).
		Update("left_at", leftAt)
	if res.Error != nil {
		return fmt.Errorf("failed to mark participant left: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrParticipantNotFound
	}
	return nil
}

func (r *ParticipantRepository) ListBySession(ctx context.Context, sessionID domain.SessionID) ([]*domain.Participant, error) {
	return r.list(ctx, "session_id = ?", string(sessionID))
}

func (r *ParticipantRepository) ListActiveByUser(ctx context.Context, userID domain.UserID) ([]*domain.Participant, error) {
	return r.list(ctx, "user_id = ? AND left_at IS NULL", string(userID))
}

func (r *ParticipantRepository) list(ctx context.Context, query string, args ...interface{}) (ps []*domain.Participant, err error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "select", "session_participants")
	defer func() { tracing.RecordError(ctx, err); span.End() }()

	var models []ParticipantModel
	if err := r.db.WithContext(ctx).Where(query, args...).Order("joined_at ASC, id ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	ps = make([]*domain.Participant, 0, len(models))
	for i := range models {
		ps = append(ps, models[i].toDomain())
	}
	return ps, nil
}
