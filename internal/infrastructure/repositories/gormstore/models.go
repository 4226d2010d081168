package gormstore

import (
	"time"

	"livetranslate/internal/core/domain"
)

type UserModel struct {
	ID           string    `gorm:"primaryKey;size:36"`
	Email        string    `gorm:"uniqueIndex;size:254;not null"`
	PasswordHash string    `gorm:"not null"`
	Name         string    `gorm:"size:100;not null"`
	Role         *string   `gorm:"size:16"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (UserModel) TableName() string { return "users" }

type SessionModel struct {
	ID          string    `gorm:"primaryKey;size:36"`
	Title       string    `gorm:"size:200;not null"`
	Description *string   `gorm:"type:text"`
	DefaultLang string    `gorm:"size:2;not null"`
	IsPublic    bool      `gorm:"not null;default:false"`
	Status      string    `gorm:"size:16;not null;index:idx_sessions_status_created,priority:1"`
	HostID      string    `gorm:"size:36;not null;index"`
	CreatedAt   time.Time `gorm:"not null;index:idx_sessions_status_created,priority:2"`
	EndedAt     *time.Time
}

func (SessionModel) TableName() string { return "sessions" }

type ParticipantModel struct {
	ID        string    `gorm:"primaryKey;size:36"`
	SessionID string    `gorm:"size:36;not null;index"`
	UserID    string    `gorm:"size:36;not null;index"`
	Language  string    `gorm:"size:2;not null"`
	JoinedAt  time.Time `gorm:"not null"`
	LeftAt    *time.Time
}

func (ParticipantModel) TableName() string { return "session_participants" }

func userToModel(u *domain.User) *UserModel {
	m := &UserModel{
		ID:           string(u.ID),
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Name:         u.Name,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
	if u.Role != domain.RoleNone {
		role := string(u.Role)
		m.Role = &role
	}
	return m
}

func (m *UserModel) toDomain() *domain.User {
	u := &domain.User{
		ID:           domain.UserID(m.ID),
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Name:         m.Name,
		Role:         domain.RoleNone,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if m.Role != nil {
		u.Role = domain.UserRole(*m.Role)
	}
	return u
}

func roleColumn(role domain.UserRole) *string {
	if role == domain.RoleNone {
		return nil
	}
	r := string(role)
	return &r
}

func sessionToModel(s *domain.Session) *SessionModel {
	return &SessionModel{
		ID:          string(s.ID),
		Title:       s.Title,
		Description: s.Description,
		DefaultLang: string(s.DefaultLang),
		IsPublic:    s.IsPublic,
		Status:      string(s.Status),
		HostID:      string(s.HostID),
		CreatedAt:   s.CreatedAt,
		EndedAt:     s.EndedAt,
	}
}

func (m *SessionModel) toDomain() *domain.Session {
	return &domain.Session{
		ID:          domain.SessionID(m.ID),
		Title:       m.Title,
		Description: m.Description,
		DefaultLang: domain.Language(m.DefaultLang),
		IsPublic:    m.IsPublic,
		Status:      domain.SessionStatus(m.Status),
		HostID:      domain.UserID(m.HostID),
		CreatedAt:   m.CreatedAt,
		EndedAt:     m.EndedAt,
	}
}

func participantToModel(p *domain.Participant) *ParticipantModel {
	return &ParticipantModel{
		ID:        string(p.ID),
		SessionID: string(p.SessionID),
		UserID:    string(p.UserID),
		Language:  string(p.Language),
		JoinedAt:  p.JoinedAt,
		LeftAt:    p.LeftAt,
	}
}

func (m *ParticipantModel) toDomain() *domain.Participant {
	return &domain.Participant{
		ID:        domain.ParticipantID(m.ID),
		SessionID: domain.SessionID(m.SessionID),
		UserID:    domain.UserID(m.UserID),
		Language:  domain.Language(m.Language),
		JoinedAt:  m.JoinedAt,
		LeftAt:    m.LeftAt,
	}
}
