package domain

import (
	"sort"
	"time"
)

type SessionID string

type SessionStatus string

const (
	SessionActive SessionStatus = "ACTIVE"
	SessionEnded  SessionStatus = "ENDED"
)

type Language string

const (
	LanguageEnglish   Language = "EN"
	LanguageUkrainian Language = "UK"
	LanguageGerman    Language = "DE"
)

func (l Language) Valid() bool {
	switch l {
	case LanguageEnglish, LanguageUkrainian, LanguageGerman:
		return true
	}
	return false
}

type Session struct {
	ID          SessionID     `json:"id"`
	Title       string        `json:"title"`
	Description *string       `json:"description"`
	DefaultLang Language      `json:"defaultLang"`
	IsPublic    bool          `json:"isPublic"`
	Status      SessionStatus `json:"status"`
	HostID      UserID        `json:"hostId"`
	CreatedAt   time.Time     `json:"createdAt"`
	EndedAt     *time.Time    `json:"endedAt"`
}

func (s *Session) Active() bool {
	return s.Status == SessionActive
}

// VisibleTo reports whether the session shows up in the active listing for viewer.
func (s *Session) VisibleTo(viewer UserID) bool {
	return s.IsPublic || s.HostID == viewer
}

type NewSession struct {
	Title       string
	Description *string
	DefaultLang Language
	IsPublic    bool
}

// SessionDetails is a session with its host and participants resolved.
type SessionDetails struct {
	Session
	Host         UserSummary          `json:"host"`
	Participants []ParticipantDetails `json:"participants"`
}

// SortNewestFirst orders sessions by creation time, newest first, ties broken by id.
func SortNewestFirst(sessions []*Session) {
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
}
