package domain

import "time"

type EventType string

const (
	EventParticipantJoined EventType = "participant.joined"
	EventParticipantLeft   EventType = "participant.left"
	EventSessionEnded      EventType = "session.ended"
)

// SessionEvent is pushed to everyone watching a session.
type SessionEvent struct {
	Type       EventType `json:"type"`
	InstanceID string    `json:"instance_id,omitempty"`
	SessionID  SessionID `json:"session_id"`
	UserID     UserID    `json:"user_id,omitempty"`
	Language   Language  `json:"language,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
