package domain

import (
	"sort"
	"time"
)

type ParticipantID string

type Participant struct {
	ID        ParticipantID `json:"id"`
	SessionID SessionID     `json:"sessionId"`
	UserID    UserID        `json:"userId"`
	Language  Language      `json:"language"`
	JoinedAt  time.Time     `json:"joinedAt"`
	LeftAt    *time.Time    `json:"leftAt"`
}

func (p *Participant) Active() bool {
	return p.LeftAt == nil
}

type ParticipantDetails struct {
	Participant
	User UserSummary `json:"user"`
}

// SortByJoinTime orders participants by join time, ties broken by id.
func SortByJoinTime(ps []*Participant) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].JoinedAt.Equal(ps[j].JoinedAt) {
			return ps[i].ID < ps[j].ID
		}
		return ps[i].JoinedAt.Before(ps[j].JoinedAt)
	})
}
