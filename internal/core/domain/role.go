package domain

import "fmt"

type UserRole string

const (
	RoleNone   UserRole = ""
	RoleHost   UserRole = "HOST"
	RoleClient UserRole = "CLIENT"
)

func (r UserRole) Valid() bool {
	switch r {
	case RoleNone, RoleHost, RoleClient:
		return true
	}
	return false
}

// String renders RoleNone as "none" so log lines and error details stay readable.
func (r UserRole) String() string {
	if r == RoleNone {
		return "none"
	}
	return string(r)
}

type RoleTransition struct {
	From UserRole `json:"from"`
	To   UserRole `json:"to"`
}

// Role changes mirror session membership: a user picks up a role when hosting or joining
// and drops it when the session ends or they leave. Swapping roles directly is not allowed.
var validRoleTransitions = []RoleTransition{
	{From: RoleNone, To: RoleHost},
	{From: RoleNone, To: RoleClient},
	{From: RoleHost, To: RoleNone},
	{From: RoleClient, To: RoleNone},
}

func ValidRoleTransitions() []RoleTransition {
	out := make([]RoleTransition, len(validRoleTransitions))
	copy(out, validRoleTransitions)
	return out
}

func CanTransition(from, to UserRole) bool {
	for _, t := range validRoleTransitions {
		if t.From == from && t.To == to {
			return true
		}
	}
	return false
}

// InvalidTransitionError carries the rejected (from, to) pair.
type InvalidTransitionError struct {
	From UserRole
	To   UserRole
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid role transition: %s -> %s", e.From, e.To)
}
