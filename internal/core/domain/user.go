package domain

import "time"

type UserID string

type User struct {
	ID           UserID    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Name         string    `json:"name"`
	Role         UserRole  `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserSummary is the public projection of a user attached to sessions and participants.
type UserSummary struct {
	ID    UserID `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}

// UserView is what the HTTP surface returns for a user. Role is null when the user holds none.
type UserView struct {
	ID    UserID    `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
	Role  *UserRole `json:"role"`
}

func (u *User) View() UserView {
	v := UserView{ID: u.ID, Email: u.Email, Name: u.Name}
	if u.Role != RoleNone {
		role := u.Role
		v.Role = &role
	}
	return v
}
