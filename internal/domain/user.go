package domain

import "time"

// Role governs authorization only.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleAgent Role = "agent"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleAgent
}

// User is referenced by tickets, log entries and notifications.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Ref returns the display reference used when rehydrating tickets.
func (u *User) Ref() UserRef {
	return UserRef{ID: u.ID, Name: u.Name, Role: u.Role}
}

// UserRef is the resolved form of a user reference.
type UserRef struct {
	ID   string
	Name string
	Role Role
}
