package models

import (
	"strings"
	"time"
)

// Operator roles known to the warehouse backend.
const (
	RoleSuperAdmin = "Super Admin"
	RoleManager    = "Manager"
	RoleSupervisor = "Supervisor"
	RolePicker     = "Picker"
	RolePacker     = "Packer"
)

// User represents an operator account.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"` // never serialized
	FullName     *string   `json:"full_name,omitempty" db:"full_name"`
	RoleID       *int64    `json:"role_id,omitempty" db:"role_id"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
	Role         *Role     `json:"role,omitempty"`
}

// Role represents a user role
type Role struct {
	ID   int64  `json:"id"`
	Name string `json:"name" db:"name"`
}

// Actor is the authenticated operator performing a request.
type Actor struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

// DisplayName prefers the full name and falls back to the username.
func (a Actor) DisplayName() string {
	if strings.TrimSpace(a.FullName) != "" {
		return a.FullName
	}
	return a.Username
}

// HasRole reports whether the actor's role is one of roles (case-insensitive).
func (a Actor) HasRole(roles ...string) bool {
	for _, r := range roles {
		if strings.EqualFold(a.Role, r) {
			return true
		}
	}
	return false
}
