package domain

import (
	"errors"
	"time"
)

// ErrUserNotFound is returned by directories when no user matches the lookup.
var ErrUserNotFound = errors.New("user not found")

// UserStatus represents lifecycle states for an employee.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
	UserStatusFired    UserStatus = "fired"
)

// Valid reports whether the status is a known lifecycle state.
func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusActive, UserStatusInactive, UserStatusFired:
		return true
	default:
		return false
	}
}

// Position is the role a user holds in the company.
type Position string

const (
	PositionAdmin     Position = "Admin"
	PositionCEO       Position = "CEO"
	PositionManager   Position = "Manager"
	PositionDeveloper Position = "Developer"
	PositionJunior    Position = "Junior"
)

// IdentitySnapshot is the read model of a user at resolution time.
// Snapshots are never mutated; a fresh lookup produces a new value.
type IdentitySnapshot struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	Status      UserStatus `json:"status"`
	Position    Position   `json:"position"`
	TeamID      *int64     `json:"team_id,omitempty"`
}

// IsActive reports whether the user is in the active lifecycle state.
func (s IdentitySnapshot) IsActive() bool {
	return s.Status == UserStatusActive
}

// UserCredentials pairs a snapshot with the stored password hash for login.
type UserCredentials struct {
	Identity     IdentitySnapshot
	PasswordHash string
	HiredAt      time.Time
	FiredAt      *time.Time
}
