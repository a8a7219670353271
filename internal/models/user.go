package models

import "time"

// Role is the fixed set of account roles
type Role string

const (
	RoleGuardian Role = "guardian"
	RoleLearner  Role = "learner"
)

// UserProfile represents an account in the system, keyed by the opaque
// subject id issued at sign-in (stable across sign-ins). Profiles are
// created on first successful sign-in and never deleted; the role field is
// written only by the auth service.
type UserProfile struct {
	SubjectID    string
	Provider     string
	Email        string
	DisplayName  string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsGuardian reports whether the profile may author tasks
func (u *UserProfile) IsGuardian() bool {
	return u.Role == RoleGuardian
}

// Session represents an authenticated session
type Session struct {
	ID        string
	SubjectID string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired checks if the session has expired
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}
