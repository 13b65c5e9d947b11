package models

import (
	"time"
)

type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleTeacher UserRole = "teacher"
	RoleAdmin   UserRole = "admin"
)

// IsPrivileged reports whether the role bypasses gating and works in preview-only mode.
func (r UserRole) IsPrivileged() bool {
	return r == RoleTeacher || r == RoleAdmin
}

// Session is the explicit request-scoped session context handed to every engine entry
// point. It replaces any process-wide store.
type Session struct {
	LearnerID   string    `json:"learner_id" validate:"required"`
	LearnerName string    `json:"learner_name"`
	Role        UserRole  `json:"role" validate:"required,user_role"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the session has passed its expiry. A zero ExpiresAt never expires.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

func (s *Session) Privileged() bool {
	return s.Role.IsPrivileged()
}
