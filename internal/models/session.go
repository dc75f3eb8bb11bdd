package models

import "time"

// Session is the ephemeral authenticated state for one account pipeline
// invocation. It is never shared across accounts or persisted beyond the run.
type Session struct {
	Token     string
	StudentID string
	ExpiresAt time.Time
}

// Expired reports whether the session's expiry estimate has passed.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
