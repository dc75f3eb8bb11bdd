package models

import "time"

// Action is the enrollment action attempted against the remote service.
type Action string

// Possible actions.
const (
	ActionAdd  Action = "add"
	ActionDrop Action = "drop"
)

// OutcomeStatus is the coarse result of a single attempt.
type OutcomeStatus string

// Possible outcome statuses.
const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailed  OutcomeStatus = "failed"
	OutcomeSkipped OutcomeStatus = "skipped"
)

// Reason is the closed classification of why an attempt failed or was
// skipped. Unrecognized remote responses fall into ReasonUnknown.
type Reason string

// Failure and skip reasons.
const (
	ReasonNone            Reason = ""
	ReasonAlreadyEnrolled Reason = "already_enrolled"
	ReasonClassFull       Reason = "class_full"
	ReasonInvalidHash     Reason = "invalid_hash"
	ReasonNetworkError    Reason = "network_error"
	ReasonTimeout         Reason = "timeout"
	ReasonUnknown         Reason = "unknown"

	ReasonInvalidCredentials Reason = "invalid_credentials"
	ReasonNetworkUnreachable Reason = "network_unreachable"
	ReasonServiceUnavailable Reason = "service_unavailable"

	ReasonAccountInactive Reason = "inactive"
	ReasonCancelled       Reason = "cancelled"
)

// Transient reports whether retrying the same attempt may succeed.
func (r Reason) Transient() bool {
	switch r {
	case ReasonNetworkError, ReasonTimeout, ReasonNetworkUnreachable, ReasonServiceUnavailable:
		return true
	default:
		return false
	}
}

// AttemptOutcome is the immutable result of one executor call (or a skip).
// Appended to the enrollment log, never mutated.
type AttemptOutcome struct {
	ID            string        `db:"id" json:"id"`
	AccountID     string        `db:"account_id" json:"account_id"`
	CourseID      string        `db:"course_id" json:"course_id"`
	CourseName    string        `db:"course_name" json:"course_name"`
	Action        Action        `db:"action" json:"action"`
	Status        OutcomeStatus `db:"status" json:"status"`
	Reason        Reason        `db:"reason" json:"reason,omitempty"`
	Message       string        `db:"message" json:"message"`
	AttemptNumber int           `db:"attempt_number" json:"attempt_number"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
}

// RunSummary aggregates one account's outcomes for a run. Derived from the
// log, not stored independently.
type RunSummary struct {
	AccountID  string        `json:"account_id"`
	NIM        string        `json:"nim"`
	Success    int           `json:"success"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
	Duration   time.Duration `json:"-"`
	DurationMS int64         `json:"duration_ms"`
}

// Observe folds an outcome into the summary. An already-enrolled failure is
// success-equivalent for reporting while keeping its own reason in the log.
func (s *RunSummary) Observe(o AttemptOutcome) {
	switch {
	case o.Status == OutcomeSuccess:
		s.Success++
	case o.Status == OutcomeFailed && o.Reason == ReasonAlreadyEnrolled:
		s.Success++
	case o.Status == OutcomeFailed:
		s.Failed++
	case o.Status == OutcomeSkipped:
		s.Skipped++
	}
}

// EnrollmentLogFilter narrows log queries.
type EnrollmentLogFilter struct {
	AccountID string
	Status    OutcomeStatus
	Limit     int
}

// EnrollmentStats summarizes logged attempts for an account or globally.
type EnrollmentStats struct {
	Total       int       `json:"total"`
	Success     int       `json:"success"`
	Failed      int       `json:"failed"`
	Skipped     int       `json:"skipped"`
	AddActions  int       `json:"add_actions"`
	DropActions int       `json:"drop_actions"`
	SuccessRate float64   `json:"success_rate"`
	GeneratedAt time.Time `json:"generated_at"`
}
