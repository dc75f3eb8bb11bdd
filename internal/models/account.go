package models

import "time"

// AccountStatus represents whether an account participates in enrollment runs.
type AccountStatus string

// Possible account statuses.
const (
	AccountStatusActive   AccountStatus = "active"
	AccountStatusInactive AccountStatus = "inactive"
)

// Account is a stored SIRAMA student account. The engine receives a
// read-only view per run and never mutates it.
type Account struct {
	ID                string        `db:"id" json:"id"`
	NIM               string        `db:"nim" json:"nim"`
	Name              string        `db:"name" json:"name,omitempty"`
	PasswordEncrypted string        `db:"password_encrypted" json:"-"`
	Status            AccountStatus `db:"status" json:"status"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time     `db:"updated_at" json:"updated_at"`
}

// Active reports whether the account is eligible for enrollment runs.
func (a Account) Active() bool {
	return a.Status == AccountStatusActive
}

// RunAccount is the read-only snapshot of an account and its stored targets
// handed to the engine for a single run.
type RunAccount struct {
	Account Account
	Targets []CourseTarget
}

// AccountFilter provides filters for listing accounts.
type AccountFilter struct {
	Status   AccountStatus
	Page     int
	PageSize int
}
