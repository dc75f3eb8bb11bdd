package models

import "time"

// CourseTarget is a course an account wants the engine to attempt, with a
// priority (lower runs first) and an auto-enroll gate. Unique per
// (account_id, course_id).
type CourseTarget struct {
	ID         string    `db:"id" json:"id"`
	AccountID  string    `db:"account_id" json:"account_id"`
	CourseID   string    `db:"course_id" json:"course_id"`
	CourseName string    `db:"course_name" json:"course_name"`
	Priority   int       `db:"priority" json:"priority"`
	AutoEnroll bool      `db:"auto_enroll" json:"auto_enroll"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
