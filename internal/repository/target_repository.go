package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sirama-krs-engine/internal/models"
)

// TargetRepository handles persistence of per-account course targets.
type TargetRepository struct {
	db *sqlx.DB
}

// NewTargetRepository constructs the repository.
func NewTargetRepository(db *sqlx.DB) *TargetRepository {
	return &TargetRepository{db: db}
}

// Create persists a new course target.
func (r *TargetRepository) Create(ctx context.Context, target *models.CourseTarget) error {
	if target.ID == "" {
		target.ID = uuid.NewString()
	}
	if target.CreatedAt.IsZero() {
		target.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO course_targets (id, account_id, course_id, course_name, priority, auto_enroll, created_at)
        VALUES (:id, :account_id, :course_id, :course_name, :priority, :auto_enroll, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, target); err != nil {
		return fmt.Errorf("create course target: %w", err)
	}
	return nil
}

// FindByID returns a course target by its ID.
func (r *TargetRepository) FindByID(ctx context.Context, id string) (*models.CourseTarget, error) {
	const query = `SELECT id, account_id, course_id, course_name, priority, auto_enroll, created_at
        FROM course_targets WHERE id = $1`
	var target models.CourseTarget
	if err := r.db.GetContext(ctx, &target, query, id); err != nil {
		return nil, err
	}
	return &target, nil
}

// ListByAccount returns the account's targets ordered by priority.
func (r *TargetRepository) ListByAccount(ctx context.Context, accountID string) ([]models.CourseTarget, error) {
	const query = `SELECT id, account_id, course_id, course_name, priority, auto_enroll, created_at
        FROM course_targets WHERE account_id = $1 ORDER BY priority ASC, created_at ASC`
	var targets []models.CourseTarget
	if err := r.db.SelectContext(ctx, &targets, query, accountID); err != nil {
		return nil, fmt.Errorf("list course targets: %w", err)
	}
	return targets, nil
}

// Update persists changes to course name, priority and auto-enroll flag.
func (r *TargetRepository) Update(ctx context.Context, target *models.CourseTarget) error {
	const query = `UPDATE course_targets SET course_name = :course_name, priority = :priority,
        auto_enroll = :auto_enroll WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, target)
	if err != nil {
		return fmt.Errorf("update course target: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update course target rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a course target.
func (r *TargetRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM course_targets WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete course target: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete course target rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ExistsForCourse checks the per-account course uniqueness constraint.
func (r *TargetRepository) ExistsForCourse(ctx context.Context, accountID, courseID, excludeID string) (bool, error) {
	query := "SELECT 1 FROM course_targets WHERE account_id = $1 AND course_id = $2"
	args := []interface{}{accountID, courseID}
	if excludeID != "" {
		query += fmt.Sprintf(" AND id <> $%d", len(args)+1)
		args = append(args, excludeID)
	}
	query += " LIMIT 1"
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check course target: %w", err)
	}
	return true, nil
}
