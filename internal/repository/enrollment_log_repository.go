package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sirama-krs-engine/internal/models"
)

// EnrollmentLogRepository appends and reads attempt outcomes. The log is
// append-only: there are no update or delete operations.
type EnrollmentLogRepository struct {
	db *sqlx.DB
}

// NewEnrollmentLogRepository constructs the repository.
func NewEnrollmentLogRepository(db *sqlx.DB) *EnrollmentLogRepository {
	return &EnrollmentLogRepository{db: db}
}

// Insert appends one outcome to the log.
func (r *EnrollmentLogRepository) Insert(ctx context.Context, outcome *models.AttemptOutcome) error {
	if outcome.ID == "" {
		outcome.ID = uuid.NewString()
	}
	if outcome.CreatedAt.IsZero() {
		outcome.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollment_logs (id, account_id, course_id, course_name, action, status, reason, message, attempt_number, created_at)
        VALUES (:id, :account_id, :course_id, :course_name, :action, :status, :reason, :message, :attempt_number, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, outcome); err != nil {
		return fmt.Errorf("insert enrollment log: %w", err)
	}
	return nil
}

// List returns logged outcomes newest first, filtered by the provided criteria.
func (r *EnrollmentLogRepository) List(ctx context.Context, filter models.EnrollmentLogFilter) ([]models.AttemptOutcome, error) {
	var conditions []string
	var args []interface{}

	if filter.AccountID != "" {
		conditions = append(conditions, fmt.Sprintf("account_id = $%d", len(args)+1))
		args = append(args, filter.AccountID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`SELECT id, account_id, course_id, course_name, action, status, reason, message, attempt_number, created_at
        FROM enrollment_logs%s ORDER BY created_at DESC LIMIT %d`, clause, limit)

	var outcomes []models.AttemptOutcome
	if err := r.db.SelectContext(ctx, &outcomes, query, args...); err != nil {
		return nil, fmt.Errorf("list enrollment logs: %w", err)
	}
	return outcomes, nil
}

// Stats aggregates the log, optionally scoped to one account.
func (r *EnrollmentLogRepository) Stats(ctx context.Context, accountID string) (*models.EnrollmentStats, error) {
	query := `SELECT
        COUNT(*) AS total,
        COUNT(*) FILTER (WHERE status = 'success') AS success,
        COUNT(*) FILTER (WHERE status = 'failed') AS failed,
        COUNT(*) FILTER (WHERE status = 'skipped') AS skipped,
        COUNT(*) FILTER (WHERE action = 'add') AS add_actions,
        COUNT(*) FILTER (WHERE action = 'drop') AS drop_actions
        FROM enrollment_logs`
	var args []interface{}
	if accountID != "" {
		query += " WHERE account_id = $1"
		args = append(args, accountID)
	}

	var row struct {
		Total       int `db:"total"`
		Success     int `db:"success"`
		Failed      int `db:"failed"`
		Skipped     int `db:"skipped"`
		AddActions  int `db:"add_actions"`
		DropActions int `db:"drop_actions"`
	}
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		return nil, fmt.Errorf("enrollment log stats: %w", err)
	}

	stats := &models.EnrollmentStats{
		Total:       row.Total,
		Success:     row.Success,
		Failed:      row.Failed,
		Skipped:     row.Skipped,
		AddActions:  row.AddActions,
		DropActions: row.DropActions,
		GeneratedAt: time.Now().UTC(),
	}
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Success) / float64(stats.Total)
	}
	return stats, nil
}
