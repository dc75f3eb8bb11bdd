package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sirama-krs-engine/internal/models"
)

func TestTargetRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTargetRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO course_targets")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	target := &models.CourseTarget{AccountID: "acct-1", CourseID: "18285", CourseName: "Basis Data", Priority: 1, AutoEnroll: true}
	require.NoError(t, repo.Create(context.Background(), target))
	require.NotEmpty(t, target.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTargetRepositoryListByAccountOrdersByPriority(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTargetRepository(db)

	rows := sqlmock.NewRows([]string{"id", "account_id", "course_id", "course_name", "priority", "auto_enroll", "created_at"}).
		AddRow("tgt-1", "acct-1", "18285", "Basis Data", 1, true, time.Now()).
		AddRow("tgt-2", "acct-1", "18290", "Jaringan Komputer", 2, true, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM course_targets WHERE account_id = $1 ORDER BY priority ASC, created_at ASC")).
		WithArgs("acct-1").
		WillReturnRows(rows)

	targets, err := repo.ListByAccount(context.Background(), "acct-1")
	require.NoError(t, err)
	require.Len(t, targets, 2)
	require.Equal(t, "18285", targets[0].CourseID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTargetRepositoryExistsForCourse(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTargetRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM course_targets WHERE account_id = $1 AND course_id = $2 LIMIT 1")).
		WithArgs("acct-1", "18285").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	exists, err := repo.ExistsForCourse(context.Background(), "acct-1", "18285", "")
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTargetRepositoryDeleteMissingRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTargetRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM course_targets WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.Error(t, repo.Delete(context.Background(), "missing"))
	require.NoError(t, mock.ExpectationsWereMet())
}
