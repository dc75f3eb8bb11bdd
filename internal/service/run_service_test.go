package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sirama-krs-engine/internal/engine"
	"github.com/noah-isme/sirama-krs-engine/internal/models"
	appErrors "github.com/noah-isme/sirama-krs-engine/pkg/errors"
)

type mockRunAccountRepo struct {
	accounts map[string]models.Account
}

func (m *mockRunAccountRepo) ListAll(ctx context.Context) ([]models.Account, error) {
	var list []models.Account
	for _, a := range m.accounts {
		list = append(list, a)
	}
	return list, nil
}

func (m *mockRunAccountRepo) ListByIDs(ctx context.Context, ids []string) ([]models.Account, error) {
	var list []models.Account
	for _, id := range ids {
		if a, ok := m.accounts[id]; ok {
			list = append(list, a)
		}
	}
	return list, nil
}

func (m *mockRunAccountRepo) FindByID(ctx context.Context, id string) (*models.Account, error) {
	if a, ok := m.accounts[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

type stubOrchestrator struct {
	results     map[string]models.RunSummary
	gotAccounts []models.RunAccount
	gotHash     string
	gotLimit    int
}

func (s *stubOrchestrator) RunAll(ctx context.Context, accounts []models.RunAccount, enrollmentHash string, limit int) map[string]models.RunSummary {
	s.gotAccounts = accounts
	s.gotHash = enrollmentHash
	s.gotLimit = limit
	return s.results
}

type mockSessionAuth struct {
	session *models.Session
	err     error
	calls   int
}

func (m *mockSessionAuth) Authenticate(ctx context.Context, account models.Account) (*models.Session, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.session, nil
}

type mockAttemptExecutor struct {
	outcome models.AttemptOutcome
	calls   int
}

func (m *mockAttemptExecutor) Attempt(ctx context.Context, session *models.Session, target models.CourseTarget, enrollmentHash string, action models.Action) models.AttemptOutcome {
	m.calls++
	outcome := m.outcome
	outcome.AccountID = target.AccountID
	outcome.CourseID = target.CourseID
	outcome.Action = action
	return outcome
}

type captureLogWriter struct {
	inserted []models.AttemptOutcome
	err      error
}

func (c *captureLogWriter) Insert(ctx context.Context, outcome *models.AttemptOutcome) error {
	if c.err != nil {
		return c.err
	}
	c.inserted = append(c.inserted, *outcome)
	return nil
}

type stubInvalidator struct {
	calls int
}

func (s *stubInvalidator) InvalidateStats(ctx context.Context) {
	s.calls++
}

func newRunServiceForTest(
	accounts *mockRunAccountRepo,
	targets runTargetLister,
	orchestrator runOrchestrator,
	sessions sessionAuthenticator,
	executor attemptExecutor,
	logs *captureLogWriter,
	stats *stubInvalidator,
) *RunService {
	metrics := NewMetricsService()
	recorder := NewEnrollmentRecorder(logs, metrics, nil)
	return NewRunService(accounts, targets, orchestrator, sessions, executor, recorder, stats, metrics, engine.RetryPolicy{MaxAttempts: 1}, nil, nil)
}

func TestRunServiceTriggerRunAggregates(t *testing.T) {
	accounts := &mockRunAccountRepo{accounts: map[string]models.Account{
		"acct-a": {ID: "acct-a", NIM: "1111111111", Status: models.AccountStatusActive},
		"acct-b": {ID: "acct-b", NIM: "2222222222", Status: models.AccountStatusActive},
	}}
	targets := &mockTargetRepo{targets: map[string]models.CourseTarget{
		"tgt-1": {ID: "tgt-1", AccountID: "acct-a", CourseID: "18285", AutoEnroll: true},
	}}
	orchestrator := &stubOrchestrator{results: map[string]models.RunSummary{
		"acct-a": {AccountID: "acct-a", NIM: "1111111111", Success: 1, Failed: 1},
		"acct-b": {AccountID: "acct-b", NIM: "2222222222", Skipped: 1},
	}}
	stats := &stubInvalidator{}
	svc := newRunServiceForTest(accounts, targets, orchestrator, &mockSessionAuth{}, &mockAttemptExecutor{}, &captureLogWriter{}, stats)

	report, err := svc.TriggerRun(context.Background(), RunRequest{EnrollmentHash: "hash-1", Concurrency: 2})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Accounts)
	assert.Equal(t, 1, report.TotalSuccess)
	assert.Equal(t, 1, report.TotalFailed)
	assert.Equal(t, 1, report.TotalSkipped)
	require.Len(t, report.Summaries, 2)
	assert.Equal(t, "1111111111", report.Summaries[0].NIM)

	assert.Equal(t, "hash-1", orchestrator.gotHash)
	assert.Equal(t, 2, orchestrator.gotLimit)
	assert.Len(t, orchestrator.gotAccounts, 2)
	assert.Equal(t, 1, stats.calls)
}

func TestRunServiceTriggerRunRequiresHash(t *testing.T) {
	svc := newRunServiceForTest(&mockRunAccountRepo{}, &mockTargetRepo{}, &stubOrchestrator{}, &mockSessionAuth{}, &mockAttemptExecutor{}, &captureLogWriter{}, &stubInvalidator{})

	_, err := svc.TriggerRun(context.Background(), RunRequest{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestRunServiceTriggerRunUnknownAccount(t *testing.T) {
	accounts := &mockRunAccountRepo{accounts: map[string]models.Account{
		"acct-a": {ID: "acct-a", NIM: "1111111111", Status: models.AccountStatusActive},
	}}
	svc := newRunServiceForTest(accounts, &mockTargetRepo{}, &stubOrchestrator{}, &mockSessionAuth{}, &mockAttemptExecutor{}, &captureLogWriter{}, &stubInvalidator{})

	_, err := svc.TriggerRun(context.Background(), RunRequest{EnrollmentHash: "hash", AccountIDs: []string{"acct-a", "missing"}})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestRunServiceDropCourse(t *testing.T) {
	accounts := &mockRunAccountRepo{accounts: map[string]models.Account{
		"acct-a": {ID: "acct-a", NIM: "1111111111", Status: models.AccountStatusActive},
	}}
	executor := &mockAttemptExecutor{outcome: models.AttemptOutcome{Status: models.OutcomeSuccess, Message: "Berhasil menghapus data registration"}}
	logs := &captureLogWriter{}
	stats := &stubInvalidator{}
	svc := newRunServiceForTest(accounts, &mockTargetRepo{}, &stubOrchestrator{}, &mockSessionAuth{session: &models.Session{Token: "tok"}}, executor, logs, stats)

	outcome, err := svc.DropCourse(context.Background(), DropRequest{
		AccountID:        "acct-a",
		DropHash:         "drop-hash",
		CourseScheduleID: "sched-7",
	})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSuccess, outcome.Status)
	assert.Equal(t, models.ActionDrop, outcome.Action)
	assert.Equal(t, 1, executor.calls)
	require.Len(t, logs.inserted, 1)
	assert.Equal(t, "sched-7", logs.inserted[0].CourseID)
	assert.Equal(t, 1, stats.calls)
}

func TestRunServiceDropCourseInactiveAccount(t *testing.T) {
	accounts := &mockRunAccountRepo{accounts: map[string]models.Account{
		"acct-a": {ID: "acct-a", NIM: "1111111111", Status: models.AccountStatusInactive},
	}}
	svc := newRunServiceForTest(accounts, &mockTargetRepo{}, &stubOrchestrator{}, &mockSessionAuth{}, &mockAttemptExecutor{}, &captureLogWriter{}, &stubInvalidator{})

	_, err := svc.DropCourse(context.Background(), DropRequest{AccountID: "acct-a", DropHash: "h", CourseScheduleID: "sched-7"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErr.Code)
}

func TestRunServiceDropCourseAuthFailureRecorded(t *testing.T) {
	accounts := &mockRunAccountRepo{accounts: map[string]models.Account{
		"acct-a": {ID: "acct-a", NIM: "1111111111", Status: models.AccountStatusActive},
	}}
	auth := &mockSessionAuth{err: &engine.AuthError{Reason: models.ReasonInvalidCredentials, Err: errors.New("password salah")}}
	executor := &mockAttemptExecutor{}
	logs := &captureLogWriter{}
	svc := newRunServiceForTest(accounts, &mockTargetRepo{}, &stubOrchestrator{}, auth, executor, logs, &stubInvalidator{})

	outcome, err := svc.DropCourse(context.Background(), DropRequest{AccountID: "acct-a", DropHash: "h", CourseScheduleID: "sched-7"})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeFailed, outcome.Status)
	assert.Equal(t, models.ReasonInvalidCredentials, outcome.Reason)
	assert.Zero(t, executor.calls)
	require.Len(t, logs.inserted, 1)
}

func TestEnrollmentRecorderSurvivesInsertFailure(t *testing.T) {
	logs := &captureLogWriter{err: errors.New("db down")}
	recorder := NewEnrollmentRecorder(logs, NewMetricsService(), nil)

	recorder.Record(context.Background(), models.AttemptOutcome{
		AccountID: "acct-a",
		Status:    models.OutcomeFailed,
		Reason:    models.ReasonTimeout,
	})
	assert.Empty(t, logs.inserted)
}
