package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sirama-krs-engine/internal/engine"
	"github.com/noah-isme/sirama-krs-engine/internal/models"
	appErrors "github.com/noah-isme/sirama-krs-engine/pkg/errors"
)

type enrollmentLogWriter interface {
	Insert(ctx context.Context, outcome *models.AttemptOutcome) error
}

type runAccountRepository interface {
	ListAll(ctx context.Context) ([]models.Account, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Account, error)
	FindByID(ctx context.Context, id string) (*models.Account, error)
}

type runTargetLister interface {
	ListByAccount(ctx context.Context, accountID string) ([]models.CourseTarget, error)
}

type runOrchestrator interface {
	RunAll(ctx context.Context, accounts []models.RunAccount, enrollmentHash string, limit int) map[string]models.RunSummary
}

type sessionAuthenticator interface {
	Authenticate(ctx context.Context, account models.Account) (*models.Session, error)
}

type attemptExecutor interface {
	Attempt(ctx context.Context, session *models.Session, target models.CourseTarget, enrollmentHash string, action models.Action) models.AttemptOutcome
}

type statsInvalidator interface {
	InvalidateStats(ctx context.Context)
}

// EnrollmentRecorder persists attempt outcomes and feeds metrics. It is the
// engine's sink: failures to persist are logged, never propagated into the
// run itself.
type EnrollmentRecorder struct {
	logs    enrollmentLogWriter
	metrics *MetricsService
	logger  *zap.Logger
}

// NewEnrollmentRecorder creates a recorder backed by the enrollment log.
func NewEnrollmentRecorder(logs enrollmentLogWriter, metrics *MetricsService, logger *zap.Logger) *EnrollmentRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentRecorder{logs: logs, metrics: metrics, logger: logger}
}

// Record appends one outcome to the log.
func (r *EnrollmentRecorder) Record(ctx context.Context, outcome models.AttemptOutcome) {
	if err := r.logs.Insert(ctx, &outcome); err != nil {
		r.logger.Error("failed to append enrollment log",
			zap.String("account_id", outcome.AccountID),
			zap.String("course_id", outcome.CourseID),
			zap.Error(err),
		)
	}
	r.metrics.ObserveAttempt(outcome)
}

// RunRequest triggers an enrollment run. An empty AccountIDs list runs every
// stored account.
type RunRequest struct {
	AccountIDs     []string `json:"account_ids"`
	EnrollmentHash string   `json:"enrollment_hash" validate:"required"`
	Concurrency    int      `json:"concurrency" validate:"gte=0"`
}

// DropRequest removes one enrolled course for an account.
type DropRequest struct {
	AccountID        string `json:"account_id" validate:"required"`
	DropHash         string `json:"drop_hash" validate:"required"`
	CourseScheduleID string `json:"course_schedule_id" validate:"required"`
}

// RunReport is the aggregate result of one run across accounts.
type RunReport struct {
	Accounts     int                 `json:"accounts"`
	TotalSuccess int                 `json:"total_success"`
	TotalFailed  int                 `json:"total_failed"`
	TotalSkipped int                 `json:"total_skipped"`
	Summaries    []models.RunSummary `json:"summaries"`
	GeneratedAt  time.Time           `json:"generated_at"`
}

// RunService drives enrollment runs and direct drop operations.
type RunService struct {
	accounts     runAccountRepository
	targets      runTargetLister
	orchestrator runOrchestrator
	sessions     sessionAuthenticator
	executor     attemptExecutor
	recorder     *EnrollmentRecorder
	stats        statsInvalidator
	metrics      *MetricsService
	policy       engine.RetryPolicy
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewRunService creates a new run service.
func NewRunService(
	accounts runAccountRepository,
	targets runTargetLister,
	orchestrator runOrchestrator,
	sessions sessionAuthenticator,
	executor attemptExecutor,
	recorder *EnrollmentRecorder,
	stats statsInvalidator,
	metrics *MetricsService,
	policy engine.RetryPolicy,
	validate *validator.Validate,
	logger *zap.Logger,
) *RunService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunService{
		accounts:     accounts,
		targets:      targets,
		orchestrator: orchestrator,
		sessions:     sessions,
		executor:     executor,
		recorder:     recorder,
		stats:        stats,
		metrics:      metrics,
		policy:       policy,
		validator:    validate,
		logger:       logger,
	}
}

// TriggerRun executes one enrollment run synchronously and returns the
// aggregated report once every account finished.
func (s *RunService) TriggerRun(ctx context.Context, req RunRequest) (*RunReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid run payload")
	}

	accounts, err := s.loadAccounts(ctx, req.AccountIDs)
	if err != nil {
		return nil, err
	}

	runAccounts := make([]models.RunAccount, 0, len(accounts))
	for _, account := range accounts {
		targets, err := s.targets.ListByAccount(ctx, account.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course targets")
		}
		runAccounts = append(runAccounts, models.RunAccount{Account: account, Targets: targets})
	}

	results := s.orchestrator.RunAll(ctx, runAccounts, req.EnrollmentHash, req.Concurrency)

	if s.stats != nil {
		s.stats.InvalidateStats(ctx)
	}

	report := &RunReport{Accounts: len(results), GeneratedAt: time.Now().UTC()}
	for _, summary := range results {
		s.metrics.ObserveRun(summary)
		report.TotalSuccess += summary.Success
		report.TotalFailed += summary.Failed
		report.TotalSkipped += summary.Skipped
		report.Summaries = append(report.Summaries, summary)
	}
	sort.Slice(report.Summaries, func(i, j int) bool {
		return report.Summaries[i].NIM < report.Summaries[j].NIM
	})
	return report, nil
}

// DropCourse removes one enrolled course for an account and records the
// outcome in the enrollment log like any other attempt.
func (s *RunService) DropCourse(ctx context.Context, req DropRequest) (*models.AttemptOutcome, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid drop payload")
	}

	account, err := s.accounts.FindByID(ctx, req.AccountID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}
	if !account.Active() {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "")
	}

	target := models.CourseTarget{AccountID: account.ID, CourseID: req.CourseScheduleID}

	session, err := s.sessions.Authenticate(ctx, *account)
	if err != nil {
		outcome := dropAuthFailure(account.ID, target, err)
		s.recorder.Record(ctx, outcome)
		s.invalidate(ctx)
		return &outcome, nil
	}

	outcome := engine.ExecuteWithRetry(ctx, s.policy, func(ctx context.Context, attempt int) models.AttemptOutcome {
		return s.executor.Attempt(ctx, session, target, req.DropHash, models.ActionDrop)
	})
	s.recorder.Record(ctx, outcome)
	s.invalidate(ctx)
	return &outcome, nil
}

func (s *RunService) invalidate(ctx context.Context) {
	if s.stats != nil {
		s.stats.InvalidateStats(ctx)
	}
}

func (s *RunService) loadAccounts(ctx context.Context, ids []string) ([]models.Account, error) {
	if len(ids) == 0 {
		accounts, err := s.accounts.ListAll(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load accounts")
		}
		return accounts, nil
	}

	accounts, err := s.accounts.ListByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load accounts")
	}
	if len(accounts) != len(ids) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "one or more accounts not found")
	}
	return accounts, nil
}

func dropAuthFailure(accountID string, target models.CourseTarget, err error) models.AttemptOutcome {
	reason := models.ReasonServiceUnavailable
	var authErr *engine.AuthError
	if errors.As(err, &authErr) {
		reason = authErr.Reason
	}
	return models.AttemptOutcome{
		AccountID:  accountID,
		CourseID:   target.CourseID,
		CourseName: target.CourseName,
		Action:     models.ActionDrop,
		Status:     models.OutcomeFailed,
		Reason:     reason,
		Message:    "login failed: " + err.Error(),
		CreatedAt:  time.Now().UTC(),
	}
}
