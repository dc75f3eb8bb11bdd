package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sirama-krs-engine/internal/models"
)

// OutcomeRecorder receives every attempt outcome. Append-only,
// fire-and-forget; implementations must be safe for concurrent callers.
type OutcomeRecorder interface {
	Record(ctx context.Context, outcome models.AttemptOutcome)
}

// Pipeline drives one account's targets through session establishment,
// target resolution and retried execution. Targets run strictly
// sequentially: they share the session and the remote side's per-account
// capacity state.
type Pipeline struct {
	sessions *SessionManager
	executor *Executor
	policy   RetryPolicy
	recorder OutcomeRecorder
	logger   *zap.Logger
}

// NewPipeline constructs a Pipeline.
func NewPipeline(sessions *SessionManager, executor *Executor, policy RetryPolicy, recorder OutcomeRecorder, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{sessions: sessions, executor: executor, policy: policy, recorder: recorder, logger: logger}
}

// Run executes the account's resolved targets in priority order and returns
// the per-account summary. Every attempt and skip yields exactly one
// recorded outcome.
func (p *Pipeline) Run(ctx context.Context, account models.RunAccount, enrollmentHash string) models.RunSummary {
	start := time.Now()
	summary := models.RunSummary{AccountID: account.Account.ID, NIM: account.Account.NIM}

	targets := ResolveTargets(account.Targets)

	if ctx.Err() != nil {
		p.skipTargets(ctx, &summary, account.Account, targets, models.ReasonCancelled, "run cancelled before start")
		return finalize(summary, start)
	}

	session, err := p.authenticate(ctx, account.Account)
	if err != nil {
		p.recordAuthFailure(ctx, &summary, account.Account, targets, err)
		return finalize(summary, start)
	}

	for i, target := range targets {
		if ctx.Err() != nil {
			p.skipTargets(ctx, &summary, account.Account, targets[i:], models.ReasonCancelled, "run cancelled")
			break
		}

		target := target
		outcome := ExecuteWithRetry(ctx, p.policy, func(ctx context.Context, attempt int) models.AttemptOutcome {
			return p.executor.Attempt(ctx, session, target, enrollmentHash, models.ActionAdd)
		})
		p.record(ctx, &summary, outcome)

		if outcome.Status == models.OutcomeFailed && outcome.Reason == models.ReasonInvalidHash {
			// Every later target would fail the same way within this run.
			p.skipTargets(ctx, &summary, account.Account, targets[i+1:], models.ReasonInvalidHash, "enrollment hash must be refreshed")
			break
		}
	}

	return finalize(summary, start)
}

// authenticate runs login through the retry policy. Transient auth failures
// (unreachable or unavailable auth service) get the same backoff as
// transaction attempts; rejected credentials fail immediately. Exhaustion
// returns the last error with its real reason.
func (p *Pipeline) authenticate(ctx context.Context, account models.Account) (*models.Session, error) {
	policy := p.policy.normalized()

	for attempt := 1; ; attempt++ {
		session, err := p.sessions.Authenticate(ctx, account)
		if err == nil {
			return session, nil
		}

		var authErr *AuthError
		if !errors.As(err, &authErr) || !policy.Retryable(authErr.Reason) || attempt >= policy.MaxAttempts {
			return nil, err
		}

		timer := time.NewTimer(policy.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, err
		case <-timer.C:
		}
	}
}

func (p *Pipeline) record(ctx context.Context, summary *models.RunSummary, outcome models.AttemptOutcome) {
	summary.Observe(outcome)
	p.recorder.Record(ctx, outcome)
}

// recordAuthFailure applies the single terminal auth outcome to every
// resolved target so the run stays auditable per target. With no targets a
// single account-level record is written instead.
func (p *Pipeline) recordAuthFailure(ctx context.Context, summary *models.RunSummary, account models.Account, targets []models.CourseTarget, err error) {
	reason := models.ReasonServiceUnavailable
	var authErr *AuthError
	if errors.As(err, &authErr) {
		reason = authErr.Reason
	}
	message := "login failed: " + err.Error()

	p.logger.Warn("pipeline authentication failed",
		zap.String("nim", account.NIM),
		zap.String("reason", string(reason)),
	)

	if len(targets) == 0 {
		p.record(ctx, summary, models.AttemptOutcome{
			AccountID: account.ID,
			Action:    models.ActionAdd,
			Status:    models.OutcomeFailed,
			Reason:    reason,
			Message:   message,
			CreatedAt: time.Now().UTC(),
		})
		return
	}

	for _, target := range targets {
		p.record(ctx, summary, models.AttemptOutcome{
			AccountID:  account.ID,
			CourseID:   target.CourseID,
			CourseName: target.CourseName,
			Action:     models.ActionAdd,
			Status:     models.OutcomeFailed,
			Reason:     reason,
			Message:    message,
			CreatedAt:  time.Now().UTC(),
		})
	}
}

func (p *Pipeline) skipTargets(ctx context.Context, summary *models.RunSummary, account models.Account, targets []models.CourseTarget, reason models.Reason, message string) {
	for _, target := range targets {
		p.record(ctx, summary, models.AttemptOutcome{
			AccountID:  account.ID,
			CourseID:   target.CourseID,
			CourseName: target.CourseName,
			Action:     models.ActionAdd,
			Status:     models.OutcomeSkipped,
			Reason:     reason,
			Message:    message,
			CreatedAt:  time.Now().UTC(),
		})
	}
}

func finalize(summary models.RunSummary, start time.Time) models.RunSummary {
	summary.Duration = time.Since(start)
	summary.DurationMS = summary.Duration.Milliseconds()
	return summary
}
