package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sirama-krs-engine/internal/models"
)

// PipelineRunner runs one account's enrollment pipeline.
type PipelineRunner interface {
	Run(ctx context.Context, account models.RunAccount, enrollmentHash string) models.RunSummary
}

// Orchestrator fans account pipelines out over a bounded pool. Accounts are
// independent: one account's failure never affects another's outcome.
type Orchestrator struct {
	runner   PipelineRunner
	recorder OutcomeRecorder
	limit    int
	logger   *zap.Logger
}

// NewOrchestrator constructs an Orchestrator with a default concurrency
// limit used when RunAll receives none.
func NewOrchestrator(runner PipelineRunner, recorder OutcomeRecorder, limit int, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{runner: runner, recorder: recorder, limit: limit, logger: logger}
}

// RunAll launches one pipeline per active account, at most limit at once,
// and aggregates summaries once every launched pipeline finished. Inactive
// accounts are reported skipped without any network activity.
func (o *Orchestrator) RunAll(ctx context.Context, accounts []models.RunAccount, enrollmentHash string, limit int) map[string]models.RunSummary {
	if limit <= 0 {
		limit = o.limit
	}
	if limit <= 0 {
		limit = 1
	}

	o.logger.Info("enrollment run starting",
		zap.Int("accounts", len(accounts)),
		zap.Int("concurrency_limit", limit),
	)

	sem := make(chan struct{}, limit)
	results := make(map[string]models.RunSummary, len(accounts))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, acct := range accounts {
		if !acct.Account.Active() {
			// Pipelines launched in earlier iterations may already be
			// writing their summaries, so this write takes the lock too.
			summary := o.skipInactive(ctx, acct)
			mu.Lock()
			results[acct.Account.ID] = summary
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(acct models.RunAccount) {
			defer wg.Done()

			acquired := false
			select {
			case sem <- struct{}{}:
				acquired = true
			case <-ctx.Done():
				// The pipeline short-circuits to cancelled skips without
				// touching the network.
			}

			summary := o.runner.Run(ctx, acct, enrollmentHash)
			if acquired {
				<-sem
			}

			mu.Lock()
			results[acct.Account.ID] = summary
			mu.Unlock()
		}(acct)
	}

	wg.Wait()

	o.logger.Info("enrollment run finished", zap.Int("accounts", len(results)))
	return results
}

func (o *Orchestrator) skipInactive(ctx context.Context, acct models.RunAccount) models.RunSummary {
	summary := models.RunSummary{AccountID: acct.Account.ID, NIM: acct.Account.NIM}
	outcome := models.AttemptOutcome{
		AccountID: acct.Account.ID,
		Action:    models.ActionAdd,
		Status:    models.OutcomeSkipped,
		Reason:    models.ReasonAccountInactive,
		Message:   "account inactive, run skipped",
		CreatedAt: time.Now().UTC(),
	}
	summary.Observe(outcome)
	o.recorder.Record(ctx, outcome)
	return summary
}
