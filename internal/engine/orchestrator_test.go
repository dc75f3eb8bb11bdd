package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sirama-krs-engine/internal/models"
	"github.com/noah-isme/sirama-krs-engine/internal/sirama"
)

type runnerStub struct {
	mu        sync.Mutex
	summaries map[string]models.RunSummary
	calls     []string

	inFlight    int
	maxInFlight int
	delay       time.Duration
}

func (r *runnerStub) Run(ctx context.Context, account models.RunAccount, enrollmentHash string) models.RunSummary {
	r.mu.Lock()
	r.calls = append(r.calls, account.Account.ID)
	r.inFlight++
	if r.inFlight > r.maxInFlight {
		r.maxInFlight = r.inFlight
	}
	r.mu.Unlock()

	if r.delay > 0 {
		time.Sleep(r.delay)
	}

	r.mu.Lock()
	r.inFlight--
	summary, ok := r.summaries[account.Account.ID]
	r.mu.Unlock()

	if !ok {
		summary = models.RunSummary{AccountID: account.Account.ID, NIM: account.Account.NIM}
	}
	return summary
}

func (r *runnerStub) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func activeRunAccount(id, nim string) models.RunAccount {
	return models.RunAccount{
		Account: models.Account{ID: id, NIM: nim, PasswordEncrypted: "sealed", Status: models.AccountStatusActive},
	}
}

func TestOrchestratorSkipsInactiveAccounts(t *testing.T) {
	runner := &runnerStub{}
	recorder := &recorderStub{}
	orchestrator := NewOrchestrator(runner, recorder, 2, zap.NewNop())

	inactive := models.RunAccount{
		Account: models.Account{ID: "acct-1", NIM: "1234567890", Status: models.AccountStatusInactive},
		Targets: []models.CourseTarget{{AccountID: "acct-1", CourseID: "18285", AutoEnroll: true}},
	}

	results := orchestrator.RunAll(context.Background(), []models.RunAccount{inactive}, "hash", 0)

	assert.Zero(t, runner.callCount())

	summary := results["acct-1"]
	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, summary.Success)
	assert.Zero(t, summary.Failed)

	outcomes := recorder.recorded()
	require.Len(t, outcomes, 1)
	assert.Equal(t, models.OutcomeSkipped, outcomes[0].Status)
	assert.Equal(t, models.ReasonAccountInactive, outcomes[0].Reason)
}

// Inactive accounts are summarized on the launching goroutine while active
// pipelines report on their own; the aggregate map must stay consistent when
// the two interleave.
func TestOrchestratorInterleavedActiveAndInactiveAccounts(t *testing.T) {
	runner := &runnerStub{delay: 5 * time.Millisecond}
	recorder := &recorderStub{}
	orchestrator := NewOrchestrator(runner, recorder, 4, zap.NewNop())

	accounts := make([]models.RunAccount, 0, 8)
	for i, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		acct := activeRunAccount("acct-"+id, "1234567890")
		if i%2 == 1 {
			acct.Account.Status = models.AccountStatusInactive
		}
		accounts = append(accounts, acct)
	}

	results := orchestrator.RunAll(context.Background(), accounts, "hash", 4)

	require.Len(t, results, 8)
	assert.Equal(t, 4, runner.callCount())
	skipped := 0
	for _, summary := range results {
		skipped += summary.Skipped
	}
	assert.Equal(t, 4, skipped)
	assert.Len(t, recorder.recorded(), 4)
}

func TestOrchestratorAggregatesAllSummaries(t *testing.T) {
	runner := &runnerStub{
		summaries: map[string]models.RunSummary{
			"acct-a": {AccountID: "acct-a", Failed: 2},
			"acct-b": {AccountID: "acct-b", Success: 3},
		},
	}
	orchestrator := NewOrchestrator(runner, &recorderStub{}, 2, zap.NewNop())

	results := orchestrator.RunAll(context.Background(), []models.RunAccount{
		activeRunAccount("acct-a", "1111111111"),
		activeRunAccount("acct-b", "2222222222"),
	}, "hash", 0)

	require.Len(t, results, 2)
	assert.Equal(t, 2, results["acct-a"].Failed)
	assert.Equal(t, 3, results["acct-b"].Success)
}

func TestOrchestratorBoundsConcurrency(t *testing.T) {
	runner := &runnerStub{delay: 30 * time.Millisecond}
	orchestrator := NewOrchestrator(runner, &recorderStub{}, 2, zap.NewNop())

	accounts := make([]models.RunAccount, 0, 6)
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		accounts = append(accounts, activeRunAccount("acct-"+id, "1234567890"))
	}

	orchestrator.RunAll(context.Background(), accounts, "hash", 2)

	assert.Equal(t, 6, runner.callCount())
	assert.LessOrEqual(t, runner.maxInFlight, 2)
}

func TestOrchestratorDefaultsConcurrencyLimit(t *testing.T) {
	runner := &runnerStub{delay: 20 * time.Millisecond}
	orchestrator := NewOrchestrator(runner, &recorderStub{}, 0, zap.NewNop())

	orchestrator.RunAll(context.Background(), []models.RunAccount{
		activeRunAccount("acct-a", "1111111111"),
		activeRunAccount("acct-b", "2222222222"),
	}, "hash", 0)

	assert.Equal(t, 2, runner.callCount())
	assert.Equal(t, 1, runner.maxInFlight)
}

// One account failing authentication must not disturb another account's
// full enrollment run.
func TestOrchestratorIsolatesAccountFailures(t *testing.T) {
	failing := "1111111111"
	auth := &selectiveAuthClient{failNIM: failing}
	tx := &scriptedTransactionClient{
		results: map[string]*sirama.TransactionResult{
			"18285": {Status: "Success", Message: "Success record registration"},
		},
	}
	recorder := &recorderStub{}
	pipeline := newTestPipeline(auth, tx, recorder)
	orchestrator := NewOrchestrator(pipeline, recorder, 2, zap.NewNop())

	accountA := models.RunAccount{
		Account: models.Account{ID: "acct-a", NIM: failing, PasswordEncrypted: "sealed", Status: models.AccountStatusActive},
		Targets: []models.CourseTarget{{AccountID: "acct-a", CourseID: "18285", Priority: 1, AutoEnroll: true}},
	}
	accountB := models.RunAccount{
		Account: models.Account{ID: "acct-b", NIM: "2222222222", PasswordEncrypted: "sealed", Status: models.AccountStatusActive},
		Targets: []models.CourseTarget{{AccountID: "acct-b", CourseID: "18285", Priority: 1, AutoEnroll: true}},
	}

	results := orchestrator.RunAll(context.Background(), []models.RunAccount{accountA, accountB}, "hash", 2)

	require.Len(t, results, 2)
	assert.Equal(t, 1, results["acct-a"].Failed)
	assert.Zero(t, results["acct-a"].Success)
	assert.Equal(t, 1, results["acct-b"].Success)
	assert.Zero(t, results["acct-b"].Failed)
	assert.Len(t, recorder.recorded(), 2)
}

type selectiveAuthClient struct {
	failNIM string
}

func (c *selectiveAuthClient) Login(ctx context.Context, username, password string) (*models.Session, error) {
	if username == c.failNIM {
		return nil, &sirama.AuthRejectedError{Message: "password salah"}
	}
	return &models.Session{Token: "tok"}, nil
}

func (c *selectiveAuthClient) GetProfile(ctx context.Context, session *models.Session) (*sirama.Profile, error) {
	return &sirama.Profile{StudentID: "2222222222"}, nil
}
