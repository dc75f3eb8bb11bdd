package engine

import (
	"context"
	"math/rand"
	"time"

	"github.com/noah-isme/sirama-krs-engine/internal/models"
	"github.com/noah-isme/sirama-krs-engine/pkg/config"
)

// RetryPolicy controls backoff between transient attempt failures. The zero
// value behaves like a single attempt, which keeps tests deterministic.
type RetryPolicy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	Multiplier     float64
	MaxDelay       time.Duration
	JitterFraction float64

	// Retryable decides whether a failure reason is worth another attempt.
	// Defaults to models.Reason.Transient.
	Retryable func(models.Reason) bool
}

// PolicyFromConfig builds the runtime policy from application config.
func PolicyFromConfig(cfg config.EngineConfig) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    cfg.MaxAttempts,
		BaseDelay:      cfg.BaseDelay,
		Multiplier:     cfg.Multiplier,
		MaxDelay:       cfg.MaxDelay,
		JitterFraction: cfg.JitterFraction,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	if p.Retryable == nil {
		p.Retryable = models.Reason.Transient
	}
	return p
}

// delay computes the backoff before the given attempt's retry, capped at
// MaxDelay, with up to JitterFraction of random spread added.
func (p RetryPolicy) delay(attempt int) time.Duration {
	backoff := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		backoff *= p.Multiplier
	}
	if max := float64(p.MaxDelay); max > 0 && backoff > max {
		backoff = max
	}
	if p.JitterFraction > 0 {
		backoff += backoff * p.JitterFraction * rand.Float64()
	}
	return time.Duration(backoff)
}

// ExecuteWithRetry drives the wrapped call until it succeeds, fails
// terminally, or exhausts the policy. Exhaustion returns the last outcome
// with its real reason; the sleep cooperates with ctx so one account's
// backoff never blocks another's progress.
func ExecuteWithRetry(ctx context.Context, policy RetryPolicy, call func(ctx context.Context, attempt int) models.AttemptOutcome) models.AttemptOutcome {
	p := policy.normalized()

	var outcome models.AttemptOutcome
	for attempt := 1; ; attempt++ {
		outcome = call(ctx, attempt)
		outcome.AttemptNumber = attempt

		if outcome.Status == models.OutcomeSuccess || !p.Retryable(outcome.Reason) || attempt >= p.MaxAttempts {
			return outcome
		}

		timer := time.NewTimer(p.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return outcome
		case <-timer.C:
		}
	}
}
