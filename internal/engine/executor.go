package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sirama-krs-engine/internal/models"
	"github.com/noah-isme/sirama-krs-engine/internal/sirama"
)

// TransactionClient is the slice of the SIRAMA client the executor uses.
type TransactionClient interface {
	AddCourse(ctx context.Context, session *models.Session, enrollmentHash, courseID string) (*sirama.TransactionResult, error)
	DropCourse(ctx context.Context, session *models.Session, dropHash, courseScheduleID, flag string) (*sirama.TransactionResult, error)
}

// Executor performs a single enroll/drop attempt and classifies the remote
// response. It has no retry logic and never writes to the log itself.
type Executor struct {
	client TransactionClient
	logger *zap.Logger
}

// NewExecutor constructs an Executor.
func NewExecutor(client TransactionClient, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{client: client, logger: logger}
}

// Attempt issues one transaction for the target and maps the response to an
// AttemptOutcome. The enrollment hash is an opaque caller-supplied token.
func (e *Executor) Attempt(ctx context.Context, session *models.Session, target models.CourseTarget, enrollmentHash string, action models.Action) models.AttemptOutcome {
	outcome := models.AttemptOutcome{
		AccountID:  target.AccountID,
		CourseID:   target.CourseID,
		CourseName: target.CourseName,
		Action:     action,
		CreatedAt:  time.Now().UTC(),
	}

	var result *sirama.TransactionResult
	var err error
	switch action {
	case models.ActionDrop:
		result, err = e.client.DropCourse(ctx, session, enrollmentHash, target.CourseID, "")
	default:
		result, err = e.client.AddCourse(ctx, session, enrollmentHash, target.CourseID)
	}

	if err != nil {
		outcome.Status = models.OutcomeFailed
		outcome.Reason, outcome.Message = classifyTransportFailure(err)
		return outcome
	}

	if strings.EqualFold(result.Status, "Success") {
		outcome.Status = models.OutcomeSuccess
		outcome.Message = result.Message
		if outcome.Message == "" {
			// The remote's own defaults, per action.
			if action == models.ActionDrop {
				outcome.Message = "Berhasil menghapus data registration"
			} else {
				outcome.Message = "Success record registration"
			}
		}
		return outcome
	}

	outcome.Status = models.OutcomeFailed
	outcome.Reason = classifyRejection(result.Message)
	outcome.Message = result.Message
	if outcome.Message == "" {
		outcome.Message = "request rejected by registration service"
	}
	return outcome
}

func classifyTransportFailure(err error) (models.Reason, string) {
	if sirama.IsTimeout(err) {
		return models.ReasonTimeout, "request timed out"
	}

	var rejected *sirama.TransactionRejectedError
	if errors.As(err, &rejected) {
		return models.ReasonInvalidHash, "enrollment hash rejected: " + rejected.Message
	}

	var serverErr *sirama.ServerError
	if errors.As(err, &serverErr) {
		// Mid-run auth/server failures look the same from here; both are
		// treated as a temporarily unavailable service, not re-authenticated.
		return models.ReasonServiceUnavailable, serverErr.Message
	}

	return models.ReasonNetworkError, err.Error()
}

// classifyRejection maps the remote's free-form rejection message onto the
// closed reason set. Anything unrecognized fails safe into ReasonUnknown
// with the message preserved verbatim.
func classifyRejection(message string) models.Reason {
	lower := strings.ToLower(message)
	switch {
	case containsAny(lower, "sudah terdaftar", "sudah diambil", "already enrolled", "already registered"):
		return models.ReasonAlreadyEnrolled
	case containsAny(lower, "penuh", "kuota", "quota", "full"):
		return models.ReasonClassFull
	case containsAny(lower, "hash", "kadaluarsa", "expired", "tidak ditemukan", "not found", "tidak valid"):
		return models.ReasonInvalidHash
	default:
		return models.ReasonUnknown
	}
}

func containsAny(s string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}
