package service

import (
	"context"
	"database/sql"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sirama-krs-engine/internal/models"
	appErrors "github.com/noah-isme/sirama-krs-engine/pkg/errors"
)

type targetRepository interface {
	ListByAccount(ctx context.Context, accountID string) ([]models.CourseTarget, error)
	FindByID(ctx context.Context, id string) (*models.CourseTarget, error)
	ExistsForCourse(ctx context.Context, accountID, courseID, excludeID string) (bool, error)
	Create(ctx context.Context, target *models.CourseTarget) error
	Update(ctx context.Context, target *models.CourseTarget) error
	Delete(ctx context.Context, id string) error
}

type accountFinder interface {
	FindByID(ctx context.Context, id string) (*models.Account, error)
}

// CreateTargetRequest captures fields for adding a course target.
type CreateTargetRequest struct {
	CourseID   string `json:"course_id" validate:"required"`
	CourseName string `json:"course_name"`
	Priority   int    `json:"priority" validate:"gte=0"`
	AutoEnroll *bool  `json:"auto_enroll"`
}

// UpdateTargetRequest modifies target fields. The course ID is immutable.
type UpdateTargetRequest struct {
	CourseName string `json:"course_name"`
	Priority   *int   `json:"priority" validate:"omitempty,gte=0"`
	AutoEnroll *bool  `json:"auto_enroll"`
}

// TargetService handles per-account course target workflows.
type TargetService struct {
	repo      targetRepository
	accounts  accountFinder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTargetService creates a new target service.
func NewTargetService(repo targetRepository, accounts accountFinder, validate *validator.Validate, logger *zap.Logger) *TargetService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TargetService{repo: repo, accounts: accounts, validator: validate, logger: logger}
}

// List returns the account's targets ordered by priority.
func (s *TargetService) List(ctx context.Context, accountID string) ([]models.CourseTarget, error) {
	if _, err := s.accounts.FindByID(ctx, accountID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}

	targets, err := s.repo.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list course targets")
	}
	return targets, nil
}

// Create adds a target enforcing one target per course per account.
func (s *TargetService) Create(ctx context.Context, accountID string, req CreateTargetRequest) (*models.CourseTarget, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course target payload")
	}

	if _, err := s.accounts.FindByID(ctx, accountID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}

	req.CourseID = strings.TrimSpace(req.CourseID)

	exists, err := s.repo.ExistsForCourse(ctx, accountID, req.CourseID, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course target")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "course already targeted for this account")
	}

	autoEnroll := true
	if req.AutoEnroll != nil {
		autoEnroll = *req.AutoEnroll
	}

	target := &models.CourseTarget{
		AccountID:  accountID,
		CourseID:   req.CourseID,
		CourseName: req.CourseName,
		Priority:   req.Priority,
		AutoEnroll: autoEnroll,
	}

	if err := s.repo.Create(ctx, target); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course target")
	}
	return target, nil
}

// Update modifies an existing target.
func (s *TargetService) Update(ctx context.Context, id string, req UpdateTargetRequest) (*models.CourseTarget, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course target payload")
	}

	target, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course target not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course target")
	}

	if req.CourseName != "" {
		target.CourseName = req.CourseName
	}
	if req.Priority != nil {
		target.Priority = *req.Priority
	}
	if req.AutoEnroll != nil {
		target.AutoEnroll = *req.AutoEnroll
	}

	if err := s.repo.Update(ctx, target); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course target")
	}
	return target, nil
}

// Delete removes a course target.
func (s *TargetService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "course target not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course target")
	}
	return nil
}
