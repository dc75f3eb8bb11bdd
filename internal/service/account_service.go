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

type accountRepository interface {
	List(ctx context.Context, filter models.AccountFilter) ([]models.Account, int, error)
	FindByID(ctx context.Context, id string) (*models.Account, error)
	ExistsByNIM(ctx context.Context, nim, excludeID string) (bool, error)
	Create(ctx context.Context, account *models.Account) error
	Update(ctx context.Context, account *models.Account) error
	UpdateStatus(ctx context.Context, id string, status models.AccountStatus) error
	Delete(ctx context.Context, id string) error
}

// credentialEncrypter seals plaintext passwords before they reach storage.
// Decryption stays inside the engine's session manager.
type credentialEncrypter interface {
	Encrypt(plaintext string) (string, error)
}

// CreateAccountRequest captures fields for registering an account.
type CreateAccountRequest struct {
	NIM      string `json:"nim" validate:"required,len=10,numeric"`
	Name     string `json:"name"`
	Password string `json:"password" validate:"required,min=1"`
	Status   string `json:"status" validate:"omitempty,oneof=active inactive"`
}

// UpdateAccountRequest modifies account fields. An empty password keeps the
// stored credential untouched.
type UpdateAccountRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
	Status   string `json:"status" validate:"omitempty,oneof=active inactive"`
}

// AccountService handles student account workflows.
type AccountService struct {
	repo      accountRepository
	vault     credentialEncrypter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAccountService creates a new account service.
func NewAccountService(repo accountRepository, vault credentialEncrypter, validate *validator.Validate, logger *zap.Logger) *AccountService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{repo: repo, vault: vault, validator: validate, logger: logger}
}

// List returns paginated accounts.
func (s *AccountService) List(ctx context.Context, filter models.AccountFilter) ([]models.Account, *models.Pagination, error) {
	accounts, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list accounts")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return accounts, pagination, nil
}

// Get returns an account by identifier.
func (s *AccountService) Get(ctx context.Context, id string) (*models.Account, error) {
	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}
	return account, nil
}

// Create registers a new account, sealing the password before storage.
func (s *AccountService) Create(ctx context.Context, req CreateAccountRequest) (*models.Account, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid account payload")
	}

	req.NIM = strings.TrimSpace(req.NIM)

	exists, err := s.repo.ExistsByNIM(ctx, req.NIM, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check account nim")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "account nim already registered")
	}

	sealed, err := s.vault.Encrypt(req.Password)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to seal account credential")
	}

	status := models.AccountStatus(req.Status)
	if status == "" {
		status = models.AccountStatusActive
	}

	account := &models.Account{
		NIM:               req.NIM,
		Name:              req.Name,
		PasswordEncrypted: sealed,
		Status:            status,
	}

	if err := s.repo.Create(ctx, account); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create account")
	}
	return account, nil
}

// Update modifies an existing account. The NIM is immutable.
func (s *AccountService) Update(ctx context.Context, id string, req UpdateAccountRequest) (*models.Account, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid account payload")
	}

	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}

	if req.Name != "" {
		account.Name = req.Name
	}
	if req.Status != "" {
		account.Status = models.AccountStatus(req.Status)
	}
	if req.Password != "" {
		sealed, err := s.vault.Encrypt(req.Password)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to seal account credential")
		}
		account.PasswordEncrypted = sealed
	}

	if err := s.repo.Update(ctx, account); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update account")
	}
	return account, nil
}

// SetStatus toggles account participation in enrollment runs.
func (s *AccountService) SetStatus(ctx context.Context, id string, status models.AccountStatus) error {
	if status != models.AccountStatusActive && status != models.AccountStatusInactive {
		return appErrors.Clone(appErrors.ErrValidation, "status must be active or inactive")
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update account status")
	}
	return nil
}

// Delete removes an account along with its course targets.
func (s *AccountService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete account")
	}
	return nil
}
