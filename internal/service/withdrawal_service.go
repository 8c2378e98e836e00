package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/journeyman/marketplace-api/internal/models"
	appErrors "github.com/journeyman/marketplace-api/pkg/errors"
)

type withdrawalRepository interface {
	Create(ctx context.Context, withdrawal *models.Withdrawal) error
	FindByID(ctx context.Context, id string) (*models.Withdrawal, error)
	List(ctx context.Context) ([]models.Withdrawal, error)
	ListByWorker(ctx context.Context, email string) ([]models.Withdrawal, error)
	UpdateStatus(ctx context.Context, id string, status models.WithdrawalStatus) error
	Delete(ctx context.Context, id string) error
}

// CreateWithdrawalRequest is the cash-out payload. All four core fields are
// required.
type CreateWithdrawalRequest struct {
	WorkerEmail      string            `json:"worker_email" validate:"required,email"`
	WorkerName       string            `json:"worker_name"`
	WithdrawalCoin   models.CoinAmount `json:"withdrawal_coin" validate:"required"`
	WithdrawalAmount models.CoinAmount `json:"withdrawal_amount" validate:"required"`
	PaymentSystem    string            `json:"payment_system" validate:"required"`
	AccountNumber    string            `json:"account_number"`
}

// SetWithdrawalStatusRequest carries the requested status change.
type SetWithdrawalStatusRequest struct {
	Status models.WithdrawalStatus `json:"status" validate:"required"`
}

// WithdrawalService handles cash-out requests. Status changes do not debit
// the coin balance; settlement happens outside this flow.
type WithdrawalService struct {
	repo      withdrawalRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewWithdrawalService creates an instance of WithdrawalService.
func NewWithdrawalService(repo withdrawalRepository, validate *validator.Validate, logger *zap.Logger) *WithdrawalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &WithdrawalService{repo: repo, validator: validate, logger: logger}
}

// Create inserts a pending withdrawal request.
func (s *WithdrawalService) Create(ctx context.Context, req CreateWithdrawalRequest) (*models.Withdrawal, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid withdrawal payload")
	}

	withdrawal := &models.Withdrawal{
		WorkerEmail:      req.WorkerEmail,
		WorkerName:       req.WorkerName,
		WithdrawalCoin:   req.WithdrawalCoin.Int64(),
		WithdrawalAmount: req.WithdrawalAmount.Int64(),
		PaymentSystem:    req.PaymentSystem,
		AccountNumber:    req.AccountNumber,
		Status:           models.WithdrawalPending,
	}

	if err := s.repo.Create(ctx, withdrawal); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create withdrawal")
	}

	s.logger.Sugar().Infow("withdrawal requested", "withdrawal_id", withdrawal.ID, "worker_email", withdrawal.WorkerEmail, "coins", withdrawal.WithdrawalCoin)
	return withdrawal, nil
}

// Get returns a withdrawal by id.
func (s *WithdrawalService) Get(ctx context.Context, id string) (*models.Withdrawal, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidID, "invalid withdrawal id")
	}
	withdrawal, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "withdrawal not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load withdrawal")
	}
	return withdrawal, nil
}

// List returns all withdrawals.
func (s *WithdrawalService) List(ctx context.Context) ([]models.Withdrawal, error) {
	withdrawals, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list withdrawals")
	}
	return withdrawals, nil
}

// ListByWorker returns a worker's withdrawals.
func (s *WithdrawalService) ListByWorker(ctx context.Context, email string) ([]models.Withdrawal, error) {
	withdrawals, err := s.repo.ListByWorker(ctx, email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list withdrawals")
	}
	return withdrawals, nil
}

// SetStatus updates the withdrawal status.
func (s *WithdrawalService) SetStatus(ctx context.Context, id string, req SetWithdrawalStatusRequest) (*models.Withdrawal, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidID, "invalid withdrawal id")
	}
	if req.Status == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status is required")
	}

	if err := s.repo.UpdateStatus(ctx, id, req.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "withdrawal not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update withdrawal status")
	}

	return s.Get(ctx, id)
}

// Delete removes a withdrawal request.
func (s *WithdrawalService) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return appErrors.Clone(appErrors.ErrInvalidID, "invalid withdrawal id")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "withdrawal not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete withdrawal")
	}
	return nil
}
