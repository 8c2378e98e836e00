package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/journeyman/marketplace-api/internal/models"
	appErrors "github.com/journeyman/marketplace-api/pkg/errors"
)

type ledgerRepository interface {
	CreditCoins(ctx context.Context, email string, amount int64) error
	SetBalance(ctx context.Context, email string, coins int64) error
	RecordPayment(ctx context.Context, payment *models.Payment) error
	ListPaymentsByUser(ctx context.Context, email string) ([]models.Payment, error)
}

// RecordPaymentRequest is the cash-in payload. Coins and Amount tolerate
// non-numeric input by coercing to zero.
type RecordPaymentRequest struct {
	UserEmail string            `json:"user_email" validate:"required,email"`
	Coins     models.CoinAmount `json:"coins"`
	Amount    models.CoinAmount `json:"amount"`
	Method    string            `json:"method"`
}

// LedgerService owns every coin balance mutation: payments, approval credits,
// and admin balance overrides.
type LedgerService struct {
	repo      ledgerRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLedgerService creates an instance of LedgerService.
func NewLedgerService(repo ledgerRepository, validate *validator.Validate, logger *zap.Logger) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &LedgerService{repo: repo, validator: validate, logger: logger}
}

// CreditCoins raises the user's balance by amount.
func (s *LedgerService) CreditCoins(ctx context.Context, email string, amount int64) error {
	if err := s.repo.CreditCoins(ctx, email, amount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to credit coins")
	}
	return nil
}

// SetBalance writes an absolute balance on behalf of the admin user-update
// flow. No other caller may set coins to an absolute value.
func (s *LedgerService) SetBalance(ctx context.Context, email string, coins int64) error {
	if err := s.repo.SetBalance(ctx, email, coins); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set coin balance")
	}
	return nil
}

// RecordPayment appends a payment and credits the user exactly once.
func (s *LedgerService) RecordPayment(ctx context.Context, req RecordPaymentRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}

	payment := &models.Payment{
		UserEmail: req.UserEmail,
		Coins:     req.Coins.Int64(),
		Amount:    req.Amount.Int64(),
		Method:    req.Method,
	}

	if err := s.repo.RecordPayment(ctx, payment); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}

	s.logger.Sugar().Infow("payment recorded", "payment_id", payment.ID, "user_email", payment.UserEmail, "coins", payment.Coins)
	return payment, nil
}

// ListPaymentsByUser returns the user's payments, newest first.
func (s *LedgerService) ListPaymentsByUser(ctx context.Context, email string) ([]models.Payment, error) {
	payments, err := s.repo.ListPaymentsByUser(ctx, email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return payments, nil
}
