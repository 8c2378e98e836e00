package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/journeyman/marketplace-api/internal/models"
)

// LedgerRepository is the single owner of the users.coins column and the
// payments table. Every balance mutation in the system goes through one of
// its methods as an atomic single-row increment, never a read-then-write of
// the numeric value.
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository creates a new instance of LedgerRepository.
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// CreditCoins atomically raises the user's balance by amount. A zero amount
// is still issued so a missing account surfaces as sql.ErrNoRows.
func (r *LedgerRepository) CreditCoins(ctx context.Context, email string, amount int64) error {
	const query = `UPDATE users SET coins = coins + $2, updated_at = $3 WHERE email = $1`
	res, err := r.db.ExecContext(ctx, query, email, amount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("credit coins: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetBalance writes an absolute balance. Reserved for the admin account
// update path; all settlement flows use CreditCoins.
func (r *LedgerRepository) SetBalance(ctx context.Context, email string, coins int64) error {
	const query = `UPDATE users SET coins = $2, updated_at = $3 WHERE email = $1`
	res, err := r.db.ExecContext(ctx, query, email, coins, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set coin balance: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// RecordPayment inserts a payment row and credits the referenced user's
// balance in one transaction, so a payment record and its credit commit or
// roll back together.
func (r *LedgerRepository) RecordPayment(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.Method == "" {
		payment.Method = models.PaymentMethodDemo
	}
	if payment.Date.IsZero() {
		payment.Date = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record payment: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insertQuery = `INSERT INTO payments (id, user_email, coins, amount, method, date) VALUES (:id, :user_email, :coins, :amount, :method, :date)`
	if _, err := tx.NamedExecContext(ctx, insertQuery, payment); err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}

	const creditQuery = `UPDATE users SET coins = coins + $2, updated_at = $3 WHERE email = $1`
	res, err := tx.ExecContext(ctx, creditQuery, payment.UserEmail, payment.Coins, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("credit payment coins: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record payment: %w", err)
	}
	return nil
}

// ListPaymentsByUser returns the user's payments, newest first.
func (r *LedgerRepository) ListPaymentsByUser(ctx context.Context, email string) ([]models.Payment, error) {
	const query = `SELECT id, user_email, coins, amount, method, date FROM payments WHERE user_email = $1 ORDER BY date DESC`
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, email); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}
