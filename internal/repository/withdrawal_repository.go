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

// WithdrawalRepository provides database access for cash-out requests.
type WithdrawalRepository struct {
	db *sqlx.DB
}

// NewWithdrawalRepository creates a new instance of WithdrawalRepository.
func NewWithdrawalRepository(db *sqlx.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

const withdrawalColumns = `id, worker_email, worker_name, withdrawal_coin, withdrawal_amount, payment_system, account_number, status, withdraw_date`

// Create inserts a new pending withdrawal.
func (r *WithdrawalRepository) Create(ctx context.Context, withdrawal *models.Withdrawal) error {
	if withdrawal.ID == "" {
		withdrawal.ID = uuid.NewString()
	}
	if withdrawal.Status == "" {
		withdrawal.Status = models.WithdrawalPending
	}
	if withdrawal.WithdrawDate.IsZero() {
		withdrawal.WithdrawDate = time.Now().UTC()
	}

	const query = `INSERT INTO withdrawals (id, worker_email, worker_name, withdrawal_coin, withdrawal_amount, payment_system, account_number, status, withdraw_date) VALUES (:id, :worker_email, :worker_name, :withdrawal_coin, :withdrawal_amount, :payment_system, :account_number, :status, :withdraw_date)`
	if _, err := r.db.NamedExecContext(ctx, query, withdrawal); err != nil {
		return fmt.Errorf("create withdrawal: %w", err)
	}
	return nil
}

// FindByID returns a withdrawal by identifier.
func (r *WithdrawalRepository) FindByID(ctx context.Context, id string) (*models.Withdrawal, error) {
	query := fmt.Sprintf(`SELECT %s FROM withdrawals WHERE id = $1 LIMIT 1`, withdrawalColumns)
	var withdrawal models.Withdrawal
	if err := r.db.GetContext(ctx, &withdrawal, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find withdrawal by id: %w", err)
	}
	return &withdrawal, nil
}

// List returns all withdrawals, newest first.
func (r *WithdrawalRepository) List(ctx context.Context) ([]models.Withdrawal, error) {
	query := fmt.Sprintf(`SELECT %s FROM withdrawals ORDER BY withdraw_date DESC`, withdrawalColumns)
	var withdrawals []models.Withdrawal
	if err := r.db.SelectContext(ctx, &withdrawals, query); err != nil {
		return nil, fmt.Errorf("list withdrawals: %w", err)
	}
	return withdrawals, nil
}

// ListByWorker returns the worker's withdrawals, newest first.
func (r *WithdrawalRepository) ListByWorker(ctx context.Context, email string) ([]models.Withdrawal, error) {
	query := fmt.Sprintf(`SELECT %s FROM withdrawals WHERE worker_email = $1 ORDER BY withdraw_date DESC`, withdrawalColumns)
	var withdrawals []models.Withdrawal
	if err := r.db.SelectContext(ctx, &withdrawals, query, email); err != nil {
		return nil, fmt.Errorf("list withdrawals by worker: %w", err)
	}
	return withdrawals, nil
}

// UpdateStatus sets the withdrawal status unconditionally. The coin balance
// is not debited here. Returns sql.ErrNoRows when no withdrawal matches.
func (r *WithdrawalRepository) UpdateStatus(ctx context.Context, id string, status models.WithdrawalStatus) error {
	const query = `UPDATE withdrawals SET status = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("update withdrawal status: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a withdrawal. Returns sql.ErrNoRows when no withdrawal
// matches.
func (r *WithdrawalRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM withdrawals WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete withdrawal: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
