package models

import "time"

// WithdrawalStatus enumerates cash-out request states.
type WithdrawalStatus string

const (
	WithdrawalPending  WithdrawalStatus = "pending"
	WithdrawalApproved WithdrawalStatus = "approved"
	WithdrawalRejected WithdrawalStatus = "rejected"
)

// Withdrawal is a worker's cash-out request. Approving a withdrawal updates
// the status only; the coin balance is not debited here.
type Withdrawal struct {
	ID               string           `db:"id" json:"id"`
	WorkerEmail      string           `db:"worker_email" json:"worker_email"`
	WorkerName       string           `db:"worker_name" json:"worker_name,omitempty"`
	WithdrawalCoin   int64            `db:"withdrawal_coin" json:"withdrawal_coin"`
	WithdrawalAmount int64            `db:"withdrawal_amount" json:"withdrawal_amount"`
	PaymentSystem    string           `db:"payment_system" json:"payment_system"`
	AccountNumber    string           `db:"account_number" json:"account_number,omitempty"`
	Status           WithdrawalStatus `db:"status" json:"status"`
	WithdrawDate     time.Time        `db:"withdraw_date" json:"withdraw_date"`
}
