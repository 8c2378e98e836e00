package models

import "time"

// PaymentMethodDemo is the only supported cash-in method.
const PaymentMethodDemo = "demo"

// Payment is an append-only cash-in record. Each inserted payment credits the
// referenced user's coin balance exactly once.
type Payment struct {
	ID        string    `db:"id" json:"id"`
	UserEmail string    `db:"user_email" json:"user_email"`
	Coins     int64     `db:"coins" json:"coins"`
	Amount    int64     `db:"amount" json:"amount"`
	Method    string    `db:"method" json:"method"`
	Date      time.Time `db:"date" json:"date"`
}
