package models

import "time"

// StatementFormat enumerates supported statement export formats.
type StatementFormat string

const (
	StatementFormatCSV StatementFormat = "csv"
	StatementFormatPDF StatementFormat = "pdf"
)

// StatementStatus captures background export job lifecycle states.
type StatementStatus string

const (
	StatementQueued     StatementStatus = "QUEUED"
	StatementProcessing StatementStatus = "PROCESSING"
	StatementFinished   StatementStatus = "FINISHED"
	StatementFailed     StatementStatus = "FAILED"
)

// Statement is a persisted payment-history export job for one user.
type Statement struct {
	ID           string          `db:"id" json:"id"`
	UserEmail    string          `db:"user_email" json:"user_email"`
	Format       StatementFormat `db:"format" json:"format"`
	Status       StatementStatus `db:"status" json:"status"`
	Progress     int             `db:"progress" json:"progress"`
	ResultURL    *string         `db:"result_url" json:"result_url,omitempty"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time      `db:"finished_at" json:"finished_at,omitempty"`
}
