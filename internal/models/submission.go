package models

import "time"

// SubmissionStatus enumerates submission lifecycle states. A submission is
// created pending and moves to approved or rejected; it never returns to
// pending.
type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "pending"
	SubmissionApproved SubmissionStatus = "approved"
	SubmissionRejected SubmissionStatus = "rejected"
)

// Valid reports whether s is one of the known lifecycle states.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case SubmissionPending, SubmissionApproved, SubmissionRejected:
		return true
	default:
		return false
	}
}

// Terminal reports whether s is approved or rejected.
func (s SubmissionStatus) Terminal() bool {
	return s == SubmissionApproved || s == SubmissionRejected
}

// Submission is a worker's entry for a task. PayableAmount is copied from the
// task at creation time so later rate changes do not affect settled or pending
// work.
type Submission struct {
	ID            string           `db:"id" json:"id"`
	TaskID        string           `db:"task_id" json:"task_id"`
	TaskTitle     string           `db:"task_title" json:"task_title,omitempty"`
	WorkerEmail   string           `db:"worker_email" json:"worker_email"`
	WorkerName    string           `db:"worker_name" json:"worker_name,omitempty"`
	ClientEmail   string           `db:"client_email" json:"client_email"`
	PayableAmount int64            `db:"payable_amount" json:"payable_amount"`
	Detail        string           `db:"detail" json:"submission_detail,omitempty"`
	Status        SubmissionStatus `db:"status" json:"status"`
	CurrentDate   time.Time        `db:"current_date" json:"current_date"`
}

// SubmissionFilter captures lookup criteria for listing submissions. At most
// one of the reference fields is expected to be set.
type SubmissionFilter struct {
	WorkerEmail string
	ClientEmail string
	TaskID      string
	Status      *SubmissionStatus
}
