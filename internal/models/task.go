package models

import "time"

// Task is a paid micro-task posted by a client. RequiredWorkers counts the
// remaining submission slots; it is decremented when a submission is created
// and incremented when a pending submission is rejected. The counter has no
// lower bound.
type Task struct {
	ID              string     `db:"id" json:"id"`
	ClientEmail     string     `db:"client_email" json:"client_email"`
	Title           string     `db:"title" json:"title"`
	Detail          string     `db:"detail" json:"detail,omitempty"`
	Category        string     `db:"category" json:"category,omitempty"`
	RequiredWorkers int        `db:"required_workers" json:"required_workers"`
	PayableAmount   int64      `db:"payable_amount" json:"payable_amount"`
	ImageURL        string     `db:"image_url" json:"image_url,omitempty"`
	CompletionDate  *time.Time `db:"completion_date" json:"completion_date,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// TaskFilter captures filtering criteria for listing tasks.
type TaskFilter struct {
	ClientEmail string
	Category    string
	Page        int
	PageSize    int
}
