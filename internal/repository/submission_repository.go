package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/journeyman/marketplace-api/internal/models"
)

// SubmissionRepository provides database access for submissions.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository creates a new instance of SubmissionRepository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

const submissionColumns = `id, task_id, task_title, worker_email, worker_name, client_email, payable_amount, detail, status, "current_date"`

// CreateWithSlot inserts a pending submission and decrements the referenced
// task's required_workers in one transaction. The slot counter has no floor.
func (r *SubmissionRepository) CreateWithSlot(ctx context.Context, submission *models.Submission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	if submission.Status == "" {
		submission.Status = models.SubmissionPending
	}
	if submission.CurrentDate.IsZero() {
		submission.CurrentDate = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create submission: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insertQuery = `INSERT INTO submissions (id, task_id, task_title, worker_email, worker_name, client_email, payable_amount, detail, status, "current_date") VALUES (:id, :task_id, :task_title, :worker_email, :worker_name, :client_email, :payable_amount, :detail, :status, :current_date)`
	if _, err := tx.NamedExecContext(ctx, insertQuery, submission); err != nil {
		return fmt.Errorf("create submission: %w", err)
	}

	const slotQuery = `UPDATE tasks SET required_workers = required_workers - 1, updated_at = $2 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, slotQuery, submission.TaskID, time.Now().UTC()); err != nil {
		return fmt.Errorf("consume task slot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create submission: %w", err)
	}
	return nil
}

// FindByID returns a submission by identifier.
func (r *SubmissionRepository) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	query := fmt.Sprintf(`SELECT %s FROM submissions WHERE id = $1 LIMIT 1`, submissionColumns)
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find submission by id: %w", err)
	}
	return &submission, nil
}

// List returns submissions matching the filter in insertion order.
func (r *SubmissionRepository) List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error) {
	baseQuery := `FROM submissions WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.WorkerEmail != "" {
		conditions = append(conditions, fmt.Sprintf("worker_email = $%d", len(args)+1))
		args = append(args, filter.WorkerEmail)
	}
	if filter.ClientEmail != "" {
		conditions = append(conditions, fmt.Sprintf("client_email = $%d", len(args)+1))
		args = append(args, filter.ClientEmail)
	}
	if filter.TaskID != "" {
		conditions = append(conditions, fmt.Sprintf("task_id = $%d", len(args)+1))
		args = append(args, filter.TaskID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`SELECT %s %s ORDER BY "current_date" ASC`, submissionColumns, baseQuery)

	var submissions []models.Submission
	if err := r.db.SelectContext(ctx, &submissions, query, args...); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return submissions, nil
}

// UpdateStatusReturningPrevious sets the submission status and reports the
// status it replaced, in a single statement. The row lock serializes
// concurrent transitions on the same submission: exactly one caller observes
// any given previous status, so side effects derived from the
// (previous, new) pair apply at most once. Returns sql.ErrNoRows when the
// submission does not exist.
func (r *SubmissionRepository) UpdateStatusReturningPrevious(ctx context.Context, id string, status models.SubmissionStatus) (models.SubmissionStatus, error) {
	const query = `UPDATE submissions AS s
SET status = $2
FROM (SELECT id, status FROM submissions WHERE id = $1 FOR UPDATE) AS prev
WHERE s.id = prev.id
RETURNING prev.status`

	var previous models.SubmissionStatus
	if err := r.db.GetContext(ctx, &previous, query, id, status); err != nil {
		if err == sql.ErrNoRows {
			return "", err
		}
		return "", fmt.Errorf("update submission status: %w", err)
	}
	return previous, nil
}

// Delete removes a submission without reversing slot or coin effects. Returns
// sql.ErrNoRows when no submission matches.
func (r *SubmissionRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM submissions WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete submission: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
