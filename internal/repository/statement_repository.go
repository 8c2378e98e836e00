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

// StatementRepository persists payment-statement export jobs.
type StatementRepository struct {
	db *sqlx.DB
}

// NewStatementRepository creates a new instance of StatementRepository.
func NewStatementRepository(db *sqlx.DB) *StatementRepository {
	return &StatementRepository{db: db}
}

const statementColumns = `id, user_email, format, status, progress, result_url, error_message, created_at, finished_at`

// Create inserts a new queued statement job.
func (r *StatementRepository) Create(ctx context.Context, statement *models.Statement) error {
	if statement.ID == "" {
		statement.ID = uuid.NewString()
	}
	if statement.Status == "" {
		statement.Status = models.StatementQueued
	}
	if statement.CreatedAt.IsZero() {
		statement.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO statements (id, user_email, format, status, progress, result_url, error_message, created_at, finished_at) VALUES (:id, :user_email, :format, :status, :progress, :result_url, :error_message, :created_at, :finished_at)`
	if _, err := r.db.NamedExecContext(ctx, query, statement); err != nil {
		return fmt.Errorf("create statement: %w", err)
	}
	return nil
}

// GetByID returns a statement job by identifier.
func (r *StatementRepository) GetByID(ctx context.Context, id string) (*models.Statement, error) {
	query := fmt.Sprintf(`SELECT %s FROM statements WHERE id = $1 LIMIT 1`, statementColumns)
	var statement models.Statement
	if err := r.db.GetContext(ctx, &statement, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find statement by id: %w", err)
	}
	return &statement, nil
}

// UpdateStatementParams carries the fields mutated during job processing.
type UpdateStatementParams struct {
	Status       *models.StatementStatus
	Progress     *int
	ResultURL    *string
	ErrorMessage *string
	FinishedAt   *time.Time
}

// Update applies the provided fields to a statement job.
func (r *StatementRepository) Update(ctx context.Context, id string, params UpdateStatementParams) error {
	var sets []string
	var args []interface{}
	args = append(args, id)

	if params.Status != nil {
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *params.Status)
	}
	if params.Progress != nil {
		sets = append(sets, fmt.Sprintf("progress = $%d", len(args)+1))
		args = append(args, *params.Progress)
	}
	if params.ResultURL != nil {
		sets = append(sets, fmt.Sprintf("result_url = $%d", len(args)+1))
		args = append(args, *params.ResultURL)
	}
	if params.ErrorMessage != nil {
		sets = append(sets, fmt.Sprintf("error_message = $%d", len(args)+1))
		args = append(args, *params.ErrorMessage)
	}
	if params.FinishedAt != nil {
		sets = append(sets, fmt.Sprintf("finished_at = $%d", len(args)+1))
		args = append(args, *params.FinishedAt)
	}
	if len(sets) == 0 {
		return nil
	}

	query := fmt.Sprintf("UPDATE statements SET %s WHERE id = $1", strings.Join(sets, ", "))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update statement: %w", err)
	}
	return nil
}

// ListQueued returns jobs still awaiting processing, oldest first.
func (r *StatementRepository) ListQueued(ctx context.Context, limit int) ([]models.Statement, error) {
	query := fmt.Sprintf(`SELECT %s FROM statements WHERE status = $1 ORDER BY created_at ASC LIMIT $2`, statementColumns)
	var statements []models.Statement
	if err := r.db.SelectContext(ctx, &statements, query, models.StatementQueued, limit); err != nil {
		return nil, fmt.Errorf("list queued statements: %w", err)
	}
	return statements, nil
}

// ListFinishedBefore returns finished jobs older than the cutoff, for cleanup.
func (r *StatementRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Statement, error) {
	query := fmt.Sprintf(`SELECT %s FROM statements WHERE status = $1 AND finished_at IS NOT NULL AND finished_at < $2 ORDER BY finished_at ASC LIMIT $3`, statementColumns)
	var statements []models.Statement
	if err := r.db.SelectContext(ctx, &statements, query, models.StatementFinished, cutoff, limit); err != nil {
		return nil, fmt.Errorf("list finished statements: %w", err)
	}
	return statements, nil
}
