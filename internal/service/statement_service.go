package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/journeyman/marketplace-api/internal/models"
	"github.com/journeyman/marketplace-api/internal/repository"
	appErrors "github.com/journeyman/marketplace-api/pkg/errors"
	"github.com/journeyman/marketplace-api/pkg/export"
	"github.com/journeyman/marketplace-api/pkg/jobs"
	"github.com/journeyman/marketplace-api/pkg/storage"
)

type statementRepository interface {
	Create(ctx context.Context, statement *models.Statement) error
	GetByID(ctx context.Context, id string) (*models.Statement, error)
	Update(ctx context.Context, id string, params repository.UpdateStatementParams) error
	ListQueued(ctx context.Context, limit int) ([]models.Statement, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Statement, error)
}

type paymentLister interface {
	ListPaymentsByUser(ctx context.Context, email string) ([]models.Payment, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// CreateStatementRequest asks for an async payment-statement export.
type CreateStatementRequest struct {
	UserEmail string `json:"user_email" validate:"required,email"`
	Format    string `json:"format" validate:"required,oneof=csv pdf"`
}

// StatementDownload describes a resolved, still-valid download.
type StatementDownload struct {
	Path        string
	ContentType string
	Filename    string
}

// StatementService manages asynchronous payment-statement exports: it queues
// jobs, renders CSV/PDF files in the background, and serves signed downloads.
type StatementService struct {
	repo      statementRepository
	payments  paymentLister
	queue     jobEnqueuer
	storage   *storage.LocalStorage
	signer    *storage.SignedURLSigner
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStatementService constructs a StatementService instance.
func NewStatementService(
	repo statementRepository,
	payments paymentLister,
	queue jobEnqueuer,
	store *storage.LocalStorage,
	signer *storage.SignedURLSigner,
	validate *validator.Validate,
	logger *zap.Logger,
) *StatementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &StatementService{
		repo:      repo,
		payments:  payments,
		queue:     queue,
		storage:   store,
		signer:    signer,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		validator: validate,
		logger:    logger,
	}
}

// CreateJob persists a queued statement job and hands it to the worker pool.
func (s *StatementService) CreateJob(ctx context.Context, req CreateStatementRequest) (*models.Statement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid statement payload")
	}

	statement := &models.Statement{
		UserEmail: req.UserEmail,
		Format:    models.StatementFormat(req.Format),
		Status:    models.StatementQueued,
	}
	if err := s.repo.Create(ctx, statement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create statement job")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: statement.ID, Type: "statement"}); err != nil {
		s.logger.Sugar().Errorw("failed to enqueue statement job", "statement_id", statement.ID, "error", err)
		s.markFailed(ctx, statement.ID, "could not queue job")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue statement job")
	}
	return statement, nil
}

// GetStatus returns the current state of a statement job.
func (s *StatementService) GetStatus(ctx context.Context, id string) (*models.Statement, error) {
	statement, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "statement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch statement")
	}
	return statement, nil
}

// ResolveDownload validates a signed token and returns the stored file info.
func (s *StatementService) ResolveDownload(ctx context.Context, token string) (*StatementDownload, error) {
	statementID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}

	statement, err := s.repo.GetByID(ctx, statementID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "statement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch statement")
	}
	if statement.Status != models.StatementFinished {
		return nil, appErrors.Clone(appErrors.ErrConflict, "statement is not ready")
	}

	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "statement file no longer available")
	}
	path := file.Name()
	_ = file.Close()

	contentType := "text/csv"
	if statement.Format == models.StatementFormatPDF {
		contentType = "application/pdf"
	}
	return &StatementDownload{
		Path:        path,
		ContentType: contentType,
		Filename:    fmt.Sprintf("statement-%s.%s", statement.ID, statement.Format),
	}, nil
}

// Handle processes one queued statement job. Wired as the queue handler.
func (s *StatementService) Handle(ctx context.Context, job jobs.Job) error {
	statement, err := s.repo.GetByID(ctx, job.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Sugar().Warnw("statement job vanished", "statement_id", job.ID)
			return nil
		}
		return fmt.Errorf("load statement %s: %w", job.ID, err)
	}
	if statement.Status == models.StatementFinished || statement.Status == models.StatementFailed {
		return nil
	}

	s.setProgress(ctx, statement.ID, models.StatementProcessing, 10)

	payments, err := s.payments.ListPaymentsByUser(ctx, statement.UserEmail)
	if err != nil {
		s.markFailed(ctx, statement.ID, "failed to load payment history")
		return fmt.Errorf("list payments for %s: %w", statement.UserEmail, err)
	}
	s.setProgress(ctx, statement.ID, models.StatementProcessing, 40)

	dataset := buildPaymentDataset(payments)

	var rendered []byte
	switch statement.Format {
	case models.StatementFormatPDF:
		rendered, err = s.pdf.Render(dataset, "Payment Statement")
	default:
		rendered, err = s.csv.Render(dataset)
	}
	if err != nil {
		s.markFailed(ctx, statement.ID, "failed to render statement")
		return fmt.Errorf("render statement %s: %w", statement.ID, err)
	}
	s.setProgress(ctx, statement.ID, models.StatementProcessing, 70)

	filename := fmt.Sprintf("%s/%s.%s", statement.UserEmail, statement.ID, statement.Format)
	relPath, err := s.storage.Save(filename, rendered)
	if err != nil {
		s.markFailed(ctx, statement.ID, "failed to store statement file")
		return fmt.Errorf("save statement %s: %w", statement.ID, err)
	}

	token, _, err := s.signer.Generate(statement.ID, relPath)
	if err != nil {
		s.markFailed(ctx, statement.ID, "failed to sign download url")
		return fmt.Errorf("sign statement %s: %w", statement.ID, err)
	}

	now := time.Now().UTC()
	resultURL := "/statements/download/" + token
	status := models.StatementFinished
	progress := 100
	if err := s.repo.Update(ctx, statement.ID, repository.UpdateStatementParams{
		Status:     &status,
		Progress:   &progress,
		ResultURL:  &resultURL,
		FinishedAt: &now,
	}); err != nil {
		return fmt.Errorf("finish statement %s: %w", statement.ID, err)
	}
	s.logger.Sugar().Infow("statement generated", "statement_id", statement.ID, "format", statement.Format)
	return nil
}

// RecoverPendingJobs requeues jobs left in QUEUED state across a restart.
func (s *StatementService) RecoverPendingJobs(ctx context.Context) error {
	statements, err := s.repo.ListQueued(ctx, 100)
	if err != nil {
		return fmt.Errorf("list queued statements: %w", err)
	}
	for _, statement := range statements {
		if err := s.queue.Enqueue(jobs.Job{ID: statement.ID, Type: "statement"}); err != nil {
			s.logger.Sugar().Errorw("failed to requeue statement", "statement_id", statement.ID, "error", err)
		}
	}
	if len(statements) > 0 {
		s.logger.Sugar().Infow("requeued pending statements", "count", len(statements))
	}
	return nil
}

// StartCleanup periodically removes statement files past their retention TTL.
func (s *StatementService) StartCleanup(ctx context.Context, interval, retention time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupOnce(ctx, retention)
			}
		}
	}()
}

func (s *StatementService) cleanupOnce(ctx context.Context, retention time.Duration) {
	deleted, err := s.storage.CleanupOlderThan(retention)
	if err != nil {
		s.logger.Sugar().Errorw("statement cleanup failed", "error", err)
		return
	}
	if len(deleted) > 0 {
		s.logger.Sugar().Infow("cleaned up statement files", "count", len(deleted))
	}
	cutoff := time.Now().UTC().Add(-retention)
	stale, err := s.repo.ListFinishedBefore(ctx, cutoff, 100)
	if err != nil {
		s.logger.Sugar().Errorw("failed to list expired statements", "error", err)
		return
	}
	for _, statement := range stale {
		status := models.StatementFailed
		msg := "statement expired"
		if err := s.repo.Update(ctx, statement.ID, repository.UpdateStatementParams{Status: &status, ErrorMessage: &msg}); err != nil {
			s.logger.Sugar().Errorw("failed to expire statement", "statement_id", statement.ID, "error", err)
		}
	}
}

func (s *StatementService) setProgress(ctx context.Context, id string, status models.StatementStatus, progress int) {
	if err := s.repo.Update(ctx, id, repository.UpdateStatementParams{Status: &status, Progress: &progress}); err != nil {
		s.logger.Sugar().Warnw("failed to update statement progress", "statement_id", id, "error", err)
	}
}

func (s *StatementService) markFailed(ctx context.Context, id, message string) {
	status := models.StatementFailed
	now := time.Now().UTC()
	if err := s.repo.Update(ctx, id, repository.UpdateStatementParams{Status: &status, ErrorMessage: &message, FinishedAt: &now}); err != nil {
		s.logger.Sugar().Errorw("failed to mark statement failed", "statement_id", id, "error", err)
	}
}

func buildPaymentDataset(payments []models.Payment) export.Dataset {
	headers := []string{"Date", "Method", "Coins", "Amount"}
	rows := make([]map[string]string, 0, len(payments))
	var totalCoins, totalAmount int64
	for _, p := range payments {
		rows = append(rows, map[string]string{
			"Date":   p.Date.UTC().Format("2006-01-02 15:04"),
			"Method": p.Method,
			"Coins":  strconv.FormatInt(p.Coins, 10),
			"Amount": strconv.FormatInt(p.Amount, 10),
		})
		totalCoins += p.Coins
		totalAmount += p.Amount
	}
	summary := []map[string]string{{
		"Date":   "Total",
		"Method": "",
		"Coins":  strconv.FormatInt(totalCoins, 10),
		"Amount": strconv.FormatInt(totalAmount, 10),
	}}
	return export.Dataset{Headers: headers, Rows: rows, Summary: summary}
}
