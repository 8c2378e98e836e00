package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/journeyman/marketplace-api/internal/models"
	appErrors "github.com/journeyman/marketplace-api/pkg/errors"
)

type submissionRepository interface {
	CreateWithSlot(ctx context.Context, submission *models.Submission) error
	FindByID(ctx context.Context, id string) (*models.Submission, error)
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error)
	UpdateStatusReturningPrevious(ctx context.Context, id string, status models.SubmissionStatus) (models.SubmissionStatus, error)
	Delete(ctx context.Context, id string) error
}

type slotTracker interface {
	IncrementSlots(ctx context.Context, id string, n int) error
}

type coinLedger interface {
	CreditCoins(ctx context.Context, email string, amount int64) error
}

type transitionObserver interface {
	ObserveTransition(previous, next string, credited int64, slotFreed bool)
}

type cacheInvalidator interface {
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// CreateSubmissionRequest is the payload for posting work against a task.
// PayableAmount tolerates non-numeric input by coercing to zero.
type CreateSubmissionRequest struct {
	TaskID        string            `json:"task_id" validate:"required"`
	TaskTitle     string            `json:"task_title"`
	WorkerEmail   string            `json:"worker_email" validate:"required,email"`
	WorkerName    string            `json:"worker_name"`
	ClientEmail   string            `json:"client_email" validate:"required,email"`
	PayableAmount models.CoinAmount `json:"payable_amount"`
	Detail        string            `json:"submission_detail"`
}

// SetSubmissionStatusRequest carries the requested lifecycle transition.
type SetSubmissionStatusRequest struct {
	Status models.SubmissionStatus `json:"status" validate:"required"`
}

// CreateSubmissionResult acknowledges a created submission.
type CreateSubmissionResult struct {
	SubmissionID string `json:"submissionId"`
	Success      bool   `json:"success"`
}

// SubmissionService orchestrates the submission lifecycle: slot consumption
// on create and the coin/slot settlement derived from status transitions.
type SubmissionService struct {
	repo      submissionRepository
	slots     slotTracker
	ledger    coinLedger
	cache     cacheInvalidator
	metrics   transitionObserver
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubmissionService constructs a SubmissionService.
func NewSubmissionService(repo submissionRepository, slots slotTracker, ledger coinLedger, cache cacheInvalidator, metrics transitionObserver, validate *validator.Validate, logger *zap.Logger) *SubmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SubmissionService{
		repo:      repo,
		slots:     slots,
		ledger:    ledger,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// Create inserts a pending submission and consumes one slot on the referenced
// task in the same transaction. Task existence is not checked up front; a
// missing task simply leaves no slot row to decrement.
func (s *SubmissionService) Create(ctx context.Context, req CreateSubmissionRequest) (*CreateSubmissionResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}
	if _, err := uuid.Parse(req.TaskID); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidID, "invalid task id")
	}

	submission := &models.Submission{
		TaskID:        req.TaskID,
		TaskTitle:     req.TaskTitle,
		WorkerEmail:   req.WorkerEmail,
		WorkerName:    req.WorkerName,
		ClientEmail:   req.ClientEmail,
		PayableAmount: req.PayableAmount.Int64(),
		Detail:        req.Detail,
		Status:        models.SubmissionPending,
	}

	if err := s.repo.CreateWithSlot(ctx, submission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create submission")
	}

	// The slot decrement changed a cached task field.
	s.invalidateTaskCache(ctx)
	s.logger.Sugar().Infow("submission created", "submission_id", submission.ID, "task_id", submission.TaskID, "worker_email", submission.WorkerEmail)
	return &CreateSubmissionResult{SubmissionID: submission.ID, Success: true}, nil
}

// SetStatus applies a lifecycle transition. The status write is an atomic
// conditional update returning the previous status, so concurrent transitions
// on the same submission serialize and each settlement side effect fires at
// most once. The status change is authoritative: side-effect failures are
// logged and the call still succeeds.
func (s *SubmissionService) SetStatus(ctx context.Context, id string, req SetSubmissionStatusRequest) (*models.Submission, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidID, "invalid submission id")
	}
	if !req.Status.Valid() || req.Status == models.SubmissionPending {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be approved or rejected")
	}

	previous, err := s.repo.UpdateStatusReturningPrevious(ctx, id, req.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update submission status")
	}

	submission, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload submission")
	}

	credited, slotFreed := s.settle(ctx, submission, previous, req.Status)
	if slotFreed {
		s.invalidateTaskCache(ctx)
	}
	if s.metrics != nil {
		s.metrics.ObserveTransition(string(previous), string(req.Status), credited, slotFreed)
	}

	return submission, nil
}

func (s *SubmissionService) invalidateTaskCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPrefix(ctx, taskCachePrefix); err != nil {
		s.logger.Sugar().Warnw("task cache invalidation failed", "error", err)
	}
}

// settle applies the coin and slot side effects derived from the
// (previous, new) status pair. Approval credits the worker unless the
// submission was already approved; rejection frees a slot only when the
// submission was still pending, since a slot consumed by an approved
// submission stays consumed.
func (s *SubmissionService) settle(ctx context.Context, submission *models.Submission, previous, next models.SubmissionStatus) (credited int64, slotFreed bool) {
	log := s.logger.Sugar()

	switch {
	case next == models.SubmissionApproved && previous != models.SubmissionApproved:
		if err := s.ledger.CreditCoins(ctx, submission.WorkerEmail, submission.PayableAmount); err != nil {
			log.Errorw("coin credit failed after approval", "submission_id", submission.ID, "worker_email", submission.WorkerEmail, "amount", submission.PayableAmount, "error", err)
			return 0, false
		}
		log.Infow("worker credited", "submission_id", submission.ID, "worker_email", submission.WorkerEmail, "amount", submission.PayableAmount)
		return submission.PayableAmount, false

	case next == models.SubmissionRejected && previous == models.SubmissionPending:
		if err := s.slots.IncrementSlots(ctx, submission.TaskID, 1); err != nil {
			log.Errorw("slot release failed after rejection", "submission_id", submission.ID, "task_id", submission.TaskID, "error", err)
			return 0, false
		}
		log.Infow("task slot released", "submission_id", submission.ID, "task_id", submission.TaskID)
		return 0, true
	}

	return 0, false
}

// Get returns a submission by id.
func (s *SubmissionService) Get(ctx context.Context, id string) (*models.Submission, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidID, "invalid submission id")
	}
	submission, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	return submission, nil
}

// List returns submissions matching the filter.
func (s *SubmissionService) List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error) {
	if filter.TaskID != "" {
		if _, err := uuid.Parse(filter.TaskID); err != nil {
			return nil, appErrors.Clone(appErrors.ErrInvalidID, "invalid task id")
		}
	}
	submissions, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return submissions, nil
}

// Delete removes a submission. Slot and coin effects already applied are not
// reversed.
func (s *SubmissionService) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return appErrors.Clone(appErrors.ErrInvalidID, "invalid submission id")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete submission")
	}
	return nil
}
