package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/journeyman/marketplace-api/internal/models"
	appErrors "github.com/journeyman/marketplace-api/pkg/errors"
)

type taskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	FindByID(ctx context.Context, id string) (*models.Task, error)
	List(ctx context.Context, filter models.TaskFilter) ([]models.Task, int, error)
	Update(ctx context.Context, task *models.Task) error
	Delete(ctx context.Context, id string) error
}

type listCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPrefix(ctx context.Context, prefix string) error
}

type cacheObserver interface {
	ObserveCache(hit bool)
}

const taskCachePrefix = "tasks:list:"

// CreateTaskRequest is the payload for posting a task.
type CreateTaskRequest struct {
	ClientEmail     string            `json:"client_email" validate:"required,email"`
	Title           string            `json:"title" validate:"required"`
	Detail          string            `json:"detail"`
	Category        string            `json:"category"`
	RequiredWorkers int               `json:"required_workers" validate:"required,gt=0"`
	PayableAmount   models.CoinAmount `json:"payable_amount"`
	ImageURL        string            `json:"image_url"`
	CompletionDate  *time.Time        `json:"completion_date"`
}

// UpdateTaskRequest is the partial-update payload for a task. The slot
// counter is excluded; it is owned by the slot tracker.
type UpdateTaskRequest struct {
	Title          *string            `json:"title"`
	Detail         *string            `json:"detail"`
	Category       *string            `json:"category"`
	PayableAmount  *models.CoinAmount `json:"payable_amount"`
	ImageURL       *string            `json:"image_url"`
	CompletionDate *time.Time         `json:"completion_date"`
}

type cachedTaskList struct {
	Tasks      []models.Task      `json:"tasks"`
	Pagination *models.Pagination `json:"pagination"`
}

// TaskService handles task management with a read-through list cache.
type TaskService struct {
	repo      taskRepository
	cache     listCache
	metrics   cacheObserver
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTaskService creates an instance of TaskService.
func NewTaskService(repo taskRepository, cache listCache, metrics cacheObserver, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *TaskService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &TaskService{
		repo:      repo,
		cache:     cache,
		metrics:   metrics,
		cacheTTL:  cacheTTL,
		validator: validate,
		logger:    logger,
	}
}

// Create inserts a new task with its initial slot count.
func (s *TaskService) Create(ctx context.Context, req CreateTaskRequest) (*models.Task, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid task payload")
	}

	task := &models.Task{
		ClientEmail:     req.ClientEmail,
		Title:           req.Title,
		Detail:          req.Detail,
		Category:        req.Category,
		RequiredWorkers: req.RequiredWorkers,
		PayableAmount:   req.PayableAmount.Int64(),
		ImageURL:        req.ImageURL,
		CompletionDate:  req.CompletionDate,
	}

	if err := s.repo.Create(ctx, task); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create task")
	}

	s.invalidateCache(ctx)
	s.logger.Sugar().Infow("task created", "task_id", task.ID, "client_email", task.ClientEmail, "required_workers", task.RequiredWorkers)
	return task, nil
}

// Get returns a task by id.
func (s *TaskService) Get(ctx context.Context, id string) (*models.Task, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidID, "invalid task id")
	}
	task, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "task not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load task")
	}
	return task, nil
}

// List returns tasks matching the filter, served from cache when possible.
func (s *TaskService) List(ctx context.Context, filter models.TaskFilter) ([]models.Task, *models.Pagination, error) {
	key := taskCacheKey(filter)

	if s.cache != nil {
		var cached cachedTaskList
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			if s.metrics != nil {
				s.metrics.ObserveCache(true)
			}
			return cached.Tasks, cached.Pagination, nil
		}
		if s.metrics != nil {
			s.metrics.ObserveCache(false)
		}
	}

	tasks, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tasks")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, cachedTaskList{Tasks: tasks, Pagination: pagination}, s.cacheTTL); err != nil {
			s.logger.Sugar().Warnw("task cache set failed", "key", key, "error", err)
		}
	}

	return tasks, pagination, nil
}

// Update applies partial changes to a task. The required_workers counter is
// not client-editable once the task exists.
func (s *TaskService) Update(ctx context.Context, id string, req UpdateTaskRequest) (*models.Task, error) {
	task, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Detail != nil {
		task.Detail = *req.Detail
	}
	if req.Category != nil {
		task.Category = *req.Category
	}
	if req.PayableAmount != nil {
		task.PayableAmount = req.PayableAmount.Int64()
	}
	if req.ImageURL != nil {
		task.ImageURL = *req.ImageURL
	}
	if req.CompletionDate != nil {
		task.CompletionDate = req.CompletionDate
	}

	if err := s.repo.Update(ctx, task); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "task not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update task")
	}

	s.invalidateCache(ctx)
	return task, nil
}

// Delete removes a task.
func (s *TaskService) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return appErrors.Clone(appErrors.ErrInvalidID, "invalid task id")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "task not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete task")
	}
	s.invalidateCache(ctx)
	return nil
}

func (s *TaskService) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPrefix(ctx, taskCachePrefix); err != nil {
		s.logger.Sugar().Warnw("task cache invalidation failed", "error", err)
	}
}

func taskCacheKey(filter models.TaskFilter) string {
	return fmt.Sprintf("%s%s:%s:%d:%d", taskCachePrefix, filter.ClientEmail, filter.Category, filter.Page, filter.PageSize)
}
