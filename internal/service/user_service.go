package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/journeyman/marketplace-api/internal/models"
	appErrors "github.com/journeyman/marketplace-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, email string) error
}

type balanceWriter interface {
	SetBalance(ctx context.Context, email string, coins int64) error
}

// Signup grants by role, credited once at registration.
const (
	signupCoinsWorker = 10
	signupCoinsClient = 50
)

// CreateUserRequest represents the registration payload.
type CreateUserRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	Name     string          `json:"name" validate:"required"`
	Role     models.UserRole `json:"role" validate:"required,oneof=client worker admin"`
	PhotoURL string          `json:"photo_url"`
	Password string          `json:"password" validate:"omitempty,min=6"`
}

// UpdateUserRequest is the partial-update payload. A provided Coins value is
// routed through the ledger rather than written here.
type UpdateUserRequest struct {
	Name     *string            `json:"name"`
	Role     *models.UserRole   `json:"role"`
	PhotoURL *string            `json:"photo_url"`
	Coins    *models.CoinAmount `json:"coins"`
}

// UserService handles account management workflows.
type UserService struct {
	repo      userRepository
	ledger    balanceWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, ledger balanceWriter, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, ledger: ledger, validator: validate, logger: logger}
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	pagination := &models.Pagination{
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
	}

	return users, pagination, nil
}

// Get returns a user by email.
func (s *UserService) Get(ctx context.Context, email string) (*models.User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// Create registers a new account with the role's signup coin grant.
func (s *UserService) Create(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}

	email := strings.ToLower(req.Email)
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}

	user := &models.User{
		ID:       uuid.NewString(),
		Email:    email,
		Name:     req.Name,
		Role:     req.Role,
		Coins:    signupCoins(req.Role),
		PhotoURL: req.PhotoURL,
	}

	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
		}
		user.PasswordHash = string(hash)
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	s.logger.Sugar().Infow("user registered", "user_id", user.ID, "email", user.Email, "role", user.Role)
	return user, nil
}

// Update applies partial changes to an account. Coin changes go through the
// ledger, which stays the only writer of the balance column.
func (s *UserService) Update(ctx context.Context, email string, req UpdateUserRequest) (*models.User, error) {
	user, err := s.Get(ctx, email)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Role != nil {
		switch *req.Role {
		case models.RoleClient, models.RoleWorker, models.RoleAdmin:
			user.Role = *req.Role
		default:
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid role")
		}
	}
	if req.PhotoURL != nil {
		user.PhotoURL = *req.PhotoURL
	}

	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}

	if req.Coins != nil {
		if err := s.ledger.SetBalance(ctx, user.Email, req.Coins.Int64()); err != nil {
			return nil, err
		}
		user.Coins = req.Coins.Int64()
	}

	return user, nil
}

// Delete removes an account.
func (s *UserService) Delete(ctx context.Context, email string) error {
	if err := s.repo.Delete(ctx, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}
	return nil
}

func signupCoins(role models.UserRole) int64 {
	switch role {
	case models.RoleClient:
		return signupCoinsClient
	case models.RoleWorker:
		return signupCoinsWorker
	default:
		return 0
	}
}
