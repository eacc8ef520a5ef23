package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/room-reservation-api/internal/models"
	"github.com/noah-isme/room-reservation-api/internal/policy"
	appErrors "github.com/noah-isme/room-reservation-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByUserNo(ctx context.Context, userNo string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CreateUserRequest represents payload for creating users.
type CreateUserRequest struct {
	UserNo       string          `json:"user_no" validate:"required,max=45"`
	Name         string          `json:"name" validate:"required,max=45"`
	Email        string          `json:"email" validate:"required,email"`
	UserType     models.UserType `json:"user_type" validate:"required,oneof=ADMIN FACULTY POSTGRADUATE UNDERGRADUATE"`
	DepartmentID *int64          `json:"department_id"`
	Password     string          `json:"password" validate:"required,min=8,max=128"`
}

// UpdateUserRequest is a partial update. Only Name and Email may be set by the user themself.
type UpdateUserRequest struct {
	UserNo       *string          `json:"user_no" validate:"omitempty,max=45"`
	Name         *string          `json:"name" validate:"omitempty,max=45"`
	Email        *string          `json:"email" validate:"omitempty,email"`
	UserType     *models.UserType `json:"user_type" validate:"omitempty,oneof=ADMIN FACULTY POSTGRADUATE UNDERGRADUATE"`
	DepartmentID *int64           `json:"department_id"`
	Active       *bool            `json:"active"`
}

func (r UpdateUserRequest) touchesAdminFields() bool {
	return r.UserNo != nil || r.UserType != nil || r.DepartmentID != nil || r.Active != nil
}

// UserService handles user management workflows.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, validator: validate, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list users")
	}
	return users, newPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "user not found", "failed to load user")
	}
	return user, nil
}

// Create adds a new user. Admin only.
func (s *UserService) Create(ctx context.Context, actor policy.Actor, req CreateUserRequest, meta RequestMeta) (*models.User, error) {
	if !actor.Can(policy.ManageUsers) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can create users")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid create user payload")
	}

	if _, err := s.repo.FindByUserNo(ctx, req.UserNo); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "user number already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, internalError(err, "failed to check user number uniqueness")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, internalError(err, "failed to hash password")
	}

	now := s.now()
	user := &models.User{
		ID:           uuid.NewString(),
		UserNo:       strings.TrimSpace(req.UserNo),
		Name:         req.Name,
		Email:        strings.ToLower(req.Email),
		PasswordHash: string(passwordHash),
		UserType:     req.UserType,
		DepartmentID: req.DepartmentID,
		Active:       true,
		DateJoined:   now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, internalError(err, "failed to create user")
	}

	newPayload, _ := json.Marshal(map[string]interface{}{"id": user.ID, "user_no": user.UserNo, "user_type": user.UserType})
	s.audit(ctx, &models.AuditLog{
		UserID:     &actor.ID,
		Action:     models.AuditActionUserCreate,
		Resource:   "users",
		ResourceID: &user.ID,
		NewValues:  newPayload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})

	return user, nil
}

// Update modifies user attributes. Users may change their own name and email; the remaining
// fields are reserved to administrators.
func (s *UserService) Update(ctx context.Context, actor policy.Actor, id string, req UpdateUserRequest, meta RequestMeta) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid update payload")
	}
	if !policy.CanModify(actor, id) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot modify another user")
	}
	if req.touchesAdminFields() && !actor.Can(policy.ManageUsers) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can change user number, type, department or status")
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "user not found", "failed to load user")
	}

	oldPayload, _ := json.Marshal(map[string]interface{}{"user_no": user.UserNo, "user_type": user.UserType, "active": user.Active})

	if req.UserNo != nil && *req.UserNo != user.UserNo {
		if _, err := s.repo.FindByUserNo(ctx, *req.UserNo); err == nil {
			return nil, appErrors.Clone(appErrors.ErrConflict, "user number already exists")
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, internalError(err, "failed to check user number uniqueness")
		}
		user.UserNo = *req.UserNo
	}
	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Email != nil {
		user.Email = strings.ToLower(*req.Email)
	}
	if req.UserType != nil {
		user.UserType = *req.UserType
	}
	if req.DepartmentID != nil {
		user.DepartmentID = req.DepartmentID
	}
	if req.Active != nil {
		user.Active = *req.Active
	}
	user.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, internalError(err, "failed to update user")
	}

	newPayload, _ := json.Marshal(map[string]interface{}{"user_no": user.UserNo, "user_type": user.UserType, "active": user.Active})
	s.audit(ctx, &models.AuditLog{
		UserID:     &actor.ID,
		Action:     models.AuditActionUserUpdate,
		Resource:   "users",
		ResourceID: &user.ID,
		OldValues:  oldPayload,
		NewValues:  newPayload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})

	return user, nil
}

// Delete performs a soft delete (inactive) on a user. Admin only.
func (s *UserService) Delete(ctx context.Context, actor policy.Actor, id string, meta RequestMeta) error {
	if !actor.Can(policy.ManageUsers) {
		return appErrors.Clone(appErrors.ErrForbidden, "only administrators can delete users")
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return lookupError(err, "user not found", "failed to load user")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return internalError(err, "failed to delete user")
	}

	oldPayload, _ := json.Marshal(map[string]interface{}{"active": user.Active})
	newPayload, _ := json.Marshal(map[string]interface{}{"active": false})
	s.audit(ctx, &models.AuditLog{
		UserID:     &actor.ID,
		Action:     models.AuditActionUserDelete,
		Resource:   "users",
		ResourceID: &user.ID,
		OldValues:  oldPayload,
		NewValues:  newPayload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})

	return nil
}

func (s *UserService) audit(ctx context.Context, log *models.AuditLog) {
	if err := s.repo.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record user audit log", zap.String("action", log.Action), zap.Error(err))
	}
}
