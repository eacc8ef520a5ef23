package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/room-reservation-api/internal/models"
	"github.com/noah-isme/room-reservation-api/internal/policy"
	"github.com/noah-isme/room-reservation-api/internal/service"
	appErrors "github.com/noah-isme/room-reservation-api/pkg/errors"
	"github.com/noah-isme/room-reservation-api/pkg/response"
)

const bulkUserFormKey = "user_input"

type userService interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, actor policy.Actor, req service.CreateUserRequest, meta service.RequestMeta) (*models.User, error)
	Update(ctx context.Context, actor policy.Actor, id string, req service.UpdateUserRequest, meta service.RequestMeta) (*models.User, error)
	Delete(ctx context.Context, actor policy.Actor, id string, meta service.RequestMeta) error
}

type bulkUserService interface {
	Import(ctx context.Context, actor policy.Actor, r io.Reader, meta service.RequestMeta) (*service.BulkUserResult, error)
	Deactivate(ctx context.Context, actor policy.Actor, r io.Reader, meta service.RequestMeta) (int64, error)
}

type referenceService interface {
	UserTypes(ctx context.Context) ([]models.UserTypeInfo, error)
	Departments(ctx context.Context) ([]models.Department, error)
}

// UserHandler handles the user directory endpoints.
type UserHandler struct {
	service   userService
	bulk      bulkUserService
	reference referenceService
}

// NewUserHandler creates a new user handler.
func NewUserHandler(svc userService, bulk bulkUserService, reference referenceService) *UserHandler {
	return &UserHandler{service: svc, bulk: bulk, reference: reference}
}

// List godoc
// @Summary List users
// @Description List users with pagination and filtering
// @Tags Users
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param user_type query string false "User type filter"
// @Param department_id query int false "Department filter"
// @Param active query bool false "Active filter"
// @Param search query string false "Search term"
// @Param sort_by query string false "Sort by"
// @Param sort_order query string false "Sort order"
// @Success 200 {object} response.Envelope
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	var filter models.UserFilter
	filter.Page, filter.PageSize = pageParams(c)

	if userType := c.Query("user_type"); userType != "" {
		t := models.UserType(strings.ToUpper(userType))
		filter.UserType = &t
	}
	if dept := c.Query("department_id"); dept != "" {
		if id, err := strconv.ParseInt(dept, 10, 64); err == nil {
			filter.DepartmentID = &id
		}
	}
	filter.Active = boolQuery(c, "active")
	filter.Search = c.Query("search")
	filter.SortBy = c.Query("sort_by")
	filter.SortOrder = c.Query("sort_order")

	users, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, users, pagination)
}

// Get godoc
// @Summary Get user
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// Create godoc
// @Summary Create user
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body service.CreateUserRequest true "User payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /users [post]
func (h *UserHandler) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req service.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid user payload"))
		return
	}
	user, err := h.service.Create(c.Request.Context(), actor, req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, user)
}

// Update godoc
// @Summary Update user
// @Description Members may change their own name and email; administrators may change anything.
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body service.UpdateUserRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /users/{id} [patch]
func (h *UserHandler) Update(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req service.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid user payload"))
		return
	}
	user, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// Delete godoc
// @Summary Deactivate user
// @Tags Users
// @Param id path string true "User ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Router /users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, c.Param("id"), requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// BulkCreate godoc
// @Summary Import users from CSV
// @Description Columns user_no,password,name,email,user_type,department. Nothing is created when any row fails.
// @Tags Users
// @Accept multipart/form-data
// @Produce text/csv
// @Param user_input formData file true "CSV file"
// @Success 201 {file} file
// @Failure 400 {file} file
// @Router /users/bulk [post]
func (h *UserHandler) BulkCreate(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	file, err := c.FormFile(bulkUserFormKey)
	if err != nil {
		response.Error(c, bindError(err, bulkUserFormKey+" file is required"))
		return
	}
	f, err := file.Open()
	if err != nil {
		response.Error(c, bindError(err, "failed to read upload"))
		return
	}
	defer f.Close() //nolint:errcheck

	result, err := h.bulk.Import(c.Request.Context(), actor, f, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusCreated
	if result.Created == 0 {
		status = http.StatusBadRequest
	}
	response.Attachment(c, status, "users_result.csv", "text/csv; charset=utf-8", result.CSV)
}

// BulkDelete godoc
// @Summary Deactivate users by number
// @Description Body is a newline separated list of user numbers.
// @Tags Users
// @Accept plain
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /users/bulk [delete]
func (h *UserHandler) BulkDelete(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	if ct := c.ContentType(); ct != "" && ct != "text/plain" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "body must be text/plain"))
		return
	}
	n, err := h.bulk.Deactivate(c.Request.Context(), actor, c.Request.Body, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"deactivated": n}, nil)
}

// UserTypes godoc
// @Summary List user types
// @Tags Users
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /users/types [get]
func (h *UserHandler) UserTypes(c *gin.Context) {
	types, err := h.reference.UserTypes(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, types, nil)
}

// Departments godoc
// @Summary List departments
// @Tags Users
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /users/departments [get]
func (h *UserHandler) Departments(c *gin.Context) {
	departments, err := h.reference.Departments(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, departments, nil)
}
