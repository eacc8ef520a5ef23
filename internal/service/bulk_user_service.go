package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
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

var bulkUserColumns = []string{"user_no", "password", "name", "email", "user_type", "department"}

type bulkUserRepository interface {
	FindByUserNos(ctx context.Context, userNos []string) ([]models.User, error)
	BulkCreate(ctx context.Context, users []*models.User) error
	DeactivateByUserNos(ctx context.Context, userNos []string) (int64, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type departmentLister interface {
	ListDepartments(ctx context.Context) ([]models.Department, error)
}

type bulkUserRow struct {
	UserNo     string          `validate:"required,max=45"`
	Password   string          `validate:"required,min=8,max=128"`
	Name       string          `validate:"required,max=45"`
	Email      string          `validate:"required,email"`
	UserType   models.UserType `validate:"required,oneof=ADMIN FACULTY POSTGRADUATE UNDERGRADUATE"`
	Department string
}

// BulkUserResult is the CSV echo of an import plus whether the users were stored.
type BulkUserResult struct {
	Created int
	CSV     []byte
}

// BulkUserService imports and removes users in batches.
type BulkUserService struct {
	repo        bulkUserRepository
	departments departmentLister
	validator   *validator.Validate
	logger      *zap.Logger
	hashCost    int
}

// NewBulkUserService wires the bulk import service.
func NewBulkUserService(repo bulkUserRepository, departments departmentLister, validate *validator.Validate, logger *zap.Logger) *BulkUserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &BulkUserService{repo: repo, departments: departments, validator: validate, logger: logger, hashCost: bcrypt.DefaultCost}
}

// Import reads a CSV of users. Every row is checked before anything is written: when any row
// fails, the echoed CSV carries the reasons in the user_no_duplicated and errors columns and no
// user is created.
func (s *BulkUserService) Import(ctx context.Context, actor policy.Actor, r io.Reader, meta RequestMeta) (*BulkUserResult, error) {
	if !actor.Can(policy.ManageUsers) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can import users")
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, validationError(err, "malformed csv input")
	}
	if len(records) < 2 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "csv input has no user rows")
	}
	index, err := headerIndex(records[0])
	if err != nil {
		return nil, validationError(err, "csv header must contain "+strings.Join(bulkUserColumns, ","))
	}

	departments, err := s.departmentIndex(ctx)
	if err != nil {
		return nil, internalError(err, "failed to load departments")
	}

	rows := make([]bulkUserRow, 0, len(records)-1)
	seen := make(map[string]int)
	userNos := make([]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := bulkUserRow{
			UserNo:     field(rec, index, "user_no"),
			Password:   field(rec, index, "password"),
			Name:       field(rec, index, "name"),
			Email:      strings.ToLower(field(rec, index, "email")),
			UserType:   models.UserType(strings.ToUpper(field(rec, index, "user_type"))),
			Department: field(rec, index, "department"),
		}
		rows = append(rows, row)
		seen[row.UserNo]++
		userNos = append(userNos, row.UserNo)
	}

	existing, err := s.repo.FindByUserNos(ctx, userNos)
	if err != nil {
		return nil, internalError(err, "failed to check existing users")
	}
	taken := make(map[string]struct{}, len(existing))
	for _, u := range existing {
		taken[u.UserNo] = struct{}{}
	}

	now := time.Now().UTC()
	users := make([]*models.User, 0, len(rows))
	duplicated := make([]string, len(rows))
	rowErrors := make([]string, len(rows))
	failed := false
	for i, row := range rows {
		var problems []string
		if seen[row.UserNo] > 1 {
			duplicated[i] = row.UserNo
			failed = true
		}
		if err := s.validator.Struct(row); err != nil {
			problems = append(problems, describeValidation(err)...)
		}
		if _, ok := taken[row.UserNo]; ok {
			problems = append(problems, "user_no already exists")
		}
		deptID, ok := resolveDepartment(row.Department, departments)
		if !ok {
			problems = append(problems, "unknown department "+row.Department)
		}
		if len(problems) > 0 {
			rowErrors[i] = strings.Join(problems, "; ")
			failed = true
			continue
		}
		users = append(users, &models.User{
			ID:           uuid.NewString(),
			UserNo:       row.UserNo,
			Name:         row.Name,
			Email:        row.Email,
			PasswordHash: row.Password,
			UserType:     row.UserType,
			DepartmentID: deptID,
			Active:       true,
			DateJoined:   now,
			UpdatedAt:    now,
		})
	}

	result := &BulkUserResult{}
	if !failed {
		for _, u := range users {
			hash, err := bcrypt.GenerateFromPassword([]byte(u.PasswordHash), s.hashCost)
			if err != nil {
				return nil, internalError(err, "failed to hash password")
			}
			u.PasswordHash = string(hash)
		}
		if err := s.repo.BulkCreate(ctx, users); err != nil {
			return nil, internalError(err, "failed to create users")
		}
		result.Created = len(users)
		s.audit(ctx, actor, models.AuditActionUserBulkCreate, map[string]interface{}{"created": result.Created}, meta)
	}

	out, err := echoRows(rows, duplicated, rowErrors)
	if err != nil {
		return nil, internalError(err, "failed to render csv result")
	}
	result.CSV = out
	return result, nil
}

// Deactivate soft deletes every user number listed one per line.
func (s *BulkUserService) Deactivate(ctx context.Context, actor policy.Actor, r io.Reader, meta RequestMeta) (int64, error) {
	if !actor.Can(policy.ManageUsers) {
		return 0, appErrors.Clone(appErrors.ErrForbidden, "only administrators can delete users")
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return 0, validationError(err, "failed to read body")
	}
	var userNos []string
	for _, line := range strings.Split(string(raw), "\n") {
		if v := strings.TrimSpace(line); v != "" {
			userNos = append(userNos, v)
		}
	}
	if len(userNos) == 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "no user numbers supplied")
	}
	n, err := s.repo.DeactivateByUserNos(ctx, userNos)
	if err != nil {
		return 0, internalError(err, "failed to delete users")
	}
	s.audit(ctx, actor, models.AuditActionUserBulkDelete, map[string]interface{}{"requested": len(userNos), "deactivated": n}, meta)
	return n, nil
}

func (s *BulkUserService) departmentIndex(ctx context.Context) (map[string]int64, error) {
	index := make(map[string]int64)
	if s.departments == nil {
		return index, nil
	}
	list, err := s.departments.ListDepartments(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range list {
		index[strings.ToLower(d.Name)] = d.ID
		index[strconv.FormatInt(d.ID, 10)] = d.ID
	}
	return index, nil
}

func (s *BulkUserService) audit(ctx context.Context, actor policy.Actor, action string, values map[string]interface{}, meta RequestMeta) {
	payload, _ := json.Marshal(values)
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:    &actor.ID,
		Action:    action,
		Resource:  "users",
		NewValues: payload,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record bulk user audit log", zap.Error(err))
	}
}

func headerIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, col := range bulkUserColumns {
		if col == "department" {
			continue
		}
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}
	return index, nil
}

func field(rec []string, index map[string]int, name string) string {
	i, ok := index[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// resolveDepartment accepts a department id or name; an empty value means none.
func resolveDepartment(raw string, index map[string]int64) (*int64, bool) {
	if raw == "" {
		return nil, true
	}
	id, ok := index[strings.ToLower(raw)]
	if !ok {
		return nil, false
	}
	return &id, true
}

func describeValidation(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fmt.Sprintf("%s failed %s", toSnake(fe.Field()), fe.Tag()))
	}
	return out
}

func toSnake(name string) string {
	switch name {
	case "UserNo":
		return "user_no"
	case "UserType":
		return "user_type"
	}
	return strings.ToLower(name)
}

func echoRows(rows []bulkUserRow, duplicated, rowErrors []string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := append(append([]string{}, bulkUserColumns...), "user_no_duplicated", "errors")
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for i, row := range rows {
		// passwords are never echoed back
		rec := []string{row.UserNo, "", row.Name, row.Email, string(row.UserType), row.Department, duplicated[i], rowErrors[i]}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
