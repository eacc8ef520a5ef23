package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/room-reservation-api/internal/models"
	"github.com/noah-isme/room-reservation-api/internal/policy"
	appErrors "github.com/noah-isme/room-reservation-api/pkg/errors"
)

type noticeRepository interface {
	List(ctx context.Context, filter models.NoticeFilter) ([]models.Notice, int, error)
	FindByID(ctx context.Context, id string) (*models.Notice, error)
	Create(ctx context.Context, n *models.Notice) error
	Update(ctx context.Context, n *models.Notice) error
	Delete(ctx context.Context, id string) error
}

// NoticeRequest creates or replaces a notice.
type NoticeRequest struct {
	Popup   bool      `json:"popup"`
	StartAt time.Time `json:"start" validate:"required"`
	EndAt   time.Time `json:"end" validate:"required,gtfield=StartAt"`
	Title   string    `json:"title" validate:"required,max=63"`
	Content string    `json:"content" validate:"required"`
}

// NoticeQuery lists notices. Active keeps notices whose window contains the current time.
type NoticeQuery struct {
	Active   bool
	Popup    *bool
	Page     int
	PageSize int
}

type noticePage struct {
	Items []models.Notice `json:"items"`
	Total int             `json:"total"`
}

// NoticeService serves the announcement board. Lists are cached and dropped on every mutation.
type NoticeService struct {
	repo      noticeRepository
	audit     auditRecorder
	cache     *CacheService
	ttl       time.Duration
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewNoticeService constructs a NoticeService.
func NewNoticeService(repo noticeRepository, audit auditRecorder, cache *CacheService, ttl time.Duration, validate *validator.Validate, logger *zap.Logger) *NoticeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &NoticeService{repo: repo, audit: audit, cache: cache, ttl: ttl, validator: validate, logger: logger, now: time.Now}
}

func noticeCacheKey(q NoticeQuery) string {
	popup := "any"
	if q.Popup != nil {
		popup = fmt.Sprint(*q.Popup)
	}
	return fmt.Sprintf("notices:active=%t:popup=%s:page=%d:size=%d", q.Active, popup, q.Page, q.PageSize)
}

// List returns notices newest first.
func (s *NoticeService) List(ctx context.Context, q NoticeQuery) ([]models.Notice, *models.Pagination, error) {
	page, err := remember(ctx, s.cache, noticeCacheKey(q), s.ttl, func() (noticePage, error) {
		filter := models.NoticeFilter{Popup: q.Popup, Page: q.Page, PageSize: q.PageSize}
		if q.Active {
			now := s.now().UTC()
			filter.ActiveAt = &now
		}
		items, total, err := s.repo.List(ctx, filter)
		return noticePage{Items: items, Total: total}, err
	})
	if err != nil {
		return nil, nil, internalError(err, "failed to list notices")
	}
	return page.Items, newPagination(q.Page, q.PageSize, page.Total), nil
}

// Get returns one notice.
func (s *NoticeService) Get(ctx context.Context, id string) (*models.Notice, error) {
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "notice not found", "failed to load notice")
	}
	return n, nil
}

// Create publishes a notice.
func (s *NoticeService) Create(ctx context.Context, actor policy.Actor, req NoticeRequest, meta RequestMeta) (*models.Notice, error) {
	if !actor.Can(policy.ManageNotices) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can manage notices")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid notice payload")
	}
	n := &models.Notice{CreatedBy: actor.ID}
	applyNotice(n, req)
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, internalError(err, "failed to create notice")
	}
	s.changed(ctx, actor, n.ID, "create", meta)
	return n, nil
}

// Update replaces a notice.
func (s *NoticeService) Update(ctx context.Context, actor policy.Actor, id string, req NoticeRequest, meta RequestMeta) (*models.Notice, error) {
	if !actor.Can(policy.ManageNotices) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can manage notices")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid notice payload")
	}
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "notice not found", "failed to load notice")
	}
	applyNotice(n, req)
	if err := s.repo.Update(ctx, n); err != nil {
		return nil, lookupError(err, "notice not found", "failed to update notice")
	}
	s.changed(ctx, actor, n.ID, "update", meta)
	return n, nil
}

// Delete removes a notice.
func (s *NoticeService) Delete(ctx context.Context, actor policy.Actor, id string, meta RequestMeta) error {
	if !actor.Can(policy.ManageNotices) {
		return appErrors.Clone(appErrors.ErrForbidden, "only administrators can manage notices")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return lookupError(err, "notice not found", "failed to delete notice")
	}
	s.changed(ctx, actor, id, "delete", meta)
	return nil
}

func applyNotice(n *models.Notice, req NoticeRequest) {
	n.Popup = req.Popup
	n.StartAt = req.StartAt.UTC()
	n.EndAt = req.EndAt.UTC()
	n.Title = strings.TrimSpace(req.Title)
	n.Content = req.Content
}

func (s *NoticeService) changed(ctx context.Context, actor policy.Actor, id, op string, meta RequestMeta) {
	_ = s.cache.Invalidate(ctx, cacheKeyNoticesAll)
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.ID,
		Action:     models.AuditActionNoticeChange,
		Resource:   "notices",
		ResourceID: &id,
		NewValues:  []byte(fmt.Sprintf(`{"operation":%q}`, op)),
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record notice audit log", zap.String("notice_id", id), zap.Error(err))
	}
}

type reportRepository interface {
	List(ctx context.Context, filter models.ReportFilter) ([]models.Report, int, error)
	FindByID(ctx context.Context, id string) (*models.Report, error)
	Create(ctx context.Context, rp *models.Report) error
	Update(ctx context.Context, rp *models.Report) error
	Delete(ctx context.Context, id string) error
	ListComments(ctx context.Context, reportID string) ([]models.Comment, error)
	FindComment(ctx context.Context, id string) (*models.Comment, error)
	CreateComment(ctx context.Context, c *models.Comment) error
	UpdateComment(ctx context.Context, c *models.Comment) error
	DeleteComment(ctx context.Context, id string) error
}

// ReportRequest files or edits a report.
type ReportRequest struct {
	Category models.ReportCategory `json:"category" validate:"required,oneof=IMPROVEMENT INQUIRY"`
	Title    string                `json:"title" validate:"required,max=64"`
	Content  string                `json:"content" validate:"required"`
}

// CommentRequest writes a comment.
type CommentRequest struct {
	Content string `json:"content" validate:"required,max=300"`
}

// ReportService handles user feedback. Members see only their own reports; admins see all.
type ReportService struct {
	repo      reportRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewReportService constructs a ReportService.
func NewReportService(repo reportRepository, validate *validator.Validate, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ReportService{repo: repo, validator: validate, logger: logger}
}

// List returns the reports visible to actor.
func (s *ReportService) List(ctx context.Context, actor policy.Actor, filter models.ReportFilter) ([]models.Report, *models.Pagination, error) {
	if !actor.IsAdmin() {
		filter.ReporterID = actor.ID
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list reports")
	}
	return items, newPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a report visible to actor. Foreign reports read as missing.
func (s *ReportService) Get(ctx context.Context, actor policy.Actor, id string) (*models.Report, error) {
	rp, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "report not found", "failed to load report")
	}
	if rp.ReporterID != actor.ID && !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
	}
	return rp, nil
}

// Create files a report as actor.
func (s *ReportService) Create(ctx context.Context, actor policy.Actor, req ReportRequest) (*models.Report, error) {
	if !actor.Can(policy.Create) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to file reports")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid report payload")
	}
	rp := &models.Report{ReporterID: actor.ID, Category: req.Category, Title: strings.TrimSpace(req.Title), Content: req.Content}
	if err := s.repo.Create(ctx, rp); err != nil {
		return nil, internalError(err, "failed to create report")
	}
	return rp, nil
}

// Update edits a report owned by actor, or any report for admins.
func (s *ReportService) Update(ctx context.Context, actor policy.Actor, id string, req ReportRequest) (*models.Report, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid report payload")
	}
	rp, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanModify(actor, rp.ReporterID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot modify this report")
	}
	rp.Category = req.Category
	rp.Title = strings.TrimSpace(req.Title)
	rp.Content = req.Content
	if err := s.repo.Update(ctx, rp); err != nil {
		return nil, lookupError(err, "report not found", "failed to update report")
	}
	return rp, nil
}

// Delete removes a report and its comments.
func (s *ReportService) Delete(ctx context.Context, actor policy.Actor, id string) error {
	rp, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if !policy.CanDelete(actor, rp.ReporterID) {
		return appErrors.Clone(appErrors.ErrForbidden, "cannot delete this report")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return lookupError(err, "report not found", "failed to delete report")
	}
	return nil
}

// Comments lists the comments on a report visible to actor.
func (s *ReportService) Comments(ctx context.Context, actor policy.Actor, reportID string) ([]models.Comment, error) {
	if _, err := s.Get(ctx, actor, reportID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListComments(ctx, reportID)
	if err != nil {
		return nil, internalError(err, "failed to list comments")
	}
	return items, nil
}

// AddComment replies to a report visible to actor.
func (s *ReportService) AddComment(ctx context.Context, actor policy.Actor, reportID string, req CommentRequest) (*models.Comment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid comment payload")
	}
	if _, err := s.Get(ctx, actor, reportID); err != nil {
		return nil, err
	}
	c := &models.Comment{ReportID: reportID, AuthorID: actor.ID, Content: req.Content}
	if err := s.repo.CreateComment(ctx, c); err != nil {
		return nil, internalError(err, "failed to create comment")
	}
	return c, nil
}

// UpdateComment edits a comment owned by actor, or any comment for admins.
func (s *ReportService) UpdateComment(ctx context.Context, actor policy.Actor, id string, req CommentRequest) (*models.Comment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid comment payload")
	}
	c, err := s.repo.FindComment(ctx, id)
	if err != nil {
		return nil, lookupError(err, "comment not found", "failed to load comment")
	}
	if !policy.CanModify(actor, c.AuthorID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot modify this comment")
	}
	c.Content = req.Content
	if err := s.repo.UpdateComment(ctx, c); err != nil {
		return nil, lookupError(err, "comment not found", "failed to update comment")
	}
	return c, nil
}

// DeleteComment removes a comment owned by actor, or any comment for admins.
func (s *ReportService) DeleteComment(ctx context.Context, actor policy.Actor, id string) error {
	c, err := s.repo.FindComment(ctx, id)
	if err != nil {
		return lookupError(err, "comment not found", "failed to load comment")
	}
	if !policy.CanDelete(actor, c.AuthorID) {
		return appErrors.Clone(appErrors.ErrForbidden, "cannot delete this comment")
	}
	if err := s.repo.DeleteComment(ctx, id); err != nil {
		return lookupError(err, "comment not found", "failed to delete comment")
	}
	return nil
}
