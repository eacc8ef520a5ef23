package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/room-reservation-api/internal/models"
	"github.com/noah-isme/room-reservation-api/internal/policy"
	"github.com/noah-isme/room-reservation-api/internal/service"
	"github.com/noah-isme/room-reservation-api/pkg/response"
)

type noticeService interface {
	List(ctx context.Context, q service.NoticeQuery) ([]models.Notice, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Notice, error)
	Create(ctx context.Context, actor policy.Actor, req service.NoticeRequest, meta service.RequestMeta) (*models.Notice, error)
	Update(ctx context.Context, actor policy.Actor, id string, req service.NoticeRequest, meta service.RequestMeta) (*models.Notice, error)
	Delete(ctx context.Context, actor policy.Actor, id string, meta service.RequestMeta) error
}

type reportService interface {
	List(ctx context.Context, actor policy.Actor, filter models.ReportFilter) ([]models.Report, *models.Pagination, error)
	Get(ctx context.Context, actor policy.Actor, id string) (*models.Report, error)
	Create(ctx context.Context, actor policy.Actor, req service.ReportRequest) (*models.Report, error)
	Update(ctx context.Context, actor policy.Actor, id string, req service.ReportRequest) (*models.Report, error)
	Delete(ctx context.Context, actor policy.Actor, id string) error
	Comments(ctx context.Context, actor policy.Actor, reportID string) ([]models.Comment, error)
	AddComment(ctx context.Context, actor policy.Actor, reportID string, req service.CommentRequest) (*models.Comment, error)
	UpdateComment(ctx context.Context, actor policy.Actor, id string, req service.CommentRequest) (*models.Comment, error)
	DeleteComment(ctx context.Context, actor policy.Actor, id string) error
}

// BoardHandler serves notices, reports and report comments.
type BoardHandler struct {
	notices noticeService
	reports reportService
}

// NewBoardHandler constructs a BoardHandler.
func NewBoardHandler(notices noticeService, reports reportService) *BoardHandler {
	return &BoardHandler{notices: notices, reports: reports}
}

// ListNotices godoc
// @Summary List notices
// @Tags Board
// @Produce json
// @Param active query bool false "Only notices currently shown"
// @Param popup query bool false "Popup filter"
// @Success 200 {object} response.Envelope
// @Router /notices [get]
func (h *BoardHandler) ListNotices(c *gin.Context) {
	q := service.NoticeQuery{Popup: boolQuery(c, "popup")}
	if active := boolQuery(c, "active"); active != nil {
		q.Active = *active
	}
	q.Page, q.PageSize = pageParams(c)
	items, pagination, err := h.notices.List(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// GetNotice godoc
// @Summary Get notice
// @Tags Board
// @Produce json
// @Param id path string true "Notice ID"
// @Success 200 {object} response.Envelope
// @Router /notices/{id} [get]
func (h *BoardHandler) GetNotice(c *gin.Context) {
	n, err := h.notices.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, n, nil)
}

// CreateNotice godoc
// @Summary Create notice
// @Tags Board
// @Accept json
// @Produce json
// @Param payload body service.NoticeRequest true "Notice"
// @Success 201 {object} response.Envelope
// @Router /notices [post]
func (h *BoardHandler) CreateNotice(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req service.NoticeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid notice payload"))
		return
	}
	n, err := h.notices.Create(c.Request.Context(), actor, req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, n)
}

// UpdateNotice godoc
// @Summary Replace notice
// @Tags Board
// @Accept json
// @Produce json
// @Param id path string true "Notice ID"
// @Param payload body service.NoticeRequest true "Notice"
// @Success 200 {object} response.Envelope
// @Router /notices/{id} [put]
func (h *BoardHandler) UpdateNotice(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req service.NoticeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid notice payload"))
		return
	}
	n, err := h.notices.Update(c.Request.Context(), actor, c.Param("id"), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, n, nil)
}

// DeleteNotice godoc
// @Summary Delete notice
// @Tags Board
// @Param id path string true "Notice ID"
// @Success 204
// @Router /notices/{id} [delete]
func (h *BoardHandler) DeleteNotice(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	if err := h.notices.Delete(c.Request.Context(), actor, c.Param("id"), requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListReports godoc
// @Summary List reports
// @Description Members see their own reports, administrators see all.
// @Tags Board
// @Produce json
// @Param category query string false "IMPROVEMENT or INQUIRY"
// @Success 200 {object} response.Envelope
// @Router /reports [get]
func (h *BoardHandler) ListReports(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var filter models.ReportFilter
	filter.Page, filter.PageSize = pageParams(c)
	if raw := c.Query("category"); raw != "" {
		category := models.ReportCategory(strings.ToUpper(raw))
		filter.Category = &category
	}
	items, pagination, err := h.reports.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// GetReport godoc
// @Summary Get report
// @Tags Board
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Router /reports/{id} [get]
func (h *BoardHandler) GetReport(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	rp, err := h.reports.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rp, nil)
}

// CreateReport godoc
// @Summary File report
// @Tags Board
// @Accept json
// @Produce json
// @Param payload body service.ReportRequest true "Report"
// @Success 201 {object} response.Envelope
// @Router /reports [post]
func (h *BoardHandler) CreateReport(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req service.ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid report payload"))
		return
	}
	rp, err := h.reports.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rp)
}

// UpdateReport godoc
// @Summary Edit report
// @Tags Board
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body service.ReportRequest true "Report"
// @Success 200 {object} response.Envelope
// @Router /reports/{id} [put]
func (h *BoardHandler) UpdateReport(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req service.ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid report payload"))
		return
	}
	rp, err := h.reports.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rp, nil)
}

// DeleteReport godoc
// @Summary Delete report
// @Tags Board
// @Param id path string true "Report ID"
// @Success 204
// @Router /reports/{id} [delete]
func (h *BoardHandler) DeleteReport(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	if err := h.reports.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListComments godoc
// @Summary List report comments
// @Tags Board
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Router /reports/{id}/comments [get]
func (h *BoardHandler) ListComments(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	items, err := h.reports.Comments(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// AddComment godoc
// @Summary Comment on a report
// @Tags Board
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body service.CommentRequest true "Comment"
// @Success 201 {object} response.Envelope
// @Router /reports/{id}/comments [post]
func (h *BoardHandler) AddComment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req service.CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid comment payload"))
		return
	}
	comment, err := h.reports.AddComment(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, comment)
}

// UpdateComment godoc
// @Summary Edit comment
// @Tags Board
// @Accept json
// @Produce json
// @Param id path string true "Comment ID"
// @Param payload body service.CommentRequest true "Comment"
// @Success 200 {object} response.Envelope
// @Router /comments/{id} [put]
func (h *BoardHandler) UpdateComment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req service.CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid comment payload"))
		return
	}
	comment, err := h.reports.UpdateComment(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, comment, nil)
}

// DeleteComment godoc
// @Summary Delete comment
// @Tags Board
// @Param id path string true "Comment ID"
// @Success 204
// @Router /comments/{id} [delete]
func (h *BoardHandler) DeleteComment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	if err := h.reports.DeleteComment(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
