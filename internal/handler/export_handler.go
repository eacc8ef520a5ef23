package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/room-reservation-api/internal/models"
	"github.com/noah-isme/room-reservation-api/internal/policy"
	"github.com/noah-isme/room-reservation-api/internal/service"
	"github.com/noah-isme/room-reservation-api/pkg/response"
)

type exportService interface {
	Export(ctx context.Context, actor policy.Actor, req service.ExportRequest) (*models.ExportFile, error)
	Open(token string) (*service.ExportDownload, error)
}

// ExportHandler renders reservation exports and serves the signed downloads.
type ExportHandler struct {
	service exportService
}

// NewExportHandler constructs an ExportHandler.
func NewExportHandler(svc exportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// Export godoc
// @Summary Export reservations
// @Tags Reservations
// @Accept json
// @Produce json
// @Param payload body service.ExportRequest true "Export request"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /reservations/export [post]
func (h *ExportHandler) Export(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req service.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid export request"))
		return
	}
	file, err := h.service.Export(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, file)
}

// Download godoc
// @Summary Download an export
// @Tags Reservations
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /exports/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	download, err := h.service.Open(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close() //nolint:errcheck

	info, err := download.File.Stat()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Stream(c, download.Filename, download.ContentType, info.Size(), download.File)
}
