package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/room-reservation-api/internal/models"
	"github.com/noah-isme/room-reservation-api/pkg/response"
)

type calendarLinkService interface {
	AuthURL(ctx context.Context, userID string) (string, error)
	Callback(ctx context.Context, state, code string) (*models.CalendarAccount, error)
	Unlink(ctx context.Context, userID string) error
}

// CalendarHandler links Google calendars to user accounts.
type CalendarHandler struct {
	service calendarLinkService
}

// NewCalendarHandler constructs a CalendarHandler.
func NewCalendarHandler(svc calendarLinkService) *CalendarHandler {
	return &CalendarHandler{service: svc}
}

// AuthURL godoc
// @Summary Google consent URL
// @Tags Calendar
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /calendar/oauth/url [get]
func (h *CalendarHandler) AuthURL(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	url, err := h.service.AuthURL(c.Request.Context(), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"url": url}, nil)
}

// Callback godoc
// @Summary OAuth callback
// @Description Called by Google after consent; the state identifies the user.
// @Tags Calendar
// @Produce json
// @Param state query string true "State"
// @Param code query string true "Authorization code"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /calendar/oauth/callback [get]
func (h *CalendarHandler) Callback(c *gin.Context) {
	acc, err := h.service.Callback(c.Request.Context(), c.Query("state"), c.Query("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, acc, nil)
}

// Unlink godoc
// @Summary Unlink Google calendar
// @Tags Calendar
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /calendar/account [delete]
func (h *CalendarHandler) Unlink(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	if err := h.service.Unlink(c.Request.Context(), actor.ID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
