package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/room-reservation-api/internal/models"
	"github.com/noah-isme/room-reservation-api/internal/policy"
	"github.com/noah-isme/room-reservation-api/internal/service"
	appErrors "github.com/noah-isme/room-reservation-api/pkg/errors"
	"github.com/noah-isme/room-reservation-api/pkg/response"
)

type reservationService interface {
	Create(ctx context.Context, actor policy.Actor, req service.CreateReservationRequest, meta service.RequestMeta) (*models.Reservation, error)
	Update(ctx context.Context, actor policy.Actor, id string, req service.UpdateReservationRequest, meta service.RequestMeta) (*models.Reservation, error)
	Cancel(ctx context.Context, actor policy.Actor, id string, meta service.RequestMeta) error
	CheckIn(ctx context.Context, actor policy.Actor, id string, req service.CheckInRequest) (*models.Reservation, error)
	Get(ctx context.Context, id string) (*models.Reservation, error)
	List(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, *models.Pagination, error)
	ListMine(ctx context.Context, actor policy.Actor, filter models.ReservationFilter) ([]models.Reservation, *models.Pagination, error)
	ParseDate(raw string) (time.Time, error)
}

// ReservationHandler exposes booking endpoints.
type ReservationHandler struct {
	service reservationService
}

// NewReservationHandler constructs a ReservationHandler.
func NewReservationHandler(svc reservationService) *ReservationHandler {
	return &ReservationHandler{service: svc}
}

func (h *ReservationHandler) filter(c *gin.Context) (models.ReservationFilter, error) {
	filter := models.ReservationFilter{
		RoomID:   c.Query("room"),
		BookerID: c.Query("booker"),
	}
	filter.Page, filter.PageSize = pageParams(c)
	if raw := c.Query("date"); raw != "" {
		date, err := h.service.ParseDate(raw)
		if err != nil {
			return filter, err
		}
		filter.Date = &date
	}
	if raw := c.Query("status"); raw != "" {
		status := models.ReservationStatus(strings.ToUpper(raw))
		filter.Status = &status
	}
	if include := boolQuery(c, "include_cancelled"); include != nil {
		filter.IncludeCancelled = *include
	}
	return filter, nil
}

// List godoc
// @Summary List reservations
// @Description Ordered by date and start time. Cancelled reservations are hidden unless requested.
// @Tags Reservations
// @Produce json
// @Param date query string false "Date (YYYY-MM-DD)"
// @Param room query string false "Room ID"
// @Param booker query string false "Booker user ID"
// @Param status query string false "RESERVED, BLOCKED or CANCELLED"
// @Param include_cancelled query bool false "Include cancelled reservations"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /reservations [get]
func (h *ReservationHandler) List(c *gin.Context) {
	filter, err := h.filter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	items, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Mine godoc
// @Summary List my reservations
// @Description Reservations where the caller is the booker or a companion.
// @Tags Reservations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /my-reservations [get]
func (h *ReservationHandler) Mine(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	filter, err := h.filter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	items, pagination, err := h.service.ListMine(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Create godoc
// @Summary Book a room
// @Tags Reservations
// @Accept json
// @Produce json
// @Param payload body service.CreateReservationRequest true "Reservation payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /reservations [post]
func (h *ReservationHandler) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req service.CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid reservation payload"))
		return
	}
	res, err := h.service.Create(c.Request.Context(), actor, req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"message": "complete", "reservation": res})
}

// Get godoc
// @Summary Get reservation
// @Tags Reservations
// @Produce json
// @Param id path string true "Reservation ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reservations/{id} [get]
func (h *ReservationHandler) Get(c *gin.Context) {
	res, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Update godoc
// @Summary Update reservation
// @Description Owner or administrator. Time or room changes re-run the conflict check.
// @Tags Reservations
// @Accept json
// @Produce json
// @Param id path string true "Reservation ID"
// @Param payload body service.UpdateReservationRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /reservations/{id} [patch]
func (h *ReservationHandler) Update(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req service.UpdateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid reservation payload"))
		return
	}
	res, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Cancel godoc
// @Summary Cancel reservation
// @Tags Reservations
// @Param id path string true "Reservation ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reservations/{id} [delete]
func (h *ReservationHandler) Cancel(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	if err := h.service.Cancel(c.Request.Context(), actor, c.Param("id"), requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CheckIn godoc
// @Summary Check in at the room
// @Description Allowed within ten minutes of the start time and close to the building.
// @Tags Reservations
// @Produce json
// @Param id path string true "Reservation ID"
// @Param latitude query number true "Latitude"
// @Param longitude query number true "Longitude"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /reservations/{id}/authenticate-location [post]
func (h *ReservationHandler) CheckIn(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	if c.Query("latitude") == "" || c.Query("longitude") == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "latitude and longitude are required"))
		return
	}
	var req service.CheckInRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, bindError(err, "invalid coordinates"))
		return
	}
	res, err := h.service.CheckIn(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}
