package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/room-reservation-api/internal/middleware"
	"github.com/noah-isme/room-reservation-api/internal/models"
	"github.com/noah-isme/room-reservation-api/internal/policy"
	"github.com/noah-isme/room-reservation-api/internal/service"
	"github.com/noah-isme/room-reservation-api/pkg/response"
)

const roomImageFormKey = "image"

type roomService interface {
	List(ctx context.Context, filter models.RoomFilter) ([]models.Room, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Room, error)
	Create(ctx context.Context, actor policy.Actor, req service.RoomRequest, meta service.RequestMeta) (*models.Room, error)
	Update(ctx context.Context, actor policy.Actor, id string, req service.RoomRequest, meta service.RequestMeta) (*models.Room, error)
	Delete(ctx context.Context, actor policy.Actor, id string, meta service.RequestMeta) error
	AddImage(ctx context.Context, actor policy.Actor, roomID string, upload service.ImageUpload) (*models.RoomImage, error)
	DeleteImage(ctx context.Context, actor policy.Actor, roomID, imageID string) error
}

type availabilityService interface {
	Availability(ctx context.Context, roomID, rawDate string) ([]models.Slot, error)
	Timezone() string
}

// RoomHandler serves the room catalog.
type RoomHandler struct {
	rooms        roomService
	availability availabilityService
}

// NewRoomHandler constructs a RoomHandler.
func NewRoomHandler(rooms roomService, availability availabilityService) *RoomHandler {
	return &RoomHandler{rooms: rooms, availability: availability}
}

// List godoc
// @Summary List rooms
// @Tags Rooms
// @Produce json
// @Param search query string false "Name search"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /rooms [get]
func (h *RoomHandler) List(c *gin.Context) {
	filter := models.RoomFilter{Search: c.Query("search")}
	filter.Page, filter.PageSize = pageParams(c)
	rooms, pagination, err := h.rooms.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rooms, pagination)
}

// Get godoc
// @Summary Get room
// @Tags Rooms
// @Produce json
// @Param id path string true "Room ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /rooms/{id} [get]
func (h *RoomHandler) Get(c *gin.Context) {
	room, err := h.rooms.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, room, nil)
}

// Create godoc
// @Summary Create room
// @Tags Rooms
// @Accept json
// @Produce json
// @Param payload body service.RoomRequest true "Room payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /rooms [post]
func (h *RoomHandler) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req service.RoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid room payload"))
		return
	}
	room, err := h.rooms.Create(c.Request.Context(), actor, req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, room)
}

// Update godoc
// @Summary Update room
// @Description PUT and PATCH both change only the fields present.
// @Tags Rooms
// @Accept json
// @Produce json
// @Param id path string true "Room ID"
// @Param payload body service.RoomRequest true "Room payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /rooms/{id} [patch]
func (h *RoomHandler) Update(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req service.RoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid room payload"))
		return
	}
	room, err := h.rooms.Update(c.Request.Context(), actor, c.Param("id"), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, room, nil)
}

// Delete godoc
// @Summary Delete room
// @Tags Rooms
// @Param id path string true "Room ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Router /rooms/{id} [delete]
func (h *RoomHandler) Delete(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	if err := h.rooms.Delete(c.Request.Context(), actor, c.Param("id"), requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AddImage godoc
// @Summary Upload room image
// @Tags Rooms
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Room ID"
// @Param image formData file true "Image"
// @Success 201 {object} response.Envelope
// @Router /rooms/{id}/images [post]
func (h *RoomHandler) AddImage(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	file, err := c.FormFile(roomImageFormKey)
	if err != nil {
		response.Error(c, bindError(err, roomImageFormKey+" file is required"))
		return
	}
	f, err := file.Open()
	if err != nil {
		response.Error(c, bindError(err, "failed to read upload"))
		return
	}
	defer f.Close() //nolint:errcheck

	img, err := h.rooms.AddImage(c.Request.Context(), actor, c.Param("id"), service.ImageUpload{
		Filename:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Size:        file.Size,
		Body:        f,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, img)
}

// DeleteImage godoc
// @Summary Delete room image
// @Tags Rooms
// @Param id path string true "Room ID"
// @Param imageId path string true "Image ID"
// @Success 204
// @Router /rooms/{id}/images/{imageId} [delete]
func (h *RoomHandler) DeleteImage(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	if err := h.rooms.DeleteImage(c.Request.Context(), actor, c.Param("id"), c.Param("imageId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Availability godoc
// @Summary Daily availability timeline
// @Tags Rooms
// @Produce json
// @Param id path string true "Room ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /rooms/{id}/availability [get]
func (h *RoomHandler) Availability(c *gin.Context) {
	slots, err := h.availability.Availability(c.Request.Context(), c.Param("id"), c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "timezone", h.availability.Timezone())
	middleware.SetMeta(c, "date", c.Query("date"))
	response.JSON(c, http.StatusOK, slots, nil, middleware.ExtractMeta(c))
}
