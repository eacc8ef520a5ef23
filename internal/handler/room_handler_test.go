package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/room-reservation-api/internal/middleware"
	"github.com/noah-isme/room-reservation-api/internal/models"
	"github.com/noah-isme/room-reservation-api/internal/policy"
	"github.com/noah-isme/room-reservation-api/internal/service"
	appErrors "github.com/noah-isme/room-reservation-api/pkg/errors"
)

type roomServiceMock struct {
	lastFilter models.RoomFilter
	lastUpload service.ImageUpload
	uploaded   string
	createErr  error
}

func (m *roomServiceMock) List(_ context.Context, filter models.RoomFilter) ([]models.Room, *models.Pagination, error) {
	m.lastFilter = filter
	return []models.Room{{ID: "room-1", Name: "Room A"}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (m *roomServiceMock) Get(_ context.Context, id string) (*models.Room, error) {
	return &models.Room{ID: id}, nil
}

func (m *roomServiceMock) Create(_ context.Context, actor policy.Actor, req service.RoomRequest, _ service.RequestMeta) (*models.Room, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	if !actor.Can(policy.ManageRooms) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can manage rooms")
	}
	return &models.Room{ID: "room-2", Name: *req.Name}, nil
}

func (m *roomServiceMock) Update(_ context.Context, _ policy.Actor, id string, _ service.RoomRequest, _ service.RequestMeta) (*models.Room, error) {
	return &models.Room{ID: id}, nil
}

func (m *roomServiceMock) Delete(context.Context, policy.Actor, string, service.RequestMeta) error {
	return nil
}

func (m *roomServiceMock) AddImage(_ context.Context, _ policy.Actor, roomID string, upload service.ImageUpload) (*models.RoomImage, error) {
	m.lastUpload = upload
	body, _ := io.ReadAll(upload.Body)
	m.uploaded = string(body)
	return &models.RoomImage{ID: "img-1", RoomID: roomID, ImageURL: "http://media/rooms/" + roomID + "/img-1.png"}, nil
}

func (m *roomServiceMock) DeleteImage(context.Context, policy.Actor, string, string) error {
	return nil
}

type availabilityMock struct {
	slots []models.Slot
	err   error
}

func (m *availabilityMock) Availability(context.Context, string, string) ([]models.Slot, error) {
	return m.slots, m.err
}

func (m *availabilityMock) Timezone() string { return "Asia/Seoul" }

func TestRoomHandlerCreateRequiresAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRoomHandler(&roomServiceMock{}, &availabilityMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/rooms", bytes.NewBufferString(`{"name":"Room B"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", UserType: models.UserTypeFaculty})

	handler.Create(c)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	req, _ = http.NewRequest(http.MethodPost, "/rooms", bytes.NewBufferString(`{"name":"Room B"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", UserType: models.UserTypeAdmin})

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "Room B")
}

func TestRoomHandlerListSearch(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &roomServiceMock{}
	handler := NewRoomHandler(mockSvc, &availabilityMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/rooms?search=lab&page_size=5", nil)

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "lab", mockSvc.lastFilter.Search)
	assert.Equal(t, 5, mockSvc.lastFilter.PageSize)
}

func TestRoomHandlerAddImage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &roomServiceMock{}
	handler := NewRoomHandler(mockSvc, &availabilityMock{})

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="image"; filename="front.png"`)
	header.Set("Content-Type", "image/png")
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/rooms/room-1/images", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "room-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", UserType: models.UserTypeAdmin})

	handler.AddImage(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "front.png", mockSvc.lastUpload.Filename)
	assert.Equal(t, "image/png", mockSvc.lastUpload.ContentType)
	assert.Equal(t, "png-bytes", mockSvc.uploaded)
}

func TestRoomHandlerAddImageMissingFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRoomHandler(&roomServiceMock{}, &availabilityMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/rooms/room-1/images", bytes.NewBufferString(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", UserType: models.UserTypeAdmin})

	handler.AddImage(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRoomHandlerAvailabilityMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	start := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	handler := NewRoomHandler(&roomServiceMock{}, &availabilityMock{slots: []models.Slot{
		{StartAt: start, EndAt: start.Add(30 * time.Minute), Status: models.StatusAvailable},
	}})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/rooms/room-1/availability?date=2024-01-10", nil)
	c.Params = gin.Params{{Key: "id", Value: "room-1"}}
	middleware.WithResponseMeta()(c)

	handler.Availability(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"timezone":"Asia/Seoul"`)
	assert.Contains(t, w.Body.String(), `"date":"2024-01-10"`)
	assert.Contains(t, w.Body.String(), "AVAILABLE")
}

func TestRoomHandlerAvailabilityError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRoomHandler(&roomServiceMock{}, &availabilityMock{err: appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/rooms/room-1/availability?date=bad", nil)

	handler.Availability(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
