package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
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

type exportServiceMock struct {
	lastReq service.ExportRequest
	path    string
}

func (m *exportServiceMock) Export(_ context.Context, actor policy.Actor, req service.ExportRequest) (*models.ExportFile, error) {
	if !actor.Can(policy.Export) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can export reservations")
	}
	m.lastReq = req
	return &models.ExportFile{ID: "exp-1", Format: req.Format, Rows: 3, DownloadURL: "/api/v1/exports/token", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (m *exportServiceMock) Open(token string) (*service.ExportDownload, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "download link is invalid or expired")
	}
	f, err := os.Open(m.path)
	if err != nil {
		return nil, err
	}
	return &service.ExportDownload{File: f, Filename: "reservations.csv", ContentType: "text/csv; charset=utf-8"}, nil
}

func TestExportHandlerExport(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &exportServiceMock{}
	handler := NewExportHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/reservations/export", bytes.NewBufferString(`{"format":"xlsx","from":"2024-01-01","to":"2024-01-31"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", UserType: models.UserTypeAdmin})

	handler.Export(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "xlsx", mockSvc.lastReq.Format)
	assert.Contains(t, w.Body.String(), "download_url")

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	req, _ = http.NewRequest(http.MethodPost, "/reservations/export", bytes.NewBufferString(`{"format":"csv"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", UserType: models.UserTypeFaculty})

	handler.Export(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestExportHandlerDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	path := filepath.Join(t.TempDir(), "reservations.csv")
	require.NoError(t, os.WriteFile(path, []byte("ID,Room\nr1,Room A\n"), 0o600))
	handler := NewExportHandler(&exportServiceMock{path: path})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/exports/good", nil)
	c.Params = gin.Params{{Key: "token", Value: "good"}}

	handler.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ID,Room\nr1,Room A\n", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="reservations.csv"`)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestExportHandlerDownloadRejectsBadToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewExportHandler(&exportServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/exports/forged", nil)
	c.Params = gin.Params{{Key: "token", Value: "forged"}}

	handler.Download(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
