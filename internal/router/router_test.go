package router

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/room-reservation-api/internal/handler"
	"github.com/noah-isme/room-reservation-api/internal/middleware"
	"github.com/noah-isme/room-reservation-api/internal/models"
	"github.com/noah-isme/room-reservation-api/internal/service"
	"github.com/noah-isme/room-reservation-api/pkg/config"
	appErrors "github.com/noah-isme/room-reservation-api/pkg/errors"
)

type staticTokens map[string]*models.JWTClaims

func (s staticTokens) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.ErrUnauthorized
}

func testEngine(env string) http.Handler {
	return testEngineWithLimiter(env, nil)
}

func testEngineWithLimiter(env string, limiter *middleware.IPRateLimiter) http.Handler {
	tokens := staticTokens{
		"admin-token":   {UserID: "admin", UserType: models.UserTypeAdmin},
		"student-token": {UserID: "u1", UserType: models.UserTypeUndergraduate},
	}
	ready := handler.PingFunc(func(context.Context) error { return nil })
	return New(Handlers{
		Auth:        handler.NewAuthHandler(nil, nil),
		User:        handler.NewUserHandler(nil, nil, nil),
		Room:        handler.NewRoomHandler(nil, nil),
		Reservation: handler.NewReservationHandler(nil),
		Export:      handler.NewExportHandler(nil),
		Calendar:    handler.NewCalendarHandler(nil),
		Board:       handler.NewBoardHandler(nil, nil),
		Metrics:     handler.NewMetricsHandler(service.NewMetricsService(), map[string]handler.Pinger{"database": ready}),
	}, Options{
		Env:          env,
		APIPrefix:    "/api/v1",
		Tokens:       tokens,
		LoginLimiter: limiter,
	})
}

func serve(h http.Handler, method, target, token string, body []byte) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, target, bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestProbesAreOpen(t *testing.T) {
	engine := testEngine(config.EnvDevelopment)

	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/health", "", nil).Code)
	ready := serve(engine, http.MethodGet, "/ready", "", nil)
	require.Equal(t, http.StatusOK, ready.Code)
	assert.Contains(t, ready.Body.String(), `"database":"ok"`)
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/metrics", "", nil).Code)
}

func TestSecuredRoutesRequireToken(t *testing.T) {
	engine := testEngine(config.EnvDevelopment)

	for _, target := range []string{"/api/v1/reservations", "/api/v1/rooms", "/api/v1/users/me", "/api/v1/notices"} {
		w := serve(engine, http.MethodGet, target, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, target)
	}
	w := serve(engine, http.MethodGet, "/api/v1/rooms", "forged", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminRoutesRejectMembers(t *testing.T) {
	engine := testEngine(config.EnvDevelopment)

	cases := []struct {
		method string
		target string
	}{
		{http.MethodPost, "/api/v1/rooms"},
		{http.MethodDelete, "/api/v1/rooms/room-1"},
		{http.MethodPost, "/api/v1/rooms/room-1/images"},
		{http.MethodPost, "/api/v1/users"},
		{http.MethodPost, "/api/v1/users/bulk"},
		{http.MethodDelete, "/api/v1/users/bulk"},
		{http.MethodDelete, "/api/v1/users/u2"},
		{http.MethodPost, "/api/v1/notices"},
		{http.MethodPost, "/api/v1/reservations/export"},
	}
	for _, tc := range cases {
		w := serve(engine, tc.method, tc.target, "student-token", []byte(`{}`))
		assert.Equal(t, http.StatusForbidden, w.Code, tc.method+" "+tc.target)
	}
}

func TestDocsHiddenInProduction(t *testing.T) {
	dev := testEngine(config.EnvDevelopment)
	prod := testEngine(config.EnvProduction)

	assert.NotEqual(t, http.StatusNotFound, serve(dev, http.MethodGet, "/docs/index.html", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, serve(prod, http.MethodGet, "/docs/index.html", "", nil).Code)
}

func TestLoginIsRateLimited(t *testing.T) {
	engine := testEngineWithLimiter(config.EnvDevelopment, middleware.NewIPRateLimiter(1, 1))

	first := serve(engine, http.MethodPost, "/api/v1/users/login", "", []byte(`{`))
	assert.Equal(t, http.StatusBadRequest, first.Code)
	second := serve(engine, http.MethodPost, "/api/v1/users/login", "", []byte(`{`))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
