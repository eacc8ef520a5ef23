package response

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	appErrors "github.com/noah-isme/room-reservation-api/pkg/errors"
)

func testContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func TestErrorEnvelopeCarriesDetails(t *testing.T) {
	c, w := testContext()
	Error(c, appErrors.ErrValidation.WithDetails(map[string]string{"date": "required"}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"details":{"date":"required"}`)
	assert.Empty(t, c.Errors)
}

func TestErrorRecordsServerFailures(t *testing.T) {
	c, w := testContext()
	Error(c, errors.New("db down"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Len(t, c.Errors, 1)
	assert.NotContains(t, w.Body.String(), "db down")
}

func TestStreamSetsDisposition(t *testing.T) {
	c, w := testContext()
	Stream(c, "회의실.csv", "text/csv", 3, strings.NewReader("a,b"))

	assert.Equal(t, "a,b", w.Body.String())
	assert.Equal(t, `attachment; filename="___.csv"; filename*=UTF-8''%ED%9A%8C%EC%9D%98%EC%8B%A4.csv`, w.Header().Get("Content-Disposition"))
}

func TestAttachmentASCIIName(t *testing.T) {
	c, w := testContext()
	Attachment(c, http.StatusCreated, "result.csv", "text/csv", []byte("x"))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, `attachment; filename="result.csv"`, w.Header().Get("Content-Disposition"))
}
