package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/emergent-company/erm/internal/config"
	"github.com/emergent-company/erm/pkg/apperror"
)

func newTestEcho() *echo.Echo {
	cfg := &config.Config{CORSOrigins: []string{"*"}, BodyLimit: "1K"}
	return NewEcho(EchoParams{Config: cfg, Log: slog.New(slog.NewTextHandler(io.Discard, nil))})
}

func TestNewEcho_ErrorEnvelope(t *testing.T) {
	e := newTestEcho()
	e.GET("/missing", func(c echo.Context) error {
		return apperror.NewNotFound("entity", "e1")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing/", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"not_found"`)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestNewEcho_BodyLimit(t *testing.T) {
	e := newTestEcho()
	e.POST("/echo", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(strings.Repeat("x", 4096)))
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestNewEcho_RecoversPanics(t *testing.T) {
	e := newTestEcho()
	e.GET("/boom", func(c echo.Context) error {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"internal_server_error"`)
}

func TestNewEcho_RuntimePanicAnswers500(t *testing.T) {
	e := newTestEcho()
	e.POST("/entities", func(c echo.Context) error {
		var n map[string]any
		_ = n["missing"].(string)
		return c.NoContent(http.StatusCreated)
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/entities", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"internal_error"`)
}
