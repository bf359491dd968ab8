package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"IndexSDK/pkg/logger"
	"IndexSDK/pkg/reqid"
)

func newEcho(gen *reqid.Generator, seen *string) *echo.Echo {
	e := echo.New()
	e.Use(Recover(logger.Nop()))
	e.Use(RequestID(gen))
	e.Use(RequestLogging(logger.Nop()))
	e.GET("/ping", func(c echo.Context) error {
		*seen, _ = reqid.Inbound(c.Request().Context())
		return c.NoContent(http.StatusNoContent)
	})
	e.GET("/panic", func(echo.Context) error {
		panic("boom")
	})
	return e
}

func TestRequestIDPropagatesInbound(t *testing.T) {
	var seen string
	e := newEcho(reqid.NewGenerator("svc"), &seen)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(reqid.Header, "upstream-id")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, "upstream-id", seen)
	assert.Equal(t, "upstream-id", rec.Header().Get(reqid.Header))
}

func TestRequestIDGeneratesWhenMissing(t *testing.T) {
	var seen string
	e := newEcho(reqid.NewGenerator("svc"), &seen)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Regexp(t, `^svc_[0-9a-f]{32}$`, seen)
	assert.Equal(t, seen, rec.Header().Get(reqid.Header))
}

func TestRequestIDNilGenerator(t *testing.T) {
	var seen string
	e := newEcho(nil, &seen)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Empty(t, seen)
	assert.Empty(t, rec.Header().Get(reqid.Header))
}

func TestRecoverReturns500(t *testing.T) {
	var seen string
	e := newEcho(nil, &seen)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
