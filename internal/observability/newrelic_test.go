package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akave-ai/nbstreamer/internal/config"
)

func TestNewApplication_Disabled(t *testing.T) {
	app, err := NewApplication(config.DefaultObservabilityConfig(), zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, app)
	Shutdown(app)
}

func TestMiddleware_NilAppPassesThrough(t *testing.T) {
	e := echo.New()
	e.Use(Middleware(nil))
	e.GET("/health", func(c echo.Context) error {
		AddAttributes(c, map[string]string{"tenant": "acme"})
		return c.String(http.StatusOK, "ok")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
