package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/akave-ai/nbstreamer/internal/response"
)

// handleError renders every error as the APIError envelope.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *response.HTTPError
	if errors.As(err, &apiErr) {
		s.write(c, response.FromHTTPError(c, apiErr))
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		switch he.Code {
		case http.StatusNotFound:
			s.write(c, response.NotFound(c, response.CodeEndpointNotFound, "Endpoint not found", map[string]any{
				"available_endpoints":   s.availableEndpoints(),
				"configured_tenants":    s.deps.Allowed.List(),
				"multi_tenancy_enabled": s.Config.Tenants.RequirePath,
			}))
		case http.StatusMethodNotAllowed:
			s.write(c, response.Error(c, he.Code, response.CodeMethodNotAllowed, "Method not allowed",
				map[string]any{"method": c.Request().Method, "path": c.Request().URL.Path}))
		case http.StatusRequestEntityTooLarge:
			s.write(c, response.Error(c, he.Code, response.CodePayloadTooLarge, "Request body too large",
				map[string]any{"limit": s.Config.Server.BodyLimit}))
		default:
			s.write(c, response.Error(c, he.Code, statusCode(he.Code), fmt.Sprint(he.Message), nil))
		}
		return
	}

	s.log.Error().Err(err).Str("path", c.Request().URL.Path).Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).Msg("unhandled error")
	s.write(c, response.InternalError(c, "Internal server error", err))
}

func (s *Server) write(c echo.Context, err error) {
	if err != nil {
		s.log.Error().Err(err).Msg("write error response")
	}
}

// statusCode turns "Service Unavailable" into SERVICE_UNAVAILABLE.
func statusCode(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return response.CodeInternalError
	}
	return strings.ToUpper(strings.ReplaceAll(text, " ", "_"))
}
