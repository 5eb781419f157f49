package response

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Stable error codes returned in APIError.Error.Code.
const (
	CodeInvalidTenantFormat    = "INVALID_TENANT_FORMAT"
	CodeInvalidTenant          = "INVALID_TENANT"
	CodeTenantMismatch         = "TENANT_MISMATCH"
	CodeMissingTenant          = "MISSING_TENANT"
	CodeInvalidJSON            = "INVALID_JSON"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeRateLimited            = "RATE_LIMITED"
	CodeGraylogUnreachable     = "GRAYLOG_UNREACHABLE"
	CodeLegacyEndpointDisabled = "LEGACY_ENDPOINT_DISABLED"
	CodeEndpointNotFound       = "ENDPOINT_NOT_FOUND"
	CodeMethodNotAllowed       = "METHOD_NOT_ALLOWED"
	CodePayloadTooLarge        = "PAYLOAD_TOO_LARGE"
	CodeDatabaseUnavailable    = "DATABASE_UNAVAILABLE"
	CodeArchiveUnavailable     = "ARCHIVE_UNAVAILABLE"
	CodeInternalError          = "INTERNAL_ERROR"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// APIResponse is the standard success response shape.
type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Path    string `json:"path"`
}

// ErrorBody carries a machine-readable code, a human message and specifics.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details"`
}

// APIError is the standard error response shape.
type APIError struct {
	Status string    `json:"status"`
	Error  ErrorBody `json:"error"`
	Path   string    `json:"path"`
}

// HTTPError is an error a handler can return; the server's error handler renders it as APIError.
type HTTPError struct {
	StatusCode int
	Code       string
	Message    string
	Details    any
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Code, e.Message)
}

// NewHTTPError builds an HTTPError. A nil details becomes an empty object.
func NewHTTPError(status int, code, message string, details any) *HTTPError {
	return &HTTPError{StatusCode: status, Code: code, Message: message, Details: details}
}

// pathFromContext returns the request path from Echo context.
func pathFromContext(c echo.Context) string {
	if c == nil || c.Request() == nil {
		return ""
	}
	return c.Request().URL.Path
}

// OK sends a 200 response with data.
func OK(c echo.Context, data any, message string) error {
	return c.JSON(http.StatusOK, APIResponse{
		Status:  statusSuccess,
		Message: message,
		Data:    data,
		Path:    pathFromContext(c),
	})
}

// Created sends a 201 response with data.
func Created(c echo.Context, data any, message string) error {
	return c.JSON(http.StatusCreated, APIResponse{
		Status:  statusSuccess,
		Message: message,
		Data:    data,
		Path:    pathFromContext(c),
	})
}

// Error sends a JSON error response using APIError.
func Error(c echo.Context, status int, code, message string, details any) error {
	if details == nil {
		details = map[string]any{}
	}
	return c.JSON(status, APIError{
		Status: statusError,
		Error:  ErrorBody{Code: code, Message: message, Details: details},
		Path:   pathFromContext(c),
	})
}

// FromHTTPError renders e.
func FromHTTPError(c echo.Context, e *HTTPError) error {
	return Error(c, e.StatusCode, e.Code, e.Message, e.Details)
}

// NotFound sends 404.
func NotFound(c echo.Context, code, message string, details any) error {
	return Error(c, http.StatusNotFound, code, message, details)
}

// InternalError sends 500.
func InternalError(c echo.Context, message string, err error) error {
	details := map[string]any{}
	if err != nil {
		details["error"] = err.Error()
	}
	return Error(c, http.StatusInternalServerError, CodeInternalError, message, details)
}
