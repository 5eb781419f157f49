package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/akave-ai/nbstreamer/internal/archive"
	"github.com/akave-ai/nbstreamer/internal/auth"
	"github.com/akave-ai/nbstreamer/internal/infrastructure/outputs"
	"github.com/akave-ai/nbstreamer/internal/model"
	"github.com/akave-ai/nbstreamer/internal/repository"
	"github.com/akave-ai/nbstreamer/internal/response"
	"github.com/akave-ai/nbstreamer/internal/stats"
	"github.com/akave-ai/nbstreamer/internal/tenant"
)

// TenantStore persists the tenant registry. *repository.TenantRepository implements it.
type TenantStore interface {
	Create(ctx context.Context, t *model.Tenant) error
	List(ctx context.Context) ([]model.Tenant, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// AdminHandler serves health, statistics, tenant management and archive endpoints.
type AdminHandler struct {
	Stats         *stats.Tracker
	Auth          auth.Authenticator
	Allowed       *tenant.AllowList
	Tenants       TenantStore       // optional
	Archive       *archive.Archiver // optional
	Registry      *outputs.Registry
	ActiveOutput  string
	Version       string
	RequirePath   bool
	ExposeTenants bool
	Log           zerolog.Logger
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := tenant.RegisterValidation(v); err != nil {
		panic(err)
	}
	return v
}

type healthResponse struct {
	Status       string `json:"status"`
	Service      string `json:"service"`
	Version      string `json:"version"`
	MultiTenancy bool   `json:"multi_tenancy"`
	TenantsCount int    `json:"tenants_count"`
}

type createTenantRequest struct {
	ID          string `json:"id" validate:"required,tenant"`
	Description string `json:"description" validate:"max=256"`
}

// Health handles GET /health.
func (h *AdminHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status:       "healthy",
		Service:      "nb_streamer",
		Version:      h.Version,
		MultiTenancy: h.RequirePath,
		TenantsCount: h.Allowed.Len(),
	})
}

// GetStats handles GET /stats.
func (h *AdminHandler) GetStats(c echo.Context) error {
	return response.OK(c, map[string]any{"statistics": h.Stats.Snapshot()}, "")
}

// ResetStats handles POST /stats/reset.
func (h *AdminHandler) ResetStats(c echo.Context) error {
	if err := Authenticate(h.Auth, c, h.Log); err != nil {
		return err
	}
	h.Stats.Reset()
	h.Log.Info().Str("request_id", RequestID(c)).Msg("statistics reset")
	return response.OK(c, nil, "Statistics reset successfully")
}

// ListTenants handles GET /tenants when tenant listing is enabled.
func (h *AdminHandler) ListTenants(c echo.Context) error {
	if !h.ExposeTenants {
		return response.NewHTTPError(http.StatusNotFound, response.CodeEndpointNotFound, "Tenant listing not enabled", nil)
	}
	data := map[string]any{"tenants": h.Allowed.List()}
	if h.Tenants != nil {
		registered, err := h.Tenants.List(c.Request().Context())
		if err != nil {
			return response.InternalError(c, "list tenants failed", err)
		}
		data["registered"] = registered
	}
	return response.OK(c, data, "")
}

// CreateTenant handles POST /tenants: persists the tenant and allows it immediately.
func (h *AdminHandler) CreateTenant(c echo.Context) error {
	if err := Authenticate(h.Auth, c, h.Log); err != nil {
		return err
	}
	if h.Tenants == nil {
		return databaseUnavailable()
	}
	var req createTenantRequest
	if err := c.Bind(&req); err != nil {
		return response.NewHTTPError(http.StatusBadRequest, response.CodeInvalidJSON, "Invalid JSON in request body", map[string]any{"error": err.Error()})
	}
	req.ID = tenant.Normalize(req.ID)
	if err := validate.Struct(req); err != nil {
		return response.NewHTTPError(http.StatusBadRequest, response.CodeInvalidTenantFormat,
			"Tenant '"+req.ID+"' has invalid format",
			map[string]any{"provided_tenant": req.ID, "required_pattern": tenant.Pattern, "error": err.Error()})
	}

	t := &model.Tenant{ID: req.ID, Description: req.Description}
	if err := h.Tenants.Create(c.Request().Context(), t); err != nil {
		if errors.Is(err, repository.ErrTenantExists) {
			return response.NewHTTPError(http.StatusConflict, "TENANT_EXISTS", "Tenant '"+t.ID+"' already exists", map[string]any{"tenant": t.ID})
		}
		return response.InternalError(c, "create tenant failed", err)
	}
	h.Allowed.Add(t.ID)
	h.Log.Info().Str("tenant", t.ID).Msg("tenant registered")
	return response.Created(c, t, "Tenant created")
}

// DeleteTenant handles DELETE /tenants/:tenant.
func (h *AdminHandler) DeleteTenant(c echo.Context) error {
	if err := Authenticate(h.Auth, c, h.Log); err != nil {
		return err
	}
	if h.Tenants == nil {
		return databaseUnavailable()
	}
	id := tenant.Normalize(c.Param("tenant"))
	deleted, err := h.Tenants.Delete(c.Request().Context(), id)
	if err != nil {
		return response.InternalError(c, "delete tenant failed", err)
	}
	if !deleted {
		return response.NewHTTPError(http.StatusNotFound, response.CodeInvalidTenant, "Tenant '"+id+"' is not registered", map[string]any{"tenant": id})
	}
	h.Allowed.Remove(id)
	h.Log.Info().Str("tenant", id).Msg("tenant removed")
	return response.OK(c, map[string]any{"tenant": id}, "Tenant deleted")
}

// ListArchive handles GET /archive. With ?key= it returns the batch's messages.
func (h *AdminHandler) ListArchive(c echo.Context) error {
	if h.Archive == nil {
		return response.NewHTTPError(http.StatusServiceUnavailable, response.CodeArchiveUnavailable, "Archive not configured", nil)
	}
	ctx := c.Request().Context()
	if key := c.QueryParam("key"); key != "" {
		msgs, err := h.Archive.Read(ctx, key)
		if err != nil {
			return response.InternalError(c, "read archive batch failed", err)
		}
		return response.OK(c, map[string]any{"key": key, "messages": msgs}, "")
	}
	objects, err := h.Archive.List(ctx, tenant.Normalize(c.QueryParam("tenant")))
	if err != nil {
		return response.InternalError(c, "list archive failed", err)
	}
	return response.OK(c, map[string]any{"status": h.Archive.Status(), "objects": objects}, "")
}

// OutputsInfo handles GET /outputs/info.
func (h *AdminHandler) OutputsInfo(c echo.Context) error {
	return response.OK(c, map[string]any{
		"active": h.ActiveOutput,
		"types":  h.Registry.AllTypesInfo(),
	}, "")
}

func databaseUnavailable() error {
	return response.NewHTTPError(http.StatusServiceUnavailable, response.CodeDatabaseUnavailable, "Tenant registry requires a database", nil)
}
