package server

import (
	"github.com/labstack/echo/v4"

	"github.com/akave-ai/nbstreamer/internal/handler"
)

func (s *Server) registerRoutes(events *handler.EventHandler, admin *handler.AdminHandler) {
	e := s.Echo

	// Ops
	e.GET("/health", admin.Health)
	e.GET("/stats", admin.GetStats)
	e.POST("/stats/reset", admin.ResetStats)
	e.GET("/metrics", echo.WrapHandler(s.deps.Metrics.Handler()))
	e.GET("/outputs/info", admin.OutputsInfo)

	// Tenant registry
	e.GET("/tenants", admin.ListTenants)
	e.POST("/tenants", admin.CreateTenant)
	e.DELETE("/tenants/:tenant", admin.DeleteTenant)

	// Archive
	e.GET("/archive", admin.ListArchive)

	// Ingestion
	e.POST("/events", events.LegacyEvents)
	e.POST("/:tenant/events", events.TenantEvents)
}

// availableEndpoints lists the routes a caller can use, for 404 responses.
func (s *Server) availableEndpoints() map[string]string {
	cfg := s.Config
	out := map[string]string{
		"GET /health":       "Health check",
		"GET /stats":        "Get event processing statistics",
		"POST /stats/reset": "Reset statistics (authenticated)",
		"GET /metrics":      "Prometheus metrics",
		"GET /outputs/info": "GELF output types and their configuration",
	}
	tenants := s.deps.Allowed.List()
	if cfg.Tenants.RequirePath {
		out["POST /{tenant}/events"] = "Send events for specific tenant (authenticated)"
		if len(tenants) > 0 {
			out["example"] = "POST /" + tenants[0] + "/events"
		}
	}
	if cfg.Tenants.AllowLegacy {
		out["POST /events"] = "Legacy event endpoint (deprecated, authenticated)"
	}
	if cfg.Tenants.Expose {
		out["GET /tenants"] = "List allowed tenants"
	}
	if s.deps.Tenants != nil {
		out["POST /tenants"] = "Register a tenant (authenticated)"
		out["DELETE /tenants/{tenant}"] = "Remove a tenant (authenticated)"
	}
	if s.deps.Archive != nil {
		out["GET /archive"] = "List archived GELF batches"
	}
	return out
}
