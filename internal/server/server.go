package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"

	"github.com/akave-ai/nbstreamer/internal/archive"
	"github.com/akave-ai/nbstreamer/internal/auth"
	"github.com/akave-ai/nbstreamer/internal/config"
	"github.com/akave-ai/nbstreamer/internal/handler"
	"github.com/akave-ai/nbstreamer/internal/infrastructure/outputs"
	"github.com/akave-ai/nbstreamer/internal/metrics"
	"github.com/akave-ai/nbstreamer/internal/observability"
	"github.com/akave-ai/nbstreamer/internal/ratelimit"
	"github.com/akave-ai/nbstreamer/internal/stats"
	"github.com/akave-ai/nbstreamer/internal/tenant"
	"github.com/akave-ai/nbstreamer/internal/transform"
)

// Deps are the collaborators the server wires into its handlers.
// Archive, Tenants and NewRelic are optional.
type Deps struct {
	Config   *config.Config
	Log      zerolog.Logger
	Output   outputs.Output
	Registry *outputs.Registry
	Allowed  *tenant.AllowList
	Auth     auth.Authenticator
	Stats    *stats.Tracker
	Metrics  *metrics.Metrics
	Limiter  ratelimit.Limiter
	Archive  *archive.Archiver
	Tenants  handler.TenantStore
	NewRelic *newrelic.Application
	Version  string
}

// Server holds the Echo app and dependencies.
type Server struct {
	Echo   *echo.Echo
	Config *config.Config
	deps   Deps
	log    zerolog.Logger
}

// New builds the Echo server and registers routes.
func New(d Deps) *Server {
	if d.Limiter == nil {
		d.Limiter = ratelimit.Unlimited{}
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	if d.Stats == nil {
		d.Stats = stats.New()
	}
	if d.Allowed == nil {
		d.Allowed = tenant.NewAllowList()
	}
	if d.Registry == nil {
		d.Registry = outputs.GlobalRegistry
	}

	cfg := d.Config
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	e.Server.IdleTimeout = cfg.Server.IdleTimeout

	s := &Server{Echo: e, Config: cfg, deps: d, log: d.Log}
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: newRequestID}))
	e.Use(requestLogger(d.Log))
	e.Use(observability.Middleware(d.NewRelic))
	e.Use(metricsMiddleware(d.Metrics))
	if len(cfg.Server.CORSAllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.Server.CORSAllowedOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		}))
	}
	if cfg.Server.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))
	}

	events := &handler.EventHandler{
		Resolver: &tenant.Resolver{
			Allowed:       d.Allowed,
			EnforceLegacy: cfg.Tenants.LegacyEnforceMatch,
		},
		Composer:    transform.NewComposer(),
		Output:      d.Output,
		Protocol:    cfg.Graylog.Protocol,
		Auth:        d.Auth,
		Stats:       d.Stats,
		Metrics:     d.Metrics,
		Limiter:     d.Limiter,
		Archive:     d.Archive,
		AllowLegacy: cfg.Tenants.AllowLegacy,
		TrustProxy:  cfg.Server.TrustProxyHeaders,
		Log:         d.Log,
	}
	admin := &handler.AdminHandler{
		Stats:         d.Stats,
		Auth:          d.Auth,
		Allowed:       d.Allowed,
		Tenants:       d.Tenants,
		Archive:       d.Archive,
		Registry:      d.Registry,
		ActiveOutput:  cfg.Graylog.Protocol,
		Version:       d.Version,
		RequirePath:   cfg.Tenants.RequirePath,
		ExposeTenants: cfg.Tenants.Expose,
		Log:           d.Log,
	}
	s.registerRoutes(events, admin)
	return s
}

// Start serves HTTP until ctx is cancelled or the server fails.
// On cancel, Start returns only after Shutdown has flushed the archive and
// closed the output.
func (s *Server) Start(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.Config.Server.WriteTimeout)
		defer cancel()
		done <- s.Shutdown(shutdownCtx)
	}()
	addr := s.Config.Server.Addr()
	s.log.Info().Str("addr", addr).Str("graylog_protocol", s.Config.Graylog.Protocol).Msg("server listening")
	if err := s.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	if err := <-done; err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.log.Info().Msg("server stopped")
	return nil
}

// Shutdown stops accepting requests, then flushes the archive and releases transports.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Echo.Shutdown(ctx)
	if s.deps.Archive != nil {
		if ferr := s.deps.Archive.Flush(ctx); ferr != nil {
			s.log.Error().Err(ferr).Msg("archive flush on shutdown")
		}
	}
	if s.deps.Output != nil {
		if cerr := s.deps.Output.Close(); cerr != nil {
			s.log.Warn().Err(cerr).Msg("close gelf output")
		}
	}
	if cerr := s.deps.Limiter.Close(); cerr != nil {
		s.log.Warn().Err(cerr).Msg("close rate limiter")
	}
	observability.Shutdown(s.deps.NewRelic)
	return err
}
