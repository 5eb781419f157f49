package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/akave-ai/nbstreamer/internal/archive"
	"github.com/akave-ai/nbstreamer/internal/auth"
	"github.com/akave-ai/nbstreamer/internal/infrastructure/outputs"
	"github.com/akave-ai/nbstreamer/internal/metrics"
	"github.com/akave-ai/nbstreamer/internal/model"
	"github.com/akave-ai/nbstreamer/internal/observability"
	"github.com/akave-ai/nbstreamer/internal/ratelimit"
	"github.com/akave-ai/nbstreamer/internal/response"
	"github.com/akave-ai/nbstreamer/internal/stats"
	"github.com/akave-ai/nbstreamer/internal/tenant"
	"github.com/akave-ai/nbstreamer/internal/transform"
)

const (
	// HeaderDeprecation is set on every response of the legacy endpoint.
	HeaderDeprecation  = "X-Deprecation-Warning"
	legacyWarning      = "Legacy endpoint. Use POST /{tenant}/events"
	forwardedMessage   = "Event processed and forwarded to Graylog"
	failureDelivery    = "delivery"
	failureInvalidJSON = "invalid_json"
	failureMismatch    = "tenant_mismatch"
	failureRateLimited = "rate_limited"
)

// EventHandler runs the ingestion pipeline: authenticate, resolve the tenant,
// compose the GELF message, deliver it once, and record the outcome.
type EventHandler struct {
	Resolver    *tenant.Resolver
	Composer    *transform.Composer
	Output      outputs.Output
	Protocol    string
	Auth        auth.Authenticator
	Stats       *stats.Tracker
	Metrics     *metrics.Metrics
	Limiter     ratelimit.Limiter
	Archive     *archive.Archiver // optional
	AllowLegacy bool
	TrustProxy  bool
	Log         zerolog.Logger
}

type eventResult struct {
	TenantID string `json:"tenant_id"`
	Degraded bool   `json:"degraded,omitempty"`
	Warning  string `json:"warning,omitempty"`
}

// TenantEvents handles POST /:tenant/events.
func (h *EventHandler) TenantEvents(c echo.Context) error {
	log := h.requestLogger(c)
	if err := h.authenticate(c); err != nil {
		return err
	}

	id, err := h.Resolver.ResolvePath(c.Param("tenant"))
	if err != nil {
		log.Warn().Err(err).Str("tenant", c.Param("tenant")).Msg("tenant rejected")
		return tenantHTTPError(err)
	}
	log = log.With().Str("tenant", id).Logger()
	h.Stats.RecordReceived(id)
	h.Metrics.EventReceived(id)

	ev, err := model.DecodeEvent(c.Request().Body)
	if err != nil {
		log.Error().Err(err).Msg("failed to parse JSON")
		h.fail(id, failureInvalidJSON)
		return invalidJSON(err)
	}

	res, err := h.Resolver.Resolve(id, ev)
	if err != nil {
		log.Warn().Err(err).Msg("payload tenant rejected")
		h.fail(id, failureMismatch)
		return tenantHTTPError(err)
	}
	return h.forward(c, log, res, "")
}

// LegacyEvents handles POST /events, taking the tenant from NB_Tenant.
func (h *EventHandler) LegacyEvents(c echo.Context) error {
	if !h.AllowLegacy {
		return response.NewHTTPError(http.StatusGone, response.CodeLegacyEndpointDisabled,
			"Legacy endpoint disabled. Use POST /{tenant}/events",
			map[string]any{"deprecated_endpoint": "/events", "new_endpoint_pattern": "/{tenant}/events"})
	}
	c.Response().Header().Set(HeaderDeprecation, legacyWarning)

	log := h.requestLogger(c)
	if err := h.authenticate(c); err != nil {
		return err
	}

	ev, err := model.DecodeEvent(c.Request().Body)
	if err != nil {
		log.Error().Err(err).Msg("failed to parse JSON")
		return invalidJSON(err)
	}

	res, err := h.Resolver.ResolveLegacy(ev)
	if err != nil {
		log.Warn().Err(err).Msg("legacy tenant rejected")
		return tenantHTTPError(err)
	}
	log = log.With().Str("tenant", res.Tenant).Logger()
	h.Stats.RecordReceived(res.Tenant)
	h.Metrics.EventReceived(res.Tenant)
	return h.forward(c, log, res, "Legacy endpoint deprecated. Use POST /{tenant}/events")
}

func (h *EventHandler) forward(c echo.Context, log zerolog.Logger, res tenant.Resolution, warning string) error {
	ctx := c.Request().Context()
	observability.AddAttributes(c, map[string]string{"tenant": res.Tenant})

	if h.Limiter != nil {
		d := h.Limiter.Allow(ctx, res.Tenant)
		if d.Limit > 0 {
			hdr := c.Response().Header()
			hdr.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			hdr.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining()))
		}
		if !d.Allowed {
			log.Warn().Int("count", d.Count).Msg("rate limit exceeded")
			h.Metrics.RateLimited(res.Tenant)
			h.fail(res.Tenant, failureRateLimited)
			retry := time.Until(d.WindowEnd).Round(time.Second)
			if retry > 0 {
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())))
			}
			return response.NewHTTPError(http.StatusTooManyRequests, response.CodeRateLimited,
				"Tenant ingest rate limit exceeded",
				map[string]any{"tenant": res.Tenant, "limit": d.Limit, "window_end": d.WindowEnd})
		}
	}

	msg := h.Composer.Compose(res.Event, res.Tenant)
	degraded := h.Composer.Degraded(msg)
	if degraded {
		log.Warn().Str("error", msg.CustomFields[h.Composer.FieldPrefix+"transformation_error"]).Msg("event forwarded in degraded form")
		h.Metrics.Degraded(res.Tenant)
	}

	start := time.Now()
	err := h.Output.Send(ctx, msg)
	h.Metrics.ObserveDelivery(h.Protocol, err == nil, time.Since(start))
	if err != nil {
		log.Error().Err(err).Msg("failed to send message to Graylog")
		h.fail(res.Tenant, failureDelivery)
		return response.NewHTTPError(http.StatusBadGateway, response.CodeGraylogUnreachable,
			"Failed to forward event to Graylog", map[string]any{"error": err.Error()})
	}

	level := msg.LevelLabel()
	h.Stats.RecordForwarded(res.Tenant, level)
	h.Metrics.EventForwarded(res.Tenant, level)
	log.Info().Int("level", msg.Level).Str("short_message", msg.ShortMessage).Msg("forwarded event to Graylog")

	if h.Archive != nil {
		if err := h.Archive.Add(ctx, res.Tenant, msg); err != nil {
			log.Error().Err(err).Msg("archive failed")
		}
	}

	return response.OK(c, eventResult{TenantID: res.Tenant, Degraded: degraded, Warning: warning}, forwardedMessage)
}

func (h *EventHandler) fail(tenantID, reason string) {
	h.Stats.RecordFailed(tenantID)
	h.Metrics.EventFailed(tenantID, reason)
}

func (h *EventHandler) authenticate(c echo.Context) error {
	return Authenticate(h.Auth, c, h.Log)
}

// Authenticate runs a against the request and converts a rejection into a 401.
func Authenticate(a auth.Authenticator, c echo.Context, log zerolog.Logger) error {
	if a == nil {
		return nil
	}
	if err := a.Authenticate(c.Request()); err != nil {
		log.Warn().Err(err).Str("path", c.Request().URL.Path).Msg("authentication failed")
		if a.Challenge() != "" {
			c.Response().Header().Set(echo.HeaderWWWAuthenticate, a.Challenge())
		}
		return response.NewHTTPError(http.StatusUnauthorized, response.CodeUnauthorized,
			"Authentication required", map[string]any{"reason": err.Error()})
	}
	return nil
}

// requestLogger carries request_id and client_ip like every pipeline log line.
func (h *EventHandler) requestLogger(c echo.Context) zerolog.Logger {
	ctx := h.Log.With().Str("method", c.Request().Method).Str("path", c.Request().URL.Path)
	if id := RequestID(c); id != "" {
		ctx = ctx.Str("request_id", id)
	}
	if ip := ClientIP(c, h.TrustProxy); ip != "" {
		ctx = ctx.Str("client_ip", ip)
	}
	return ctx.Logger()
}

// RequestID returns the request id assigned by the middleware or supplied by the caller.
func RequestID(c echo.Context) string {
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	if id := c.Request().Header.Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return c.Request().Header.Get("traceparent")
}

// ClientIP prefers the first X-Forwarded-For hop when proxy headers are trusted,
// and otherwise uses the socket peer.
func ClientIP(c echo.Context, trustProxy bool) string {
	if !trustProxy {
		return echo.ExtractIPDirect()(c.Request())
	}
	if fwd := c.Request().Header.Get(echo.HeaderXForwardedFor); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	return c.RealIP()
}

func invalidJSON(err error) error {
	msg := err.Error()
	if errors.Is(err, model.ErrNotObject) {
		msg = model.ErrNotObject.Error()
	}
	return response.NewHTTPError(http.StatusBadRequest, response.CodeInvalidJSON,
		"Invalid JSON in request body", map[string]any{"error": msg})
}

// tenantHTTPError maps resolution failures to their status and details.
func tenantHTTPError(err error) error {
	var te *tenant.Error
	if !errors.As(err, &te) {
		return err
	}
	switch te.Kind {
	case tenant.KindInvalidFormat:
		return response.NewHTTPError(http.StatusBadRequest, string(te.Kind),
			"Tenant '"+te.Tenant+"' has invalid format",
			map[string]any{"provided_tenant": te.Tenant, "required_pattern": tenant.Pattern})
	case tenant.KindNotAllowed:
		return response.NewHTTPError(http.StatusNotFound, string(te.Kind),
			"Tenant '"+te.Tenant+"' is not allowed",
			map[string]any{"provided_tenant": te.Tenant, "allowed_tenants": te.Allowed})
	case tenant.KindMismatch:
		return response.NewHTTPError(http.StatusBadRequest, string(te.Kind),
			"Path tenant doesn't match payload "+model.TenantField,
			map[string]any{"path_tenant": te.Tenant, "payload_tenant": te.Payload})
	case tenant.KindMissing:
		return response.NewHTTPError(http.StatusBadRequest, string(te.Kind),
			"Legacy endpoint requires "+model.TenantField+" in payload",
			map[string]any{"missing_field": model.TenantField, "migration_note": "Use POST /{tenant}/events for new implementations"})
	}
	return err
}
