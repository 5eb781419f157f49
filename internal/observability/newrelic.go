// Package observability wires New Relic APM into the HTTP server and database pool.
package observability

import (
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"

	"github.com/akave-ai/nbstreamer/internal/config"
)

// NewApplication starts the New Relic agent. It returns nil, nil when disabled.
func NewApplication(cfg *config.ObservabilityConfig, log zerolog.Logger) (*newrelic.Application, error) {
	if cfg == nil || !cfg.NewRelicEnabled {
		return nil, nil
	}
	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.ServiceName+"-"+cfg.Environment),
		newrelic.ConfigLicense(cfg.NewRelicLicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
		newrelic.ConfigAppLogForwardingEnabled(false),
	)
	if err != nil {
		return nil, fmt.Errorf("new relic application: %w", err)
	}
	if err := app.WaitForConnection(5 * time.Second); err != nil {
		log.Warn().Err(err).Msg("new relic agent not connected yet")
	}
	return app, nil
}

// Middleware records one web transaction per request. A nil app yields a pass-through.
func Middleware(app *newrelic.Application) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if app == nil {
			return next
		}
		return func(c echo.Context) error {
			req := c.Request()
			name := req.Method + " " + c.Path()
			txn := app.StartTransaction(name)
			defer txn.End()

			txn.SetWebRequestHTTP(req)
			c.Response().Writer = txn.SetWebResponse(c.Response().Writer)
			c.SetRequest(req.WithContext(newrelic.NewContext(req.Context(), txn)))

			err := next(c)
			if err != nil {
				txn.NoticeError(err)
			}
			return err
		}
	}
}

// AddAttributes tags the request's transaction, if any.
func AddAttributes(c echo.Context, attrs map[string]string) {
	txn := newrelic.FromContext(c.Request().Context())
	if txn == nil {
		return
	}
	for k, v := range attrs {
		txn.AddAttribute(k, v)
	}
}

// Shutdown flushes pending data. Safe on a nil app.
func Shutdown(app *newrelic.Application) {
	if app != nil {
		app.Shutdown(10 * time.Second)
	}
}
