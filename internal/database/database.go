// Package database opens the PostgreSQL pool backing the tenant registry.
package database

import (
	"context"
	"fmt"

	zerologadapter "github.com/jackc/pgx-zerolog"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/multitracer"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/newrelic/go-agent/v3/integrations/nrpgx5"
	"github.com/rs/zerolog"

	"github.com/akave-ai/nbstreamer/internal/config"
)

// NewPool connects to cfg.URL. Queries are logged at debug level through
// zerolog, and traced in New Relic when withNewRelic is set.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger, withNewRelic bool) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.ConnConfig.Tracer = tracer(log, withNewRelic)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func tracer(log zerolog.Logger, withNewRelic bool) pgx.QueryTracer {
	logTracer := &tracelog.TraceLog{
		Logger:   zerologadapter.NewLogger(log.With().Str("component", "pgx").Logger()),
		LogLevel: tracelog.LogLevelDebug,
	}
	if !withNewRelic {
		return logTracer
	}
	return multitracer.New(logTracer, nrpgx5.NewTracer())
}
