package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/akave-ai/nbstreamer/internal/archive"
	"github.com/akave-ai/nbstreamer/internal/auth"
	"github.com/akave-ai/nbstreamer/internal/config"
	"github.com/akave-ai/nbstreamer/internal/database"
	"github.com/akave-ai/nbstreamer/internal/infrastructure/outputs"
	_ "github.com/akave-ai/nbstreamer/internal/infrastructure/outputs/gelfout"
	"github.com/akave-ai/nbstreamer/internal/logger"
	"github.com/akave-ai/nbstreamer/internal/metrics"
	"github.com/akave-ai/nbstreamer/internal/observability"
	"github.com/akave-ai/nbstreamer/internal/ratelimit"
	"github.com/akave-ai/nbstreamer/internal/repository"
	"github.com/akave-ai/nbstreamer/internal/server"
	"github.com/akave-ai/nbstreamer/internal/stats"
	"github.com/akave-ai/nbstreamer/internal/storage"
	"github.com/akave-ai/nbstreamer/internal/tenant"
)

func runServe(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	nrApp, err := observability.NewApplication(cfg.Observability, log)
	if err != nil {
		return fmt.Errorf("new relic: %w", err)
	}

	allowed := tenant.NewAllowList(cfg.Tenants.List...)
	if cfg.Tenants.File != "" {
		ids, err := tenant.LoadFile(cfg.Tenants.File)
		if err != nil {
			return err
		}
		allowed.Add(ids...)
	}

	deps := server.Deps{
		Config:   cfg,
		Log:      log,
		Registry: outputs.GlobalRegistry,
		Allowed:  allowed,
		Stats:    stats.New(),
		Metrics:  metrics.New(),
		NewRelic: nrApp,
		Version:  version,
	}

	if cfg.Database.URL != "" {
		if _, err := database.Migrate(ctx, cfg.Database.URL, log); err != nil {
			return err
		}
		pool, err := database.NewPool(ctx, cfg.Database, log, nrApp != nil)
		if err != nil {
			return err
		}
		defer pool.Close()
		repo := repository.NewTenantRepository(pool)
		registered, err := repo.List(ctx)
		if err != nil {
			return fmt.Errorf("load registered tenants: %w", err)
		}
		for _, t := range registered {
			allowed.Add(t.ID)
		}
		deps.Tenants = repo
	}

	if deps.Auth, err = auth.New(cfg.Auth); err != nil {
		return err
	}

	if deps.Output, err = newOutput(cfg.Graylog, log); err != nil {
		return err
	}

	if cfg.RateLimit.RedisAddr != "" {
		deps.Limiter, err = ratelimit.NewRedis(ctx, &redis.Options{
			Addr:     cfg.RateLimit.RedisAddr,
			Password: cfg.RateLimit.RedisPassword,
			DB:       cfg.RateLimit.RedisDB,
		}, cfg.RateLimit.Limit, cfg.RateLimit.Window, log)
		if err != nil {
			return err
		}
		log.Info().Str("redis", cfg.RateLimit.RedisAddr).Int("limit", cfg.RateLimit.Limit).Dur("window", cfg.RateLimit.Window).Msg("tenant rate limiting enabled")
	}

	store, err := storage.NewS3Client(cfg.Archive)
	if err != nil {
		return err
	}
	if store != nil {
		if err := store.EnsureBucket(ctx); err != nil {
			return err
		}
		deps.Archive = archive.New(store, archive.Options{
			BatchSize: cfg.Archive.BatchSize,
			Prefix:    cfg.Archive.Prefix,
		}, log)
		log.Info().Str("bucket", store.Bucket()).Msg("gelf archive enabled")
	}

	if allowed.Len() == 0 {
		log.Warn().Msg("no tenants configured: any well-formed tenant is accepted")
	} else {
		log.Info().Strs("tenants", allowed.List()).Msg("tenant allow-list loaded")
	}

	return server.New(deps).Start(ctx)
}

func newOutput(g config.GraylogConfig, log zerolog.Logger) (outputs.Output, error) {
	if g.Protocol == "tcp" && g.Compression {
		log.Info().Msg("compression is ignored for tcp: gelf tcp frames are sent uncompressed")
	}
	out, err := outputs.GlobalRegistry.CreateFromSpec(outputs.OutputSpec{
		Type:     g.Protocol,
		Host:     g.Host,
		Port:     g.Port,
		Compress: g.Compression,
		Config: outputs.Config{
			"timeout":         g.Timeout,
			"connection_mode": g.TCPMode,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create %s output: %w", g.Protocol, err)
	}
	log.Info().Str("protocol", g.Protocol).Str("host", g.Host).Int("port", g.Port).Bool("compression", g.Compression).Msg("graylog output ready")
	return out, nil
}
