package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/labliq/internal/cache"
	"github.com/JonMunkholm/labliq/internal/config"
	"github.com/JonMunkholm/labliq/internal/core"
	"github.com/JonMunkholm/labliq/internal/logging"
	"github.com/JonMunkholm/labliq/internal/store"
	"github.com/JonMunkholm/labliq/internal/upstream"
	"github.com/JonMunkholm/labliq/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"engine_url", cfg.Engine.URL,
		"analysis_max_concurrent", cfg.Engine.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"retention_days", cfg.Retention.Days,
	)

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		slog.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	repo := store.New(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		slog.Error("failed to create schema", "error", err)
		os.Exit(1)
	}

	resultCache, closeCache := openCache(ctx, cfg.Cache)
	defer closeCache()

	engineOpts := []upstream.Option{upstream.WithMaxResponseBytes(cfg.Engine.MaxResponseBytes)}
	if cfg.Engine.APIKey != "" {
		engineOpts = append(engineOpts, upstream.WithAPIKey(cfg.Engine.APIKey))
	}
	engine := upstream.NewClient(cfg.Engine.URL, cfg.Engine.Timeout, engineOpts...)

	service := core.NewService(engine, repo, core.Options{
		Cache:       resultCache,
		Limiter:     core.NewAnalysisLimiter(cfg.Engine.MaxConcurrent, cfg.Engine.MaxWaitTime),
		PageSize:    cfg.Results.PageSize,
		MaxPageSize: cfg.Results.MaxPageSize,
		LoadTimeout: cfg.Server.RequestTimeout,
	})

	server := web.NewServer(service, cfg)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go service.StartRetentionScheduler(jobCtx, core.RetentionConfig{
		Days:          cfg.Retention.Days,
		BatchSize:     cfg.Retention.BatchSize,
		CheckInterval: cfg.Retention.CheckInterval,
	})

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.Limiter().Status(); status.Active > 0 {
			slog.Info("waiting for analyses to complete", "active", status.Active)
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("shutdown incomplete", "error", err)
		}
	}()

	if err := server.Start(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// openCache returns the shared Redis cache when configured and the
// in-process LRU otherwise. An unreachable Redis falls back to memory.
func openCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, func()) {
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedis(ctx, cfg.RedisURL, cfg.TTL)
		if err == nil {
			slog.Info("using redis result cache", "ttl", cfg.TTL)
			return rc, func() { rc.Close() }
		}
		slog.Warn("redis unavailable, using memory cache", "error", err)
	}
	slog.Info("using memory result cache", "max_entries", cfg.MaxEntries, "ttl", cfg.TTL)
	return cache.NewMemory(cfg.MaxEntries, cfg.TTL), func() {}
}
