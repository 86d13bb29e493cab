package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-fin/meridian/internal/app"
	"github.com/meridian-fin/meridian/internal/observability"
	"github.com/meridian-fin/meridian/internal/platform/cache"
	"github.com/meridian-fin/meridian/internal/platform/db"
	"github.com/meridian-fin/meridian/internal/statement"
	statementhttp "github.com/meridian-fin/meridian/internal/statement/http"
	"github.com/meridian-fin/meridian/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, caching disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	repo := statement.NewRepository(pool)
	registry := statement.NewRegistry()
	if defs, err := repo.ListDefinitions(ctx); err != nil {
		logger.Warn("load stored definitions", slog.Any("error", err))
	} else if err := registry.Load(defs); err != nil {
		logger.Error("register stored definitions", slog.Any("error", err))
		os.Exit(1)
	}
	if cfg.DefinitionsPath != "" {
		raw, err := os.ReadFile(cfg.DefinitionsPath)
		if err != nil {
			logger.Error("read definitions file", slog.String("path", cfg.DefinitionsPath), slog.Any("error", err))
			os.Exit(1)
		}
		if err := registry.LoadJSON(raw); err != nil {
			logger.Error("load definitions file", slog.String("path", cfg.DefinitionsPath), slog.Any("error", err))
			os.Exit(1)
		}
	}

	statementCache := statement.NewCache(redisClient, cfg.CacheTTL)
	if err := statementCache.ListenForInvalidation(ctx, ""); err != nil {
		logger.Warn("cache invalidation listener", slog.Any("error", err))
	}
	service := statement.NewService(repo, registry, statementCache, logger)

	metrics := observability.NewMetrics()
	if err := statementhttp.SetupCacheMetrics(metrics.Registerer()); err != nil {
		logger.Warn("cache metrics", slog.Any("error", err))
	}
	statementHandler := statementhttp.NewHandler(logger, service)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		StatementHandler: statementHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
