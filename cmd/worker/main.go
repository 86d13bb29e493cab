package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/meridian-fin/meridian/internal/app"
	jobmetrics "github.com/meridian-fin/meridian/internal/jobs"
	"github.com/meridian-fin/meridian/internal/statement"
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

	pool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	repo := statement.NewRepository(pool)
	registry := statement.NewRegistry()
	if defs, err := repo.ListDefinitions(ctx); err != nil {
		logger.Warn("load stored definitions", slog.Any("error", err))
	} else if err := registry.Load(defs); err != nil {
		logger.Error("register stored definitions", slog.Any("error", err))
		os.Exit(1)
	}
	statementCache := statement.NewCache(redisClient, cfg.CacheTTL)
	service := statement.NewService(repo, registry, statementCache, logger)

	metrics := jobmetrics.NewMetrics(nil)
	warmupJob := jobs.NewStatementWarmupJob(service, logger, metrics)
	invalidateJob := jobs.NewCacheInvalidateJob(service, logger, metrics)
	reloadJob := jobs.NewDefinitionsReloadJob(repo, service, logger, metrics)

	warmupTask, err := jobs.NewStatementWarmupTask(jobs.StatementWarmupPayload{DetailLevel: 3})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}
	reloadTask := jobs.NewDefinitionsReloadTask()

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskStatementWarmup, Handler: warmupJob.Handle},
			{Type: jobs.TaskCacheInvalidate, Handler: invalidateJob.Handle},
			{Type: jobs.TaskDefinitionsReload, Handler: reloadJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 1 * * *", Task: reloadTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "15 1 * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
