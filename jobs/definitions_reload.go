package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/meridian-fin/meridian/internal/jobs"
	"github.com/meridian-fin/meridian/internal/statement"
)

// DefinitionsReloadJob swaps the registry contents for the stored
// definition set. A validation failure in any stored definition aborts the
// reload and keeps the current registry intact.
type DefinitionsReloadJob struct {
	Repo    *statement.Repository
	Service *statement.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewDefinitionsReloadJob wires dependencies for the reload handler.
func NewDefinitionsReloadJob(repo *statement.Repository, svc *statement.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *DefinitionsReloadJob {
	return &DefinitionsReloadJob{Repo: repo, Service: svc, Logger: logger, Metrics: metrics}
}

// Handle processes definitions reload tasks.
func (j *DefinitionsReloadJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Repo == nil || j.Service == nil {
		return errors.New("definitions reload: handler not configured")
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskDefinitionsReload)

	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("job", TaskDefinitionsReload))

	defs, err := j.Repo.ListDefinitions(ctx)
	if err != nil {
		logger.Error("list stored definitions", slog.Any("error", err))
		return tracker.End(err)
	}
	if err := j.Service.Registry().Load(defs); err != nil {
		logger.Error("load stored definitions", slog.Any("error", err))
		return tracker.End(err)
	}
	if err := j.Service.Invalidate(ctx); err != nil {
		logger.Warn("bump cache after reload", slog.Any("error", err))
	}
	logger.Info("definitions reloaded", slog.Int("count", len(defs)))
	return tracker.End(nil)
}
