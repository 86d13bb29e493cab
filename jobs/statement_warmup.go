package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/meridian-fin/meridian/internal/jobs"
	"github.com/meridian-fin/meridian/internal/statement"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

var warmupStatementTypes = []statement.StatementType{
	statement.StatementBalanceSheet,
	statement.StatementIncome,
	statement.StatementCashFlow,
}

// StatementWarmupJob pre-generates statements for the configured periods so
// the versioned cache is hot before the first request.
type StatementWarmupJob struct {
	Service *statement.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewStatementWarmupJob wires dependencies for the warmup handler.
func NewStatementWarmupJob(svc *statement.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *StatementWarmupJob {
	return &StatementWarmupJob{
		Service: svc,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes statement warmup tasks.
func (j *StatementWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("statement warmup: handler not configured")
	}
	var payload StatementWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.DetailLevel == 0 {
		payload.DetailLevel = 3
	}

	tracker := j.metrics().Track(TaskStatementWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	periods, err := j.resolvePeriods(ctx, payload.Periods)
	if err != nil {
		resultErr = err
		logger.Error("resolve warmup periods", slog.Any("error", err))
		return resultErr
	}
	if len(periods) == 0 {
		logger.Info("no fiscal years discovered for warmup")
		return resultErr
	}

	start := j.now()
	warmed := 0
	for _, period := range periods {
		for _, st := range warmupStatementTypes {
			if err := j.warmStatement(ctx, st, period, payload.DetailLevel); err != nil {
				resultErr = err
				logger.Error("warm statement", slog.String("type", string(st)), slog.String("period", period), slog.Any("error", err))
				return resultErr
			}
			warmed++
		}
	}

	logger.Info("completed statement warmup", slog.Int("statements", warmed), slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *StatementWarmupJob) warmStatement(ctx context.Context, st statement.StatementType, period string, detail int) error {
	// Tighten each generation with a timeout to avoid long-running jobs.
	genCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	stmt, err := j.Service.Generate(genCtx, st, statement.GenerateOptions{
		PeriodOption: period,
		DetailLevel:  detail,
	})
	if err != nil {
		return err
	}
	if st == statement.StatementBalanceSheet && !stmt.Metrics.Balanced {
		j.metrics().AddImbalance(string(st), period)
		j.logger().Warn("balance sheet not balanced",
			slog.String("period", period),
			slog.Float64("imbalance", stmt.Metrics.Imbalance),
		)
	}
	return nil
}

func (j *StatementWarmupJob) resolvePeriods(ctx context.Context, requested []string) ([]string, error) {
	if len(requested) > 0 {
		return requested, nil
	}
	years, err := j.Service.Years(ctx)
	if err != nil {
		return nil, err
	}
	if len(years) == 0 {
		return nil, nil
	}
	latest := years[len(years)-1]
	return []string{fmt.Sprintf("%d-all", latest)}, nil
}

func (j *StatementWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskStatementWarmup))
	}
	return slog.Default().With(slog.String("job", TaskStatementWarmup))
}

func (j *StatementWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *StatementWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

// CacheInvalidateJob bumps the statement cache version.
type CacheInvalidateJob struct {
	Service *statement.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewCacheInvalidateJob wires dependencies for the invalidation handler.
func NewCacheInvalidateJob(svc *statement.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *CacheInvalidateJob {
	return &CacheInvalidateJob{Service: svc, Logger: logger, Metrics: metrics}
}

// Handle processes cache invalidation tasks.
func (j *CacheInvalidateJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("cache invalidate: handler not configured")
	}
	var payload CacheInvalidatePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskCacheInvalidate)
	err := j.Service.Invalidate(ctx)
	if err == nil {
		logger := j.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Info("statement cache invalidated", slog.String("reason", payload.Reason))
	}
	return tracker.End(err)
}
