package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStatementWarmup pre-generates statements so the first request of
	// the day hits a warm cache.
	TaskStatementWarmup = "statement:warmup"
	// TaskCacheInvalidate bumps the statement cache version after new
	// movement data lands.
	TaskCacheInvalidate = "statement:cache_invalidate"
	// TaskDefinitionsReload refreshes the in-memory registry from the
	// stored definitions.
	TaskDefinitionsReload = "statement:definitions_reload"
)

// StatementWarmupPayload scopes a warmup run. Empty periods default to the
// latest fiscal year.
type StatementWarmupPayload struct {
	Periods     []string `json:"periods,omitempty"`
	DetailLevel int      `json:"detailLevel,omitempty"`
}

// NewStatementWarmupTask constructs an Asynq task.
func NewStatementWarmupTask(payload StatementWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStatementWarmup, data), nil
}

// NewDefinitionsReloadTask constructs an Asynq task.
func NewDefinitionsReloadTask() *asynq.Task {
	return asynq.NewTask(TaskDefinitionsReload, nil)
}

// CacheInvalidatePayload names the reason for an invalidation run.
type CacheInvalidatePayload struct {
	Reason string `json:"reason,omitempty"`
}

// NewCacheInvalidateTask constructs an Asynq task.
func NewCacheInvalidateTask(payload CacheInvalidatePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCacheInvalidate, data), nil
}
