package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/sentra-authz/sentra/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskOverrideSweep hard-deletes long-expired override rows. Expired rows
	// are already excluded from every decision; the sweep only reclaims storage.
	TaskOverrideSweep = "override:sweep"
)

// OverrideSweepPayload configures one sweep run.
type OverrideSweepPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewOverrideSweepTask constructs an Asynq task.
func NewOverrideSweepTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(OverrideSweepPayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOverrideSweep, data), nil
}

// ExpiredDeleter removes overrides whose expiry passed before the cutoff.
type ExpiredDeleter interface {
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// OverrideSweepJob wires the sweep task to the override store.
type OverrideSweepJob struct {
	store   ExpiredDeleter
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewOverrideSweepJob builds the job. metrics may be nil.
func NewOverrideSweepJob(store ExpiredDeleter, logger *slog.Logger, metrics *jobmetrics.Metrics) *OverrideSweepJob {
	return &OverrideSweepJob{store: store, logger: logger, metrics: metrics, clock: time.Now}
}

// Handle processes TaskOverrideSweep tasks.
func (j *OverrideSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track(TaskOverrideSweep)
	var payload OverrideSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return tracker.End(asynq.SkipRetry)
	}
	if payload.Retention <= 0 {
		payload.Retention = 30 * 24 * time.Hour
	}
	cutoff := j.clock().Add(-payload.Retention)
	deleted, err := j.store.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("override sweep failed", slog.Any("error", err))
		return tracker.End(err)
	}
	j.logger.Info("override sweep finished",
		slog.Int64("deleted", deleted),
		slog.Time("cutoff", cutoff),
	)
	return tracker.End(nil)
}
