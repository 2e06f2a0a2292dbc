package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/quartermaster-erp/quartermaster/internal/jobs"
)

// SessionStore is the slice of the session repository the purge job needs.
type SessionStore interface {
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// SessionsPurgeJob removes session rows past their expiry. Redis entries
// expire on their own TTL; this keeps the relational mirror from growing.
type SessionsPurgeJob struct {
	Sessions SessionStore
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewSessionsPurgeJob initialises the purge handler.
func NewSessionsPurgeJob(sessions SessionStore, logger *slog.Logger, metrics *jobmetrics.Metrics) *SessionsPurgeJob {
	return &SessionsPurgeJob{Sessions: sessions, Logger: logger, Metrics: metrics}
}

// Handle executes one purge run.
func (j *SessionsPurgeJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Sessions == nil {
		return errors.New("sessions purge: handler not configured")
	}
	var payload SessionsPurgePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskSessionsPurge)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := time.Now()
	removed, err := j.Sessions.DeleteExpiredSessions(ctx)
	if err != nil {
		resultErr = err
		j.logger().Error("purge failed", slog.Any("error", err))
		return resultErr
	}
	j.metrics().AddPurgedSessions(removed)
	j.logger().Info("completed session purge",
		slog.Int64("removed", removed),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *SessionsPurgeJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskSessionsPurge))
	}
	return slog.Default().With(slog.String("job", TaskSessionsPurge))
}

func (j *SessionsPurgeJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
