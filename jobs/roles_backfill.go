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

// RoleResolver is the slice of the role resolver the backfill job needs.
// Resolving a principal without an assignment writes the migrated one.
type RoleResolver interface {
	Resolve(ctx context.Context, principalID int64) (string, error)
}

// AssignmentScanner lists active principals still lacking a role assignment.
type AssignmentScanner interface {
	ListUnassignedPrincipals(ctx context.Context, limit int) ([]int64, error)
}

// RolesBackfillJob walks principals that still lack an explicit role
// assignment and resolves each one, which persists the migration. The
// on-access migration covers active principals; this sweeps the long tail.
type RolesBackfillJob struct {
	Scanner  AssignmentScanner
	Resolver RoleResolver
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewRolesBackfillJob initialises the backfill handler.
func NewRolesBackfillJob(scanner AssignmentScanner, resolver RoleResolver, logger *slog.Logger, metrics *jobmetrics.Metrics) *RolesBackfillJob {
	return &RolesBackfillJob{Scanner: scanner, Resolver: resolver, Logger: logger, Metrics: metrics}
}

// Handle executes one backfill batch.
func (j *RolesBackfillJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Scanner == nil || j.Resolver == nil {
		return errors.New("roles backfill: handler not configured")
	}
	var payload RolesBackfillPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.BatchSize <= 0 {
		payload.BatchSize = 500
	}

	tracker := j.metrics().Track(TaskRolesBackfill)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := time.Now()
	ids, err := j.Scanner.ListUnassignedPrincipals(ctx, payload.BatchSize)
	if err != nil {
		resultErr = err
		j.logger().Error("scan failed", slog.Any("error", err))
		return resultErr
	}

	var migrated int64
	for _, id := range ids {
		if _, err := j.Resolver.Resolve(ctx, id); err != nil {
			j.logger().Warn("backfill resolve failed",
				slog.Int64("principal_id", id), slog.Any("error", err))
			continue
		}
		migrated++
	}

	j.metrics().AddBackfilledRoles(migrated)
	j.logger().Info("completed role backfill",
		slog.Int("pending", len(ids)),
		slog.Int64("migrated", migrated),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *RolesBackfillJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskRolesBackfill))
	}
	return slog.Default().With(slog.String("job", TaskRolesBackfill))
}

func (j *RolesBackfillJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
