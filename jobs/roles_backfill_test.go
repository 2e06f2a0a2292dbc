package jobs

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/quartermaster-erp/quartermaster/internal/shared"
)

type stubAssignmentScanner struct {
	principals []int64
	assigned   map[int64]bool
	err        error
	limit      int
}

func (s *stubAssignmentScanner) ListUnassignedPrincipals(ctx context.Context, limit int) ([]int64, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.limit = limit
	var ids []int64
	for _, id := range s.principals {
		if s.assigned[id] {
			continue
		}
		ids = append(ids, id)
		if len(ids) == limit {
			break
		}
	}
	return ids, nil
}

type stubBackfillResolver struct {
	resolved []int64
	failFor  map[int64]error
}

func (s *stubBackfillResolver) Resolve(ctx context.Context, principalID int64) (string, error) {
	s.resolved = append(s.resolved, principalID)
	if err := s.failFor[principalID]; err != nil {
		return "", err
	}
	return "viewer", nil
}

func backfillTask(t *testing.T, batchSize int) *asynq.Task {
	t.Helper()
	task, err := NewRolesBackfillTask(batchSize)
	require.NoError(t, err)
	return task
}

func newBackfillJob(scanner AssignmentScanner, resolver RoleResolver) *RolesBackfillJob {
	return NewRolesBackfillJob(scanner, resolver,
		slog.New(slog.NewTextHandler(io.Discard, nil)), testJobMetrics())
}

func TestRolesBackfillSkipsAssignedPrincipals(t *testing.T) {
	scanner := &stubAssignmentScanner{
		principals: []int64{1, 2, 3, 4},
		assigned:   map[int64]bool{2: true, 4: true},
	}
	resolver := &stubBackfillResolver{}
	job := newBackfillJob(scanner, resolver)

	require.NoError(t, job.Handle(context.Background(), backfillTask(t, 10)))
	require.Equal(t, []int64{1, 3}, resolver.resolved)
}

func TestRolesBackfillContinuesOnResolveFailure(t *testing.T) {
	scanner := &stubAssignmentScanner{principals: []int64{1, 2, 3}}
	resolver := &stubBackfillResolver{
		failFor: map[int64]error{2: shared.ErrStoreUnavailable},
	}
	job := newBackfillJob(scanner, resolver)

	// One failed principal does not abort the batch.
	require.NoError(t, job.Handle(context.Background(), backfillTask(t, 10)))
	require.Equal(t, []int64{1, 2, 3}, resolver.resolved)
}

func TestRolesBackfillScanFailurePropagates(t *testing.T) {
	scanner := &stubAssignmentScanner{err: shared.ErrStoreUnavailable}
	job := newBackfillJob(scanner, &stubBackfillResolver{})

	err := job.Handle(context.Background(), backfillTask(t, 10))
	require.ErrorIs(t, err, shared.ErrStoreUnavailable)
}

func TestRolesBackfillDefaultsBatchSize(t *testing.T) {
	scanner := &stubAssignmentScanner{principals: []int64{1}}
	job := newBackfillJob(scanner, &stubBackfillResolver{})

	require.NoError(t, job.Handle(context.Background(), backfillTask(t, 0)))
	require.Equal(t, 500, scanner.limit)
}
