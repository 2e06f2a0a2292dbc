package audit

import (
	"context"
	"log/slog"
)

// Recorder appends audit rows for mutating actions. Persistence failures are
// written to the operational log and never propagated: an audit failure must
// not block the business operation that triggered it.
type Recorder struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewRecorder constructs a Recorder.
func NewRecorder(repo RepositoryPort, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{repo: repo, logger: logger}
}

// Record appends one immutable audit row.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if r == nil || r.repo == nil {
		return
	}
	if err := r.repo.Insert(ctx, entry); err != nil {
		r.logger.Error("audit record failed",
			slog.Int64("principal_id", entry.PrincipalID),
			slog.String("action", entry.Action),
			slog.String("resource_type", entry.ResourceType),
			slog.String("resource_id", entry.ResourceID),
			slog.Any("error", err))
	}
}
