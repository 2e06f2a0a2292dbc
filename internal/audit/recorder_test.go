package audit

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quartermaster-erp/quartermaster/internal/shared"
)

func TestRecorderAppends(t *testing.T) {
	repo := &stubTimelineRepo{}
	rec := NewRecorder(repo, slog.Default())

	rec.Record(context.Background(), Entry{
		PrincipalID:  7,
		Action:       "update",
		ResourceType: "role_assignment",
		ResourceID:   "42",
		OldValue:     map[string]string{"role": "viewer"},
		NewValue:     map[string]string{"role": "manager"},
		Origin:       "10.0.0.1",
		Agent:        "curl/8.0",
	})

	require.Len(t, repo.inserted, 1)
	require.Equal(t, "update", repo.inserted[0].Action)
}

func TestRecorderSwallowsStoreFailures(t *testing.T) {
	repo := &stubTimelineRepo{insertErr: shared.ErrStoreUnavailable}
	rec := NewRecorder(repo, slog.Default())

	// Must not panic and must not surface the failure in any way.
	rec.Record(context.Background(), Entry{PrincipalID: 1, Action: "create", ResourceType: "role", ResourceID: "9"})
	require.Empty(t, repo.inserted)
}

func TestRecorderNilSafety(t *testing.T) {
	var rec *Recorder
	rec.Record(context.Background(), Entry{Action: "noop"})
}
