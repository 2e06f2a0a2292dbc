package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionsPurge removes expired session rows.
	TaskSessionsPurge = "sessions:purge"
	// TaskRolesBackfill migrates principals still living on the legacy
	// access flag to explicit role assignments.
	TaskRolesBackfill = "roles:backfill"
)

// SessionsPurgePayload carries scheduling metadata for the purge task.
type SessionsPurgePayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewSessionsPurgeTask constructs an Asynq task for the session purge.
func NewSessionsPurgeTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(SessionsPurgePayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionsPurge, body, asynq.Queue(QueueDefault)), nil
}

// RolesBackfillPayload bounds a single backfill run.
type RolesBackfillPayload struct {
	BatchSize int `json:"batch_size"`
}

// NewRolesBackfillTask constructs an Asynq task for the role backfill.
func NewRolesBackfillTask(batchSize int) (*asynq.Task, error) {
	body, err := json.Marshal(RolesBackfillPayload{BatchSize: batchSize})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRolesBackfill, body, asynq.Queue(QueueDefault)), nil
}
