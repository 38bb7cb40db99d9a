package tasks

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hugh/testforge/internal/generation"
	"github.com/hugh/testforge/pkg/queue"
)

// Task type names
const (
	TypeGenerateTestCases = "generation:test_cases"
	TypeSessionCleanup    = "maintenance:session_cleanup"
)

// Finished generation jobs stay inspectable for this long.
const resultRetention = 24 * time.Hour

// GenerateTestCasesPayload carries one queued generation run.
type GenerateTestCasesPayload struct {
	UserID  uuid.UUID          `json:"user_id"`
	Request generation.Request `json:"request"`
}

func NewGenerateTestCasesTask(payload GenerateTestCasesPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeGenerateTestCases, data,
		asynq.Queue(queue.QueueDefault),
		asynq.MaxRetry(1),
		asynq.Retention(resultRetention),
	), nil
}

// SessionCleanupPayload is empty - every expired session is purged
type SessionCleanupPayload struct{}

func NewSessionCleanupTask() *asynq.Task {
	return asynq.NewTask(TypeSessionCleanup, nil, asynq.Queue(queue.QueueLow))
}
