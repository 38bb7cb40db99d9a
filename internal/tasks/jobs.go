package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hugh/testforge/internal/generation"
	"github.com/hugh/testforge/pkg/queue"
	"github.com/hugh/testforge/pkg/util"
)

var ErrJobNotFound = errors.New("job not found")

// Enqueuer is the part of asynq.Client used to submit jobs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskLookup is the part of asynq.Inspector used to read job state.
type TaskLookup interface {
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
}

// Jobs submits generation runs to the worker and reports on them.
type Jobs struct {
	client    Enqueuer
	inspector TaskLookup
}

func NewJobs(client Enqueuer, inspector TaskLookup) *Jobs {
	return &Jobs{client: client, inspector: inspector}
}

type JobStatus struct {
	ID            string             `json:"id"`
	State         string             `json:"state"`
	Retried       int                `json:"retried"`
	LastError     string             `json:"last_error,omitempty"`
	CompletedAt   *time.Time         `json:"completed_at,omitempty"`
	Result        *generation.Result `json:"result,omitempty"`
	NextProcessAt *time.Time         `json:"next_process_at,omitempty"`
}

func (j *Jobs) EnqueueGeneration(ctx context.Context, userID uuid.UUID, req generation.Request) (*JobStatus, error) {
	task, err := NewGenerateTestCasesTask(GenerateTestCasesPayload{UserID: userID, Request: req})
	if err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}
	info, err := j.client.EnqueueContext(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("enqueueing generation: %w", err)
	}
	return toStatus(info), nil
}

// Status returns a generation job owned by userID.
func (j *Jobs) Status(userID uuid.UUID, id string) (*JobStatus, error) {
	info, err := j.inspector.GetTaskInfo(queue.QueueDefault, id)
	if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("inspecting job: %w", err)
	}
	if info.Type != TypeGenerateTestCases {
		return nil, ErrJobNotFound
	}

	var payload GenerateTestCasesPayload
	if err := json.Unmarshal(info.Payload, &payload); err != nil || payload.UserID != userID {
		return nil, ErrJobNotFound
	}
	return toStatus(info), nil
}

func toStatus(info *asynq.TaskInfo) *JobStatus {
	status := &JobStatus{
		ID:        info.ID,
		State:     info.State.String(),
		Retried:   info.Retried,
		LastError: info.LastErr,
	}
	if !info.CompletedAt.IsZero() {
		t := info.CompletedAt
		status.CompletedAt = &t
	}
	if !info.NextProcessAt.IsZero() {
		t := info.NextProcessAt
		status.NextProcessAt = &t
	}
	if len(info.Result) > 0 {
		var result generation.Result
		if err := json.Unmarshal(info.Result, &result); err == nil {
			status.Result = &result
		}
	}
	return status
}

// RegisterSchedules adds periodic maintenance to the scheduler.
func RegisterSchedules(scheduler *asynq.Scheduler, sessionCleanupCron string) error {
	if err := util.ValidateCronExpr(sessionCleanupCron); err != nil {
		return fmt.Errorf("SESSION_CLEANUP_CRON: %w", err)
	}
	if _, err := scheduler.Register(sessionCleanupCron, NewSessionCleanupTask()); err != nil {
		return fmt.Errorf("registering session cleanup: %w", err)
	}
	return nil
}
