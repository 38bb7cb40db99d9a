package tasks

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hugh/testforge/internal/generation"
	"github.com/hugh/testforge/pkg/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	tasks map[string]*asynq.TaskInfo
}

func (f *fakeQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	info := &asynq.TaskInfo{
		ID:      uuid.NewString(),
		Queue:   queue.QueueDefault,
		Type:    task.Type(),
		Payload: task.Payload(),
		State:   asynq.TaskStatePending,
	}
	f.tasks[info.ID] = info
	return info, nil
}

func (f *fakeQueue) GetTaskInfo(q, id string) (*asynq.TaskInfo, error) {
	info, ok := f.tasks[id]
	if !ok || info.Queue != q {
		return nil, asynq.ErrTaskNotFound
	}
	return info, nil
}

func TestJobs_EnqueueAndStatus(t *testing.T) {
	q := &fakeQueue{tasks: map[string]*asynq.TaskInfo{}}
	jobs := NewJobs(q, q)
	owner := uuid.New()

	status, err := jobs.EnqueueGeneration(context.Background(), owner, generation.Request{RequirementKey: "PROJ-1"})
	require.NoError(t, err)
	assert.Equal(t, "pending", status.State)

	got, err := jobs.Status(owner, status.ID)
	require.NoError(t, err)
	assert.Equal(t, status.ID, got.ID)
	assert.Nil(t, got.Result)

	_, err = jobs.Status(uuid.New(), status.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)

	_, err = jobs.Status(owner, "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestJobs_StatusIncludesResult(t *testing.T) {
	q := &fakeQueue{tasks: map[string]*asynq.TaskInfo{}}
	jobs := NewJobs(q, q)
	owner := uuid.New()

	status, err := jobs.EnqueueGeneration(context.Background(), owner, generation.Request{})
	require.NoError(t, err)

	result, err := json.Marshal(generation.Result{RequirementKey: "PROJ-1"})
	require.NoError(t, err)
	info := q.tasks[status.ID]
	info.State = asynq.TaskStateCompleted
	info.CompletedAt = time.Now()
	info.Result = result

	got, err := jobs.Status(owner, status.ID)
	require.NoError(t, err)
	assert.Equal(t, "completed", got.State)
	require.NotNil(t, got.Result)
	assert.Equal(t, "PROJ-1", got.Result.RequirementKey)
	assert.NotNil(t, got.CompletedAt)
}

func TestRegisterSchedules_RejectsBadCron(t *testing.T) {
	err := RegisterSchedules(nil, "not a cron")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_CLEANUP_CRON")
}
