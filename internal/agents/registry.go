// Package agents runs LLM-backed tasks on behalf of users and keeps an
// in-memory record of every execution since process start.
package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/testforge/internal/llm"
)

type Kind string

const (
	// KindCompletion sends the task to the model verbatim.
	KindCompletion Kind = "completion"
	// KindGherkin wraps the task in the scenario-to-Gherkin prompt.
	KindGherkin Kind = "gherkin"
)

func (k Kind) Valid() bool {
	return k == KindCompletion || k == KindGherkin
}

type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusStopped   Status = "stopped"
)

const DefaultHistoryLimit = 10

var (
	ErrNotFound    = errors.New("execution not found")
	ErrNotRunning  = errors.New("execution is not running")
	ErrUnknownKind = errors.New("unknown agent kind")
	ErrEmptyTask   = errors.New("task is required")
)

// Config is everything needed to bill and shape one completion.
type Config struct {
	Credentials llm.Credentials
	Model       string
	Temperature float64
	MaxTokens   int
	System      string
}

type StartInput struct {
	UserID uuid.UUID
	Kind   Kind
	Task   string
	Config Config
}

type Execution struct {
	ID          string     `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	Kind        Kind       `json:"kind"`
	Task        string     `json:"task"`
	Provider    string     `json:"provider"`
	Model       string     `json:"model"`
	Status      Status     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Duration    float64    `json:"duration_seconds"`
	Result      string     `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
}

type entry struct {
	exec   Execution
	cancel context.CancelFunc
}

// Recorder persists finished executions somewhere durable.
type Recorder interface {
	RecordExecution(ctx context.Context, exec Execution) error
}

type Option func(*Registry)

func WithRecorder(r Recorder) Option {
	return func(reg *Registry) { reg.recorder = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(reg *Registry) { reg.logger = l }
}

// Registry tracks executions by id. Entries are never evicted.
type Registry struct {
	mu         sync.RWMutex
	executions map[string]*entry

	llm      llm.Completer
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

func NewRegistry(completer llm.Completer, opts ...Option) *Registry {
	r := &Registry{
		executions: make(map[string]*entry),
		llm:        completer,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) prompt(kind Kind, task string) (string, error) {
	switch kind {
	case KindCompletion:
		return task, nil
	case KindGherkin:
		return llm.GherkinFromScenario(task)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// Start runs the task to completion before returning. The returned execution
// is never nil once the run has been registered, even when err is not.
func (r *Registry) Start(ctx context.Context, in StartInput) (*Execution, error) {
	if in.Kind == "" {
		in.Kind = KindCompletion
	}
	if strings.TrimSpace(in.Task) == "" {
		return nil, ErrEmptyTask
	}
	prompt, err := r.prompt(in.Kind, in.Task)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	e := &entry{
		exec: Execution{
			ID:        uuid.NewString(),
			UserID:    in.UserID,
			Kind:      in.Kind,
			Task:      in.Task,
			Provider:  in.Config.Credentials.Provider,
			Model:     in.Config.Model,
			Status:    StatusRunning,
			StartedAt: r.now().UTC(),
		},
		cancel: cancel,
	}

	r.mu.Lock()
	r.executions[e.exec.ID] = e
	r.mu.Unlock()

	r.logger.Info("agent execution started",
		"execution_id", e.exec.ID,
		"user_id", in.UserID,
		"kind", in.Kind,
		"provider", e.exec.Provider,
	)

	result, runErr := r.llm.Complete(runCtx, in.Config.Credentials, llm.CompletionRequest{
		Model:       in.Config.Model,
		Prompt:      prompt,
		System:      in.Config.System,
		Temperature: llm.Float(in.Config.Temperature),
		MaxTokens:   in.Config.MaxTokens,
	})

	r.mu.Lock()
	finished := r.now().UTC()
	e.exec.CompletedAt = &finished
	e.cancel = nil
	switch {
	case e.exec.Status == StatusStopped:
	case runErr != nil:
		e.exec.Status = StatusFailed
		e.exec.Error = runErr.Error()
	default:
		e.exec.Status = StatusCompleted
		e.exec.Result = result
	}
	snapshot := r.snapshot(e)
	r.mu.Unlock()

	r.logger.Info("agent execution finished",
		"execution_id", snapshot.ID,
		"status", snapshot.Status,
		"duration", snapshot.Duration,
	)

	if snapshot.Status == StatusCompleted && r.recorder != nil {
		if err := r.recorder.RecordExecution(context.WithoutCancel(ctx), *snapshot); err != nil {
			r.logger.Error("failed to record agent execution", "execution_id", snapshot.ID, "error", err)
		}
	}

	switch snapshot.Status {
	case StatusFailed:
		return snapshot, runErr
	case StatusStopped:
		return snapshot, ErrNotRunning
	}
	return snapshot, nil
}

// snapshot copies an entry; callers hold r.mu.
func (r *Registry) snapshot(e *entry) *Execution {
	exec := e.exec
	end := r.now().UTC()
	if exec.CompletedAt != nil {
		end = *exec.CompletedAt
	}
	exec.Duration = end.Sub(exec.StartedAt).Seconds()
	return &exec
}

// Status returns the execution if it belongs to userID.
func (r *Registry) Status(userID uuid.UUID, id string) (*Execution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.executions[id]
	if !ok || e.exec.UserID != userID {
		return nil, ErrNotFound
	}
	return r.snapshot(e), nil
}

// Stop cancels a running execution. Its in-flight completion is abandoned.
func (r *Registry) Stop(userID uuid.UUID, id string) (*Execution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.executions[id]
	if !ok || e.exec.UserID != userID {
		return nil, ErrNotFound
	}
	if e.exec.Status != StatusRunning {
		return r.snapshot(e), ErrNotRunning
	}

	e.exec.Status = StatusStopped
	if e.cancel != nil {
		e.cancel()
	}
	r.logger.Info("agent execution stopped", "execution_id", id)
	return r.snapshot(e), nil
}

// History lists the user's executions, newest first.
func (r *Registry) History(userID uuid.UUID, limit int) []Execution {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	r.mu.RLock()
	out := make([]Execution, 0)
	for _, e := range r.executions {
		if e.exec.UserID == userID {
			out = append(out, *r.snapshot(e))
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
