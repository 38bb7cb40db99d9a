package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/testforge/internal/agents"
	"github.com/hugh/testforge/internal/api"
	"github.com/hugh/testforge/internal/artifacts"
	"github.com/hugh/testforge/internal/generation"
	"github.com/hugh/testforge/internal/jira"
	"github.com/hugh/testforge/internal/llm"
	"github.com/hugh/testforge/internal/store"
	"github.com/hugh/testforge/internal/tasks"
	"github.com/hugh/testforge/internal/testutil"
	"github.com/hugh/testforge/pkg/util"
	"github.com/stretchr/testify/require"
)

const gherkinReply = "```gherkin\nFeature: Login\n  Scenario: Valid credentials\n    Given a registered user\n```"

// fakeCompleter answers every completion with reply, or blocks until the
// request context ends when hold is set.
type fakeCompleter struct {
	mu      sync.Mutex
	reply   string
	err     error
	hold    bool
	started chan struct{}
	calls   []llm.CompletionRequest
	creds   []llm.Credentials
}

func newFakeCompleter() *fakeCompleter {
	return &fakeCompleter{reply: gherkinReply, started: make(chan struct{}, 1)}
}

func (f *fakeCompleter) Complete(ctx context.Context, creds llm.Credentials, req llm.CompletionRequest) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.creds = append(f.creds, creds)
	reply, err, hold := f.reply, f.err, f.hold
	f.mu.Unlock()

	if hold {
		f.started <- struct{}{}
		<-ctx.Done()
		return "", ctx.Err()
	}
	return reply, err
}

func (f *fakeCompleter) set(reply string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reply, f.err = reply, err
}

func (f *fakeCompleter) lastCall() (llm.Credentials, llm.CompletionRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creds[len(f.creds)-1], f.calls[len(f.calls)-1]
}

type fakeJira struct {
	creds   jira.Credentials
	deleted []string
	err     error
}

func (f *fakeJira) FetchRequirement(_ context.Context, key string) (*jira.Requirement, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &jira.Requirement{
		Key:         key,
		Summary:     "Login",
		Description: "Users log in with email and password",
		IssueType:   "Story",
		LinkedTests: []string{"PROJ-7"},
	}, nil
}

func (f *fakeJira) DeleteLinkedTests(_ context.Context, req *jira.Requirement) ([]string, error) {
	f.deleted = append(f.deleted, req.LinkedTests...)
	return req.LinkedTests, nil
}

type fakeXray struct {
	clientID string
	imported []jira.TestCase
}

func (f *fakeXray) Authenticate(_ context.Context, clientID, _ string) (string, error) {
	f.clientID = clientID
	return "xray-token", nil
}

func (f *fakeXray) ImportTests(_ context.Context, _ string, tests []jira.TestCase) (*jira.ImportResult, error) {
	f.imported = tests
	return &jira.ImportResult{JobID: "xray-job-1"}, nil
}

// fakeQueue stands in for both the asynq client and inspector.
type fakeQueue struct {
	mu    sync.Mutex
	tasks map[string]*asynq.Task
}

func (q *fakeQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := "job-" + string(rune('a'+len(q.tasks)))
	q.tasks[id] = task
	return &asynq.TaskInfo{ID: id, Queue: "default", Type: task.Type(), Payload: task.Payload(), State: asynq.TaskStatePending}, nil
}

func (q *fakeQueue) GetTaskInfo(_, id string) (*asynq.TaskInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	task, ok := q.tasks[id]
	if !ok {
		return nil, asynq.ErrTaskNotFound
	}
	return &asynq.TaskInfo{ID: id, Queue: "default", Type: task.Type(), Payload: task.Payload(), State: asynq.TaskStatePending}, nil
}

type testEnv struct {
	ts        *testutil.TestSetup
	router    http.Handler
	completer *fakeCompleter
	jira      *fakeJira
	xray      *fakeXray
	queue     *fakeQueue
	registry  *agents.Registry
}

type envOption func(*api.RouterConfig)

func withoutQueue() envOption {
	return func(cfg *api.RouterConfig) { cfg.Jobs = nil }
}

func withLLMRateLimit(n int) envOption {
	return func(cfg *api.RouterConfig) {
		cfg.LLMRateLimit = n
		cfg.RateLimitSecs = 60
	}
}

func withIPRateLimit(n int, trustProxy bool) envOption {
	return func(cfg *api.RouterConfig) {
		cfg.RateLimitReqs = n
		cfg.RateLimitSecs = 60
		cfg.TrustProxy = trustProxy
	}
}

// newTestEnv builds the full router over an in-memory database with fake
// upstreams. The user "alice" is logged in as env.ts.User.
func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	ts := testutil.NewTestContext(t)
	logger := util.DiscardLogger()

	configs := store.NewConfigService(ts.DB)
	keys := store.NewAPIKeyService(ts.DB, ts.Encryptor)
	agentSettings := store.NewAgentSettingService(ts.DB, ts.Encryptor, keys)
	jiraSettings := store.NewJiraXraySettingService(ts.DB, ts.Encryptor)
	resolver := agents.NewResolver(agentSettings, keys, configs)

	env := &testEnv{
		ts:        ts,
		completer: newFakeCompleter(),
		jira:      &fakeJira{},
		xray:      &fakeXray{},
		queue:     &fakeQueue{tasks: make(map[string]*asynq.Task)},
	}
	env.registry = agents.NewRegistry(env.completer,
		agents.WithRecorder(agents.NewConfigRecorder(configs)),
		agents.WithLogger(logger),
	)

	artifactStore, err := artifacts.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	gen := generation.NewService(jiraSettings, resolver, env.completer, artifactStore,
		"https://xray.invalid", time.Second,
		generation.WithLogger(logger),
		generation.WithXray(env.xray),
		generation.WithJiraFactory(func(creds jira.Credentials) (generation.RequirementSource, error) {
			env.jira.creds = creds
			return env.jira, nil
		}),
	)

	cfg := api.RouterConfig{
		DB:            ts.DB,
		Logger:        logger,
		AuthService:   ts.AuthService,
		Configs:       configs,
		APIKeys:       keys,
		AgentSettings: agentSettings,
		JiraXray:      jiraSettings,
		Registry:      env.registry,
		Resolver:      resolver,
		Completer:     env.completer,
		Generation:    gen,
		Jobs:          tasks.NewJobs(env.queue, env.queue),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	env.router = api.NewRouter(cfg)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, testutil.AuthenticatedRequest(t, method, path, body, token))
	return rr
}

// createOpenAIKey stores the key the default model settings resolve to.
func (e *testEnv) createOpenAIKey(t *testing.T, token string) {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/api-keys", map[string]string{
		"name":      "OpenAI",
		"key_value": "sk-abc123456789",
		"key_type":  "openai",
	}, token)
	testutil.AssertStatus(t, rr, http.StatusCreated)
}
