package handlers_test

import (
	"net/http"
	"testing"

	"github.com/hugh/testforge/internal/api/dto"
	"github.com/hugh/testforge/internal/generation"
	"github.com/hugh/testforge/internal/jira"
	"github.com/hugh/testforge/internal/tasks"
	"github.com/hugh/testforge/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCasesReply = "```json\n" + `[
  {"testtype":"Manual","fields":{"summary":"Valid login","description":"Goal: log in"},"steps":[{"action":"Submit the form","data":"","result":"Dashboard is shown"}]},
  {"fields":{"summary":"Wrong password"},"steps":[]}
]` + "\n```"

func (e *testEnv) createJiraProfile(t *testing.T, token string) {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/jira-xray-settings", map[string]interface{}{
		"name":                 "main",
		"jira_url":             "https://jira.example.com",
		"jira_username":        "alice@example.com",
		"jira_requirement_key": "PROJ-1",
		"jira_api_token":       "jira-token",
		"project_key":          "PROJ",
		"version_name":         "1.0",
		"xray_folder_path":     "/Login",
		"xray_client_id":       "client",
		"xray_client_secret":   "secret",
		"num_test_cases":       2,
	}, token)
	testutil.AssertStatus(t, rr, http.StatusCreated)
}

func TestTestCaseHandler_GenerateAndImport(t *testing.T) {
	env := newTestEnv(t)
	token := env.ts.Token
	env.createOpenAIKey(t, token)
	env.createJiraProfile(t, token)
	env.completer.set(testCasesReply, nil)

	rr := env.do(t, http.MethodGet, "/api/test-cases/latest", nil, token)
	testutil.AssertStatus(t, rr, http.StatusNotFound)

	rr = env.do(t, http.MethodPost, "/api/import-xray", nil, token)
	testutil.AssertStatus(t, rr, http.StatusNotFound)

	rr = env.do(t, http.MethodPost, "/api/generate-test-cases", map[string]interface{}{"delete_existing": true}, token)
	testutil.AssertStatus(t, rr, http.StatusOK)
	var result generation.Result
	testutil.ParseJSONResponse(t, rr, &result)
	assert.Equal(t, "PROJ-1", result.RequirementKey)
	require.Len(t, result.TestCases, 2)
	assert.Equal(t, "PROJ", result.TestCases[1].Fields.Project.Key)
	assert.Equal(t, "/Login", result.TestCases[1].Folder)
	assert.Equal(t, []string{"PROJ-7"}, result.DeletedTests)
	assert.Equal(t, "jira-token", env.jira.creds.Token)

	_, call := env.completer.lastCall()
	assert.Contains(t, call.Prompt, "Users log in with email and password")

	rr = env.do(t, http.MethodGet, "/api/test-cases/latest", nil, token)
	testutil.AssertStatus(t, rr, http.StatusOK)
	var latest dto.TestCasesResponse
	testutil.ParseJSONResponse(t, rr, &latest)
	assert.Equal(t, 2, latest.Total)

	edited := latest.TestCases[:1]
	edited[0].Fields.Summary = "Valid login (edited)"
	rr = env.do(t, http.MethodPut, "/api/test-cases/latest", map[string]interface{}{"test_cases": edited}, token)
	testutil.AssertStatus(t, rr, http.StatusOK)

	rr = env.do(t, http.MethodPut, "/api/test-cases/latest", map[string]interface{}{
		"test_cases": []jira.TestCase{{}},
	}, token)
	testutil.AssertStatus(t, rr, http.StatusBadRequest)

	rr = env.do(t, http.MethodPost, "/api/import-xray", map[string]string{"setting_id": "main"}, token)
	testutil.AssertStatus(t, rr, http.StatusOK)
	var imported dto.ImportXrayResponse
	testutil.ParseJSONResponse(t, rr, &imported)
	assert.Equal(t, "xray-job-1", imported.JobID)
	assert.Equal(t, "client", env.xray.clientID)
	require.Len(t, env.xray.imported, 1)
	assert.Equal(t, "Valid login (edited)", env.xray.imported[0].Fields.Summary)

	// Another user has no batch of their own.
	_, bobToken := env.ts.AddUser(t, "bob")
	rr = env.do(t, http.MethodGet, "/api/test-cases/latest", nil, bobToken)
	testutil.AssertStatus(t, rr, http.StatusNotFound)
}

func TestTestCaseHandler_GenerateErrors(t *testing.T) {
	env := newTestEnv(t)
	token := env.ts.Token
	env.createOpenAIKey(t, token)

	t.Run("no profile", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/api/generate-test-cases", map[string]interface{}{}, token)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("request validation", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/api/generate-test-cases", map[string]interface{}{"num_test_cases": 500}, token)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)

		rr = env.do(t, http.MethodPost, "/api/generate-test-cases", map[string]interface{}{"jira_url": "jira.local"}, token)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("jira issue missing", func(t *testing.T) {
		env.createJiraProfile(t, token)
		env.jira.err = jira.ErrIssueNotFound
		defer func() { env.jira.err = nil }()

		rr := env.do(t, http.MethodPost, "/api/generate-test-cases", map[string]interface{}{}, token)
		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})

	t.Run("model returns prose", func(t *testing.T) {
		env.completer.set("I cannot help with that", nil)
		rr := env.do(t, http.MethodPost, "/api/generate-test-cases", map[string]interface{}{}, token)
		testutil.AssertStatus(t, rr, http.StatusBadGateway)
	})
}

func TestTestCaseHandler_AsyncJobs(t *testing.T) {
	env := newTestEnv(t)
	token := env.ts.Token

	rr := env.do(t, http.MethodPost, "/api/generate-test-cases", map[string]interface{}{
		"async":                true,
		"jira_requirement_key": "PROJ-2",
	}, token)
	testutil.AssertStatus(t, rr, http.StatusAccepted)
	var job tasks.JobStatus
	testutil.ParseJSONResponse(t, rr, &job)
	require.NotEmpty(t, job.ID)
	assert.Equal(t, "pending", job.State)

	rr = env.do(t, http.MethodGet, "/api/test-cases/jobs/"+job.ID, nil, token)
	testutil.AssertStatus(t, rr, http.StatusOK)

	_, bobToken := env.ts.AddUser(t, "bob")
	rr = env.do(t, http.MethodGet, "/api/test-cases/jobs/"+job.ID, nil, bobToken)
	testutil.AssertStatus(t, rr, http.StatusNotFound)

	rr = env.do(t, http.MethodGet, "/api/test-cases/jobs/unknown", nil, token)
	testutil.AssertStatus(t, rr, http.StatusNotFound)
}

func TestTestCaseHandler_AsyncWithoutQueueRunsInline(t *testing.T) {
	env := newTestEnv(t, withoutQueue())
	token := env.ts.Token
	env.createOpenAIKey(t, token)
	env.createJiraProfile(t, token)
	env.completer.set(testCasesReply, nil)

	rr := env.do(t, http.MethodPost, "/api/generate-test-cases", map[string]interface{}{"async": true}, token)
	testutil.AssertStatus(t, rr, http.StatusOK)

	rr = env.do(t, http.MethodGet, "/api/test-cases/jobs/anything", nil, token)
	testutil.AssertStatus(t, rr, http.StatusNotFound)
}
