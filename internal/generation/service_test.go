package generation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hugh/testforge/internal/agents"
	"github.com/hugh/testforge/internal/artifacts"
	"github.com/hugh/testforge/internal/generation"
	"github.com/hugh/testforge/internal/jira"
	"github.com/hugh/testforge/internal/llm"
	"github.com/hugh/testforge/internal/store"
	"github.com/hugh/testforge/internal/testutil"
	"github.com/hugh/testforge/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJira struct {
	creds       jira.Credentials
	requirement *jira.Requirement
	fetchErr    error
	deleted     []string
}

func (f *fakeJira) FetchRequirement(_ context.Context, key string) (*jira.Requirement, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	r := *f.requirement
	r.Key = key
	return &r, nil
}

func (f *fakeJira) DeleteLinkedTests(_ context.Context, req *jira.Requirement) ([]string, error) {
	f.deleted = append(f.deleted, req.LinkedTests...)
	return req.LinkedTests, nil
}

type fakeXray struct {
	clientID, secret string
	imported         []jira.TestCase
}

func (f *fakeXray) Authenticate(_ context.Context, clientID, secret string) (string, error) {
	f.clientID, f.secret = clientID, secret
	return "token", nil
}

func (f *fakeXray) ImportTests(_ context.Context, token string, tests []jira.TestCase) (*jira.ImportResult, error) {
	f.imported = tests
	return &jira.ImportResult{JobID: "job-1"}, nil
}

type completerFunc func(ctx context.Context, creds llm.Credentials, req llm.CompletionRequest) (string, error)

func (f completerFunc) Complete(ctx context.Context, creds llm.Credentials, req llm.CompletionRequest) (string, error) {
	return f(ctx, creds, req)
}

const modelOutput = "```json\n" + `[
  {"testtype":"Manual","fields":{"summary":"Valid login","description":"Goal"},"steps":[{"action":"Log in","data":"","result":"Dashboard"}]},
  {"fields":{"project":{"key":"OTHER"},"summary":"Invalid login"},"steps":[],"xray_test_repository_folder":"/Custom"}
]` + "\n```"

type fixture struct {
	ts       *testutil.TestSetup
	settings *store.JiraXraySettingService
	keys     *store.APIKeyService
	jira     *fakeJira
	xray     *fakeXray
	prompt   string
	svc      *generation.Service
}

func newFixture(t *testing.T, output string) *fixture {
	t.Helper()
	ts := testutil.NewTestContext(t)
	keys := store.NewAPIKeyService(ts.DB, ts.Encryptor)
	configs := store.NewConfigService(ts.DB)
	agentSettings := store.NewAgentSettingService(ts.DB, ts.Encryptor, keys)
	settings := store.NewJiraXraySettingService(ts.DB, ts.Encryptor)

	artifactStore, err := artifacts.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	f := &fixture{
		ts:       ts,
		settings: settings,
		keys:     keys,
		jira: &fakeJira{requirement: &jira.Requirement{
			Summary:     "Login",
			Description: "Users log in with email",
			IssueType:   "Story",
			LinkedTests: []string{"PROJ-9"},
		}},
		xray: &fakeXray{},
	}

	completer := completerFunc(func(_ context.Context, creds llm.Credentials, req llm.CompletionRequest) (string, error) {
		f.prompt = req.Prompt
		return output, nil
	})

	f.svc = generation.NewService(settings, agents.NewResolver(agentSettings, keys, configs), completer, artifactStore,
		"https://xray.invalid", time.Second,
		generation.WithLogger(util.DiscardLogger()),
		generation.WithXray(f.xray),
		generation.WithJiraFactory(func(creds jira.Credentials) (generation.RequirementSource, error) {
			f.jira.creds = creds
			return f.jira, nil
		}),
	)

	_, err = keys.Create(context.Background(), ts.User.ID, store.APIKeyInput{Name: "OpenAI", Value: "sk-abc123456789", KeyType: "openai"})
	require.NoError(t, err)
	return f
}

func (f *fixture) createProfile(t *testing.T) {
	t.Helper()
	_, err := f.settings.Create(context.Background(), f.ts.User.ID, store.JiraXrayInput{
		Name:               "main",
		JiraURL:            "https://jira.example.com",
		JiraUsername:       "alice@example.com",
		JiraRequirementKey: "PROJ-1",
		JiraToken:          "jira-token",
		ProjectKey:         "PROJ",
		VersionName:        "1.0",
		XrayFolderPath:     "/Login",
		XrayClientID:       "client",
		XraySecret:         "secret",
		NumTestCases:       2,
	})
	require.NoError(t, err)
}

func TestGenerate_UsesActiveProfile(t *testing.T) {
	f := newFixture(t, modelOutput)
	f.createProfile(t)
	ctx := context.Background()

	result, err := f.svc.Generate(ctx, f.ts.User.ID, generation.Request{})
	require.NoError(t, err)

	assert.Equal(t, "PROJ-1", result.RequirementKey)
	assert.Equal(t, jira.Credentials{BaseURL: "https://jira.example.com", Username: "alice@example.com", Token: "jira-token"}, f.jira.creds)
	assert.Contains(t, f.prompt, "Generate 2 test case(s)")
	assert.Contains(t, f.prompt, "Requirement summary: Login")
	assert.Empty(t, f.jira.deleted)

	require.Len(t, result.TestCases, 2)
	first := result.TestCases[0]
	assert.Equal(t, "PROJ", first.Fields.Project.Key)
	assert.Equal(t, []jira.VersionRef{{Name: "1.0"}}, first.Fields.FixVersions)
	assert.Equal(t, "/Login", first.Folder)
	second := result.TestCases[1]
	assert.Equal(t, "Manual", second.TestType)
	assert.Equal(t, "OTHER", second.Fields.Project.Key)
	assert.Equal(t, "/Custom", second.Folder)

	latest, err := f.svc.Latest(ctx, f.ts.User.ID)
	require.NoError(t, err)
	assert.Equal(t, result.TestCases, latest)
}

func TestGenerate_InlineFieldsAndDelete(t *testing.T) {
	f := newFixture(t, modelOutput)

	result, err := f.svc.Generate(context.Background(), f.ts.User.ID, generation.Request{
		RequirementKey: "abc-7",
		JiraURL:        "https://other.example.com",
		JiraUsername:   "bob",
		JiraToken:      "t",
		NumTestCases:   3,
		DeleteExisting: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "ABC-7", result.RequirementKey)
	assert.Equal(t, []string{"PROJ-9"}, result.DeletedTests)
	assert.Equal(t, "ABC", result.TestCases[0].Fields.Project.Key)
	assert.Contains(t, f.prompt, "Generate 3 test case(s)")
}

func TestGenerate_Errors(t *testing.T) {
	f := newFixture(t, modelOutput)
	ctx := context.Background()

	_, err := f.svc.Generate(ctx, f.ts.User.ID, generation.Request{})
	assert.ErrorIs(t, err, generation.ErrNoJiraSettings)

	_, err = f.svc.Generate(ctx, f.ts.User.ID, generation.Request{SettingID: "nope"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	f.createProfile(t)
	_, err = f.svc.Generate(ctx, f.ts.User.ID, generation.Request{NumTestCases: 1000})
	var verr *store.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "num_test_cases")

	f.jira.fetchErr = jira.ErrNotRequirement
	_, err = f.svc.Generate(ctx, f.ts.User.ID, generation.Request{})
	assert.ErrorIs(t, err, jira.ErrNotRequirement)

	_, err = f.svc.Latest(ctx, f.ts.User.ID)
	assert.ErrorIs(t, err, artifacts.ErrNotFound)
}

func TestGenerate_InvalidModelOutput(t *testing.T) {
	f := newFixture(t, "I cannot help with that")
	f.createProfile(t)

	_, err := f.svc.Generate(context.Background(), f.ts.User.ID, generation.Request{})
	var ext *llm.ExternalServiceError
	require.True(t, errors.As(err, &ext))
	assert.Equal(t, "openai", ext.Provider)
}

func TestParseTestCases_SingleObject(t *testing.T) {
	cases, err := generation.ParseTestCases(`Here you go: {"testtype":"Manual","fields":{"summary":"one"},"steps":[]}`)
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, "one", cases[0].Fields.Summary)
}

func TestSaveLatestAndImport(t *testing.T) {
	f := newFixture(t, modelOutput)
	f.createProfile(t)
	ctx := context.Background()

	edited := []jira.TestCase{{TestType: "Manual", Fields: jira.TestFields{Summary: "edited"}}}
	require.NoError(t, f.svc.SaveLatest(ctx, f.ts.User.ID, edited))

	result, err := f.svc.ImportToXray(ctx, f.ts.User.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "job-1", result.JobID)
	assert.Equal(t, "client", f.xray.clientID)
	assert.Equal(t, "secret", f.xray.secret)
	assert.Equal(t, edited, f.xray.imported)

	other, _ := f.ts.AddUser(t, "bob")
	_, err = f.svc.Latest(ctx, other.ID)
	assert.ErrorIs(t, err, artifacts.ErrNotFound)
}

func TestImportRequiresXrayCredentials(t *testing.T) {
	f := newFixture(t, modelOutput)
	ctx := context.Background()

	setting, err := f.settings.Create(ctx, f.ts.User.ID, store.JiraXrayInput{
		Name: "no-xray", JiraURL: "https://jira.example.com", JiraUsername: "a",
	})
	require.NoError(t, err)

	_, err = f.svc.ImportToXray(ctx, f.ts.User.ID, setting.ID.String())
	var verr *store.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "xray_client_id")
	assert.Contains(t, verr.Fields, "xray_client_secret")
}
