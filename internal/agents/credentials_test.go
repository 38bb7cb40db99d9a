package agents_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hugh/testforge/internal/agents"
	"github.com/hugh/testforge/internal/database/models"
	"github.com/hugh/testforge/internal/llm"
	"github.com/hugh/testforge/internal/store"
	"github.com/hugh/testforge/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	ts       *testutil.TestSetup
	keys     *store.APIKeyService
	settings *store.AgentSettingService
	configs  *store.ConfigService
	resolver *agents.Resolver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ts := testutil.NewTestContext(t)
	keys := store.NewAPIKeyService(ts.DB, ts.Encryptor)
	settings := store.NewAgentSettingService(ts.DB, ts.Encryptor, keys)
	configs := store.NewConfigService(ts.DB)
	return &fixture{
		ts:       ts,
		keys:     keys,
		settings: settings,
		configs:  configs,
		resolver: agents.NewResolver(settings, keys, configs),
	}
}

func TestResolve_DefaultsNeedAKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.resolver.Resolve(ctx, f.ts.User.ID, agents.ConfigRequest{})
	assert.ErrorIs(t, err, llm.ErrMissingAPIKey)

	_, err = f.keys.Create(ctx, f.ts.User.ID, store.APIKeyInput{Name: "OpenAI", Value: "sk-abc123456789", KeyType: "openai"})
	require.NoError(t, err)

	cfg, err := f.resolver.Resolve(ctx, f.ts.User.ID, agents.ConfigRequest{})
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Credentials.Provider)
	assert.Equal(t, "sk-abc123456789", cfg.Credentials.APIKey)
	assert.Equal(t, "gpt-4o", cfg.Model)
}

func TestResolve_RequestOverrides(t *testing.T) {
	f := newFixture(t)
	temp := 0.1

	cfg, err := f.resolver.Resolve(context.Background(), f.ts.User.ID, agents.ConfigRequest{
		Provider:    "Ollama",
		Model:       "llama3",
		BaseURL:     "http://localhost:11434/v1",
		Temperature: &temp,
	})
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.Credentials.Provider)
	assert.Empty(t, cfg.Credentials.APIKey)
	assert.Equal(t, "llama3", cfg.Model)
	assert.Equal(t, 0.1, cfg.Temperature)

	_, err = f.resolver.Resolve(context.Background(), f.ts.User.ID, agents.ConfigRequest{Provider: "skynet"})
	assert.ErrorIs(t, err, llm.ErrUnsupportedProvider)
}

func TestResolve_AgentSetting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.settings.Create(ctx, f.ts.User.ID, store.AgentSettingInput{
		Name: "writer", Provider: "anthropic", Model: "claude-3", APIKey: "sk-ant-embedded",
	})
	require.NoError(t, err)

	cfg, err := f.resolver.Resolve(ctx, f.ts.User.ID, agents.ConfigRequest{AgentSetting: "writer"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.Credentials.Provider)
	assert.Equal(t, "sk-ant-embedded", cfg.Credentials.APIKey)
	assert.Equal(t, "claude-3", cfg.Model)

	_, err = f.resolver.Resolve(ctx, f.ts.User.ID, agents.ConfigRequest{AgentSetting: "missing"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestConfigRecorder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := agents.NewConfigRecorder(f.configs)

	exec := agents.Execution{
		ID:     "0123456789abcdef",
		UserID: f.ts.User.ID,
		Kind:   agents.KindCompletion,
		Task:   "check the login page",
		Status: agents.StatusCompleted,
		Result: "ok",
	}
	require.NoError(t, rec.RecordExecution(ctx, exec))

	cfg, err := f.configs.Get(ctx, f.ts.User.ID, "Execution: 01234567", models.ConfigTypeAgentExecution)
	require.NoError(t, err)
	assert.Equal(t, "Agent: completion, Task: check the login page...", cfg.Description)

	var stored agents.Execution
	require.NoError(t, json.Unmarshal(cfg.Data, &stored))
	assert.Equal(t, "ok", stored.Result)
}
