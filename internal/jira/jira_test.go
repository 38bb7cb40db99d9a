package jira_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/hugh/testforge/internal/jira"
	"github.com/hugh/testforge/internal/llm"
	"github.com/hugh/testforge/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issueJSON(key, issueType, summary, description string, linkedTests ...string) map[string]interface{} {
	links := []map[string]interface{}{}
	for i, k := range linkedTests {
		links = append(links, map[string]interface{}{
			"id":          strconv.Itoa(i + 1),
			"type":        map[string]string{"name": "Test", "inward": "is tested by", "outward": "tests"},
			"inwardIssue": map[string]string{"key": k},
		})
	}
	links = append(links, map[string]interface{}{
		"id":           "99",
		"type":         map[string]string{"name": "Blocks"},
		"outwardIssue": map[string]string{"key": "OTHER-1"},
	})
	return map[string]interface{}{
		"id":  "10001",
		"key": key,
		"fields": map[string]interface{}{
			"summary":     summary,
			"description": description,
			"issuetype":   map[string]string{"name": issueType},
			"issuelinks":  links,
		},
	}
}

type fakeJira struct {
	mu      sync.Mutex
	issues  map[string]map[string]interface{}
	deleted []string
	user    string
	pass    string
}

func (f *fakeJira) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.user, f.pass, _ = r.BasicAuth()
	const prefix = "/rest/api/2/issue/"
	if len(r.URL.Path) <= len(prefix) || r.URL.Path[:len(prefix)] != prefix {
		http.NotFound(w, r)
		return
	}
	key := r.URL.Path[len(prefix):]

	switch r.Method {
	case http.MethodGet:
		issue, ok := f.issues[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errorMessages":["Issue does not exist"]}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(issue)
	case http.MethodDelete:
		f.deleted = append(f.deleted, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newJiraClient(t *testing.T, handler http.Handler) *jira.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := jira.NewClient(jira.Credentials{
		BaseURL:  srv.URL,
		Username: "alice@example.com",
		Token:    "jira-token",
	}, 5*time.Second, util.DiscardLogger())
	require.NoError(t, err)
	return client
}

func TestFetchRequirement(t *testing.T) {
	fake := &fakeJira{issues: map[string]map[string]interface{}{
		"PROJ-1": issueJSON("PROJ-1", "Story", "Login", "Users can log in", "PROJ-7", "PROJ-8"),
	}}
	client := newJiraClient(t, fake)

	req, err := client.FetchRequirement(context.Background(), "PROJ-1")
	require.NoError(t, err)

	assert.Equal(t, "PROJ-1", req.Key)
	assert.Equal(t, "Story", req.IssueType)
	assert.Equal(t, []string{"PROJ-7", "PROJ-8"}, req.LinkedTests)
	assert.Equal(t, "Requirement summary: Login\nRequirement description: Users can log in", req.PromptText())
	assert.Equal(t, "alice@example.com", fake.user)
	assert.Equal(t, "jira-token", fake.pass)
}

func TestFetchRequirement_RejectsTestIssues(t *testing.T) {
	for _, issueType := range []string{"Test", "Test Set", "Test Plan"} {
		t.Run(issueType, func(t *testing.T) {
			fake := &fakeJira{issues: map[string]map[string]interface{}{
				"PROJ-2": issueJSON("PROJ-2", issueType, "A test", ""),
			}}
			client := newJiraClient(t, fake)

			_, err := client.FetchRequirement(context.Background(), "PROJ-2")
			assert.ErrorIs(t, err, jira.ErrNotRequirement)
		})
	}
}

func TestFetchRequirement_NotFound(t *testing.T) {
	client := newJiraClient(t, &fakeJira{issues: map[string]map[string]interface{}{}})

	_, err := client.FetchRequirement(context.Background(), "PROJ-404")
	assert.ErrorIs(t, err, jira.ErrIssueNotFound)
}

func TestFetchRequirement_UpstreamFailure(t *testing.T) {
	client := newJiraClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.FetchRequirement(context.Background(), "PROJ-1")
	var ext *llm.ExternalServiceError
	require.True(t, errors.As(err, &ext))
	assert.Equal(t, "jira", ext.Provider)
	assert.Equal(t, http.StatusUnauthorized, ext.StatusCode)
}

func TestRequirementPromptTextWithoutDescription(t *testing.T) {
	req := &jira.Requirement{Summary: "Only a summary"}
	assert.Equal(t, "Requirement summary: Only a summary\n ", req.PromptText())
}

func TestDeleteLinkedTests(t *testing.T) {
	fake := &fakeJira{issues: map[string]map[string]interface{}{}}
	client := newJiraClient(t, fake)

	deleted, err := client.DeleteLinkedTests(context.Background(), &jira.Requirement{
		Key:         "PROJ-1",
		LinkedTests: []string{"PROJ-7", "PROJ-8"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"PROJ-7", "PROJ-8"}, deleted)
	assert.Equal(t, []string{"PROJ-7", "PROJ-8"}, fake.deleted)
}

func TestNewClientRequiresURL(t *testing.T) {
	_, err := jira.NewClient(jira.Credentials{}, time.Second, util.DiscardLogger())
	assert.Error(t, err)
}
