package dto

import (
	"strings"

	"github.com/hugh/testforge/internal/agents"
	"github.com/hugh/testforge/internal/generation"
	"github.com/hugh/testforge/internal/jira"
)

const maxScenarioCount = 20

// RunAgentRequest carries the task and any per-call overrides of the agent
// profile. AgentType is the older name of Kind.
type RunAgentRequest struct {
	Kind      string `json:"kind,omitempty"`
	AgentType string `json:"agent_type,omitempty"`
	Task      string `json:"task"`
	System    string `json:"system,omitempty"`
	agents.ConfigRequest
}

func (r RunAgentRequest) AgentKind() agents.Kind {
	k := strings.TrimSpace(r.Kind)
	if k == "" {
		k = strings.TrimSpace(r.AgentType)
	}
	if k == "" {
		return agents.KindCompletion
	}
	return agents.Kind(strings.ToLower(k))
}

func (r RunAgentRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if strings.TrimSpace(r.Task) == "" {
		errors["task"] = "Task is required"
	}
	if !r.AgentKind().Valid() {
		errors["kind"] = "Unsupported agent kind"
	}
	return errors
}

// GherkinRequest converts free-text scenario prose. agentId names an agent
// setting by id or name.
type GherkinRequest struct {
	AgentID  string `json:"agentId,omitempty"`
	Scenario string `json:"scenario"`
	agents.ConfigRequest
}

func (r GherkinRequest) Agent() agents.ConfigRequest {
	req := r.ConfigRequest
	if req.AgentSetting == "" {
		req.AgentSetting = strings.TrimSpace(r.AgentID)
	}
	return req
}

func (r GherkinRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if strings.TrimSpace(r.Scenario) == "" {
		errors["scenario"] = "Scenario is required"
	}
	return errors
}

type GherkinResponse struct {
	Gherkin     string `json:"gherkin"`
	ExecutionID string `json:"execution_id"`
	Provider    string `json:"provider"`
	Model       string `json:"model"`
	// Status is "completed", or "stopped" with an empty Gherkin when the
	// run was stopped through /api/agent-stop.
	Status string `json:"status"`
}

type FeatureGherkinRequest struct {
	AgentID             string `json:"agent_id,omitempty"`
	FeatureName         string `json:"feature_name"`
	ScenarioDescription string `json:"scenario_description"`
	ScenarioCount       int    `json:"scenario_count,omitempty"`
	agents.ConfigRequest
}

func (r FeatureGherkinRequest) Agent() agents.ConfigRequest {
	req := r.ConfigRequest
	if req.AgentSetting == "" {
		req.AgentSetting = strings.TrimSpace(r.AgentID)
	}
	return req
}

func (r FeatureGherkinRequest) Count() int {
	if r.ScenarioCount < 1 {
		return 1
	}
	return r.ScenarioCount
}

func (r FeatureGherkinRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if strings.TrimSpace(r.FeatureName) == "" {
		errors["feature_name"] = "Feature name is required"
	}
	if strings.TrimSpace(r.ScenarioDescription) == "" {
		errors["scenario_description"] = "Scenario description is required"
	}
	if r.ScenarioCount < 0 || r.ScenarioCount > maxScenarioCount {
		errors["scenario_count"] = "Scenario count must be between 1 and 20"
	}
	return errors
}

type FeatureGherkinResponse struct {
	Message       string `json:"message"`
	Gherkin       string `json:"gherkin"`
	FeatureName   string `json:"feature_name"`
	ScenarioCount int    `json:"scenario_count"`
	Provider      string `json:"provider"`
	Model         string `json:"model"`
}

// GenerateTestCasesRequest runs inline unless Async is set and a job queue
// is configured.
type GenerateTestCasesRequest struct {
	generation.Request
	Async bool `json:"async,omitempty"`
}

func (r GenerateTestCasesRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.NumTestCases < 0 || r.NumTestCases > 100 {
		errors["num_test_cases"] = "Number of test cases must be between 1 and 100"
	}
	if r.JiraURL != "" && !strings.HasPrefix(r.JiraURL, "http://") && !strings.HasPrefix(r.JiraURL, "https://") {
		errors["jira_url"] = "Invalid Jira URL format"
	}
	return errors
}

type SaveTestCasesRequest struct {
	TestCases []jira.TestCase `json:"test_cases"`
}

func (r SaveTestCasesRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.TestCases == nil {
		errors["test_cases"] = "Test cases are required"
	}
	for _, tc := range r.TestCases {
		if strings.TrimSpace(tc.Fields.Summary) == "" {
			errors["test_cases"] = "Every test case needs a summary"
			break
		}
	}
	return errors
}

type TestCasesResponse struct {
	TestCases []jira.TestCase `json:"test_cases"`
	Total     int             `json:"total"`
}

func NewTestCasesResponse(cases []jira.TestCase) TestCasesResponse {
	if cases == nil {
		cases = []jira.TestCase{}
	}
	return TestCasesResponse{TestCases: cases, Total: len(cases)}
}

// ImportXrayRequest may be empty, in which case the active profile is used.
type ImportXrayRequest struct {
	SettingID string `json:"setting_id,omitempty"`
}

func (r ImportXrayRequest) Validate() map[string]string {
	return nil
}

type ImportXrayResponse struct {
	Message string `json:"message"`
	JobID   string `json:"job_id"`
}
