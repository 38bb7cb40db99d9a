package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
)

var gherkinScenarioTmpl = template.Must(template.New("gherkin_scenario").Parse(
	`Convert the following manual scenario description into Cucumber Gherkin format. Include: Feature, Scenario, Given, When, Then steps.

Scenario: {{.Scenario}}

Generate valid Gherkin syntax:`))

var gherkinFeatureTmpl = template.Must(template.New("gherkin_feature").Parse(
	`You are a BDD test scenario expert. Generate {{.Count}} Gherkin scenario(s) for the feature '{{.Feature}}'. The response must be valid Gherkin format (Given/When/Then) without any additional text.

Format:
Feature: Feature Name
  Scenario: Scenario Name
    Given [precondition]
    When [action]
    Then [expected result]

Feature Description:
{{.Description}}`))

var testCasesTmpl = template.Must(template.New("test_cases").Funcs(template.FuncMap{
	"json": jsonString,
}).Parse(
	`Generate {{.Count}} test case(s) for the requirement specification below, written in {{.Language}}. The response must be valid JSON only, with no additional text or markdown.

JSON format to use:
[
    {
        "testtype": "Manual",
        "fields": {
            "project": { "key": {{json .ProjectKey}} },
            "fixVersions": [{ "name": {{json .VersionName}} }],
            "summary": "Test case 1: minimum speed check",
            "description": "Goal: verify that...\nPreconditions: ..."
        },
        "steps": [
            {
                "action": "Start a data retrieval towards ...",
                "data": "",
                "result": "The data retrieval must complete..."
            }
        ],
        "xray_test_repository_folder": {{json .FolderPath}}
    }
]

Requirement specification:
{{.Requirement}}`))

// GherkinFromScenario wraps free-text scenario prose in the conversion prompt.
func GherkinFromScenario(scenario string) (string, error) {
	return render(gherkinScenarioTmpl, struct{ Scenario string }{strings.TrimSpace(scenario)})
}

// GherkinForFeature asks for count scenarios covering a named feature.
func GherkinForFeature(feature, description string, count int) (string, error) {
	if count < 1 {
		count = 1
	}
	return render(gherkinFeatureTmpl, struct {
		Feature     string
		Description string
		Count       int
	}{strings.TrimSpace(feature), strings.TrimSpace(description), count})
}

type TestCasePrompt struct {
	Requirement string
	ProjectKey  string
	VersionName string
	FolderPath  string
	Count       int
	Language    string
}

// TestCasesForRequirement builds the Xray bulk-import shaped prompt.
func TestCasesForRequirement(p TestCasePrompt) (string, error) {
	if p.Count < 1 {
		p.Count = 1
	}
	if p.Language == "" {
		p.Language = "English"
	}
	return render(testCasesTmpl, p)
}

func render(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", t.Name(), err)
	}
	return buf.String(), nil
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// StripCodeFences removes a surrounding ``` block if the model added one.
func StripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	lines = lines[1:]
	if n := len(lines); n > 0 && strings.HasPrefix(strings.TrimSpace(lines[n-1]), "```") {
		lines = lines[:n-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// ExtractJSON returns the first JSON array or object in a model response,
// tolerating code fences and leading prose.
func ExtractJSON(text string) string {
	text = StripCodeFences(text)
	start := strings.IndexAny(text, "[{")
	if start < 0 {
		return text
	}
	closer := byte(']')
	if text[start] == '{' {
		closer = '}'
	}
	end := strings.LastIndexByte(text, closer)
	if end < start {
		return text[start:]
	}
	return text[start : end+1]
}
