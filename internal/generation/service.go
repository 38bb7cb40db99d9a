// Package generation turns Jira requirements into Xray test cases with an
// LLM and keeps the latest batch per user.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/testforge/internal/agents"
	"github.com/hugh/testforge/internal/artifacts"
	"github.com/hugh/testforge/internal/database/models"
	"github.com/hugh/testforge/internal/jira"
	"github.com/hugh/testforge/internal/llm"
	"github.com/hugh/testforge/internal/store"
	"github.com/hugh/testforge/internal/validation"
)

var ErrNoJiraSettings = errors.New("no active Jira/Xray settings")

// RequirementSource is the Jira side of a generation run.
type RequirementSource interface {
	FetchRequirement(ctx context.Context, key string) (*jira.Requirement, error)
	DeleteLinkedTests(ctx context.Context, req *jira.Requirement) ([]string, error)
}

// XrayImporter pushes a batch to Xray.
type XrayImporter interface {
	Authenticate(ctx context.Context, clientID, clientSecret string) (string, error)
	ImportTests(ctx context.Context, token string, tests []jira.TestCase) (*jira.ImportResult, error)
}

type JiraFactory func(creds jira.Credentials) (RequirementSource, error)

// Request describes one generation run. Empty fields fall back to the
// Jira/Xray profile named by SettingID, or the user's active profile.
type Request struct {
	SettingID      string               `json:"setting_id,omitempty"`
	RequirementKey string               `json:"jira_requirement_key,omitempty"`
	JiraURL        string               `json:"jira_url,omitempty"`
	JiraUsername   string               `json:"jira_username,omitempty"`
	JiraToken      string               `json:"jira_api_token,omitempty"`
	ProjectKey     string               `json:"project_key,omitempty"`
	VersionName    string               `json:"version_name,omitempty"`
	FolderPath     string               `json:"xray_folder_path,omitempty"`
	NumTestCases   int                  `json:"num_test_cases,omitempty"`
	DeleteExisting bool                 `json:"delete_existing,omitempty"`
	Language       string               `json:"language,omitempty"`
	Agent          agents.ConfigRequest `json:"agent,omitempty"`
}

type Result struct {
	RequirementKey string          `json:"requirement_key"`
	TestCases      []jira.TestCase `json:"test_cases"`
	DeletedTests   []string        `json:"deleted_tests,omitempty"`
	GeneratedAt    time.Time       `json:"generated_at"`
}

type Option func(*Service)

func WithJiraFactory(f JiraFactory) Option {
	return func(s *Service) { s.jira = f }
}

func WithXray(x XrayImporter) Option {
	return func(s *Service) { s.xray = x }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

type Service struct {
	settings  *store.JiraXraySettingService
	resolver  *agents.Resolver
	llm       llm.Completer
	artifacts artifacts.Store
	jira      JiraFactory
	xray      XrayImporter
	logger    *slog.Logger
	now       func() time.Time
}

// NewService wires the default Jira and Xray clients with timeout unless
// overridden by options.
func NewService(settings *store.JiraXraySettingService, resolver *agents.Resolver, completer llm.Completer, artifactStore artifacts.Store, xrayBaseURL string, timeout time.Duration, opts ...Option) *Service {
	s := &Service{
		settings:  settings,
		resolver:  resolver,
		llm:       completer,
		artifacts: artifactStore,
		xray:      jira.NewXrayClient(xrayBaseURL, timeout),
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.jira == nil {
		logger := s.logger
		s.jira = func(creds jira.Credentials) (RequirementSource, error) {
			client, err := jira.NewClient(creds, timeout, logger)
			if err != nil {
				return nil, err
			}
			return client, nil
		}
	}
	return s
}

// profile loads the Jira/Xray settings a request refers to. With no id and
// complete inline Jira fields no profile is needed.
func (s *Service) profile(ctx context.Context, userID uuid.UUID, settingID string, inlineComplete bool) (*models.JiraXraySetting, error) {
	if settingID != "" {
		return s.settings.Get(ctx, userID, settingID)
	}
	if inlineComplete {
		return nil, nil
	}
	setting, err := s.settings.Active(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoJiraSettings
	}
	return setting, err
}

type resolvedRequest struct {
	jira jira.Credentials
	key  string
	llm.TestCasePrompt
}

func (s *Service) merge(ctx context.Context, userID uuid.UUID, req Request) (*resolvedRequest, error) {
	inline := req.JiraURL != "" && req.JiraUsername != "" && req.JiraToken != "" && req.RequirementKey != ""
	setting, err := s.profile(ctx, userID, req.SettingID, inline)
	if err != nil {
		return nil, err
	}

	r := &resolvedRequest{}
	if setting != nil {
		secrets, err := s.settings.Secrets(setting)
		if err != nil {
			return nil, err
		}
		r.jira = jira.Credentials{BaseURL: setting.JiraURL, Username: setting.JiraUsername, Token: secrets.JiraToken}
		r.key = setting.JiraRequirementKey
		r.ProjectKey = setting.ProjectKey
		r.VersionName = setting.VersionName
		r.FolderPath = setting.XrayFolderPath
		r.Count = setting.NumTestCases
	}

	override := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	override(&r.jira.BaseURL, req.JiraURL)
	override(&r.jira.Username, req.JiraUsername)
	override(&r.jira.Token, req.JiraToken)
	override(&r.key, strings.ToUpper(req.RequirementKey))
	override(&r.ProjectKey, strings.ToUpper(req.ProjectKey))
	override(&r.VersionName, req.VersionName)
	override(&r.FolderPath, req.FolderPath)
	override(&r.Language, req.Language)
	if req.NumTestCases != 0 {
		r.Count = req.NumTestCases
	}
	if r.Count == 0 {
		r.Count = models.DefaultNumTestCases
	}
	if r.ProjectKey == "" {
		if i := strings.IndexByte(r.key, '-'); i > 0 {
			r.ProjectKey = r.key[:i]
		}
	}

	fields := make(map[string]string)
	if !validation.IsValidIssueKey(r.key) {
		fields["jira_requirement_key"] = "A requirement key like PROJ-123 is required"
	}
	if !validation.IsValidHTTPURL(r.jira.BaseURL) {
		fields["jira_url"] = "Jira URL must be an http(s) URL"
	}
	if r.jira.Username == "" {
		fields["jira_username"] = "Jira username is required"
	}
	if r.jira.Token == "" {
		fields["jira_api_token"] = "Jira API token is required"
	}
	if r.Count < 1 || r.Count > models.MaxNumTestCases {
		fields["num_test_cases"] = fmt.Sprintf("Number of test cases must be between 1 and %d", models.MaxNumTestCases)
	}
	if len(fields) > 0 {
		return nil, &store.ValidationError{Fields: fields}
	}
	return r, nil
}

// Generate runs the whole pipeline and stores the batch as the user's latest.
func (s *Service) Generate(ctx context.Context, userID uuid.UUID, req Request) (*Result, error) {
	r, err := s.merge(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	agentCfg, err := s.resolver.Resolve(ctx, userID, req.Agent)
	if err != nil {
		return nil, err
	}

	source, err := s.jira(r.jira)
	if err != nil {
		return nil, err
	}
	requirement, err := source.FetchRequirement(ctx, r.key)
	if err != nil {
		return nil, err
	}

	result := &Result{RequirementKey: requirement.Key}
	if req.DeleteExisting && len(requirement.LinkedTests) > 0 {
		result.DeletedTests, err = source.DeleteLinkedTests(ctx, requirement)
		if err != nil {
			return nil, err
		}
	}

	r.Requirement = requirement.PromptText()
	prompt, err := llm.TestCasesForRequirement(r.TestCasePrompt)
	if err != nil {
		return nil, err
	}

	text, err := s.llm.Complete(ctx, agentCfg.Credentials, llm.CompletionRequest{
		Model:       agentCfg.Model,
		Prompt:      prompt,
		Temperature: llm.Float(agentCfg.Temperature),
		MaxTokens:   agentCfg.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	cases, err := ParseTestCases(text)
	if err != nil {
		return nil, &llm.ExternalServiceError{Provider: agentCfg.Credentials.Provider, Message: err.Error()}
	}
	for i := range cases {
		applyDefaults(&cases[i], r.TestCasePrompt)
	}

	if err := s.SaveLatest(ctx, userID, cases); err != nil {
		return nil, err
	}

	result.TestCases = cases
	result.GeneratedAt = s.now().UTC()
	s.logger.Info("generated test cases",
		"user_id", userID,
		"requirement", result.RequirementKey,
		"count", len(cases),
		"deleted", len(result.DeletedTests),
	)
	return result, nil
}

// ParseTestCases reads a model response as a JSON array of test cases. A
// single object is accepted as a batch of one.
func ParseTestCases(text string) ([]jira.TestCase, error) {
	raw := llm.ExtractJSON(text)

	var cases []jira.TestCase
	if err := json.Unmarshal([]byte(raw), &cases); err == nil {
		return cases, nil
	}

	var single jira.TestCase
	if err := json.Unmarshal([]byte(raw), &single); err != nil {
		return nil, fmt.Errorf("model returned invalid test case JSON: %w", err)
	}
	return []jira.TestCase{single}, nil
}

func applyDefaults(tc *jira.TestCase, p llm.TestCasePrompt) {
	if tc.TestType == "" {
		tc.TestType = "Manual"
	}
	if tc.Fields.Project.Key == "" {
		tc.Fields.Project.Key = p.ProjectKey
	}
	if len(tc.Fields.FixVersions) == 0 && p.VersionName != "" {
		tc.Fields.FixVersions = []jira.VersionRef{{Name: p.VersionName}}
	}
	if tc.Folder == "" {
		tc.Folder = p.FolderPath
	}
}

// Latest returns the user's last generated or edited batch.
func (s *Service) Latest(ctx context.Context, userID uuid.UUID) ([]jira.TestCase, error) {
	data, err := s.artifacts.Get(ctx, artifacts.UserKey(userID, artifacts.TestCasesFile))
	if err != nil {
		return nil, err
	}

	var cases []jira.TestCase
	if err := json.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("decoding stored test cases: %w", err)
	}
	return cases, nil
}

// SaveLatest replaces the user's latest batch, e.g. after manual edits.
func (s *Service) SaveLatest(ctx context.Context, userID uuid.UUID, cases []jira.TestCase) error {
	if cases == nil {
		cases = []jira.TestCase{}
	}
	data, err := json.MarshalIndent(cases, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding test cases: %w", err)
	}
	return s.artifacts.Put(ctx, artifacts.UserKey(userID, artifacts.TestCasesFile), data)
}

// ImportToXray pushes the latest batch using the Xray credentials of the
// given profile, or of the active one when settingID is empty.
func (s *Service) ImportToXray(ctx context.Context, userID uuid.UUID, settingID string) (*jira.ImportResult, error) {
	setting, err := s.profile(ctx, userID, settingID, false)
	if err != nil {
		return nil, err
	}
	secrets, err := s.settings.Secrets(setting)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]string)
	if setting.XrayClientID == "" {
		fields["xray_client_id"] = "Xray client id is required"
	}
	if secrets.XraySecret == "" {
		fields["xray_client_secret"] = "Xray client secret is required"
	}
	if len(fields) > 0 {
		return nil, &store.ValidationError{Fields: fields}
	}

	cases, err := s.Latest(ctx, userID)
	if err != nil {
		return nil, err
	}

	token, err := s.xray.Authenticate(ctx, setting.XrayClientID, secrets.XraySecret)
	if err != nil {
		return nil, err
	}
	result, err := s.xray.ImportTests(ctx, token, cases)
	if err != nil {
		return nil, err
	}

	s.logger.Info("imported test cases to xray", "user_id", userID, "count", len(cases), "job_id", result.JobID)
	return result, nil
}
