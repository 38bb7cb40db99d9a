// Package jira reads requirement issues from Jira and pushes generated test
// cases to Xray cloud.
package jira

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gojira "github.com/andygrunwald/go-jira"
	"github.com/hugh/testforge/internal/llm"
)

const serviceName = "jira"

var (
	ErrIssueNotFound  = errors.New("jira issue not found")
	ErrNotRequirement = errors.New("issue is a test artifact, not a requirement")
)

// Issue types that hold tests rather than requirements.
var testIssueTypes = map[string]bool{
	"Test":      true,
	"Test Set":  true,
	"Test Plan": true,
}

// Requirement is the subset of a Jira issue used to prompt for test cases.
type Requirement struct {
	Key         string
	Summary     string
	Description string
	IssueType   string
	LinkedTests []string
}

// PromptText renders the requirement the way it is fed to the model.
func (r *Requirement) PromptText() string {
	desc := " "
	if strings.TrimSpace(r.Description) != "" {
		desc = "Requirement description: " + r.Description
	}
	return "Requirement summary: " + r.Summary + "\n" + desc
}

type Credentials struct {
	BaseURL  string
	Username string
	Token    string
}

type Client struct {
	api    *gojira.Client
	logger *slog.Logger
}

// NewClient authenticates with basic auth (username + API token) against
// the Jira REST API at creds.BaseURL.
func NewClient(creds Credentials, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	if creds.BaseURL == "" {
		return nil, fmt.Errorf("jira base url is required")
	}

	tp := gojira.BasicAuthTransport{
		Username: creds.Username,
		Password: creds.Token,
	}
	httpClient := &http.Client{Transport: &tp, Timeout: timeout}

	api, err := gojira.NewClient(httpClient, strings.TrimRight(creds.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("creating jira client: %w", err)
	}

	return &Client{api: api, logger: logger}, nil
}

// FetchRequirement loads an issue and rejects Test, Test Set and Test Plan
// issues.
func (c *Client) FetchRequirement(ctx context.Context, key string) (*Requirement, error) {
	issue, resp, err := c.api.Issue.GetWithContext(ctx, key, nil)
	if err != nil {
		return nil, upstreamError(ctx, resp, err, ErrIssueNotFound)
	}
	if issue.Fields == nil {
		return nil, &llm.ExternalServiceError{Provider: serviceName, Message: "issue has no fields"}
	}

	req := &Requirement{
		Key:         issue.Key,
		Summary:     issue.Fields.Summary,
		Description: issue.Fields.Description,
		IssueType:   issue.Fields.Type.Name,
	}
	if testIssueTypes[req.IssueType] {
		return nil, fmt.Errorf("%s (%s): %w", key, req.IssueType, ErrNotRequirement)
	}

	for _, link := range issue.Fields.IssueLinks {
		if link == nil || link.Type.Name != "Test" || link.InwardIssue == nil {
			continue
		}
		req.LinkedTests = append(req.LinkedTests, link.InwardIssue.Key)
	}

	c.logger.Debug("fetched jira requirement",
		"key", req.Key,
		"type", req.IssueType,
		"linked_tests", len(req.LinkedTests),
	)
	return req, nil
}

// DeleteLinkedTests removes the Test issues linked to a requirement. It stops
// at the first failure and returns the keys deleted so far.
func (c *Client) DeleteLinkedTests(ctx context.Context, req *Requirement) ([]string, error) {
	var deleted []string
	for _, key := range req.LinkedTests {
		resp, err := c.api.Issue.DeleteWithContext(ctx, key)
		if err != nil {
			return deleted, upstreamError(ctx, resp, err, ErrIssueNotFound)
		}
		deleted = append(deleted, key)
		c.logger.Info("deleted linked test case", "requirement", req.Key, "test", key)
	}
	return deleted, nil
}

func upstreamError(ctx context.Context, resp *gojira.Response, err error, notFound error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if resp == nil || resp.Response == nil {
		return &llm.ExternalServiceError{Provider: serviceName, Message: err.Error()}
	}
	if resp.StatusCode == http.StatusNotFound {
		return notFound
	}
	return &llm.ExternalServiceError{Provider: serviceName, StatusCode: resp.StatusCode, Message: err.Error()}
}
