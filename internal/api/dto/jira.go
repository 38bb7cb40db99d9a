package dto

import (
	"strings"

	"github.com/hugh/testforge/internal/database/models"
	"github.com/hugh/testforge/internal/store"
)

type CreateJiraXrayRequest struct {
	Name               string `json:"name"`
	JiraURL            string `json:"jira_url"`
	JiraUsername       string `json:"jira_username"`
	JiraRequirementKey string `json:"jira_requirement_key,omitempty"`
	JiraToken          string `json:"jira_api_token,omitempty"`
	ProjectKey         string `json:"project_key,omitempty"`
	VersionName        string `json:"version_name,omitempty"`
	XrayFolderPath     string `json:"xray_folder_path,omitempty"`
	XrayClientID       string `json:"xray_client_id,omitempty"`
	XraySecret         string `json:"xray_client_secret,omitempty"`
	NumTestCases       int    `json:"num_test_cases,omitempty"`
	IsActive           *bool  `json:"is_active,omitempty"`
}

func (r CreateJiraXrayRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if strings.TrimSpace(r.Name) == "" {
		errors["name"] = "Name is required"
	}
	if strings.TrimSpace(r.JiraURL) == "" {
		errors["jira_url"] = "Jira URL is required"
	}
	if strings.TrimSpace(r.JiraUsername) == "" {
		errors["jira_username"] = "Jira username is required"
	}
	return errors
}

func (r CreateJiraXrayRequest) Input() store.JiraXrayInput {
	return store.JiraXrayInput{
		Name:               r.Name,
		JiraURL:            r.JiraURL,
		JiraUsername:       r.JiraUsername,
		JiraRequirementKey: r.JiraRequirementKey,
		JiraToken:          r.JiraToken,
		ProjectKey:         r.ProjectKey,
		VersionName:        r.VersionName,
		XrayFolderPath:     r.XrayFolderPath,
		XrayClientID:       r.XrayClientID,
		XraySecret:         r.XraySecret,
		NumTestCases:       r.NumTestCases,
		IsActive:           r.IsActive,
	}
}

type UpdateJiraXrayRequest struct {
	Name               *string `json:"name,omitempty"`
	JiraURL            *string `json:"jira_url,omitempty"`
	JiraUsername       *string `json:"jira_username,omitempty"`
	JiraRequirementKey *string `json:"jira_requirement_key,omitempty"`
	JiraToken          *string `json:"jira_api_token,omitempty"`
	ProjectKey         *string `json:"project_key,omitempty"`
	VersionName        *string `json:"version_name,omitempty"`
	XrayFolderPath     *string `json:"xray_folder_path,omitempty"`
	XrayClientID       *string `json:"xray_client_id,omitempty"`
	XraySecret         *string `json:"xray_client_secret,omitempty"`
	NumTestCases       *int    `json:"num_test_cases,omitempty"`
	IsActive           *bool   `json:"is_active,omitempty"`
}

func (r UpdateJiraXrayRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		errors["name"] = "Name cannot be empty"
	}
	if r.JiraURL != nil && strings.TrimSpace(*r.JiraURL) == "" {
		errors["jira_url"] = "Jira URL cannot be empty"
	}
	if r.JiraUsername != nil && strings.TrimSpace(*r.JiraUsername) == "" {
		errors["jira_username"] = "Jira username cannot be empty"
	}
	return errors
}

func (r UpdateJiraXrayRequest) Update() store.JiraXrayUpdate {
	return store.JiraXrayUpdate{
		Name:               r.Name,
		JiraURL:            r.JiraURL,
		JiraUsername:       r.JiraUsername,
		JiraRequirementKey: r.JiraRequirementKey,
		JiraToken:          r.JiraToken,
		ProjectKey:         r.ProjectKey,
		VersionName:        r.VersionName,
		XrayFolderPath:     r.XrayFolderPath,
		XrayClientID:       r.XrayClientID,
		XraySecret:         r.XraySecret,
		NumTestCases:       r.NumTestCases,
		IsActive:           r.IsActive,
	}
}

type JiraXrayResponse struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	JiraURL            string `json:"jira_url"`
	JiraUsername       string `json:"jira_username"`
	JiraRequirementKey string `json:"jira_requirement_key"`
	ProjectKey         string `json:"project_key"`
	VersionName        string `json:"version_name"`
	XrayFolderPath     string `json:"xray_folder_path"`
	XrayClientID       string `json:"xray_client_id"`
	NumTestCases       int    `json:"num_test_cases"`
	IsActive           bool   `json:"is_active"`
	HasJiraToken       bool   `json:"has_jira_token"`
	HasXraySecret      bool   `json:"has_xray_secret"`
	CreatedAt          string `json:"created_at"`
	UpdatedAt          string `json:"updated_at"`

	JiraToken  *string `json:"jira_api_token,omitempty"`
	XraySecret *string `json:"xray_client_secret,omitempty"`
}

// NewJiraXrayResponse hides secrets unless revealed is non-nil.
func NewJiraXrayResponse(s *models.JiraXraySetting, revealed *store.JiraXraySecrets) JiraXrayResponse {
	resp := JiraXrayResponse{
		ID:                 s.ID.String(),
		Name:               s.Name,
		JiraURL:            s.JiraURL,
		JiraUsername:       s.JiraUsername,
		JiraRequirementKey: s.JiraRequirementKey,
		ProjectKey:         s.ProjectKey,
		VersionName:        s.VersionName,
		XrayFolderPath:     s.XrayFolderPath,
		XrayClientID:       s.XrayClientID,
		NumTestCases:       s.NumTestCases,
		IsActive:           s.IsActive,
		HasJiraToken:       s.EncryptedJiraToken != "",
		HasXraySecret:      s.EncryptedXraySecret != "",
		CreatedAt:          formatTime(s.CreatedAt),
		UpdatedAt:          formatTime(s.UpdatedAt),
	}
	if revealed != nil {
		resp.JiraToken = &revealed.JiraToken
		resp.XraySecret = &revealed.XraySecret
	}
	return resp
}

func NewJiraXrayList(rows []models.JiraXraySetting) ListResponse {
	out := make([]JiraXrayResponse, len(rows))
	for i := range rows {
		out[i] = NewJiraXrayResponse(&rows[i], nil)
	}
	return NewList(out)
}
