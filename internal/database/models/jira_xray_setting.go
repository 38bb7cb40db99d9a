package models

import "github.com/google/uuid"

const (
	DefaultNumTestCases = 1
	MaxNumTestCases     = 100
)

type JiraXraySetting struct {
	Base
	UserID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_jira_xray_settings_user_name" json:"user_id"`
	Name   string    `gorm:"size:100;not null;uniqueIndex:idx_jira_xray_settings_user_name" json:"name"`

	JiraURL            string `gorm:"size:255" json:"jira_url"`
	JiraUsername       string `gorm:"size:100" json:"jira_username"`
	JiraRequirementKey string `gorm:"size:50" json:"jira_requirement_key,omitempty"`
	EncryptedJiraToken string `gorm:"type:text" json:"-"`

	ProjectKey     string `gorm:"size:50" json:"project_key"`
	VersionName    string `gorm:"size:100" json:"version_name,omitempty"`
	XrayFolderPath string `gorm:"size:255" json:"xray_folder_path,omitempty"`
	XrayClientID   string `gorm:"size:255" json:"xray_client_id,omitempty"`

	EncryptedXraySecret string `gorm:"type:text" json:"-"`

	NumTestCases int  `gorm:"default:1" json:"num_test_cases"`
	IsActive     bool `gorm:"default:true" json:"is_active"`
}

func (JiraXraySetting) TableName() string {
	return "jira_xray_settings"
}

func (s JiraXraySetting) OwnerID() uuid.UUID  { return s.UserID }
func (s JiraXraySetting) DisplayName() string { return s.Name }
