package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/testforge/internal/database/models"
	"github.com/hugh/testforge/internal/validation"
	"github.com/hugh/testforge/pkg/crypto"
	"gorm.io/gorm"
)

type JiraXraySettingService struct {
	repo *Repository[models.JiraXraySetting]
	enc  *crypto.Encryptor
}

func NewJiraXraySettingService(db *gorm.DB, enc *crypto.Encryptor) *JiraXraySettingService {
	return &JiraXraySettingService{
		repo: NewRepository[models.JiraXraySetting](db),
		enc:  enc,
	}
}

type JiraXrayInput struct {
	Name               string
	JiraURL            string
	JiraUsername       string
	JiraRequirementKey string
	JiraToken          string
	ProjectKey         string
	VersionName        string
	XrayFolderPath     string
	XrayClientID       string
	XraySecret         string
	NumTestCases       int
	IsActive           *bool
}

type JiraXrayUpdate struct {
	Name               *string
	JiraURL            *string
	JiraUsername       *string
	JiraRequirementKey *string
	JiraToken          *string
	ProjectKey         *string
	VersionName        *string
	XrayFolderPath     *string
	XrayClientID       *string
	XraySecret         *string
	NumTestCases       *int
	IsActive           *bool
}

// JiraXraySecrets holds the decrypted credentials of a profile.
type JiraXraySecrets struct {
	JiraToken  string `json:"jira_api_token"`
	XraySecret string `json:"xray_client_secret"`
}

func validateNumTestCases(n int, fields map[string]string) {
	if n < 1 || n > models.MaxNumTestCases {
		fields["num_test_cases"] = fmt.Sprintf("Number of test cases must be between 1 and %d", models.MaxNumTestCases)
	}
}

func validateJiraURL(raw string, fields map[string]string) {
	if !validation.IsValidHTTPURL(raw) {
		fields["jira_url"] = "Jira URL must be an http(s) URL"
	}
}

func validateRequirementKey(key string, fields map[string]string) {
	if key != "" && !validation.IsValidIssueKey(key) {
		fields["jira_requirement_key"] = "Requirement key must look like PROJ-123"
	}
}

func validateProjectKey(key string, fields map[string]string) {
	if key != "" && !validation.IsValidProjectKey(key) {
		fields["project_key"] = "Project key must be uppercase letters and digits"
	}
}

func (s *JiraXraySettingService) seal(secret string) (string, error) {
	sealed, err := s.enc.Seal(secret)
	if err != nil {
		return "", fmt.Errorf("sealing jira/xray secret: %w", err)
	}
	return sealed, nil
}

func (s *JiraXraySettingService) Create(ctx context.Context, userID uuid.UUID, in JiraXrayInput) (*models.JiraXraySetting, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.JiraURL = strings.TrimRight(strings.TrimSpace(in.JiraURL), "/")
	in.JiraUsername = strings.TrimSpace(in.JiraUsername)
	in.JiraRequirementKey = strings.ToUpper(strings.TrimSpace(in.JiraRequirementKey))
	in.ProjectKey = strings.ToUpper(strings.TrimSpace(in.ProjectKey))
	if in.NumTestCases == 0 {
		in.NumTestCases = models.DefaultNumTestCases
	}

	fields := make(map[string]string)
	if in.Name == "" {
		fields["name"] = "Setting name is required"
	}
	if in.JiraUsername == "" {
		fields["jira_username"] = "Jira username is required"
	}
	validateJiraURL(in.JiraURL, fields)
	validateRequirementKey(in.JiraRequirementKey, fields)
	validateProjectKey(in.ProjectKey, fields)
	validateNumTestCases(in.NumTestCases, fields)
	if err := validationError(fields); err != nil {
		return nil, err
	}

	setting := &models.JiraXraySetting{
		UserID:             userID,
		Name:               in.Name,
		JiraURL:            in.JiraURL,
		JiraUsername:       in.JiraUsername,
		JiraRequirementKey: in.JiraRequirementKey,
		ProjectKey:         in.ProjectKey,
		VersionName:        strings.TrimSpace(in.VersionName),
		XrayFolderPath:     strings.TrimSpace(in.XrayFolderPath),
		XrayClientID:       strings.TrimSpace(in.XrayClientID),
		NumTestCases:       in.NumTestCases,
		IsActive:           true,
	}
	if in.IsActive != nil {
		setting.IsActive = *in.IsActive
	}

	var err error
	if setting.EncryptedJiraToken, err = s.seal(in.JiraToken); err != nil {
		return nil, err
	}
	if setting.EncryptedXraySecret, err = s.seal(in.XraySecret); err != nil {
		return nil, err
	}

	active := setting.IsActive
	if err := s.repo.Create(ctx, setting); err != nil {
		return nil, err
	}
	// gorm skips zero values that have a column default.
	if !active {
		return s.repo.Update(ctx, userID, setting.ID, map[string]interface{}{"is_active": false})
	}
	return setting, nil
}

func (s *JiraXraySettingService) List(ctx context.Context, userID uuid.UUID) ([]models.JiraXraySetting, error) {
	return s.repo.List(ctx, userID)
}

func (s *JiraXraySettingService) Get(ctx context.Context, userID uuid.UUID, idOrName string) (*models.JiraXraySetting, error) {
	return s.repo.Resolve(ctx, userID, idOrName)
}

// Active returns the user's most recently updated active profile.
func (s *JiraXraySettingService) Active(ctx context.Context, userID uuid.UUID) (*models.JiraXraySetting, error) {
	return s.repo.FindOne(ctx, userID, ByField("is_active", true))
}

func (s *JiraXraySettingService) Update(ctx context.Context, userID, id uuid.UUID, in JiraXrayUpdate) (*models.JiraXraySetting, error) {
	updates := make(map[string]interface{})
	fields := make(map[string]string)

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			fields["name"] = "Setting name cannot be empty"
		}
		updates["name"] = name
	}
	if in.JiraURL != nil {
		u := strings.TrimRight(strings.TrimSpace(*in.JiraURL), "/")
		validateJiraURL(u, fields)
		updates["jira_url"] = u
	}
	if in.JiraUsername != nil {
		username := strings.TrimSpace(*in.JiraUsername)
		if username == "" {
			fields["jira_username"] = "Jira username cannot be empty"
		}
		updates["jira_username"] = username
	}
	if in.JiraRequirementKey != nil {
		key := strings.ToUpper(strings.TrimSpace(*in.JiraRequirementKey))
		validateRequirementKey(key, fields)
		updates["jira_requirement_key"] = key
	}
	if in.ProjectKey != nil {
		key := strings.ToUpper(strings.TrimSpace(*in.ProjectKey))
		validateProjectKey(key, fields)
		updates["project_key"] = key
	}
	if in.VersionName != nil {
		updates["version_name"] = strings.TrimSpace(*in.VersionName)
	}
	if in.XrayFolderPath != nil {
		updates["xray_folder_path"] = strings.TrimSpace(*in.XrayFolderPath)
	}
	if in.XrayClientID != nil {
		updates["xray_client_id"] = strings.TrimSpace(*in.XrayClientID)
	}
	if in.NumTestCases != nil {
		validateNumTestCases(*in.NumTestCases, fields)
		updates["num_test_cases"] = *in.NumTestCases
	}
	if in.IsActive != nil {
		updates["is_active"] = *in.IsActive
	}
	if err := validationError(fields); err != nil {
		return nil, err
	}

	if in.JiraToken != nil {
		sealed, err := s.seal(*in.JiraToken)
		if err != nil {
			return nil, err
		}
		updates["encrypted_jira_token"] = sealed
	}
	if in.XraySecret != nil {
		sealed, err := s.seal(*in.XraySecret)
		if err != nil {
			return nil, err
		}
		updates["encrypted_xray_secret"] = sealed
	}

	return s.repo.Update(ctx, userID, id, updates)
}

func (s *JiraXraySettingService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.Delete(ctx, userID, id)
}

// Secrets decrypts both credentials. Unset secrets come back empty.
func (s *JiraXraySettingService) Secrets(setting *models.JiraXraySetting) (JiraXraySecrets, error) {
	var out JiraXraySecrets
	var err error
	if setting.EncryptedJiraToken != "" {
		if out.JiraToken, err = s.enc.Open(setting.EncryptedJiraToken); err != nil {
			return out, fmt.Errorf("opening jira token: %w", err)
		}
	}
	if setting.EncryptedXraySecret != "" {
		if out.XraySecret, err = s.enc.Open(setting.EncryptedXraySecret); err != nil {
			return out, fmt.Errorf("opening xray secret: %w", err)
		}
	}
	return out, nil
}
