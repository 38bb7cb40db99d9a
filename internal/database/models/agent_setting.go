package models

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AgentSetting is a named LLM profile. The embedded provider key is sealed.
type AgentSetting struct {
	Base
	UserID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_agent_settings_user_name" json:"user_id"`
	Name        string    `gorm:"size:100;not null;uniqueIndex:idx_agent_settings_user_name" json:"name"`
	Provider    string    `gorm:"size:50;not null" json:"provider"`
	Model       string    `gorm:"size:100;not null" json:"model"`
	Temperature float64   `gorm:"default:0.7" json:"temperature"`
	MaxTokens   int       `gorm:"default:2000" json:"max_tokens"`
	BaseURL     string    `gorm:"size:255" json:"base_url,omitempty"`

	EncryptedAPIKey string `gorm:"type:text" json:"-"`
	APIKeyPrefix    string `gorm:"size:16" json:"-"`

	Data        datatypes.JSON `json:"data,omitempty"`
	Description string         `gorm:"type:text" json:"description,omitempty"`
}

func (AgentSetting) TableName() string {
	return "agent_settings"
}

func (s AgentSetting) OwnerID() uuid.UUID  { return s.UserID }
func (s AgentSetting) DisplayName() string { return s.Name }
