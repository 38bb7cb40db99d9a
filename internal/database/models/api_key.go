package models

import (
	"time"

	"github.com/google/uuid"
)

// Provider-type tags used by API keys and agent settings.
const (
	KeyTypeGeneric   = "api_key"
	KeyTypeOpenAI    = "openai"
	KeyTypeAnthropic = "anthropic"
	KeyTypeGemini    = "gemini"
	KeyTypeJira      = "jira"
)

type APIKey struct {
	Base
	UserID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_api_keys_user_name" json:"user_id"`
	Name    string    `gorm:"size:100;not null;uniqueIndex:idx_api_keys_user_name" json:"name"`
	KeyType string    `gorm:"size:50;not null;default:'api_key';index" json:"key_type"`

	// age-sealed secret; KeyPrefix is the only part kept in clear.
	EncryptedValue string `gorm:"type:text;not null" json:"-"`
	KeyPrefix      string `gorm:"size:16" json:"-"`

	IsActive   bool       `gorm:"default:true" json:"is_active"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

func (APIKey) TableName() string {
	return "api_keys"
}

func (k APIKey) OwnerID() uuid.UUID  { return k.UserID }
func (k APIKey) DisplayName() string { return k.Name }
