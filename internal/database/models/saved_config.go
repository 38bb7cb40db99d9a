package models

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Config types seen in the wild. ConfigType is free-form; these are the ones
// the server itself writes.
const (
	ConfigTypeAgent          = "agent"
	ConfigTypeModel          = "model"
	ConfigTypeHistory        = "history"
	ConfigTypeAgentExecution = "agent_execution"
)

type SavedConfig struct {
	Base
	UserID      uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_saved_configs_user_type_name" json:"user_id"`
	ConfigType  string         `gorm:"size:50;not null;default:'agent';uniqueIndex:idx_saved_configs_user_type_name" json:"config_type"`
	Name        string         `gorm:"size:100;not null;uniqueIndex:idx_saved_configs_user_type_name" json:"name"`
	Data        datatypes.JSON `json:"data"`
	Description string         `gorm:"type:text" json:"description,omitempty"`
	IsFavorite  bool           `gorm:"default:false" json:"is_favorite"`
}

func (SavedConfig) TableName() string {
	return "saved_configs"
}

func (c SavedConfig) OwnerID() uuid.UUID  { return c.UserID }
func (c SavedConfig) DisplayName() string { return c.Name }
