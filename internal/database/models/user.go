package models

import "time"

// User is deactivated rather than deleted; owned rows cascade if a user row
// is ever removed.
type User struct {
	Base
	Username       string     `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Email          string     `gorm:"uniqueIndex;size:120;not null" json:"email"`
	PasswordHash   string     `gorm:"not null" json:"-"`
	FirstName      string     `gorm:"size:50" json:"first_name,omitempty"`
	LastName       string     `gorm:"size:50" json:"last_name,omitempty"`
	IsActive       bool       `gorm:"default:true" json:"is_active"`
	IsAdmin        bool       `gorm:"default:false" json:"is_admin"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`

	APIKeys          []APIKey          `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	SavedConfigs     []SavedConfig     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	AgentSettings    []AgentSetting    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	JiraXraySettings []JiraXraySetting `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Sessions         []Session         `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Username
	}
}
