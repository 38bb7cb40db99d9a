package models

import (
	"time"

	"github.com/google/uuid"
)

// Session records the SHA-256 of an issued bearer token. Logout flips
// IsActive; the token itself is never stored.
type Session struct {
	Base
	UserID    uuid.UUID  `gorm:"type:uuid;index;not null" json:"user_id"`
	TokenHash string     `gorm:"uniqueIndex;size:64;not null" json:"-"`
	ExpiresAt time.Time  `gorm:"index;not null" json:"expires_at"`
	IsActive  bool       `gorm:"default:true" json:"is_active"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	IPAddress string     `gorm:"size:64" json:"ip_address,omitempty"`
	UserAgent string     `gorm:"size:255" json:"user_agent,omitempty"`
}

func (Session) TableName() string {
	return "sessions"
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
