package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// An API key is the credential every inbound request is admitted under.
// RequestsPerMinute and RequestsPerDay are derived from the key's tier and
// are rewritten whenever the tier changes - a key never keeps old limits
// after a tier edit.
type APIKey struct {
	ID                uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	Key               string     `gorm:"uniqueIndex;not null" json:"-"`
	KeyHash           string     `gorm:"uniqueIndex;not null" json:"-"`
	Name              string     `gorm:"not null" json:"name"`
	CreatedBy         string     `json:"created_by"`
	Tier              string     `gorm:"default:'basic'" json:"tier"`
	RequestsPerMinute int        `gorm:"not null" json:"requests_per_minute"`
	RequestsPerDay    int        `gorm:"not null" json:"requests_per_day"`
	IsActive          bool       `gorm:"default:true" json:"is_active"`
	CreatedAt         time.Time  `json:"created_at"`
	LastUsedAt        *time.Time `json:"last_used_at,omitempty"`
}

func (a *APIKey) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (APIKey) TableName() string {
	return "api_keys"
}
