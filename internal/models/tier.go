package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// A rate limit tier is a named preset shared by every key created under it.
// The per-minute and per-day limits are always rate*60 and rate*86400 - that
// derivation is a fixed contract, not a per-key setting.
type RateLimitTier struct {
	ID                uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Name              string    `gorm:"uniqueIndex;not null" json:"name"`
	RequestsPerSecond int       `gorm:"not null" json:"requests_per_second"`
	Burst             int       `gorm:"not null" json:"burst"`
}

func (t *RateLimitTier) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

func (RateLimitTier) TableName() string {
	return "rate_limit_tiers"
}

// Derived window limits
func (t *RateLimitTier) PerMinute() int {
	return t.RequestsPerSecond * 60
}

func (t *RateLimitTier) PerDay() int {
	return t.RequestsPerSecond * 86400
}
