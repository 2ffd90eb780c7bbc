package models

import (
	"time"

	"github.com/google/uuid"
)

// Represents one admission decision, persisted for reporting
type RequestLog struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Timestamp      time.Time  `gorm:"index" json:"timestamp"`
	APIKeyID       *uuid.UUID `gorm:"index" json:"api_key_id,omitempty"`
	Endpoint       string     `gorm:"index" json:"endpoint"`
	Outcome        string     `gorm:"index" json:"outcome"` // "success" "blocked" "unauthorized" "disabled"
	Reason         string     `json:"reason,omitempty"`
	ResponseTimeMs int        `json:"response_time_ms"`
	IPAddress      string     `json:"ip_address"`
}

func (RequestLog) TableName() string {
	return "request_logs"
}
