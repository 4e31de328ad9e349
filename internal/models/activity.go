package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ActivityLog is one audit entry recording a previous/next value pair
// for a release-scoped mutation.
type ActivityLog struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ReleaseID uuid.UUID      `gorm:"type:uuid;index;not null" json:"release_id"`
	AccountID uuid.UUID      `gorm:"type:uuid" json:"account_id"`
	Type      string         `gorm:"type:text;not null" json:"type"`
	Previous  datatypes.JSON `gorm:"type:json" json:"previous,omitempty"`
	Next      datatypes.JSON `gorm:"type:json" json:"next,omitempty"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
}

type ActivityLogs []*ActivityLog
