package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type CycleStatus string

const (
	CycleStatusNotStarted CycleStatus = "NOT_STARTED"
	CycleStatusInProgress CycleStatus = "IN_PROGRESS"
	CycleStatusDone       CycleStatus = "DONE"
	CycleStatusAbandoned  CycleStatus = "ABANDONED"
)

// RegressionCycle is one execution round of the regression stage. A
// cycle owns its tasks via ReleaseTask.RegressionID and consumes builds
// staged before activation. Superseded cycles keep their rows for audit
// with IsLatest unset.
type RegressionCycle struct {
	ID          uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	ReleaseID   uuid.UUID         `gorm:"type:uuid;index;not null" json:"release_id"`
	CycleTag    string            `gorm:"type:text;not null" json:"cycle_tag"`
	Status      CycleStatus       `gorm:"type:text;index;not null;default:'NOT_STARTED'" json:"status"`
	IsLatest    bool              `gorm:"not null;default:false" json:"is_latest"`
	Config      datatypes.JSONMap `gorm:"type:json" json:"config,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	CreatedAt   time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"not null" json:"updated_at"`
}

type RegressionCycles []*RegressionCycle
