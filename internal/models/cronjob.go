package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type StageStatus string

const (
	StageStatusPending    StageStatus = "PENDING"
	StageStatusInProgress StageStatus = "IN_PROGRESS"
	StageStatusCompleted  StageStatus = "COMPLETED"
)

type CronStatus string

const (
	CronStatusPending   CronStatus = "PENDING"
	CronStatusRunning   CronStatus = "RUNNING"
	CronStatusPaused    CronStatus = "PAUSED"
	CronStatusCompleted CronStatus = "COMPLETED"
)

// CronJob is the 1:1 companion of a Release holding stage state and the
// cross-instance lock. The lock columns are the only mutable state
// shared between instances; everything else is written under the lease.
type CronJob struct {
	ID                     uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	ReleaseID              uuid.UUID         `gorm:"type:uuid;uniqueIndex;not null" json:"release_id"`
	Stage1Status           StageStatus       `gorm:"type:text;not null;default:'PENDING'" json:"stage1_status"`
	Stage2Status           StageStatus       `gorm:"type:text;not null;default:'PENDING'" json:"stage2_status"`
	Stage3Status           StageStatus       `gorm:"type:text;not null;default:'PENDING'" json:"stage3_status"`
	CronStatus             CronStatus        `gorm:"type:text;index;not null;default:'PENDING'" json:"cron_status"`
	Config                 datatypes.JSONMap `gorm:"type:json" json:"config,omitempty"`
	UpcomingRegressions    datatypes.JSON    `gorm:"type:json" json:"upcoming_regressions,omitempty"`
	LockedBy               string            `gorm:"type:text;not null;default:''" json:"locked_by,omitempty"`
	LockedAt               *time.Time        `json:"locked_at,omitempty"`
	LockTimeoutSeconds     int               `gorm:"not null;default:120" json:"lock_timeout_seconds"`
	AutoTransitionToStage3 bool              `gorm:"not null;default:false" json:"auto_transition_to_stage3"`
	CreatedAt              time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt              time.Time         `gorm:"not null" json:"updated_at"`
}

type CronJobs []*CronJob

// StageStatusFor returns the persisted status of the given stage.
func (c *CronJob) StageStatusFor(stage Stage) StageStatus {
	switch stage {
	case StageKickoff:
		return c.Stage1Status
	case StageRegression:
		return c.Stage2Status
	case StagePostRegression:
		return c.Stage3Status
	}
	return StageStatusPending
}

// SetStageStatus mutates the in-memory status of the given stage. The
// caller persists the change.
func (c *CronJob) SetStageStatus(stage Stage, status StageStatus) {
	switch stage {
	case StageKickoff:
		c.Stage1Status = status
	case StageRegression:
		c.Stage2Status = status
	case StagePostRegression:
		c.Stage3Status = status
	}
}

// LockExpired reports whether the lease has been held past its timeout
// at the given instant.
func (c *CronJob) LockExpired(now time.Time) bool {
	if c.LockedBy == "" || c.LockedAt == nil {
		return true
	}
	return now.Sub(*c.LockedAt) > time.Duration(c.LockTimeoutSeconds)*time.Second
}

// UpcomingRegression is one scheduled regression slot, stored as an
// ordered JSON list on the cron job. Either At is set for a one-shot
// slot, or Schedule holds a cron expression for a recurring one.
type UpcomingRegression struct {
	At       *time.Time     `json:"at,omitempty"`
	Schedule string         `json:"schedule,omitempty"`
	Config   map[string]any `json:"config,omitempty"`
}
