package models

import (
	"time"

	"github.com/google/uuid"
)

// BuildArtifact is a staged build awaiting consumption by a task.
// Consumption is a move, not a copy: once Consumed is set the staging
// record is spent and the consuming task's output holds the builds.
type BuildArtifact struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ReleaseID   uuid.UUID  `gorm:"type:uuid;index;not null" json:"release_id"`
	Platform    Platform   `gorm:"type:text;not null" json:"platform"`
	Stage       Stage      `gorm:"type:text;not null" json:"stage"`
	ArtifactRef string     `gorm:"type:text;not null" json:"artifact_ref"`
	StoreToken  string     `gorm:"type:text" json:"store_token,omitempty"`
	Consumed    bool       `gorm:"index;not null;default:false" json:"consumed"`
	ConsumedAt  *time.Time `json:"consumed_at,omitempty"`
	CycleID     *uuid.UUID `gorm:"type:uuid;index" json:"cycle_id,omitempty"`
	CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`
}

type BuildArtifacts []*BuildArtifact
