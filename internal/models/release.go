package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ReleaseType string

const (
	ReleaseTypeMajor     ReleaseType = "MAJOR"
	ReleaseTypeMinor     ReleaseType = "MINOR"
	ReleaseTypeHotfix    ReleaseType = "HOTFIX"
	ReleaseTypePlanned   ReleaseType = "PLANNED"
	ReleaseTypeUnplanned ReleaseType = "UNPLANNED"
)

type ReleaseStatus string

const (
	ReleaseStatusCreated   ReleaseStatus = "CREATED"
	ReleaseStatusActive    ReleaseStatus = "ACTIVE"
	ReleaseStatusShipped   ReleaseStatus = "SHIPPED"
	ReleaseStatusArchived  ReleaseStatus = "ARCHIVED"
	ReleaseStatusAbandoned ReleaseStatus = "ABANDONED"
)

// Release is the unit being shipped. Releases are never deleted, only
// archived by status.
type Release struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID        uuid.UUID      `gorm:"type:uuid;index;not null" json:"tenant_id"`
	Type            ReleaseType    `gorm:"type:text;not null" json:"type"`
	Status          ReleaseStatus  `gorm:"type:text;index;not null" json:"status"`
	Branch          string         `gorm:"type:text" json:"branch"`
	BaseBranch      string         `gorm:"type:text" json:"base_branch"`
	KickOffAt       time.Time      `gorm:"not null" json:"kick_off_at"`
	TargetReleaseAt *time.Time     `json:"target_release_at,omitempty"`
	DelayReason     string         `gorm:"type:text" json:"delay_reason,omitempty"`
	ConfigID        *uuid.UUID     `gorm:"type:uuid" json:"config_id,omitempty"`
	PlatformTargets datatypes.JSON `gorm:"type:json" json:"platform_targets,omitempty"`
	CreatedAt       time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null" json:"updated_at"`
}

type Releases []*Release

// PlatformTarget is one entry of a release's ordered platform/target
// mapping, stored as JSON on the release row.
type PlatformTarget struct {
	Platform Platform `json:"platform"`
	Target   string   `json:"target"`
	Version  string   `json:"version"`
}

type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformWeb     Platform = "web"
)

// DecodedPlatformTargets unmarshals the release's platform/target
// mapping.
func (r *Release) DecodedPlatformTargets() ([]PlatformTarget, error) {
	if len(r.PlatformTargets) == 0 {
		return nil, nil
	}

	var targets []PlatformTarget
	if err := json.Unmarshal(r.PlatformTargets, &targets); err != nil {
		return nil, err
	}
	return targets, nil
}

// Platforms returns the distinct platforms of the release in mapping
// order.
func (r *Release) Platforms() []Platform {
	targets, err := r.DecodedPlatformTargets()
	if err != nil {
		return nil
	}

	seen := map[Platform]bool{}
	platforms := make([]Platform, 0, len(targets))
	for _, target := range targets {
		if !seen[target.Platform] {
			seen[target.Platform] = true
			platforms = append(platforms, target.Platform)
		}
	}
	return platforms
}

// HasPlatform reports whether the release targets the given platform.
func (r *Release) HasPlatform(p Platform) bool {
	for _, platform := range r.Platforms() {
		if platform == p {
			return true
		}
	}
	return false
}
