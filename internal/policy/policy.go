// Package policy computes task order, eligibility and requiredness for
// a stage. Everything here is pure: no clocks, no persistence, no
// provider calls.
package policy

import (
	"github.com/shiplane/shiplane/internal/integration"
	"github.com/shiplane/shiplane/internal/models"
	"github.com/shiplane/shiplane/pkg/jsonmap"
	"gorm.io/datatypes"
)

// Cron config toggles.
const (
	ToggleKickOffReminder      = "kickOffReminder"
	TogglePreRegressionBuilds  = "preRegressionBuilds"
	ToggleTestFlightBuilds     = "testFlightBuilds"
	ToggleFileRegressionIssues = "fileRegressionIssues"
)

// StagePolicy is the requiredness decision for one stage, computed
// once per tick and passed to every call site so creation, execution
// and completion checks cannot drift apart.
type StagePolicy struct {
	Stage     models.Stage
	available map[integration.Family]bool
	toggles   datatypes.JSONMap
	platforms map[models.Platform]bool
}

// Compute builds the StagePolicy for a tick from the release's
// platform targets, the configured integrations and the cron config.
func Compute(
	stage models.Stage,
	release *models.Release,
	available map[integration.Family]bool,
	config datatypes.JSONMap,
) StagePolicy {
	platforms := map[models.Platform]bool{}
	if release != nil {
		for _, platform := range release.Platforms() {
			platforms[platform] = true
		}
	}

	return StagePolicy{
		Stage:     stage,
		available: available,
		toggles:   config,
		platforms: platforms,
	}
}

// Required reports whether a task of the given type blocks stage
// completion. A task is optional when its integration family is absent
// or a config toggle disables it.
func (p StagePolicy) Required(t models.TaskType) bool {
	if !p.available[integration.FamilyFor(t)] {
		return false
	}

	switch t {
	case models.TaskTypeKickOffReminder:
		return jsonmap.Bool(p.toggles, ToggleKickOffReminder)
	case models.TaskTypeTriggerPreRegressionBuilds,
		models.TaskTypeCheckPreRegressionBuilds:
		return jsonmap.Bool(p.toggles, TogglePreRegressionBuilds)
	case models.TaskTypeFileRegressionIssues:
		return jsonmap.Bool(p.toggles, ToggleFileRegressionIssues)
	case models.TaskTypeTriggerTestFlightBuild,
		models.TaskTypeCheckTestFlightBuild:
		return p.platforms[models.PlatformIOS] && jsonmap.Bool(p.toggles, ToggleTestFlightBuilds)
	case models.TaskTypeVerifyStoreSubmission:
		return p.platforms[models.PlatformIOS] || p.platforms[models.PlatformAndroid]
	}

	return true
}
