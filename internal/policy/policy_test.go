package policy

import (
	"testing"

	"github.com/shiplane/shiplane/internal/integration"
	"github.com/shiplane/shiplane/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestRequiredFollowsFamilyAvailability(t *testing.T) {
	rel := releaseWithPlatforms(t, models.PlatformIOS)

	available := allFamilies()
	available[integration.FamilyTicketing] = false

	p := Compute(models.StageKickoff, rel, available, nil)
	require.False(t, p.Required(models.TaskTypeCreateProjectManagementTicket))
	require.True(t, p.Required(models.TaskTypeCreateReleaseBranch))
}

func TestRequiredTogglesDefaultOff(t *testing.T) {
	rel := releaseWithPlatforms(t, models.PlatformIOS)
	p := Compute(models.StageKickoff, rel, allFamilies(), nil)

	require.False(t, p.Required(models.TaskTypeKickOffReminder))
	require.False(t, p.Required(models.TaskTypeTriggerPreRegressionBuilds))
	require.False(t, p.Required(models.TaskTypeCheckPreRegressionBuilds))
}

func TestRequiredTogglesEnable(t *testing.T) {
	rel := releaseWithPlatforms(t, models.PlatformIOS)
	config := datatypes.JSONMap{
		ToggleKickOffReminder:     true,
		TogglePreRegressionBuilds: true,
	}

	p := Compute(models.StageKickoff, rel, allFamilies(), config)
	require.True(t, p.Required(models.TaskTypeKickOffReminder))
	require.True(t, p.Required(models.TaskTypeTriggerPreRegressionBuilds))
	require.True(t, p.Required(models.TaskTypeCheckPreRegressionBuilds))
}

func TestTestFlightRequiresIOSAndToggle(t *testing.T) {
	config := datatypes.JSONMap{ToggleTestFlightBuilds: true}

	ios := releaseWithPlatforms(t, models.PlatformIOS)
	p := Compute(models.StagePostRegression, ios, allFamilies(), config)
	require.True(t, p.Required(models.TaskTypeTriggerTestFlightBuild))
	require.True(t, p.Required(models.TaskTypeCheckTestFlightBuild))

	// Toggle on but no iOS target.
	web := releaseWithPlatforms(t, models.PlatformWeb)
	p = Compute(models.StagePostRegression, web, allFamilies(), config)
	require.False(t, p.Required(models.TaskTypeTriggerTestFlightBuild))

	// iOS target but toggle off.
	p = Compute(models.StagePostRegression, ios, allFamilies(), nil)
	require.False(t, p.Required(models.TaskTypeTriggerTestFlightBuild))
}

func TestVerifyStoreSubmissionRequiresStorePlatform(t *testing.T) {
	ios := releaseWithPlatforms(t, models.PlatformIOS)
	p := Compute(models.StagePostRegression, ios, allFamilies(), nil)
	require.True(t, p.Required(models.TaskTypeVerifyStoreSubmission))

	android := releaseWithPlatforms(t, models.PlatformAndroid)
	p = Compute(models.StagePostRegression, android, allFamilies(), nil)
	require.True(t, p.Required(models.TaskTypeVerifyStoreSubmission))

	web := releaseWithPlatforms(t, models.PlatformWeb)
	p = Compute(models.StagePostRegression, web, allFamilies(), nil)
	require.False(t, p.Required(models.TaskTypeVerifyStoreSubmission))
}
