package policy

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shiplane/shiplane/internal/integration"
	"github.com/shiplane/shiplane/internal/models"
	"github.com/stretchr/testify/require"
)

func allFamilies() map[integration.Family]bool {
	return map[integration.Family]bool{
		integration.FamilySourceControl:  true,
		integration.FamilyCICD:           true,
		integration.FamilyTicketing:      true,
		integration.FamilyTestManagement: true,
		integration.FamilyChat:           true,
		integration.FamilyStoreConnect:   true,
	}
}

func taskRows(stage models.Stage) models.ReleaseTasks {
	now := time.Now().UTC()
	rows := make(models.ReleaseTasks, 0)
	for i, taskType := range CanonicalSet(stage) {
		rows = append(rows, &models.ReleaseTask{
			ID:         uuid.New(),
			ReleaseID:  uuid.Nil,
			Stage:      stage,
			TaskType:   taskType,
			TaskStatus: models.TaskStatusPending,
			CreatedAt:  now.Add(time.Duration(i) * time.Millisecond),
		})
	}
	return rows
}

func TestOrderTasksIsDeterministic(t *testing.T) {
	rows := taskRows(models.StageKickoff)

	// Shuffle by reversing; canonical order must come back.
	reversed := make(models.ReleaseTasks, len(rows))
	for i, row := range rows {
		reversed[len(rows)-1-i] = row
	}

	ordered := OrderTasks(reversed, models.StageKickoff)
	for i, taskType := range CanonicalSet(models.StageKickoff) {
		require.Equal(t, taskType, ordered[i].TaskType)
	}

	// Repeated calls yield the same order and never mutate the input.
	again := OrderTasks(reversed, models.StageKickoff)
	for i := range ordered {
		require.Equal(t, ordered[i].ID, again[i].ID)
	}
	require.Equal(t, CanonicalSet(models.StageKickoff)[len(rows)-1], reversed[0].TaskType)
}

func TestCanExecuteRequiresPredecessors(t *testing.T) {
	rel := releaseWithPlatforms(t, models.PlatformIOS)
	p := Compute(models.StageKickoff, rel, allFamilies(), nil)

	ordered := OrderTasks(taskRows(models.StageKickoff), models.StageKickoff)

	// The first required task is eligible, the second is blocked on it.
	require.True(t, CanExecute(ordered[0], ordered, p, func() bool { return true }))
	require.False(t, CanExecute(ordered[1], ordered, p, func() bool { return true }))

	ordered[0].TaskStatus = models.TaskStatusCompleted
	require.True(t, CanExecute(ordered[1], ordered, p, func() bool { return true }))
}

func TestCanExecuteHonorsTimeGate(t *testing.T) {
	rel := releaseWithPlatforms(t, models.PlatformIOS)
	p := Compute(models.StageKickoff, rel, allFamilies(), nil)

	ordered := OrderTasks(taskRows(models.StageKickoff), models.StageKickoff)
	require.False(t, CanExecute(ordered[0], ordered, p, func() bool { return false }))
}

func TestCanExecuteResumesInProgress(t *testing.T) {
	rel := releaseWithPlatforms(t, models.PlatformIOS)
	p := Compute(models.StageKickoff, rel, allFamilies(), nil)

	ordered := OrderTasks(taskRows(models.StageKickoff), models.StageKickoff)

	// A row left IN_PROGRESS by an interrupted executor stays eligible,
	// so the stage cannot wedge on it.
	ordered[0].TaskStatus = models.TaskStatusInProgress
	require.True(t, CanExecute(ordered[0], ordered, p, func() bool { return true }))
}

func TestCanExecuteSkipsNonPendingAndOptional(t *testing.T) {
	rel := releaseWithPlatforms(t, models.PlatformIOS)
	p := Compute(models.StageKickoff, rel, allFamilies(), nil)

	ordered := OrderTasks(taskRows(models.StageKickoff), models.StageKickoff)

	ordered[0].TaskStatus = models.TaskStatusFailed
	require.False(t, CanExecute(ordered[0], ordered, p, func() bool { return true }))

	// KickOffReminder is optional without its toggle.
	for _, row := range ordered {
		if row.TaskType == models.TaskTypeKickOffReminder {
			require.False(t, CanExecute(row, ordered, p, func() bool { return true }))
		}
	}
}

func TestFailedRequiredTaskBlocksCompletion(t *testing.T) {
	rel := releaseWithPlatforms(t, models.PlatformIOS)
	p := Compute(models.StageKickoff, rel, allFamilies(), nil)

	ordered := OrderTasks(taskRows(models.StageKickoff), models.StageKickoff)
	for _, row := range ordered {
		row.TaskStatus = models.TaskStatusCompleted
	}
	require.True(t, StageComplete(ordered, p))

	ordered[0].TaskStatus = models.TaskStatusFailed
	require.False(t, StageComplete(ordered, p))
}

func TestOptionalTasksNeverBlockCompletion(t *testing.T) {
	rel := releaseWithPlatforms(t, models.PlatformIOS)

	// No integrations at all: everything optional, stage is vacuously
	// complete.
	p := Compute(models.StageKickoff, rel, map[integration.Family]bool{}, nil)
	require.True(t, StageComplete(taskRows(models.StageKickoff), p))
}

func TestRequiredUnlessSkipped(t *testing.T) {
	row := &models.ReleaseTask{TaskStatus: models.TaskStatusPending}
	require.True(t, RequiredUnlessSkipped(row))

	row.TaskStatus = models.TaskStatusSkipped
	require.False(t, RequiredUnlessSkipped(row))

	row.TaskStatus = models.TaskStatusFailed
	require.True(t, RequiredUnlessSkipped(row))
}

func releaseWithPlatforms(t *testing.T, platforms ...models.Platform) *models.Release {
	t.Helper()

	targets := make([]models.PlatformTarget, 0, len(platforms))
	for _, p := range platforms {
		targets = append(targets, models.PlatformTarget{
			Platform: p,
			Target:   "app-store",
			Version:  "1.0.0",
		})
	}
	raw, err := json.Marshal(targets)
	require.NoError(t, err)

	return &models.Release{
		ID:              uuid.New(),
		PlatformTargets: raw,
	}
}
