package policy

import (
	"sort"

	"github.com/shiplane/shiplane/internal/models"
)

// Canonical per-stage task order. Position in the slice is execution
// priority; unknown task types sort last, ties broken by creation
// order then id.
var canonicalOrder = map[models.Stage][]models.TaskType{
	models.StageKickoff: {
		models.TaskTypeCreateReleaseBranch,
		models.TaskTypeCreateProjectManagementTicket,
		models.TaskTypeCreateTestPlan,
		models.TaskTypeKickOffReminder,
		models.TaskTypeTriggerPreRegressionBuilds,
		models.TaskTypeCheckPreRegressionBuilds,
	},
	models.StageRegression: {
		models.TaskTypeTriggerRegressionBuilds,
		models.TaskTypeCheckRegressionBuilds,
		models.TaskTypeRegressionStartNotification,
		models.TaskTypeCreateTestRun,
		models.TaskTypeCheckTestRun,
		models.TaskTypeFileRegressionIssues,
		models.TaskTypeRegressionSummaryNotification,
	},
	models.StagePostRegression: {
		models.TaskTypeCreateReleaseTag,
		models.TaskTypeTriggerTestFlightBuild,
		models.TaskTypeCheckTestFlightBuild,
		models.TaskTypeVerifyStoreSubmission,
		models.TaskTypeUpdateProjectManagementTicket,
		models.TaskTypeReleaseNotification,
	},
}

// CanonicalSet returns the fixed task set of a stage in canonical
// order.
func CanonicalSet(stage models.Stage) []models.TaskType {
	set := canonicalOrder[stage]
	out := make([]models.TaskType, len(set))
	copy(out, set)
	return out
}

// MinimumExpectedCount is the smallest number of task rows a stage may
// legally hold once created. Since the full canonical set is persisted
// (optional tasks included, as SKIPPED), it equals the set size.
func MinimumExpectedCount(stage models.Stage) int {
	return len(canonicalOrder[stage])
}

// OrderTasks returns the tasks sorted into the stage's canonical
// order. The input slice is not mutated and repeated calls on the same
// input yield the same order.
func OrderTasks(tasks models.ReleaseTasks, stage models.Stage) models.ReleaseTasks {
	rank := make(map[models.TaskType]int, len(canonicalOrder[stage]))
	for i, t := range canonicalOrder[stage] {
		rank[t] = i
	}
	unknown := len(canonicalOrder[stage])

	ordered := make(models.ReleaseTasks, len(tasks))
	copy(ordered, tasks)

	sort.SliceStable(ordered, func(i, j int) bool {
		ri, ok := rank[ordered[i].TaskType]
		if !ok {
			ri = unknown
		}
		rj, ok := rank[ordered[j].TaskType]
		if !ok {
			rj = unknown
		}
		if ri != rj {
			return ri < rj
		}
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].ID.String() < ordered[j].ID.String()
	})

	return ordered
}

// RequiredFunc decides requiredness for one persisted task row.
type RequiredFunc func(*models.ReleaseTask) bool

// RequiredByPolicy derives a row predicate from a stage policy.
func RequiredByPolicy(p StagePolicy) RequiredFunc {
	return func(t *models.ReleaseTask) bool {
		return p.Required(t.TaskType)
	}
}

// RequiredUnlessSkipped treats every non-SKIPPED row as required. Used
// for regression cycles, where the slot's config override was applied
// at creation by persisting optional tasks as SKIPPED; the rows are
// the policy.
func RequiredUnlessSkipped(t *models.ReleaseTask) bool {
	return t.TaskStatus != models.TaskStatusSkipped
}

// PreviousTasksComplete reports whether every required task ordered
// strictly before the given task is COMPLETED.
func PreviousTasksComplete(task *models.ReleaseTask, ordered models.ReleaseTasks, p StagePolicy) bool {
	return PreviousRowsComplete(task, ordered, RequiredByPolicy(p))
}

// PreviousRowsComplete is PreviousTasksComplete over an arbitrary
// requiredness predicate.
func PreviousRowsComplete(task *models.ReleaseTask, ordered models.ReleaseTasks, required RequiredFunc) bool {
	for _, prior := range ordered {
		if prior.ID == task.ID {
			return true
		}
		if !required(prior) {
			continue
		}
		if prior.TaskStatus != models.TaskStatusCompleted {
			return false
		}
	}
	return true
}

// CanExecute reports whether a task is eligible to run this tick.
// isTimeToExecute is a caller-supplied gate (for example "now is past
// the kick-off date" for reminder tasks).
func CanExecute(
	task *models.ReleaseTask,
	ordered models.ReleaseTasks,
	p StagePolicy,
	isTimeToExecute func() bool,
) bool {
	return CanExecuteRow(task, ordered, RequiredByPolicy(p), isTimeToExecute)
}

// CanExecuteRow is CanExecute over an arbitrary requiredness
// predicate.
func CanExecuteRow(
	task *models.ReleaseTask,
	ordered models.ReleaseTasks,
	required RequiredFunc,
	isTimeToExecute func() bool,
) bool {
	switch task.TaskStatus {
	case models.TaskStatusPending, models.TaskStatusInProgress:
		// The lease serializes executors, so an IN_PROGRESS row seen
		// at evaluation time means a previous process died between the
		// dispatch write and the outcome write. Re-execution is the
		// recovery path.
	default:
		return false
	}
	if !required(task) {
		return false
	}
	if !PreviousRowsComplete(task, ordered, required) {
		return false
	}
	return isTimeToExecute()
}

// StageComplete reports whether every required task is COMPLETED.
// Non-required tasks never block completion regardless of status, so a
// stage whose tasks are all optional completes vacuously.
func StageComplete(tasks models.ReleaseTasks, p StagePolicy) bool {
	return RowsComplete(tasks, RequiredByPolicy(p))
}

// RowsComplete is StageComplete over an arbitrary requiredness
// predicate.
func RowsComplete(tasks models.ReleaseTasks, required RequiredFunc) bool {
	for _, task := range tasks {
		if !required(task) {
			continue
		}
		if task.TaskStatus != models.TaskStatusCompleted {
			return false
		}
	}
	return true
}
