package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Stage string

const (
	StageKickoff        Stage = "KICKOFF"
	StageRegression     Stage = "REGRESSION"
	StagePostRegression Stage = "POST_REGRESSION"
)

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "PENDING"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
	TaskStatusFailed     TaskStatus = "FAILED"
	TaskStatusSkipped    TaskStatus = "SKIPPED"
)

// TaskType is the closed set of orchestrated work kinds. The executor
// builds its strategy table over exactly this set and fails fast at
// startup when an entry is missing.
type TaskType string

const (
	TaskTypeKickOffReminder                TaskType = "KICK_OFF_REMINDER"
	TaskTypeCreateReleaseBranch            TaskType = "CREATE_RELEASE_BRANCH"
	TaskTypeCreateProjectManagementTicket  TaskType = "CREATE_PROJECT_MANAGEMENT_TICKET"
	TaskTypeCreateTestPlan                 TaskType = "CREATE_TEST_PLAN"
	TaskTypeTriggerPreRegressionBuilds     TaskType = "TRIGGER_PRE_REGRESSION_BUILDS"
	TaskTypeCheckPreRegressionBuilds       TaskType = "CHECK_PRE_REGRESSION_BUILDS"
	TaskTypeTriggerRegressionBuilds        TaskType = "TRIGGER_REGRESSION_BUILDS"
	TaskTypeCheckRegressionBuilds          TaskType = "CHECK_REGRESSION_BUILDS"
	TaskTypeCreateTestRun                  TaskType = "CREATE_TEST_RUN"
	TaskTypeCheckTestRun                   TaskType = "CHECK_TEST_RUN"
	TaskTypeRegressionStartNotification    TaskType = "REGRESSION_START_NOTIFICATION"
	TaskTypeFileRegressionIssues           TaskType = "FILE_REGRESSION_ISSUES"
	TaskTypeRegressionSummaryNotification  TaskType = "REGRESSION_SUMMARY_NOTIFICATION"
	TaskTypeCreateReleaseTag               TaskType = "CREATE_RELEASE_TAG"
	TaskTypeTriggerTestFlightBuild         TaskType = "TRIGGER_TEST_FLIGHT_BUILD"
	TaskTypeCheckTestFlightBuild           TaskType = "CHECK_TEST_FLIGHT_BUILD"
	TaskTypeVerifyStoreSubmission          TaskType = "VERIFY_STORE_SUBMISSION"
	TaskTypeUpdateProjectManagementTicket  TaskType = "UPDATE_PROJECT_MANAGEMENT_TICKET"
	TaskTypeReleaseNotification            TaskType = "RELEASE_NOTIFICATION"
)

// AllTaskTypes lists every task kind. The executor checks its strategy
// table against this list at startup.
var AllTaskTypes = []TaskType{
	TaskTypeKickOffReminder,
	TaskTypeCreateReleaseBranch,
	TaskTypeCreateProjectManagementTicket,
	TaskTypeCreateTestPlan,
	TaskTypeTriggerPreRegressionBuilds,
	TaskTypeCheckPreRegressionBuilds,
	TaskTypeTriggerRegressionBuilds,
	TaskTypeCheckRegressionBuilds,
	TaskTypeCreateTestRun,
	TaskTypeCheckTestRun,
	TaskTypeRegressionStartNotification,
	TaskTypeFileRegressionIssues,
	TaskTypeRegressionSummaryNotification,
	TaskTypeCreateReleaseTag,
	TaskTypeTriggerTestFlightBuild,
	TaskTypeCheckTestFlightBuild,
	TaskTypeVerifyStoreSubmission,
	TaskTypeUpdateProjectManagementTicket,
	TaskTypeReleaseNotification,
}

// ReleaseTask is one unit of orchestrated work. Rows are created in a
// batch at stage entry and mutated only by the executor; they are never
// deleted. The unique index over (release_id, stage, regression_id,
// task_type) is the idempotency guard for concurrent creators. Rows
// outside a regression cycle store the zero UUID rather than NULL:
// NULL values are distinct in unique indexes, which would void the
// guard.
type ReleaseTask struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ReleaseID    uuid.UUID      `gorm:"type:uuid;index;not null;uniqueIndex:idx_release_stage_type" json:"release_id"`
	Stage        Stage          `gorm:"type:text;not null;uniqueIndex:idx_release_stage_type" json:"stage"`
	TaskType     TaskType       `gorm:"type:text;not null;uniqueIndex:idx_release_stage_type" json:"task_type"`
	RegressionID uuid.UUID      `gorm:"type:uuid;index;not null;default:'00000000-0000-0000-0000-000000000000';uniqueIndex:idx_release_stage_type" json:"regression_id,omitempty"`
	TaskStatus   TaskStatus     `gorm:"type:text;index;not null;default:'PENDING'" json:"task_status"`
	ExternalID   string         `gorm:"type:text" json:"external_id,omitempty"`
	ExternalData datatypes.JSON `gorm:"type:json" json:"external_data,omitempty"`
	Output       datatypes.JSON `gorm:"type:json" json:"output,omitempty"`
	CreatedAt    time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null" json:"updated_at"`
}

type ReleaseTasks []*ReleaseTask
