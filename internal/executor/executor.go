// Package executor dispatches a single release task to its integration
// adapter and records the outcome. It is a pure dispatcher: eligibility
// is the caller's concern (gate through policy.CanExecute), and by
// documented contract it does not re-check task status.
package executor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shiplane/shiplane/api/rest/service/task"
	"github.com/shiplane/shiplane/internal/activity"
	"github.com/shiplane/shiplane/internal/integration"
	"github.com/shiplane/shiplane/internal/metrics"
	"github.com/shiplane/shiplane/internal/models"
	"github.com/shiplane/shiplane/pkg/log"
	"gorm.io/datatypes"
)

// Input identifies one task execution.
type Input struct {
	TenantID uuid.UUID
	Release  *models.Release
	Task     *models.ReleaseTask
	Prior    map[models.TaskType]*models.ReleaseTask
	Builds   models.BuildArtifacts
}

// Executor runs tasks through the strategy table.
type Executor struct {
	table    map[models.TaskType]Strategy
	tasks    task.Task
	activity activity.Sink
}

// New builds an executor over the configured integrations, verifying
// at startup that the strategy table covers every task kind.
func New(reg *integration.Registry, tasks task.Task, sink activity.Sink) (*Executor, error) {
	table := buildStrategies(reg)
	if err := verifyTable(table); err != nil {
		return nil, err
	}

	return &Executor{table: table, tasks: tasks, activity: sink}, nil
}

// Execute runs one task to its outcome. Failures are absorbed into the
// task row (status FAILED plus a typed error payload) so one failing
// task never aborts evaluation of its siblings; the returned task
// reflects the persisted state.
func (e *Executor) Execute(ctx context.Context, in *Input) (*models.ReleaseTask, error) {
	var (
		t        = in.Task
		previous = t.TaskStatus
		started  = time.Now()
	)

	strategy := e.table[t.TaskType]

	if _, err := e.tasks.Update(t.ID, map[string]interface{}{
		"task_status": models.TaskStatusInProgress,
	}); err != nil {
		return nil, err
	}

	result, execErr := strategy(ctx, &integration.Request{
		TenantID: in.TenantID,
		Release:  in.Release,
		Task:     t,
		Builds:   in.Builds,
		Prior:    in.Prior,
	})

	metrics.TaskExecutionDurationSeconds.
		WithLabelValues(string(t.TaskType)).
		Observe(time.Since(started).Seconds())

	switch {
	case execErr != nil:
		return e.fail(ctx, in, previous, execErr)
	case result.Pending:
		// External work not terminal yet; put the task back to
		// PENDING for the next tick.
		patch := map[string]interface{}{"task_status": models.TaskStatusPending}
		if result.ExternalID != "" {
			patch["external_id"] = result.ExternalID
		}
		if len(result.ExternalData) > 0 {
			patch["external_data"] = datatypes.JSON(result.ExternalData)
		}
		metrics.TaskExecutionsTotal.WithLabelValues(string(t.TaskType), "pending").Inc()
		return e.tasks.Update(t.ID, patch)
	default:
		return e.complete(ctx, in, previous, result)
	}
}

func (e *Executor) complete(
	ctx context.Context,
	in *Input,
	previous models.TaskStatus,
	result *integration.Result,
) (*models.ReleaseTask, error) {
	patch := map[string]interface{}{
		"task_status": models.TaskStatusCompleted,
	}
	if result.ExternalID != "" {
		patch["external_id"] = result.ExternalID
	}
	if len(result.ExternalData) > 0 {
		patch["external_data"] = datatypes.JSON(result.ExternalData)
	}
	if len(result.Output) > 0 {
		raw, err := json.Marshal(result.Output)
		if err != nil {
			return nil, err
		}
		patch["output"] = datatypes.JSON(raw)
	}

	updated, err := e.tasks.Update(in.Task.ID, patch)
	if err != nil {
		return nil, err
	}

	metrics.TaskExecutionsTotal.WithLabelValues(string(in.Task.TaskType), "completed").Inc()
	e.record(ctx, in, previous, models.TaskStatusCompleted)

	log.Info("task completed",
		"release_id", in.Release.ID,
		"task_type", in.Task.TaskType,
		"external_id", result.ExternalID,
	)

	return updated, nil
}

func (e *Executor) fail(
	ctx context.Context,
	in *Input,
	previous models.TaskStatus,
	execErr error,
) (*models.ReleaseTask, error) {
	payload := map[string]interface{}{
		"error": map[string]interface{}{
			"kind":    integration.KindOf(execErr),
			"message": execErr.Error(),
		},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	updated, err := e.tasks.Update(in.Task.ID, map[string]interface{}{
		"task_status": models.TaskStatusFailed,
		"output":      datatypes.JSON(raw),
	})
	if err != nil {
		return nil, err
	}

	metrics.TaskExecutionsTotal.WithLabelValues(string(in.Task.TaskType), "failed").Inc()
	e.record(ctx, in, previous, models.TaskStatusFailed)

	log.Error("task failed",
		"release_id", in.Release.ID,
		"task_type", in.Task.TaskType,
		"kind", integration.KindOf(execErr),
		"error", execErr,
	)

	return updated, nil
}

func (e *Executor) record(ctx context.Context, in *Input, previous, next models.TaskStatus) {
	if e.activity == nil {
		return
	}

	entry := activity.Entry{
		ReleaseID: in.Release.ID,
		TaskID:    in.Task.ID,
		Type:      activity.TypeTaskStatusChanged,
		Previous:  map[string]interface{}{"task_type": in.Task.TaskType, "status": previous},
		Next:      map[string]interface{}{"task_type": in.Task.TaskType, "status": next},
	}
	if err := e.activity.Record(ctx, entry); err != nil {
		log.Error("failed to record activity", "error", err, "release_id", in.Release.ID)
	}
}
