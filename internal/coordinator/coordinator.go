// Package coordinator drives a release's stage state machine: it
// creates stage task sets exactly once, executes eligible tasks under
// the poll lease, detects stage completion and advances stages in
// order.
package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shiplane/shiplane/api/rest/service/cronjob"
	"github.com/shiplane/shiplane/api/rest/service/cycle"
	"github.com/shiplane/shiplane/api/rest/service/release"
	"github.com/shiplane/shiplane/api/rest/service/task"
	"github.com/shiplane/shiplane/internal/activity"
	"github.com/shiplane/shiplane/internal/executor"
	"github.com/shiplane/shiplane/internal/integration"
	"github.com/shiplane/shiplane/internal/metrics"
	"github.com/shiplane/shiplane/internal/models"
	"github.com/shiplane/shiplane/internal/policy"
	"github.com/shiplane/shiplane/internal/regression"
	"github.com/shiplane/shiplane/pkg/log"
	"gorm.io/datatypes"
)

// ErrPollingComplete signals that the release reached its terminal
// stage and its poll timer must stop permanently.
var ErrPollingComplete = errors.New("release polling complete")

// Dependencies is the explicit wiring of the coordinator. Everything
// it touches arrives here; there is no ambient service lookup.
type Dependencies struct {
	Releases release.Release
	Tasks    task.Task
	CronJobs cronjob.CronJob
	Cycles   cycle.Cycle
	Executor *executor.Executor
	Registry *integration.Registry
	Activity activity.Sink
	Clock    func() time.Time
}

type Coordinator struct {
	deps       Dependencies
	regression *regression.Manager
}

// New builds a coordinator and its regression cycle manager.
func New(deps Dependencies) *Coordinator {
	if deps.Clock == nil {
		deps.Clock = func() time.Time { return time.Now().UTC() }
	}

	c := &Coordinator{deps: deps}
	c.regression = regression.NewManager(regression.Dependencies{
		Tasks:    deps.Tasks,
		Cycles:   deps.Cycles,
		CronJobs: deps.CronJobs,
		Activity: deps.Activity,
		Clock:    deps.Clock,
		Policy: func(rel *models.Release, config datatypes.JSONMap) policy.StagePolicy {
			return policy.Compute(models.StageRegression, rel, deps.Registry.Available(), config)
		},
		CreateTasks: func(ctx context.Context, rel *models.Release, regressionID uuid.UUID, p policy.StagePolicy) (models.ReleaseTasks, error) {
			return c.createStageTasks(ctx, rel, models.StageRegression, regressionID, p)
		},
		RunTasks: func(ctx context.Context, rel *models.Release, tasks models.ReleaseTasks, builds models.BuildArtifacts, required policy.RequiredFunc) (bool, error) {
			return c.runTasks(ctx, rel, tasks, builds, models.StageRegression, required, alwaysTime)
		},
	})
	return c
}

// AbandonCycle cancels an active regression cycle.
func (c *Coordinator) AbandonCycle(ctx context.Context, releaseID, cycleID uuid.UUID) error {
	rel, err := c.deps.Releases.Get(releaseID)
	if err != nil {
		return err
	}
	return c.regression.Abandon(ctx, rel, cycleID)
}

func alwaysTime() bool { return true }

// Tick performs one poll pass for a release. The caller holds the
// release's lease. Fatal inconsistencies abort the tick; individual
// task failures do not.
func (c *Coordinator) Tick(ctx context.Context, releaseID uuid.UUID) error {
	job, err := c.deps.CronJobs.GetByReleaseID(releaseID)
	if err != nil {
		return err
	}

	switch job.CronStatus {
	case models.CronStatusCompleted:
		return ErrPollingComplete
	case models.CronStatusPaused:
		return nil
	}

	rel, err := c.deps.Releases.Get(releaseID)
	if err != nil {
		return err
	}

	now := c.deps.Clock()

	// Kick off stage 1 once the kick-off time arrives.
	if job.Stage1Status == models.StageStatusPending && !now.Before(rel.KickOffAt) {
		if job, err = c.startStage(ctx, rel, job, models.StageKickoff); err != nil {
			return err
		}
		return nil
	}

	stage, ok := activeStage(job)
	if !ok {
		return c.advance(ctx, rel, job)
	}

	switch stage {
	case models.StageKickoff:
		return c.runStage(ctx, rel, job, models.StageKickoff)
	case models.StageRegression:
		done, err := c.regression.Tick(ctx, rel, job)
		if err != nil {
			return err
		}
		if done {
			return c.completeStage(ctx, rel, job, models.StageRegression)
		}
		return nil
	case models.StagePostRegression:
		return c.runStage(ctx, rel, job, models.StagePostRegression)
	}

	return nil
}

// activeStage returns the single IN_PROGRESS stage, if any.
func activeStage(job *models.CronJob) (models.Stage, bool) {
	for _, stage := range []models.Stage{
		models.StageKickoff,
		models.StageRegression,
		models.StagePostRegression,
	} {
		if job.StageStatusFor(stage) == models.StageStatusInProgress {
			return stage, true
		}
	}
	return "", false
}

// advance starts the next pending stage when its predecessor has
// completed. Stage 3 waits for approval unless auto-transition is on.
func (c *Coordinator) advance(ctx context.Context, rel *models.Release, job *models.CronJob) error {
	switch {
	case job.Stage1Status == models.StageStatusCompleted &&
		job.Stage2Status == models.StageStatusPending:
		_, err := c.startStage(ctx, rel, job, models.StageRegression)
		return err
	case job.Stage2Status == models.StageStatusCompleted &&
		job.Stage3Status == models.StageStatusPending &&
		job.AutoTransitionToStage3:
		_, err := c.startStage(ctx, rel, job, models.StagePostRegression)
		return err
	}
	return nil
}

// runStage handles one tick of a non-regression stage: create the task
// set on first touch (execution deferred to the next tick), otherwise
// execute every eligible task and recompute completion.
func (c *Coordinator) runStage(
	ctx context.Context,
	rel *models.Release,
	job *models.CronJob,
	stage models.Stage,
) error {
	p := policy.Compute(stage, rel, c.deps.Registry.Available(), job.Config)

	tasks, err := c.deps.Tasks.GetByReleaseAndStage(rel.ID, stage, uuid.Nil)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		// Creation and execution stay in separate ticks.
		_, err := c.createStageTasks(ctx, rel, stage, uuid.Nil, p)
		return err
	}

	gate := c.timeGate(rel, stage)
	complete, err := c.runTasks(ctx, rel, tasks, nil, stage, policy.RequiredByPolicy(p), gate)
	if err != nil {
		return err
	}
	if complete {
		return c.completeStage(ctx, rel, job, stage)
	}
	return nil
}

// timeGate returns the execution time predicate for a stage. Kickoff
// reminder-style tasks wait for the kick-off date; everything else is
// immediate.
func (c *Coordinator) timeGate(rel *models.Release, stage models.Stage) func() bool {
	if stage != models.StageKickoff {
		return alwaysTime
	}
	return func() bool {
		return !c.deps.Clock().Before(rel.KickOffAt)
	}
}

// runTasks executes every eligible task in canonical order and reports
// whether all required tasks have completed. builds carries the cycle's
// consumed artifacts for regression ticks; individual task failures are
// absorbed by the executor and only infrastructure errors surface.
func (c *Coordinator) runTasks(
	ctx context.Context,
	rel *models.Release,
	tasks models.ReleaseTasks,
	builds models.BuildArtifacts,
	stage models.Stage,
	required policy.RequiredFunc,
	isTimeToExecute func() bool,
) (bool, error) {
	ordered := policy.OrderTasks(tasks, stage)

	prior, err := c.priorTasks(rel.ID)
	if err != nil {
		return false, err
	}

	for i, t := range ordered {
		if !policy.CanExecuteRow(t, ordered, required, isTimeToExecute) {
			continue
		}

		updated, err := c.deps.Executor.Execute(ctx, &executor.Input{
			TenantID: rel.TenantID,
			Release:  rel,
			Task:     t,
			Builds:   builds,
			Prior:    prior,
		})
		if err != nil {
			log.Error("task execution persistence failure",
				"release_id", rel.ID,
				"task_type", t.TaskType,
				"error", err,
			)
			continue
		}

		ordered[i] = updated
		prior[updated.TaskType] = updated
	}

	return policy.RowsComplete(ordered, required), nil
}

// priorTasks indexes the release's tasks by type so later tasks can
// recover external references (ticket ids, build refs) written by
// earlier ones. For repeated types the most recent row wins.
func (c *Coordinator) priorTasks(releaseID uuid.UUID) (map[models.TaskType]*models.ReleaseTask, error) {
	all, err := c.deps.Tasks.GetByRelease(releaseID)
	if err != nil {
		return nil, err
	}

	prior := make(map[models.TaskType]*models.ReleaseTask, len(all))
	for _, t := range all {
		prior[t.TaskType] = t
	}
	return prior, nil
}

// startStage moves a stage to IN_PROGRESS. Stage statuses are
// monotonic; this is the only place they leave PENDING.
func (c *Coordinator) startStage(
	ctx context.Context,
	rel *models.Release,
	job *models.CronJob,
	stage models.Stage,
) (*models.CronJob, error) {
	patch := map[string]interface{}{
		stageColumn(stage): models.StageStatusInProgress,
	}
	if job.CronStatus == models.CronStatusPending {
		patch["cron_status"] = models.CronStatusRunning
	}

	updated, err := c.deps.CronJobs.Update(job.ID, patch)
	if err != nil {
		return nil, err
	}

	c.recordStage(ctx, rel, stage, models.StageStatusPending, models.StageStatusInProgress)
	log.Info("stage started", "release_id", rel.ID, "stage", stage)

	return updated, nil
}

// completeStage marks a stage COMPLETED and, for the final stage,
// completes the cron job so polling stops permanently.
func (c *Coordinator) completeStage(
	ctx context.Context,
	rel *models.Release,
	job *models.CronJob,
	stage models.Stage,
) error {
	patch := map[string]interface{}{
		stageColumn(stage): models.StageStatusCompleted,
	}
	terminal := stage == models.StagePostRegression
	if terminal {
		patch["cron_status"] = models.CronStatusCompleted
	}

	if _, err := c.deps.CronJobs.Update(job.ID, patch); err != nil {
		return err
	}

	metrics.StageCompletionsTotal.WithLabelValues(string(stage)).Inc()
	c.recordStage(ctx, rel, stage, models.StageStatusInProgress, models.StageStatusCompleted)
	log.Info("stage completed", "release_id", rel.ID, "stage", stage)

	if terminal {
		if err := c.deps.Releases.SetStatus(rel.ID, models.ReleaseStatusShipped); err != nil {
			return err
		}
		return ErrPollingComplete
	}
	return nil
}

// ApproveStage is the manual transition action: it starts a pending
// stage whose predecessor has completed, regardless of the
// auto-transition setting.
func (c *Coordinator) ApproveStage(ctx context.Context, releaseID uuid.UUID, stage models.Stage) error {
	job, err := c.deps.CronJobs.GetByReleaseID(releaseID)
	if err != nil {
		return err
	}
	rel, err := c.deps.Releases.Get(releaseID)
	if err != nil {
		return err
	}

	if job.StageStatusFor(stage) != models.StageStatusPending {
		return errors.New("stage is not pending")
	}
	if _, inProgress := activeStage(job); inProgress {
		return errors.New("another stage is in progress")
	}
	switch stage {
	case models.StageRegression:
		if job.Stage1Status != models.StageStatusCompleted {
			return errors.New("kickoff stage has not completed")
		}
	case models.StagePostRegression:
		if job.Stage2Status != models.StageStatusCompleted {
			return errors.New("regression stage has not completed")
		}
	}

	_, err = c.startStage(ctx, rel, job, stage)
	return err
}

func (c *Coordinator) recordStage(
	ctx context.Context,
	rel *models.Release,
	stage models.Stage,
	previous, next models.StageStatus,
) {
	if c.deps.Activity == nil {
		return
	}

	entry := activity.Entry{
		ReleaseID: rel.ID,
		Type:      activity.TypeStageStatusChanged,
		Previous:  map[string]interface{}{"stage": stage, "status": previous},
		Next:      map[string]interface{}{"stage": stage, "status": next},
	}
	if err := c.deps.Activity.Record(ctx, entry); err != nil {
		log.Error("failed to record stage activity", "error", err, "release_id", rel.ID)
	}
}

func stageColumn(stage models.Stage) string {
	switch stage {
	case models.StageKickoff:
		return "stage1_status"
	case models.StageRegression:
		return "stage2_status"
	case models.StagePostRegression:
		return "stage3_status"
	}
	return ""
}
