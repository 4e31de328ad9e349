// Package regression manages regression cycles for the middle release
// stage: activating scheduled slots into cycles, consuming staged
// builds, and settling cycles as their task sets complete.
package regression

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/shiplane/shiplane/api/rest/service/cronjob"
	"github.com/shiplane/shiplane/api/rest/service/cycle"
	"github.com/shiplane/shiplane/api/rest/service/task"
	"github.com/shiplane/shiplane/internal/activity"
	"github.com/shiplane/shiplane/internal/metrics"
	"github.com/shiplane/shiplane/internal/models"
	"github.com/shiplane/shiplane/internal/policy"
	"github.com/shiplane/shiplane/pkg/jsonmap"
	"github.com/shiplane/shiplane/pkg/log"
	"gorm.io/datatypes"
)

// activationWindow bounds how far in the past a cron-expression slot
// may have fired and still count as due. Keeps a long outage from
// replaying every missed occurrence.
const activationWindow = time.Hour

// Dependencies wires the manager. CreateTasks and RunTasks are
// injected by the coordinator so both stages share one creation and
// execution path.
type Dependencies struct {
	Tasks    task.Task
	Cycles   cycle.Cycle
	CronJobs cronjob.CronJob
	Activity activity.Sink
	Clock    func() time.Time

	Policy      func(rel *models.Release, config datatypes.JSONMap) policy.StagePolicy
	CreateTasks func(ctx context.Context, rel *models.Release, regressionID uuid.UUID, p policy.StagePolicy) (models.ReleaseTasks, error)
	RunTasks    func(ctx context.Context, rel *models.Release, tasks models.ReleaseTasks, builds models.BuildArtifacts, required policy.RequiredFunc) (bool, error)
}

type Manager struct {
	deps Dependencies
}

func NewManager(deps Dependencies) *Manager {
	return &Manager{deps: deps}
}

// Tick advances the regression stage by one pass and reports whether
// the stage is complete: no cycle in progress and no upcoming slots
// left to activate.
func (m *Manager) Tick(ctx context.Context, rel *models.Release, job *models.CronJob) (bool, error) {
	current, err := m.deps.Cycles.InProgress(rel.ID)
	if err != nil {
		return false, err
	}
	if current != nil {
		return false, m.runCycle(ctx, rel, job, current)
	}

	slots, err := decodeSlots(job)
	if err != nil {
		return false, err
	}

	now := m.deps.Clock()
	if idx := dueSlot(slots, now); idx >= 0 {
		return false, m.activate(ctx, rel, job, slots, idx, now)
	}

	return len(slots) == 0, nil
}

// runCycle executes one pass over an active cycle's tasks.
// Requiredness comes from the persisted rows themselves: the slot's
// config override was applied at creation, so re-deriving it here
// could only drift.
func (m *Manager) runCycle(
	ctx context.Context,
	rel *models.Release,
	job *models.CronJob,
	current *models.RegressionCycle,
) error {
	tasks, err := m.deps.Tasks.GetByReleaseAndStage(rel.ID, models.StageRegression, current.ID)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		// The cycle row exists without tasks, so a previous pass
		// stopped between cycle and task creation. Rebuild from the
		// cycle's stored config and its consumed builds.
		p := m.deps.Policy(rel, jsonmap.Merge(job.Config, current.Config))
		tasks, err = m.deps.CreateTasks(ctx, rel, current.ID, p)
		if err != nil {
			return err
		}

		builds, err := m.deps.Cycles.CycleBuilds(current.ID)
		if err != nil {
			return err
		}
		if len(builds) == 0 {
			// The interruption happened before build consumption; the
			// staged rows are still unclaimed. Claim them now so they
			// are not lost to the cycle.
			staged, err := m.deps.Cycles.StagedBuilds(rel.ID, models.StageRegression)
			if err != nil {
				return err
			}
			if len(staged) > 0 {
				if err := m.deps.Cycles.ConsumeBuilds(staged, current.ID, m.deps.Clock()); err != nil {
					return err
				}
				builds = staged
			}
		}
		return m.seedTriggerTask(tasks, builds)
	}

	builds, err := m.deps.Cycles.CycleBuilds(current.ID)
	if err != nil {
		return err
	}

	complete, err := m.deps.RunTasks(ctx, rel, tasks, builds, policy.RequiredUnlessSkipped)
	if err != nil {
		return err
	}
	if !complete {
		return nil
	}

	now := m.deps.Clock()
	if _, err := m.deps.Cycles.Update(current.ID, map[string]interface{}{
		"status":       models.CycleStatusDone,
		"completed_at": now,
	}); err != nil {
		return err
	}

	metrics.RegressionCyclesTotal.WithLabelValues(string(models.CycleStatusDone)).Inc()
	m.recordCycle(ctx, rel, current, models.CycleStatusInProgress, models.CycleStatusDone)
	log.Info("regression cycle done",
		"release_id", rel.ID,
		"cycle_tag", current.CycleTag,
	)

	return nil
}

// activate turns a due slot into an IN_PROGRESS cycle. The slot is not
// consumed until every build-bearing platform has a staged artifact;
// until then the slot stays pending and activation retries next tick.
func (m *Manager) activate(
	ctx context.Context,
	rel *models.Release,
	job *models.CronJob,
	slots []models.UpcomingRegression,
	idx int,
	now time.Time,
) error {
	staged, err := m.deps.Cycles.StagedBuilds(rel.ID, models.StageRegression)
	if err != nil {
		return err
	}
	if missing := missingPlatforms(rel, staged); len(missing) > 0 {
		log.Info("regression slot due but builds not staged",
			"release_id", rel.ID,
			"missing_platforms", missing,
		)
		return nil
	}

	existing, err := m.deps.Cycles.ListByRelease(rel.ID)
	if err != nil {
		return err
	}

	slot := slots[idx]
	newCycle := &models.RegressionCycle{
		ID:        uuid.New(),
		ReleaseID: rel.ID,
		CycleTag:  cycleTag(len(existing) + 1),
		Status:    models.CycleStatusInProgress,
		IsLatest:  true,
		Config:    datatypes.JSONMap(slot.Config),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.deps.Cycles.Create(newCycle); err != nil {
		return pkgerrors.Wrap(err, "failed to create regression cycle")
	}

	if err := m.consumeSlot(job, slots, idx); err != nil {
		return err
	}

	if err := m.deps.Cycles.ConsumeBuilds(staged, newCycle.ID, now); err != nil {
		return err
	}

	p := m.deps.Policy(rel, jsonmap.Merge(job.Config, datatypes.JSONMap(slot.Config)))
	tasks, err := m.deps.CreateTasks(ctx, rel, newCycle.ID, p)
	if err != nil {
		return err
	}
	if err := m.seedTriggerTask(tasks, staged); err != nil {
		return err
	}

	metrics.RegressionCyclesTotal.WithLabelValues(string(models.CycleStatusInProgress)).Inc()
	m.recordCycle(ctx, rel, newCycle, models.CycleStatusNotStarted, models.CycleStatusInProgress)
	log.Info("regression cycle activated",
		"release_id", rel.ID,
		"cycle_tag", newCycle.CycleTag,
		"builds", len(staged),
	)

	return nil
}

// Abandon cancels an active cycle without completing its tasks. The
// cycle keeps its rows for audit; the next due slot can then activate.
func (m *Manager) Abandon(ctx context.Context, rel *models.Release, cycleID uuid.UUID) error {
	current, err := m.deps.Cycles.Get(cycleID)
	if err != nil {
		return err
	}
	if current.ReleaseID != rel.ID {
		return pkgerrors.Errorf("cycle %s does not belong to release %s", cycleID, rel.ID)
	}
	if current.Status != models.CycleStatusInProgress {
		return pkgerrors.Errorf("cycle %s is %s, only IN_PROGRESS cycles can be abandoned",
			cycleID, current.Status)
	}

	now := m.deps.Clock()
	if _, err := m.deps.Cycles.Update(cycleID, map[string]interface{}{
		"status":       models.CycleStatusAbandoned,
		"completed_at": now,
	}); err != nil {
		return err
	}

	metrics.RegressionCyclesTotal.WithLabelValues(string(models.CycleStatusAbandoned)).Inc()
	m.recordCycle(ctx, rel, current, models.CycleStatusInProgress, models.CycleStatusAbandoned)
	log.Info("regression cycle abandoned", "release_id", rel.ID, "cycle_tag", current.CycleTag)

	return nil
}

// seedTriggerTask completes the trigger-builds task in place with the
// consumed builds as its output. Cycle builds are staged ahead of
// activation, so there is no external trigger to make.
func (m *Manager) seedTriggerTask(tasks models.ReleaseTasks, builds models.BuildArtifacts) error {
	var trigger *models.ReleaseTask
	for _, t := range tasks {
		if t.TaskType == models.TaskTypeTriggerRegressionBuilds {
			trigger = t
			break
		}
	}
	if trigger == nil || trigger.TaskStatus != models.TaskStatusPending {
		return nil
	}

	payload := make([]map[string]interface{}, 0, len(builds))
	for _, b := range builds {
		payload = append(payload, map[string]interface{}{
			"platform":     b.Platform,
			"artifact_ref": b.ArtifactRef,
			"store_token":  b.StoreToken,
		})
	}
	raw, err := json.Marshal(map[string]interface{}{"builds": payload})
	if err != nil {
		return err
	}

	_, err = m.deps.Tasks.Update(trigger.ID, map[string]interface{}{
		"task_status": models.TaskStatusCompleted,
		"output":      datatypes.JSON(raw),
	})
	return err
}

// consumeSlot removes the activated slot and persists the remainder.
func (m *Manager) consumeSlot(job *models.CronJob, slots []models.UpcomingRegression, idx int) error {
	remaining := make([]models.UpcomingRegression, 0, len(slots)-1)
	remaining = append(remaining, slots[:idx]...)
	remaining = append(remaining, slots[idx+1:]...)

	raw, err := json.Marshal(remaining)
	if err != nil {
		return err
	}

	_, err = m.deps.CronJobs.Update(job.ID, map[string]interface{}{
		"upcoming_regressions": datatypes.JSON(raw),
	})
	return err
}

func (m *Manager) recordCycle(
	ctx context.Context,
	rel *models.Release,
	c *models.RegressionCycle,
	previous, next models.CycleStatus,
) {
	if m.deps.Activity == nil {
		return
	}

	entry := activity.Entry{
		ReleaseID: rel.ID,
		Type:      activity.TypeCycleStatusChanged,
		Previous:  map[string]interface{}{"cycle_tag": c.CycleTag, "status": previous},
		Next:      map[string]interface{}{"cycle_tag": c.CycleTag, "status": next},
	}
	if err := m.deps.Activity.Record(ctx, entry); err != nil {
		log.Error("failed to record cycle activity", "error", err, "release_id", rel.ID)
	}
}

// decodeSlots parses the cron job's upcoming regression list.
func decodeSlots(job *models.CronJob) ([]models.UpcomingRegression, error) {
	if len(job.UpcomingRegressions) == 0 {
		return nil, nil
	}

	var slots []models.UpcomingRegression
	if err := json.Unmarshal(job.UpcomingRegressions, &slots); err != nil {
		return nil, pkgerrors.Wrap(err, "malformed upcoming regressions")
	}
	return slots, nil
}

// dueSlot returns the index of the first slot whose time has arrived,
// or -1. One-shot slots compare their timestamp; cron-expression slots
// are due when an occurrence fell inside the activation window.
func dueSlot(slots []models.UpcomingRegression, now time.Time) int {
	for i, slot := range slots {
		if slot.At != nil {
			if !now.Before(*slot.At) {
				return i
			}
			continue
		}
		if slot.Schedule == "" {
			continue
		}

		sched, err := cron.ParseStandard(slot.Schedule)
		if err != nil {
			log.Warn("skipping slot with invalid schedule",
				"schedule", slot.Schedule,
				"error", err,
			)
			continue
		}
		if next := sched.Next(now.Add(-activationWindow)); !next.After(now) {
			return i
		}
	}
	return -1
}

// missingPlatforms lists release platforms with no staged build.
func missingPlatforms(rel *models.Release, staged models.BuildArtifacts) []models.Platform {
	have := make(map[models.Platform]bool, len(staged))
	for _, b := range staged {
		have[b.Platform] = true
	}

	missing := make([]models.Platform, 0)
	for _, p := range rel.Platforms() {
		if !have[p] {
			missing = append(missing, p)
		}
	}
	return missing
}

func cycleTag(n int) string {
	return fmt.Sprintf("RC%d", n)
}
