package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	pkgerrors "github.com/pkg/errors"
	"github.com/shiplane/shiplane/internal/models"
	"github.com/shiplane/shiplane/internal/policy"
	"github.com/shiplane/shiplane/pkg/log"
	"gorm.io/gorm"
)

// ErrTaskSetIncomplete marks a partial stage creation: fewer task rows
// survived than the stage's minimum. This is fatal for the tick and
// needs operator inspection; retrying silently would hide corruption.
var ErrTaskSetIncomplete = errors.New("stage task set below minimum expected count")

// createStageTasks creates the fixed task set for a stage scope exactly
// once. The existing-rows check is the idempotency boundary; the unique
// guard on (release, stage, regression, type) backstops concurrent
// creators, whose duplicate-key failures are absorbed by re-querying
// and adopting the surviving rows.
func (c *Coordinator) createStageTasks(
	ctx context.Context,
	release *models.Release,
	stage models.Stage,
	regressionID uuid.UUID,
	p policy.StagePolicy,
) (models.ReleaseTasks, error) {
	existing, err := c.deps.Tasks.GetByReleaseAndStage(release.ID, stage, regressionID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return existing, nil
	}

	now := time.Now().UTC()
	batch := make(models.ReleaseTasks, 0, len(policy.CanonicalSet(stage)))
	for _, taskType := range policy.CanonicalSet(stage) {
		status := models.TaskStatusPending
		if !p.Required(taskType) {
			status = models.TaskStatusSkipped
		}
		batch = append(batch, &models.ReleaseTask{
			ID:           uuid.New(),
			ReleaseID:    release.ID,
			Stage:        stage,
			TaskType:     taskType,
			RegressionID: regressionID,
			TaskStatus:   status,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}

	if err := c.deps.Tasks.CreateBatch(batch); err != nil {
		if !isDuplicateKeyErr(err) {
			return nil, pkgerrors.Wrap(err, "failed to create stage tasks")
		}

		// Another instance won the creation race; adopt its rows.
		log.Warn("stage task creation raced, adopting surviving rows",
			"release_id", release.ID,
			"stage", stage,
		)

		survivors, qerr := c.deps.Tasks.GetByReleaseAndStage(release.ID, stage, regressionID)
		if qerr != nil {
			return nil, qerr
		}
		if len(survivors) < policy.MinimumExpectedCount(stage) {
			return nil, pkgerrors.Wrapf(ErrTaskSetIncomplete,
				"release %s stage %s has %d tasks, expected at least %d",
				release.ID, stage, len(survivors), policy.MinimumExpectedCount(stage))
		}
		return survivors, nil
	}

	log.Info("stage tasks created",
		"release_id", release.ID,
		"stage", stage,
		"count", len(batch),
	)

	return batch, nil
}

func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}
