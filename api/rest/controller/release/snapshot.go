package release

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shiplane/shiplane/api/rest/service/cronjob"
	"github.com/shiplane/shiplane/api/rest/service/cycle"
	"github.com/shiplane/shiplane/api/rest/service/release"
	"github.com/shiplane/shiplane/api/rest/service/task"
	"github.com/shiplane/shiplane/internal/models"
	"github.com/shiplane/shiplane/internal/policy"
	"gorm.io/gorm"
)

// SnapshotResponse is the full orchestration state of one release:
// stage statuses, every task row grouped by stage in canonical order,
// and the cycle history.
type SnapshotResponse struct {
	Release      *models.Release                `json:"release"`
	CronStatus   models.CronStatus              `json:"cron_status"`
	Stage1Status models.StageStatus             `json:"stage1_status"`
	Stage2Status models.StageStatus             `json:"stage2_status"`
	Stage3Status models.StageStatus             `json:"stage3_status"`
	Tasks        map[string]models.ReleaseTasks `json:"tasks"`
	Cycles       models.RegressionCycles        `json:"cycles"`
}

func (ctl *Controller) Snapshot(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	ctx := c.Request().Context()

	rel, err := release.Service(ctx).Get(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.ErrNotFound
		}
		return echo.ErrInternalServerError.SetInternal(err)
	}

	job, err := cronjob.Service(ctx).GetByReleaseID(id)
	if err != nil {
		return echo.ErrInternalServerError.SetInternal(err)
	}

	all, err := task.Service(ctx).GetByRelease(id)
	if err != nil {
		return echo.ErrInternalServerError.SetInternal(err)
	}

	cycles, err := cycle.Service(ctx).ListByRelease(id)
	if err != nil {
		return echo.ErrInternalServerError.SetInternal(err)
	}

	byStage := map[string]models.ReleaseTasks{}
	for _, stage := range []models.Stage{
		models.StageKickoff,
		models.StageRegression,
		models.StagePostRegression,
	} {
		scoped := make(models.ReleaseTasks, 0)
		for _, t := range all {
			if t.Stage == stage {
				scoped = append(scoped, t)
			}
		}
		byStage[string(stage)] = policy.OrderTasks(scoped, stage)
	}

	return c.JSON(http.StatusOK, &SnapshotResponse{
		Release:      rel,
		CronStatus:   job.CronStatus,
		Stage1Status: job.Stage1Status,
		Stage2Status: job.Stage2Status,
		Stage3Status: job.Stage3Status,
		Tasks:        byStage,
		Cycles:       cycles,
	})
}
