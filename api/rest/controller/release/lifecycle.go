package release

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shiplane/shiplane/api/rest/service/cronjob"
	"github.com/shiplane/shiplane/internal/models"
	"github.com/shiplane/shiplane/pkg/log"
	"gorm.io/gorm"
)

// Pause stops the poll timer and marks the cron job PAUSED. All stage
// and task state stays untouched; Resume re-derives everything from
// rows.
func (ctl *Controller) Pause(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	svc := cronjob.Service(c.Request().Context())

	job, err := svc.GetByReleaseID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.ErrNotFound
		}
		return echo.ErrInternalServerError.SetInternal(err)
	}
	if job.CronStatus == models.CronStatusCompleted {
		return echo.NewHTTPError(http.StatusConflict, "release polling already completed")
	}

	if _, err := svc.Update(job.ID, map[string]interface{}{
		"cron_status": models.CronStatusPaused,
	}); err != nil {
		return echo.ErrInternalServerError.SetInternal(err)
	}

	ctl.Scheduler.StopPolling(id)
	log.Info("release polling paused", "release_id", id)

	return c.NoContent(http.StatusNoContent)
}

// Resume restarts polling for a paused release.
func (ctl *Controller) Resume(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	svc := cronjob.Service(c.Request().Context())

	job, err := svc.GetByReleaseID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.ErrNotFound
		}
		return echo.ErrInternalServerError.SetInternal(err)
	}
	if job.CronStatus != models.CronStatusPaused {
		return echo.NewHTTPError(http.StatusConflict, "release polling is not paused")
	}

	status := models.CronStatusPending
	if job.Stage1Status != models.StageStatusPending {
		status = models.CronStatusRunning
	}

	if _, err := svc.Update(job.ID, map[string]interface{}{
		"cron_status": status,
	}); err != nil {
		return echo.ErrInternalServerError.SetInternal(err)
	}

	ctl.Scheduler.StartPolling(id)
	log.Info("release polling resumed", "release_id", id)

	return c.NoContent(http.StatusNoContent)
}

// ApproveStage manually advances the release into the requested stage.
func (ctl *Controller) ApproveStage(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	req := &struct {
		Stage models.Stage `json:"stage"`
	}{}
	if err := c.Bind(req); err != nil {
		return err
	}

	switch req.Stage {
	case models.StageRegression, models.StagePostRegression:
	default:
		return echo.ErrBadRequest.SetInternal(fmt.Errorf("stage %q cannot be approved", req.Stage))
	}

	if err := ctl.Coordinator.ApproveStage(c.Request().Context(), id, req.Stage); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.ErrNotFound
		}
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}

	return c.NoContent(http.StatusNoContent)
}
