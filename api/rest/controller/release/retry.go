package release

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shiplane/shiplane/api/rest/service/task"
	"github.com/shiplane/shiplane/pkg/log"
	"gorm.io/gorm"
)

// RetryTask resets a failed task so the next poll tick picks it up
// again. Retrying never re-runs the task inline; execution stays under
// the lease.
func (ctl *Controller) RetryTask(c echo.Context) error {
	releaseID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	taskID, err := parseID(c, "taskID")
	if err != nil {
		return err
	}

	svc := task.Service(c.Request().Context())

	t, err := svc.Get(taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.ErrNotFound
		}
		return echo.ErrInternalServerError.SetInternal(err)
	}
	if t.ReleaseID != releaseID {
		return echo.ErrNotFound
	}

	retried, err := svc.Retry(taskID)
	if err != nil {
		if errors.Is(err, task.ErrNotRetryable) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.ErrInternalServerError.SetInternal(err)
	}

	log.Info("task retried", "release_id", releaseID, "task_type", retried.TaskType)

	return c.JSON(http.StatusOK, retried)
}
