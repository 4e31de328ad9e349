package release

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shiplane/shiplane/api/rest/service/release"
	"github.com/shiplane/shiplane/pkg/log"
)

func (ctl *Controller) Post(c echo.Context) error {
	req := &release.CreateRequest{}
	if err := c.Bind(req); err != nil {
		return err
	}

	if req.TenantID == uuid.Nil {
		return echo.ErrBadRequest.SetInternal(fmt.Errorf("tenant_id is required"))
	}
	if req.Branch == "" {
		return echo.ErrBadRequest.SetInternal(fmt.Errorf("branch is required"))
	}
	if req.KickOffAt.IsZero() {
		return echo.ErrBadRequest.SetInternal(fmt.Errorf("kick_off_at is required"))
	}

	log.Info("creating release",
		"tenant_id", req.TenantID,
		"type", req.Type,
		"branch", req.Branch,
		"kick_off_at", req.KickOffAt,
	)

	rel, err := release.Service(c.Request().Context()).Create(req)
	if err != nil {
		log.Error("failed to create release", "error", err)
		return echo.ErrInternalServerError.SetInternal(err)
	}

	ctl.Scheduler.StartPolling(rel.ID)

	return c.JSON(http.StatusCreated, rel)
}
