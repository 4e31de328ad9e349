// Package release holds the REST controllers for release resources.
package release

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shiplane/shiplane/internal/coordinator"
	"github.com/shiplane/shiplane/internal/scheduler"
)

// Controller carries the long-lived engine handles the handlers need.
// Database services are constructed per request from the request
// context.
type Controller struct {
	Scheduler   *scheduler.Scheduler
	Coordinator *coordinator.Coordinator
}

func parseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name).SetInternal(err)
	}
	return id, nil
}
