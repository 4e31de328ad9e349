package release

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shiplane/shiplane/api/rest/service/release"
	"github.com/shiplane/shiplane/internal/models"
)

func (ctl *Controller) List(c echo.Context) error {
	req, err := parseListRequest(c)
	if err != nil {
		return echo.ErrBadRequest.SetInternal(err)
	}

	releases, err := release.Service(c.Request().Context()).List(req)
	if err != nil {
		return echo.ErrInternalServerError.SetInternal(err)
	}

	return c.JSON(http.StatusOK, releases)
}

func parseListRequest(c echo.Context) (req *release.ListRequest, err error) {
	req = &release.ListRequest{
		Status: models.ReleaseStatus(c.QueryParam("status")),
	}

	if tenant := c.QueryParam("tenant_id"); tenant != "" {
		if req.TenantID, err = uuid.Parse(tenant); err != nil {
			return nil, err
		}
	}

	if limit := c.QueryParam("limit"); limit != "" {
		if req.Limit, err = strconv.Atoi(limit); err != nil {
			return nil, err
		}
	}

	return
}
