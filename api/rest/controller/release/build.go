package release

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shiplane/shiplane/api/rest/service/cycle"
	"github.com/shiplane/shiplane/api/rest/service/release"
	"github.com/shiplane/shiplane/internal/models"
	"github.com/shiplane/shiplane/pkg/log"
	"gorm.io/gorm"
)

type StageBuildRequest struct {
	Platform    models.Platform `json:"platform"`
	Stage       models.Stage    `json:"stage"`
	ArtifactRef string          `json:"artifact_ref"`
	StoreToken  string          `json:"store_token,omitempty"`
}

// StageBuild registers a build artifact for later consumption by a
// regression cycle.
func (ctl *Controller) StageBuild(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	req := &StageBuildRequest{}
	if err := c.Bind(req); err != nil {
		return err
	}
	if req.ArtifactRef == "" {
		return echo.ErrBadRequest.SetInternal(fmt.Errorf("artifact_ref is required"))
	}
	if req.Stage == "" {
		req.Stage = models.StageRegression
	}

	ctx := c.Request().Context()

	rel, err := release.Service(ctx).Get(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.ErrNotFound
		}
		return echo.ErrInternalServerError.SetInternal(err)
	}
	if !rel.HasPlatform(req.Platform) {
		return echo.ErrBadRequest.SetInternal(
			fmt.Errorf("release has no %s platform target", req.Platform))
	}

	build := &models.BuildArtifact{
		ID:          uuid.New(),
		ReleaseID:   id,
		Platform:    req.Platform,
		Stage:       req.Stage,
		ArtifactRef: req.ArtifactRef,
		StoreToken:  req.StoreToken,
	}
	if err := cycle.Service(ctx).StageBuild(build); err != nil {
		return echo.ErrInternalServerError.SetInternal(err)
	}

	log.Info("build staged",
		"release_id", id,
		"platform", req.Platform,
		"artifact_ref", req.ArtifactRef,
	)

	return c.JSON(http.StatusCreated, build)
}

// AbandonCycle cancels an in-progress regression cycle.
func (ctl *Controller) AbandonCycle(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	cycleID, err := parseID(c, "cycleID")
	if err != nil {
		return err
	}

	if err := ctl.Coordinator.AbandonCycle(c.Request().Context(), id, cycleID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.ErrNotFound
		}
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}

	return c.NoContent(http.StatusNoContent)
}
