package bind

import (
	"github.com/labstack/echo/v4"
	"github.com/shiplane/shiplane/api/rest/controller/event"
	"github.com/shiplane/shiplane/api/rest/controller/release"
)

// All binds the versioned REST endpoints.
func All(g *echo.Group, ctl *release.Controller, events *event.Controller) {
	// releases
	{
		g.GET("/releases", ctl.List)
		g.POST("/releases", ctl.Post)
		g.GET("/releases/:id/snapshot", ctl.Snapshot)
	}

	// polling lifecycle
	{
		g.POST("/releases/:id/pause", ctl.Pause)
		g.POST("/releases/:id/resume", ctl.Resume)
		g.POST("/releases/:id/approve", ctl.ApproveStage)
	}

	// tasks
	{
		g.POST("/releases/:id/tasks/:taskID/retry", ctl.RetryTask)
	}

	// regression builds and cycles
	{
		g.POST("/releases/:id/builds", ctl.StageBuild)
		g.POST("/releases/:id/cycles/:cycleID/abandon", ctl.AbandonCycle)
	}

	// events
	{
		g.GET("/events", events.Stream)
	}
}
