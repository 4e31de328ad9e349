package api

import (
	"context"
	"fmt"

	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/shiplane/shiplane/api/rest/bind"
	"github.com/shiplane/shiplane/api/rest/controller/event"
	"github.com/shiplane/shiplane/api/rest/controller/release"
	"github.com/shiplane/shiplane/pkg/env"
)

var e *echo.Echo

// Start launches the shiplane API.
func Start(ctl *release.Controller, events *event.Controller) error {
	e = echo.New()
	e.HideBanner = true
	e.HidePort = true

	// health
	e.GET("/health", Health)

	// metrics
	prometheus.NewPrometheus("shiplane", nil).Use(e)

	// REST
	bind.All(e.Group("/v1"), ctl, events)

	return e.Start(fmt.Sprintf(":%v", env.Variables().Port))
}

// Shutdown stops the API server.
func Shutdown() error {
	if e == nil {
		return nil
	}
	return e.Shutdown(context.Background())
}
