package start

import (
	"context"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"

	"github.com/shiplane/shiplane/api"
	eventctl "github.com/shiplane/shiplane/api/rest/controller/event"
	releasectl "github.com/shiplane/shiplane/api/rest/controller/release"
	"github.com/shiplane/shiplane/api/rest/service/cronjob"
	"github.com/shiplane/shiplane/api/rest/service/cycle"
	"github.com/shiplane/shiplane/api/rest/service/release"
	"github.com/shiplane/shiplane/api/rest/service/task"
	"github.com/shiplane/shiplane/internal/activity"
	"github.com/shiplane/shiplane/internal/coordinator"
	"github.com/shiplane/shiplane/internal/executor"
	"github.com/shiplane/shiplane/internal/integration"
	"github.com/shiplane/shiplane/internal/metrics"
	"github.com/shiplane/shiplane/internal/scheduler"
	"github.com/shiplane/shiplane/pkg/db"
	"github.com/shiplane/shiplane/pkg/env"
	"github.com/shiplane/shiplane/pkg/log"
	"github.com/spf13/cobra"
)

const (
	usage   = "start"
	short   = "Start a shiplane orchestration instance"
	long    = "This command starts a shiplane orchestration instance"
	example = "shiplane start"
)

var (
	// Cmd is the start command.
	Cmd = &cobra.Command{
		Use:        usage,
		Short:      short,
		Long:       long,
		Aliases:    []string{"s"},
		SuggestFor: []string{"launch", "boot", "up", "run", "begin"},
		Example:    example,
		RunE:       start,
	}
)

var (
	cancel context.CancelFunc
	sched  *scheduler.Scheduler
)

func start(cmd *cobra.Command, args []string) error {
	signalChan := make(chan os.Signal, 1)

	go func() {
		for s := range signalChan {
			switch s {
			case syscall.SIGUSR1:
				log.Info("dumping stack traces due to SIGUSR1 signal")
				if profile := pprof.Lookup("goroutine"); profile != nil {
					if err := profile.WriteTo(os.Stdout, 1); err != nil {
						log.Error("write goroutine profile", "error", err)
					}
				}
			case syscall.SIGINT:
				log.Info("gracefully shutting down due to SIGINT signal")
				shutdown()
				os.Exit(0)
			}
		}
	}()

	signal.Notify(signalChan, syscall.SIGUSR1, syscall.SIGINT)

	var errs = make(chan error)
	ctx, cancelFunc := context.WithCancel(context.Background())
	cancel = cancelFunc

	log.Info("migrating database")
	if err := db.Migrate(); err != nil {
		log.Fatal("database migration failure", "error", err)
	}

	metrics.Register()

	vars := env.Variables()
	registry := integration.FromEnvironment(vars)

	bus := activity.NewBus()
	sink := activity.NewSink(db.Connection(), bus)

	var (
		releases = release.Service(ctx)
		tasks    = task.Service(ctx)
		cronJobs = cronjob.Service(ctx)
		cycles   = cycle.Service(ctx)
	)

	exec, err := executor.New(registry, tasks, sink)
	if err != nil {
		log.Fatal("executor configuration failure", "error", err)
	}

	coord := coordinator.New(coordinator.Dependencies{
		Releases: releases,
		Tasks:    tasks,
		CronJobs: cronJobs,
		Cycles:   cycles,
		Executor: exec,
		Registry: registry,
		Activity: sink,
	})

	sched = scheduler.New(ctx, coord, cronJobs, vars.NodeID, vars.PollInterval)

	log.Info("resuming release polling")
	if err := sched.Resume(); err != nil {
		log.Fatal("polling resume failure", "error", err)
	}

	go func() {
		log.Info("spinning up api")
		errs <- api.Start(
			&releasectl.Controller{Scheduler: sched, Coordinator: coord},
			eventctl.New(bus),
		)
	}()

	defer shutdown()

	return <-errs
}

func shutdown() {
	if cancel != nil {
		cancel()
	}
	if sched != nil {
		sched.Shutdown()
	}
	if err := api.Shutdown(); err != nil {
		log.Error("api shutdown failure", "error", err)
	}
}
