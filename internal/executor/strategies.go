package executor

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shiplane/shiplane/internal/integration"
	"github.com/shiplane/shiplane/internal/models"
)

// Strategy executes one task kind against its provider.
type Strategy func(ctx context.Context, req *integration.Request) (*integration.Result, error)

// buildStrategies maps every task type onto an adapter call. Adapters
// may be nil (integration absent); the guard turns that into a typed
// not-configured failure instead of a panic.
func buildStrategies(reg *integration.Registry) map[models.TaskType]Strategy {
	scm := func(fn func(integration.SourceControl) Strategy) Strategy {
		if reg.SourceControl == nil {
			return notConfigured(integration.FamilySourceControl)
		}
		return fn(reg.SourceControl)
	}
	cicd := func(fn func(integration.CICD) Strategy) Strategy {
		if reg.CICD == nil {
			return notConfigured(integration.FamilyCICD)
		}
		return fn(reg.CICD)
	}
	ticketing := func(fn func(integration.Ticketing) Strategy) Strategy {
		if reg.Ticketing == nil {
			return notConfigured(integration.FamilyTicketing)
		}
		return fn(reg.Ticketing)
	}
	testmgmt := func(fn func(integration.TestManagement) Strategy) Strategy {
		if reg.TestManagement == nil {
			return notConfigured(integration.FamilyTestManagement)
		}
		return fn(reg.TestManagement)
	}
	chat := func(kind string) Strategy {
		if reg.Chat == nil {
			return notConfigured(integration.FamilyChat)
		}
		return func(ctx context.Context, req *integration.Request) (*integration.Result, error) {
			return reg.Chat.Notify(ctx, req, kind)
		}
	}
	store := func(fn func(integration.StoreConnect) Strategy) Strategy {
		if reg.StoreConnect == nil {
			return notConfigured(integration.FamilyStoreConnect)
		}
		return fn(reg.StoreConnect)
	}

	return map[models.TaskType]Strategy{
		models.TaskTypeKickOffReminder: chat(integration.NotifyKickOff),
		models.TaskTypeCreateReleaseBranch: scm(func(a integration.SourceControl) Strategy {
			return a.CreateBranch
		}),
		models.TaskTypeCreateProjectManagementTicket: ticketing(func(a integration.Ticketing) Strategy {
			return a.CreateTicket
		}),
		models.TaskTypeCreateTestPlan: testmgmt(func(a integration.TestManagement) Strategy {
			return a.CreateTestPlan
		}),
		models.TaskTypeTriggerPreRegressionBuilds: cicd(func(a integration.CICD) Strategy {
			return a.TriggerBuilds
		}),
		models.TaskTypeCheckPreRegressionBuilds: cicd(func(a integration.CICD) Strategy {
			return a.CheckBuilds
		}),
		models.TaskTypeTriggerRegressionBuilds: cicd(func(a integration.CICD) Strategy {
			return a.TriggerBuilds
		}),
		models.TaskTypeCheckRegressionBuilds: cicd(func(a integration.CICD) Strategy {
			return a.CheckBuilds
		}),
		models.TaskTypeCreateTestRun: testmgmt(func(a integration.TestManagement) Strategy {
			return a.CreateTestRun
		}),
		models.TaskTypeCheckTestRun: testmgmt(func(a integration.TestManagement) Strategy {
			return a.CheckTestRun
		}),
		models.TaskTypeRegressionStartNotification: chat(integration.NotifyRegressionStart),
		models.TaskTypeFileRegressionIssues: ticketing(func(a integration.Ticketing) Strategy {
			return a.FileIssues
		}),
		models.TaskTypeRegressionSummaryNotification: chat(integration.NotifyRegressionSummary),
		models.TaskTypeCreateReleaseTag: scm(func(a integration.SourceControl) Strategy {
			return a.CreateTag
		}),
		models.TaskTypeTriggerTestFlightBuild: store(func(a integration.StoreConnect) Strategy {
			return a.TriggerTestFlight
		}),
		models.TaskTypeCheckTestFlightBuild: store(func(a integration.StoreConnect) Strategy {
			return a.CheckTestFlight
		}),
		models.TaskTypeVerifyStoreSubmission: store(func(a integration.StoreConnect) Strategy {
			return a.VerifySubmission
		}),
		models.TaskTypeUpdateProjectManagementTicket: ticketing(func(a integration.Ticketing) Strategy {
			return a.UpdateTicket
		}),
		models.TaskTypeReleaseNotification: chat(integration.NotifyRelease),
	}
}

func notConfigured(family integration.Family) Strategy {
	return func(context.Context, *integration.Request) (*integration.Result, error) {
		return nil, integration.NotConfigured(family)
	}
}

// verifyTable checks that every task kind has a strategy. New task
// types cannot ship without a dispatch entry.
func verifyTable(table map[models.TaskType]Strategy) error {
	for _, t := range models.AllTaskTypes {
		if _, ok := table[t]; !ok {
			return errors.Errorf("no execution strategy for task type %s", t)
		}
	}
	return nil
}
