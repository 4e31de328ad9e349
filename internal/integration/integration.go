package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shiplane/shiplane/internal/models"
)

// Family identifies a provider family. Task requiredness and strategy
// dispatch are both keyed by the family backing a task type.
type Family string

const (
	FamilySourceControl  Family = "source_control"
	FamilyCICD           Family = "cicd"
	FamilyTicketing      Family = "ticketing"
	FamilyTestManagement Family = "test_management"
	FamilyChat           Family = "chat"
	FamilyStoreConnect   Family = "store_connect"
)

// FamilyFor returns the provider family backing a task type.
func FamilyFor(t models.TaskType) Family {
	switch t {
	case models.TaskTypeCreateReleaseBranch, models.TaskTypeCreateReleaseTag:
		return FamilySourceControl
	case models.TaskTypeTriggerPreRegressionBuilds,
		models.TaskTypeCheckPreRegressionBuilds,
		models.TaskTypeTriggerRegressionBuilds,
		models.TaskTypeCheckRegressionBuilds:
		return FamilyCICD
	case models.TaskTypeCreateProjectManagementTicket,
		models.TaskTypeUpdateProjectManagementTicket,
		models.TaskTypeFileRegressionIssues:
		return FamilyTicketing
	case models.TaskTypeCreateTestPlan,
		models.TaskTypeCreateTestRun,
		models.TaskTypeCheckTestRun:
		return FamilyTestManagement
	case models.TaskTypeKickOffReminder,
		models.TaskTypeRegressionStartNotification,
		models.TaskTypeRegressionSummaryNotification,
		models.TaskTypeReleaseNotification:
		return FamilyChat
	case models.TaskTypeTriggerTestFlightBuild,
		models.TaskTypeCheckTestFlightBuild,
		models.TaskTypeVerifyStoreSubmission:
		return FamilyStoreConnect
	}
	return ""
}

// Request carries everything an adapter needs to act on one task.
// Prior holds earlier tasks of the same release so check- and
// update-style operations can recover external references written by
// their trigger counterparts.
type Request struct {
	TenantID uuid.UUID
	Release  *models.Release
	Task     *models.ReleaseTask
	Builds   models.BuildArtifacts
	Prior    map[models.TaskType]*models.ReleaseTask
}

// PriorExternalID returns the external reference stored by an earlier
// task, or the empty string when it does not exist.
func (r *Request) PriorExternalID(t models.TaskType) string {
	if prior, ok := r.Prior[t]; ok && prior != nil {
		return prior.ExternalID
	}
	return ""
}

// Result is a successful adapter outcome. Pending marks a check-style
// call whose external system has not reached a terminal state yet; the
// task stays PENDING and is re-evaluated on the next tick.
type Result struct {
	ExternalID   string
	ExternalData json.RawMessage
	Output       map[string]interface{}
	Pending      bool
}

// SourceControl covers branch and tag operations.
type SourceControl interface {
	CreateBranch(ctx context.Context, req *Request) (*Result, error)
	CreateTag(ctx context.Context, req *Request) (*Result, error)
}

// CICD covers build pipeline triggering and status polling.
type CICD interface {
	TriggerBuilds(ctx context.Context, req *Request) (*Result, error)
	CheckBuilds(ctx context.Context, req *Request) (*Result, error)
}

// Ticketing covers project-management ticket operations.
type Ticketing interface {
	CreateTicket(ctx context.Context, req *Request) (*Result, error)
	UpdateTicket(ctx context.Context, req *Request) (*Result, error)
	FileIssues(ctx context.Context, req *Request) (*Result, error)
}

// TestManagement covers test plan and test run operations.
type TestManagement interface {
	CreateTestPlan(ctx context.Context, req *Request) (*Result, error)
	CreateTestRun(ctx context.Context, req *Request) (*Result, error)
	CheckTestRun(ctx context.Context, req *Request) (*Result, error)
}

// Chat posts release notifications.
type Chat interface {
	Notify(ctx context.Context, req *Request, kind string) (*Result, error)
}

// StoreConnect covers app-store build and submission operations.
type StoreConnect interface {
	TriggerTestFlight(ctx context.Context, req *Request) (*Result, error)
	CheckTestFlight(ctx context.Context, req *Request) (*Result, error)
	VerifySubmission(ctx context.Context, req *Request) (*Result, error)
}

// Registry holds the configured adapters. A nil entry means the
// integration is absent: its tasks become optional and are persisted
// as SKIPPED.
type Registry struct {
	SourceControl  SourceControl
	CICD           CICD
	Ticketing      Ticketing
	TestManagement TestManagement
	Chat           Chat
	StoreConnect   StoreConnect
}

// Available reports which provider families are configured.
func (r *Registry) Available() map[Family]bool {
	if r == nil {
		return map[Family]bool{}
	}
	return map[Family]bool{
		FamilySourceControl:  r.SourceControl != nil,
		FamilyCICD:           r.CICD != nil,
		FamilyTicketing:      r.Ticketing != nil,
		FamilyTestManagement: r.TestManagement != nil,
		FamilyChat:           r.Chat != nil,
		FamilyStoreConnect:   r.StoreConnect != nil,
	}
}

// ErrorKind distinguishes transient provider failures from
// misconfiguration, so the UI can say "not configured" instead of
// "failed".
type ErrorKind string

const (
	ErrorKindTransient     ErrorKind = "transient"
	ErrorKindValidation    ErrorKind = "validation"
	ErrorKindNotConfigured ErrorKind = "not_configured"
)

// Error is a typed adapter failure.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Transient wraps a provider failure eligible for manual retry.
func Transient(msg string, cause error) *Error {
	return &Error{Kind: ErrorKindTransient, Message: msg, Cause: cause}
}

// Validation marks a precondition failure in the request itself.
func Validation(msg string) *Error {
	return &Error{Kind: ErrorKindValidation, Message: msg}
}

// NotConfigured marks an absent integration family.
func NotConfigured(family Family) *Error {
	return &Error{Kind: ErrorKindNotConfigured, Message: fmt.Sprintf("no %s integration configured", family)}
}

// KindOf extracts the error kind, defaulting to transient for
// untyped failures.
func KindOf(err error) ErrorKind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return ErrorKindTransient
}
