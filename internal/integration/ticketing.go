package integration

import (
	"context"
	"fmt"

	"github.com/shiplane/shiplane/internal/models"
)

// httpTicketing talks to the project-management provider service
// (Jira and friends sit behind it).
type httpTicketing struct {
	client *Client
}

// NewHTTPTicketing builds the HTTP ticketing adapter.
func NewHTTPTicketing(baseURL string) Ticketing {
	return &httpTicketing{client: NewClient(baseURL)}
}

func (t *httpTicketing) CreateTicket(ctx context.Context, req *Request) (*Result, error) {
	raw, err := t.client.Post(ctx, "/tickets", map[string]interface{}{
		"tenant_id":  req.TenantID,
		"release_id": req.Release.ID,
		"type":       req.Release.Type,
		"summary":    fmt.Sprintf("Release %s (%s)", req.Release.Branch, req.Release.Type),
	})
	if err != nil {
		return nil, err
	}

	return resultFromResponse(raw, nil)
}

func (t *httpTicketing) UpdateTicket(ctx context.Context, req *Request) (*Result, error) {
	ticketID := ticketReference(req)
	if ticketID == "" {
		return nil, Validation("no project-management ticket reference on release")
	}

	raw, err := t.client.Post(ctx, fmt.Sprintf("/tickets/%s/transition", ticketID), map[string]interface{}{
		"tenant_id":  req.TenantID,
		"release_id": req.Release.ID,
		"status":     "released",
	})
	if err != nil {
		return nil, err
	}

	return resultFromResponse(raw, map[string]interface{}{"ticket": ticketID})
}

func (t *httpTicketing) FileIssues(ctx context.Context, req *Request) (*Result, error) {
	raw, err := t.client.Post(ctx, "/issues", map[string]interface{}{
		"tenant_id":     req.TenantID,
		"release_id":    req.Release.ID,
		"regression_id": req.Task.RegressionID,
	})
	if err != nil {
		return nil, err
	}

	return resultFromResponse(raw, nil)
}

// ticketReference recovers the ticket id written by the create-ticket
// task, falling back to the task's own external id on retries.
func ticketReference(req *Request) string {
	if req.Task.ExternalID != "" {
		return req.Task.ExternalID
	}
	return req.PriorExternalID(models.TaskTypeCreateProjectManagementTicket)
}
