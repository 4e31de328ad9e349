package integration

import (
	"context"
	"fmt"

	"github.com/shiplane/shiplane/internal/models"
)

// httpTestManagement talks to the test-management provider service
// (Checkmate and friends sit behind it).
type httpTestManagement struct {
	client *Client
}

// NewHTTPTestManagement builds the HTTP test-management adapter.
func NewHTTPTestManagement(baseURL string) TestManagement {
	return &httpTestManagement{client: NewClient(baseURL)}
}

func (t *httpTestManagement) CreateTestPlan(ctx context.Context, req *Request) (*Result, error) {
	raw, err := t.client.Post(ctx, "/plans", map[string]interface{}{
		"tenant_id":  req.TenantID,
		"release_id": req.Release.ID,
		"platforms":  req.Release.Platforms(),
	})
	if err != nil {
		return nil, err
	}

	return resultFromResponse(raw, nil)
}

func (t *httpTestManagement) CreateTestRun(ctx context.Context, req *Request) (*Result, error) {
	raw, err := t.client.Post(ctx, "/runs", map[string]interface{}{
		"tenant_id":     req.TenantID,
		"release_id":    req.Release.ID,
		"regression_id": req.Task.RegressionID,
		"plan_id":       req.PriorExternalID(models.TaskTypeCreateTestPlan),
	})
	if err != nil {
		return nil, err
	}

	return resultFromResponse(raw, nil)
}

func (t *httpTestManagement) CheckTestRun(ctx context.Context, req *Request) (*Result, error) {
	ref := req.Task.ExternalID
	if ref == "" {
		ref = req.PriorExternalID(models.TaskTypeCreateTestRun)
	}
	if ref == "" {
		return nil, Validation("no test run reference to check")
	}

	raw, err := t.client.Get(ctx, fmt.Sprintf("/runs/%s", ref))
	if err != nil {
		return nil, err
	}

	return checkFromResponse(raw)
}
