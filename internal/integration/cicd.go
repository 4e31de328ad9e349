package integration

import (
	"context"
	"fmt"

	"github.com/shiplane/shiplane/internal/models"
)

// httpCICD talks to the CI/CD provider service (GitHub Actions,
// Jenkins and friends sit behind it).
type httpCICD struct {
	client *Client
}

// NewHTTPCICD builds the HTTP CI/CD adapter.
func NewHTTPCICD(baseURL string) CICD {
	return &httpCICD{client: NewClient(baseURL)}
}

func (c *httpCICD) TriggerBuilds(ctx context.Context, req *Request) (*Result, error) {
	platforms := req.Release.Platforms()
	if len(platforms) == 0 {
		return nil, Validation("release has no platform targets")
	}

	raw, err := c.client.Post(ctx, "/builds", map[string]interface{}{
		"tenant_id":  req.TenantID,
		"release_id": req.Release.ID,
		"branch":     req.Release.Branch,
		"platforms":  platforms,
		"stage":      req.Task.Stage,
	})
	if err != nil {
		return nil, err
	}

	return resultFromResponse(raw, map[string]interface{}{"platforms": platforms})
}

func (c *httpCICD) CheckBuilds(ctx context.Context, req *Request) (*Result, error) {
	ref := req.Task.ExternalID
	if ref == "" {
		trigger := models.TaskTypeTriggerPreRegressionBuilds
		if req.Task.TaskType == models.TaskTypeCheckRegressionBuilds {
			trigger = models.TaskTypeTriggerRegressionBuilds
		}
		ref = req.PriorExternalID(trigger)
	}
	if ref == "" && len(req.Builds) > 0 {
		// Builds staged ahead of the cycle are terminal artifacts
		// already; there is no pipeline to poll.
		return &Result{
			Output: map[string]interface{}{"builds": buildsPayload(req.Builds)},
		}, nil
	}
	if ref == "" {
		return nil, Validation("no build reference to check; trigger task output missing")
	}

	raw, err := c.client.Get(ctx, fmt.Sprintf("/builds/%s", ref))
	if err != nil {
		return nil, err
	}

	return checkFromResponse(raw)
}

func buildsPayload(builds models.BuildArtifacts) []map[string]interface{} {
	payload := make([]map[string]interface{}, 0, len(builds))
	for _, b := range builds {
		payload = append(payload, map[string]interface{}{
			"platform":     b.Platform,
			"artifact_ref": b.ArtifactRef,
		})
	}
	return payload
}
