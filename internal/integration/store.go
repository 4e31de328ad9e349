package integration

import (
	"context"
	"fmt"

	"github.com/shiplane/shiplane/internal/models"
)

// httpStoreConnect talks to the app-store provider service (App Store
// Connect and Play Store sit behind it).
type httpStoreConnect struct {
	client *Client
}

// NewHTTPStoreConnect builds the HTTP store adapter.
func NewHTTPStoreConnect(baseURL string) StoreConnect {
	return &httpStoreConnect{client: NewClient(baseURL)}
}

func (s *httpStoreConnect) TriggerTestFlight(ctx context.Context, req *Request) (*Result, error) {
	if !req.Release.HasPlatform(models.PlatformIOS) {
		return nil, Validation("release has no ios platform target")
	}

	payload := map[string]interface{}{
		"tenant_id":  req.TenantID,
		"release_id": req.Release.ID,
		"branch":     req.Release.Branch,
	}
	for _, b := range req.Builds {
		if b.Platform != models.PlatformIOS {
			continue
		}
		payload["artifact_ref"] = b.ArtifactRef
		if b.StoreToken != "" {
			payload["store_token"] = b.StoreToken
		}
		break
	}

	raw, err := s.client.Post(ctx, "/testflight/builds", payload)
	if err != nil {
		return nil, err
	}

	return resultFromResponse(raw, nil)
}

func (s *httpStoreConnect) CheckTestFlight(ctx context.Context, req *Request) (*Result, error) {
	ref := req.Task.ExternalID
	if ref == "" {
		ref = req.PriorExternalID(models.TaskTypeTriggerTestFlightBuild)
	}
	if ref == "" {
		return nil, Validation("no testflight build reference to check")
	}

	raw, err := s.client.Get(ctx, fmt.Sprintf("/testflight/builds/%s", ref))
	if err != nil {
		return nil, err
	}

	return checkFromResponse(raw)
}

func (s *httpStoreConnect) VerifySubmission(ctx context.Context, req *Request) (*Result, error) {
	raw, err := s.client.Post(ctx, "/submissions/verify", map[string]interface{}{
		"tenant_id":  req.TenantID,
		"release_id": req.Release.ID,
		"platforms":  req.Release.Platforms(),
	})
	if err != nil {
		return nil, err
	}

	return checkFromResponse(raw)
}
