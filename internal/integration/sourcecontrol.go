package integration

import (
	"context"
	"encoding/json"
	"fmt"
)

// httpSourceControl talks to the source-control provider service
// (GitHub, GitLab and friends sit behind it).
type httpSourceControl struct {
	client *Client
}

// NewHTTPSourceControl builds the HTTP source-control adapter.
func NewHTTPSourceControl(baseURL string) SourceControl {
	return &httpSourceControl{client: NewClient(baseURL)}
}

func (s *httpSourceControl) CreateBranch(ctx context.Context, req *Request) (*Result, error) {
	if req.Release.Branch == "" {
		return nil, Validation("release has no branch name")
	}

	raw, err := s.client.Post(ctx, "/branches", map[string]interface{}{
		"tenant_id":   req.TenantID,
		"release_id":  req.Release.ID,
		"branch":      req.Release.Branch,
		"base_branch": req.Release.BaseBranch,
	})
	if err != nil {
		return nil, err
	}

	return resultFromResponse(raw, map[string]interface{}{
		"branch": req.Release.Branch,
	})
}

func (s *httpSourceControl) CreateTag(ctx context.Context, req *Request) (*Result, error) {
	tag := fmt.Sprintf("release/%s", req.Release.ID)

	raw, err := s.client.Post(ctx, "/tags", map[string]interface{}{
		"tenant_id":  req.TenantID,
		"release_id": req.Release.ID,
		"branch":     req.Release.Branch,
		"tag":        tag,
	})
	if err != nil {
		return nil, err
	}

	return resultFromResponse(raw, map[string]interface{}{"tag": tag})
}

// providerResponse is the common envelope returned by the provider
// services.
type providerResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

// resultFromResponse maps a provider envelope onto a Result, merging
// any extra output fields.
func resultFromResponse(raw json.RawMessage, output map[string]interface{}) (*Result, error) {
	var envelope providerResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, Transient("failed to decode provider response", err)
	}

	if output == nil {
		output = map[string]interface{}{}
	}
	if envelope.Status != "" {
		output["status"] = envelope.Status
	}

	return &Result{
		ExternalID:   envelope.ID,
		ExternalData: raw,
		Output:       output,
	}, nil
}

// checkFromResponse maps a status-poll envelope onto a Result,
// reporting Pending until the provider reaches a terminal state.
func checkFromResponse(raw json.RawMessage) (*Result, error) {
	var envelope providerResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, Transient("failed to decode provider response", err)
	}

	switch envelope.Status {
	case "succeeded", "completed", "passed":
		return &Result{
			ExternalID:   envelope.ID,
			ExternalData: raw,
			Output:       map[string]interface{}{"status": envelope.Status},
		}, nil
	case "failed", "error", "cancelled":
		msg := envelope.Error
		if msg == "" {
			msg = fmt.Sprintf("provider reported terminal status %q", envelope.Status)
		}
		return nil, Transient(msg, nil)
	default:
		return &Result{ExternalID: envelope.ID, ExternalData: raw, Pending: true}, nil
	}
}
