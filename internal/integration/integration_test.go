package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shiplane/shiplane/internal/models"
	"github.com/shiplane/shiplane/pkg/env"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	require.Equal(t, ErrorKindTransient, KindOf(Transient("boom", nil)))
	require.Equal(t, ErrorKindValidation, KindOf(Validation("bad input")))
	require.Equal(t, ErrorKindNotConfigured, KindOf(NotConfigured(FamilyChat)))

	// Wrapping preserves the kind.
	wrapped := errors.Wrap(Validation("bad input"), "calling provider")
	require.Equal(t, ErrorKindValidation, KindOf(wrapped))

	// Untyped failures default to transient so they stay retryable.
	require.Equal(t, ErrorKindTransient, KindOf(fmt.Errorf("socket closed")))
}

func TestFamilyForCoversEveryTaskType(t *testing.T) {
	for _, taskType := range models.AllTaskTypes {
		require.NotEmpty(t, FamilyFor(taskType), "task type %s has no family", taskType)
	}
}

func TestResultFromResponse(t *testing.T) {
	raw := json.RawMessage(`{"id": "build-42", "status": "queued"}`)

	result, err := resultFromResponse(raw, map[string]interface{}{"platforms": []string{"ios"}})
	require.NoError(t, err)
	require.Equal(t, "build-42", result.ExternalID)
	require.Equal(t, "queued", result.Output["status"])
	require.Equal(t, []string{"ios"}, result.Output["platforms"])
	require.False(t, result.Pending)

	_, err = resultFromResponse(json.RawMessage(`not json`), nil)
	require.Error(t, err)
	require.Equal(t, ErrorKindTransient, KindOf(err))
}

func TestCheckFromResponse(t *testing.T) {
	done, err := checkFromResponse(json.RawMessage(`{"id": "run-1", "status": "passed"}`))
	require.NoError(t, err)
	require.False(t, done.Pending)
	require.Equal(t, "run-1", done.ExternalID)

	pending, err := checkFromResponse(json.RawMessage(`{"id": "run-1", "status": "running"}`))
	require.NoError(t, err)
	require.True(t, pending.Pending)

	_, err = checkFromResponse(json.RawMessage(`{"id": "run-1", "status": "failed", "error": "3 suites red"}`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "3 suites red")
	require.Equal(t, ErrorKindTransient, KindOf(err))
}

func TestClientStatusClassification(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			fmt.Fprint(w, `{"id": "abc"}`)
		case "/empty":
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Error(w, "unknown branch", http.StatusBadRequest)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL)
	ctx := context.Background()

	raw, err := client.Get(ctx, "/ok")
	require.NoError(t, err)
	require.JSONEq(t, `{"id": "abc"}`, string(raw))

	raw, err = client.Get(ctx, "/empty")
	require.NoError(t, err)
	require.JSONEq(t, `{}`, string(raw))

	_, err = client.Post(ctx, "/bad", map[string]string{"branch": ""})
	require.Error(t, err)
	require.Equal(t, ErrorKindValidation, KindOf(err))
	require.Contains(t, err.Error(), "unknown branch")
}

func TestPriorExternalID(t *testing.T) {
	req := &Request{
		Prior: map[models.TaskType]*models.ReleaseTask{
			models.TaskTypeTriggerRegressionBuilds: {ExternalID: "pipeline-7"},
			models.TaskTypeCreateTestPlan:          nil,
		},
	}

	require.Equal(t, "pipeline-7", req.PriorExternalID(models.TaskTypeTriggerRegressionBuilds))
	require.Empty(t, req.PriorExternalID(models.TaskTypeCreateTestPlan))
	require.Empty(t, req.PriorExternalID(models.TaskTypeCreateReleaseTag))
}

func TestFromEnvironment(t *testing.T) {
	empty := FromEnvironment(env.Environment{})
	for family, configured := range empty.Available() {
		require.False(t, configured, "family %s should be absent", family)
	}

	partial := FromEnvironment(env.Environment{
		SourceControlURL: "http://source-control.internal",
		ChatWebhookURL:   "http://chat.internal/hooks/releases",
	})
	available := partial.Available()
	require.True(t, available[FamilySourceControl])
	require.True(t, available[FamilyChat])
	require.False(t, available[FamilyCICD])
	require.False(t, available[FamilyStoreConnect])
}

func TestCheckBuildsRecoversTriggerReference(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/builds/pipeline-7", r.URL.Path)
		fmt.Fprint(w, `{"id": "pipeline-7", "status": "succeeded"}`)
	}))
	defer server.Close()

	cicd := NewHTTPCICD(server.URL)
	result, err := cicd.CheckBuilds(context.Background(), &Request{
		TenantID: uuid.New(),
		Release:  &models.Release{ID: uuid.New()},
		Task:     &models.ReleaseTask{TaskType: models.TaskTypeCheckRegressionBuilds},
		Prior: map[models.TaskType]*models.ReleaseTask{
			models.TaskTypeTriggerRegressionBuilds: {ExternalID: "pipeline-7"},
		},
	})
	require.NoError(t, err)
	require.False(t, result.Pending)
	require.Equal(t, "pipeline-7", result.ExternalID)

	// Without a trigger reference there is nothing to poll.
	_, err = cicd.CheckBuilds(context.Background(), &Request{
		Release: &models.Release{ID: uuid.New()},
		Task:    &models.ReleaseTask{TaskType: models.TaskTypeCheckRegressionBuilds},
	})
	require.Error(t, err)
	require.Equal(t, ErrorKindValidation, KindOf(err))
}

func TestCheckBuildsAcceptsStagedArtifacts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected provider call %s", r.URL.Path)
	}))
	defer server.Close()

	// Staged artifacts are already terminal; the check resolves without
	// polling the pipeline service.
	cicd := NewHTTPCICD(server.URL)
	result, err := cicd.CheckBuilds(context.Background(), &Request{
		Release: &models.Release{ID: uuid.New()},
		Task:    &models.ReleaseTask{TaskType: models.TaskTypeCheckRegressionBuilds},
		Builds: models.BuildArtifacts{
			{Platform: models.PlatformIOS, ArtifactRef: "builds/ios/3.1.0-rc1.ipa"},
		},
	})
	require.NoError(t, err)
	require.False(t, result.Pending)

	builds, ok := result.Output["builds"].([]map[string]interface{})
	require.True(t, ok)
	require.Len(t, builds, 1)
	require.Equal(t, "builds/ios/3.1.0-rc1.ipa", builds[0]["artifact_ref"])
}
