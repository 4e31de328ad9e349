//go:build integration

package test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	releasectl "github.com/shiplane/shiplane/api/rest/controller/release"
	"github.com/shiplane/shiplane/internal/models"
	"github.com/stretchr/testify/assert"
)

func (s *IntegrationTestSuite) TestCreateAndSnapshot() {
	rel := s.createRelease(plannedRelease(time.Now().UTC().Add(24 * time.Hour)))
	assert.Equal(s.T(), models.ReleaseStatusCreated, rel.Status)

	resp, err := http.Get(fmt.Sprintf(
		"%v/v1/releases?tenant_id=%v",
		s.shiplaneURL,
		rel.TenantID,
	))
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)

	releases := models.Releases{}
	assert.Nil(s.T(), json.NewDecoder(resp.Body).Decode(&releases))
	resp.Body.Close()
	assert.Len(s.T(), releases, 1)
	assert.Equal(s.T(), rel.ID, releases[0].ID)

	resp, err = http.Get(fmt.Sprintf(
		"%v/v1/releases/%v/snapshot",
		s.shiplaneURL,
		rel.ID,
	))
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)

	snapshot := &releasectl.SnapshotResponse{}
	assert.Nil(s.T(), json.NewDecoder(resp.Body).Decode(snapshot))
	resp.Body.Close()

	// Kick-off is a day out, so nothing has started yet.
	assert.Equal(s.T(), models.StageStatusPending, snapshot.Stage1Status)
	assert.Equal(s.T(), models.StageStatusPending, snapshot.Stage2Status)
	assert.Equal(s.T(), models.StageStatusPending, snapshot.Stage3Status)
	assert.Empty(s.T(), snapshot.Cycles)
}

func (s *IntegrationTestSuite) TestCreateValidation() {
	resp, err := http.Post(
		fmt.Sprintf("%v/v1/releases", s.shiplaneURL),
		"application/json",
		nil,
	)
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func (s *IntegrationTestSuite) TestPauseAndResume() {
	rel := s.createRelease(plannedRelease(time.Now().UTC().Add(24 * time.Hour)))

	resp, err := http.Post(fmt.Sprintf(
		"%v/v1/releases/%v/pause",
		s.shiplaneURL,
		rel.ID,
	), "application/json", nil)
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Post(fmt.Sprintf(
		"%v/v1/releases/%v/resume",
		s.shiplaneURL,
		rel.ID,
	), "application/json", nil)
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	// Resuming a release that is not paused conflicts.
	resp, err = http.Post(fmt.Sprintf(
		"%v/v1/releases/%v/resume",
		s.shiplaneURL,
		rel.ID,
	), "application/json", nil)
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func (s *IntegrationTestSuite) TestStageBuild() {
	rel := s.createRelease(plannedRelease(time.Now().UTC().Add(24 * time.Hour)))

	body := `{"platform": "ios", "artifact_ref": "builds/ios/itest.ipa"}`
	resp, err := http.Post(fmt.Sprintf(
		"%v/v1/releases/%v/builds",
		s.shiplaneURL,
		rel.ID,
	), "application/json", bytes.NewBufferString(body))
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// The release has no web target.
	body = `{"platform": "web", "artifact_ref": "builds/web/itest.tar.gz"}`
	resp, err = http.Post(fmt.Sprintf(
		"%v/v1/releases/%v/builds",
		s.shiplaneURL,
		rel.ID,
	), "application/json", bytes.NewBufferString(body))
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}
