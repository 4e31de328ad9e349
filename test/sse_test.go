//go:build integration

package test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shiplane/shiplane/internal/activity"
	"github.com/stretchr/testify/assert"
)

// TestSSEStream subscribes to the event stream, creates a release whose
// kick-off time has already passed, and waits for the first poll tick
// to announce the stage transition.
func (s *IntegrationTestSuite) TestSSEStream() {
	eventsURL := fmt.Sprintf("%v/v1/events?types=%s", s.shiplaneURL, activity.TypeStageStatusChanged)
	req, err := http.NewRequest("GET", eventsURL, nil)
	assert.Nil(s.T(), err)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := (&http.Client{}).Do(req)
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()

	eventChan := make(chan activity.Event, 100)
	errChan := make(chan error, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		scanner := bufio.NewScanner(resp.Body)
		var currentData []byte

		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}

			line := scanner.Bytes()
			if len(line) == 0 {
				if len(currentData) > 0 {
					var evt activity.Event
					if err := json.Unmarshal(currentData, &evt); err == nil {
						select {
						case eventChan <- evt:
						case <-ctx.Done():
							return
						}
					}
				}
				currentData = nil
				continue
			}

			if bytes.HasPrefix(line, []byte(":")) {
				continue
			}

			parts := bytes.SplitN(line, []byte(":"), 2)
			if len(parts) < 2 {
				continue
			}
			if string(bytes.TrimSpace(parts[0])) == "data" {
				currentData = bytes.TrimPrefix(parts[1], []byte(" "))
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	// Give the subscription a moment to establish.
	time.Sleep(1 * time.Second)

	// Kick-off in the past means the first poll tick starts stage 1
	// immediately.
	rel := s.createRelease(plannedRelease(time.Now().UTC().Add(-time.Minute)))

	timeout := time.After(30 * time.Second)
	for {
		select {
		case evt := <-eventChan:
			if evt.ReleaseID != rel.ID {
				continue
			}
			assert.Equal(s.T(), activity.TypeStageStatusChanged, evt.Type)
			return
		case err := <-errChan:
			s.T().Fatalf("SSE stream error: %v", err)
		case <-timeout:
			s.T().Fatal("timeout waiting for stage transition event")
		}
	}
}
