package integration

import (
	"context"
	"fmt"
)

// Notification kinds posted by the orchestration tasks.
const (
	NotifyKickOff           = "kick_off"
	NotifyRegressionStart   = "regression_start"
	NotifyRegressionSummary = "regression_summary"
	NotifyRelease           = "release"
)

// httpChat posts notifications to a chat webhook (Slack and friends).
type httpChat struct {
	client *Client
}

// NewHTTPChat builds the HTTP chat adapter.
func NewHTTPChat(webhookURL string) Chat {
	return &httpChat{client: NewClient(webhookURL)}
}

func (c *httpChat) Notify(ctx context.Context, req *Request, kind string) (*Result, error) {
	raw, err := c.client.Post(ctx, "", map[string]interface{}{
		"text": messageFor(kind, req),
	})
	if err != nil {
		return nil, err
	}

	return resultFromResponse(raw, map[string]interface{}{"kind": kind})
}

func messageFor(kind string, req *Request) string {
	switch kind {
	case NotifyKickOff:
		return fmt.Sprintf("Release %s kicks off now (branch %s).", req.Release.ID, req.Release.Branch)
	case NotifyRegressionStart:
		return fmt.Sprintf("Regression started for release %s.", req.Release.ID)
	case NotifyRegressionSummary:
		return fmt.Sprintf("Regression cycle finished for release %s.", req.Release.ID)
	case NotifyRelease:
		return fmt.Sprintf("Release %s is out the door.", req.Release.ID)
	default:
		return fmt.Sprintf("Release %s: %s", req.Release.ID, kind)
	}
}
