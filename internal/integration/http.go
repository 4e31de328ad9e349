package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethgrid/pester"
)

// Client is a retrying JSON client shared by the HTTP-backed adapters.
type Client struct {
	baseURL string
	http    *pester.Client
}

// NewClient builds a client for one provider base URL.
func NewClient(baseURL string) *Client {
	client := pester.New()
	client.MaxRetries = 3
	client.Backoff = pester.ExponentialJitterBackoff
	client.Timeout = 30 * time.Second
	client.RetryOnHTTP429 = true

	return &Client{baseURL: baseURL, http: client}
}

// Post sends a JSON payload and decodes the JSON response. Network
// failures and 5xx responses surface as transient errors, 4xx as
// validation errors.
func (c *Client) Post(ctx context.Context, path string, payload interface{}) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, path, payload)
}

// Get fetches a JSON response.
func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}) (json.RawMessage, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, Validation(fmt.Sprintf("failed to encode request payload: %v", err))
		}
		body = bytes.NewReader(raw)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, Validation(fmt.Sprintf("failed to build request: %v", err))
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.http.Do(request)
	if err != nil {
		return nil, Transient(fmt.Sprintf("%s %s", method, path), err)
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, Transient("failed to read response body", err)
	}

	switch {
	case response.StatusCode >= 500:
		return nil, Transient(fmt.Sprintf("%s %s returned %d", method, path, response.StatusCode), nil)
	case response.StatusCode >= 400:
		return nil, Validation(fmt.Sprintf("%s %s returned %d: %s", method, path, response.StatusCode, raw))
	}

	if len(raw) == 0 {
		return json.RawMessage(`{}`), nil
	}

	return raw, nil
}
