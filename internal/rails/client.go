package rails

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// railClient is the shared HTTP plumbing for the collaborator services.
// Every rail call is one request with a hard timeout; there is no retry
// here, a failed call goes back to the user as an actionable error.
type railClient struct {
	address string
	timeout time.Duration
}

func (c *railClient) do(ctx context.Context, method, path string, payload interface{}) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.address+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: c.timeout}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}

	return resp.StatusCode, raw, nil
}

// railFailure is the error payload the collaborator services agree on.
type railFailure struct {
	Reason string `json:"reason"`
}

func failureReason(raw []byte, status int) string {
	var failure railFailure
	if err := json.Unmarshal(raw, &failure); err == nil && failure.Reason != "" {
		return failure.Reason
	}
	return fmt.Sprintf("unexpected status code: %d", status)
}
