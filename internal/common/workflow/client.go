// internal/common/workflow/client.go

// Package workflow triggers the external email/calendar workflow over
// HTTP. The endpoint owns actual delivery; this client only fires the
// trigger and reports transport-level failures.
package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client posts trigger payloads to a configured workflow endpoint.
type Client struct {
	triggerURL string
	httpClient *http.Client
}

// TriggerPayload is the body sent to the workflow endpoint for a
// calendar-bearing reminder.
type TriggerPayload struct {
	NotificationID int64                  `json:"notification_id"`
	UserID         string                 `json:"user_id"`
	Type           string                 `json:"notification_type"`
	Title          string                 `json:"title"`
	Message        string                 `json:"message"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	TriggeredAt    string                 `json:"triggered_at"`
}

// NewClient creates a workflow client for the given trigger URL.
func NewClient(triggerURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		triggerURL: triggerURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Trigger fires the workflow with the given payload. Any non-2xx
// response is an error; the response body is drained for connection reuse.
func (c *Client) Trigger(ctx context.Context, payload *TriggerPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.triggerURL, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("workflow trigger returned status %d", resp.StatusCode)
	}

	return nil
}
