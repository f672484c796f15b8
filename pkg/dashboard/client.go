// Package dashboard streams live monitoring data to an argus server.
//
// The client is strictly best-effort: a hook must never slow down or fail
// the agent it watches because the dashboard is unreachable. Every call
// uses a short timeout, logs failures at debug level, and returns zero
// values instead of errors.
package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/arguslabs/argus/pkg/models"
)

// requestTimeout bounds every dashboard POST so a dead server costs a
// monitored agent at most this much per call.
const requestTimeout = 2 * time.Second

// Client posts session lifecycle events to the argus REST API.
// Nil-safe: all methods are no-ops when the client is nil.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a dashboard client for the given server URL.
// Returns nil if baseURL is empty, which callers treat as "dashboard disabled".
// apiKey may be empty when the server runs without authentication.
func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		return nil
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     slog.Default().With("component", "dashboard-client"),
	}
}

// RegisterAgent announces a hook-monitored agent to the dashboard and
// returns the server-assigned agent ID, or "" if registration failed.
func (c *Client) RegisterAgent(ctx context.Context, name, taskDescription, sourceFile string) string {
	if c == nil {
		return ""
	}
	resp, ok := c.post(ctx, "/api/agents/register", map[string]any{
		"name":             name,
		"task_description": taskDescription,
		"source_file":      sourceFile,
	})
	if !ok {
		return ""
	}
	if id, ok := resp["id"].(string); ok && id != "" {
		return id
	}
	if id, ok := resp["agent_id"].(string); ok && id != "" {
		return id
	}
	return ""
}

// IngestSession creates or resumes a session on the dashboard.
// The response document is returned so the caller can pick up prior
// steps when resuming; nil means the call failed.
func (c *Client) IngestSession(ctx context.Context, payload map[string]any) map[string]any {
	if c == nil {
		return nil
	}
	resp, ok := c.post(ctx, "/api/sessions/ingest", payload)
	if !ok {
		return nil
	}
	return resp
}

// SendStep streams a single recorded step to the dashboard.
func (c *Client) SendStep(ctx context.Context, sessionID string, step *models.StepRecord) {
	if c == nil {
		return
	}
	c.post(ctx, "/api/sessions/"+sessionID+"/step", step)
}

// CompleteSession marks a session finished on the dashboard with its
// final verdict fields.
func (c *Client) CompleteSession(ctx context.Context, sessionID string, payload map[string]any) {
	if c == nil {
		return
	}
	c.post(ctx, "/api/sessions/"+sessionID+"/complete", payload)
}

// post sends a JSON payload and decodes the JSON response body.
// Failures of any kind are logged at debug level and reported as ok=false.
func (c *Client) post(ctx context.Context, path string, payload any) (map[string]any, bool) {
	body, err := json.Marshal(payload)
	if err != nil {
		c.logger.Debug("Dashboard payload not serializable", "path", path, "error", err)
		return nil, false
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		c.logger.Debug("Dashboard request build failed", "path", path, "error", err)
		return nil, false
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("Dashboard unreachable", "path", path, "error", err)
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Debug("Dashboard rejected request", "path", path, "status", resp.StatusCode)
		return nil, false
	}

	decoded := map[string]any{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		// Body is optional; an empty or non-JSON 2xx still counts as delivered.
		return map[string]any{}, true
	}
	return decoded, true
}

// BaseURL returns the configured server URL, mainly for log messages.
func (c *Client) BaseURL() string {
	if c == nil {
		return ""
	}
	return c.baseURL
}
