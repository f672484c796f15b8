package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

// --- HTTP client helpers ---

// Request performs a raw HTTP call against the test server. The configured
// API key is attached unless authenticated is false. The caller owns the
// response body.
func (app *TestApp) Request(t *testing.T, method, path string, body any, authenticated bool) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, app.BaseURL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authenticated && app.APIKey != "" {
		req.Header.Set("X-API-Key", app.APIKey)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func (app *TestApp) doJSON(t *testing.T, method, path string, body any, expectedStatus int) map[string]any {
	t.Helper()
	resp := app.Request(t, method, path, body, true)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, expectedStatus, resp.StatusCode, "%s %s: unexpected status", method, path)
	var result map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}

func (app *TestApp) postJSON(t *testing.T, path string, body any, expectedStatus int) map[string]any {
	t.Helper()
	return app.doJSON(t, http.MethodPost, path, body, expectedStatus)
}

func (app *TestApp) getJSON(t *testing.T, path string, expectedStatus int) map[string]any {
	t.Helper()
	return app.doJSON(t, http.MethodGet, path, nil, expectedStatus)
}

func (app *TestApp) getJSONArray(t *testing.T, path string, expectedStatus int) []any {
	t.Helper()
	resp := app.Request(t, http.MethodGet, path, nil, true)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, expectedStatus, resp.StatusCode, "GET %s: unexpected status", path)
	var result []any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}

// --- Hook ingest endpoints ---

// IngestSession posts a create-or-resume payload and returns the stored
// session document.
func (app *TestApp) IngestSession(t *testing.T, payload map[string]any) map[string]any {
	t.Helper()
	return app.postJSON(t, "/api/sessions/ingest", payload, http.StatusOK)
}

// AppendStep streams one recorded step into a session.
func (app *TestApp) AppendStep(t *testing.T, sessionID string, step map[string]any) map[string]any {
	t.Helper()
	return app.postJSON(t, "/api/sessions/"+sessionID+"/step", step, http.StatusOK)
}

// CompleteSession posts the final verdict for a session.
func (app *TestApp) CompleteSession(t *testing.T, sessionID string, payload map[string]any) map[string]any {
	t.Helper()
	return app.postJSON(t, "/api/sessions/"+sessionID+"/complete", payload, http.StatusOK)
}

// RegisterAgent announces a hook agent and returns the registry entry.
func (app *TestApp) RegisterAgent(t *testing.T, name, taskDescription string) map[string]any {
	t.Helper()
	body := map[string]any{
		"name":             name,
		"task_description": taskDescription,
	}
	return app.postJSON(t, "/api/agents/register", body, http.StatusOK)
}

// --- Read models ---

// GetSession retrieves a normalized session by ID.
func (app *TestApp) GetSession(t *testing.T, sessionID string) map[string]any {
	t.Helper()
	return app.getJSON(t, "/api/sessions/"+sessionID, http.StatusOK)
}

// GetSessions calls GET /api/sessions with optional query params.
func (app *TestApp) GetSessions(t *testing.T, queryParams string) []any {
	t.Helper()
	path := "/api/sessions"
	if queryParams != "" {
		path += "?" + queryParams
	}
	return app.getJSONArray(t, path, http.StatusOK)
}

// GetAgents retrieves the agent registry.
func (app *TestApp) GetAgents(t *testing.T) []any {
	t.Helper()
	return app.getJSONArray(t, "/api/agents", http.StatusOK)
}

// GetStats retrieves the dashboard aggregates.
func (app *TestApp) GetStats(t *testing.T) map[string]any {
	t.Helper()
	return app.getJSON(t, "/api/stats", http.StatusOK)
}

// GetAuditLogs retrieves the flattened audit event list.
func (app *TestApp) GetAuditLogs(t *testing.T, queryParams string) []any {
	t.Helper()
	path := "/api/audit-logs"
	if queryParams != "" {
		path += "?" + queryParams
	}
	return app.getJSONArray(t, path, http.StatusOK)
}

// GetSwarms retrieves the swarm overview cards.
func (app *TestApp) GetSwarms(t *testing.T) []any {
	t.Helper()
	return app.getJSONArray(t, "/api/swarms", http.StatusOK)
}

// GetSwarm retrieves one swarm detail.
func (app *TestApp) GetSwarm(t *testing.T, swarmID string) map[string]any {
	t.Helper()
	return app.getJSON(t, "/api/swarms/"+swarmID, http.StatusOK)
}

// GetConfig retrieves the runtime config document.
func (app *TestApp) GetConfig(t *testing.T) map[string]any {
	t.Helper()
	return app.getJSON(t, "/api/config", http.StatusOK)
}

// UpdateConfig applies config updates over the API.
func (app *TestApp) UpdateConfig(t *testing.T, updates map[string]any) map[string]any {
	t.Helper()
	return app.doJSON(t, http.MethodPut, "/api/config", updates, http.StatusOK)
}

// DeleteSession removes a stored session.
func (app *TestApp) DeleteSession(t *testing.T, sessionID string) map[string]any {
	t.Helper()
	return app.doJSON(t, http.MethodDelete, "/api/sessions/"+sessionID, nil, http.StatusOK)
}
