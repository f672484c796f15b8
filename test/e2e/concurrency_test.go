package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arguslabs/argus/pkg/models"
)

// driveAgent plays one agent's full session over plain HTTP: ingest, two
// steps, complete. It returns an error instead of failing the test so it is
// safe to run from a goroutine.
func driveAgent(baseURL, sessionID, agentName string) error {
	post := func(path string, payload map[string]any) error {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		resp, err := http.Post(baseURL+path, "application/json", bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("POST %s: %w", path, err)
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("POST %s: status %d", path, resp.StatusCode)
		}
		_, err = io.Copy(io.Discard, resp.Body)
		return err
	}

	if err := post("/api/sessions/ingest", map[string]any{
		"session_id": sessionID,
		"agent_name": agentName,
		"task":       "Process one partition of the batch",
		"started_at": models.NowISO(),
	}); err != nil {
		return err
	}
	for stepNum := 1; stepNum <= 2; stepNum++ {
		if err := post("/api/sessions/"+sessionID+"/step", map[string]any{
			"step_number": stepNum,
			"tool_name":   "process_chunk",
			"tool_input":  map[string]any{"chunk": stepNum},
			"tool_result": "ok",
			"status":      "SUCCESS",
		}); err != nil {
			return err
		}
	}
	return post("/api/sessions/"+sessionID+"/complete", map[string]any{
		"ended_at":         models.NowISO(),
		"overall_quality":  "GOOD",
		"efficiency_score": 90,
		"security_score":   100,
	})
}

func TestE2E_ConcurrentSessions(t *testing.T) {
	app := NewTestApp(t)
	ctx := context.Background()

	ws, err := WSConnect(ctx, app.WSURL)
	require.NoError(t, err)
	defer ws.Close()
	_, err = ws.WaitForEventType("initial", 5*time.Second)
	require.NoError(t, err)

	const agents = 5
	errCh := make(chan error, agents)
	for i := 0; i < agents; i++ {
		go func(n int) {
			errCh <- driveAgent(app.BaseURL, fmt.Sprintf("e2e-conc-%d", n), fmt.Sprintf("Worker %d", n))
		}(i)
	}
	for i := 0; i < agents; i++ {
		require.NoError(t, <-errCh)
	}

	// Every session landed intact despite the interleaved writes.
	sessions := app.GetSessions(t, "")
	require.Len(t, sessions, agents)
	for i := 0; i < agents; i++ {
		session := app.GetSession(t, fmt.Sprintf("e2e-conc-%d", i))
		assert.Equal(t, "completed", session["status"], session["session_id"])
		assert.Equal(t, float64(2), session["total_steps"], session["session_id"])
	}

	stats := app.GetStats(t)
	assert.Equal(t, float64(agents), stats["total_sessions"])
	assert.Equal(t, float64(0), stats["active_sessions"])

	// Broadcasts kept flowing under the concurrent load.
	_, err = ws.WaitForSessionUpdate("e2e-conc-0", 5*time.Second, func(session map[string]any) bool {
		return session["status"] == "completed"
	})
	require.NoError(t, err)
}
