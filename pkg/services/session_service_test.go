package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/arguslabs/argus/pkg/models"
	"github.com/arguslabs/argus/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *store.FileStore {
	t.Helper()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	return st
}

func TestSessionService_Ingest(t *testing.T) {
	st := newTestStore(t)
	service := NewSessionService(st)
	ctx := context.Background()

	t.Run("creates zeroed record", func(t *testing.T) {
		doc, resumed, err := service.Ingest(ctx, map[string]any{
			"session_id": "sess-new",
			"agent_name": "scraper",
			"task":       "collect listings",
		})
		require.NoError(t, err)
		assert.False(t, resumed)
		assert.Equal(t, "sess-new", doc["session_id"])
		assert.Equal(t, "scraper", doc["agent_name"])
		assert.Equal(t, "active", doc["status"])
		assert.Equal(t, "PENDING", doc["overall_quality"])
		assert.Nil(t, doc["ended_at"])
		assert.Nil(t, doc["efficiency_score"])
		assert.Nil(t, doc["completion_confidence"])
		assert.Equal(t, 0, doc["total_steps"])
		assert.Equal(t, []any{}, doc["steps"])
		assert.NotEmpty(t, doc["started_at"])
		assert.True(t, st.SessionExists("sess-new"))

		info, statErr := os.Stat(filepath.Join(st.BaseDir(), "workspace", "sess-new"))
		require.NoError(t, statErr)
		assert.True(t, info.IsDir())
	})

	t.Run("defaults agent name", func(t *testing.T) {
		doc, _, err := service.Ingest(ctx, map[string]any{"session_id": "sess-anon"})
		require.NoError(t, err)
		assert.Equal(t, "Unknown", doc["agent_name"])
	})

	t.Run("requires session_id", func(t *testing.T) {
		for _, payload := range []map[string]any{
			{},
			{"session_id": ""},
			{"session_id": "   "},
			{"session_id": 42},
		} {
			_, _, err := service.Ingest(ctx, payload)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
		}
	})

	t.Run("resumes existing session", func(t *testing.T) {
		_, _, err := service.Ingest(ctx, map[string]any{
			"session_id": "sess-resume",
			"task":       "first task",
		})
		require.NoError(t, err)

		_, _, err = service.AppendStep(ctx, "sess-resume", map[string]any{"step_id": "step-1", "tool_name": "search"})
		require.NoError(t, err)
		_, err = service.Complete(ctx, "sess-resume", map[string]any{
			"ended_at":         models.NowISO(),
			"overall_quality":  "GOOD",
			"efficiency_score": float64(80),
		})
		require.NoError(t, err)

		doc, resumed, err := service.Ingest(ctx, map[string]any{
			"session_id": "sess-resume",
			"task":       "second task",
		})
		require.NoError(t, err)
		assert.True(t, resumed)
		assert.Equal(t, "active", doc["status"])
		assert.Nil(t, doc["ended_at"])
		// Prior state survives the resume, including streamed steps.
		assert.Equal(t, "first task", doc["task"])
		assert.Equal(t, float64(80), doc["efficiency_score"])
		steps, _ := doc["steps"].([]any)
		assert.Len(t, steps, 1)
	})

	t.Run("backfills missing swarm fields on resume", func(t *testing.T) {
		_, _, err := service.Ingest(ctx, map[string]any{"session_id": "sess-backfill"})
		require.NoError(t, err)

		doc, resumed, err := service.Ingest(ctx, map[string]any{
			"session_id":  "sess-backfill",
			"task":        "late task",
			"swarm_id":    "swarm-7",
			"swarm_order": float64(2),
		})
		require.NoError(t, err)
		assert.True(t, resumed)
		assert.Equal(t, "late task", doc["task"])
		assert.Equal(t, "swarm-7", doc["swarm_id"])
		assert.Equal(t, float64(2), doc["swarm_order"])
	})

	t.Run("recreates unreadable session file", func(t *testing.T) {
		path := filepath.Join(st.SessionsDir(), "sess-corrupt.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

		doc, resumed, err := service.Ingest(ctx, map[string]any{"session_id": "sess-corrupt"})
		require.NoError(t, err)
		assert.False(t, resumed)
		assert.Equal(t, "PENDING", doc["overall_quality"])
	})
}

func TestSessionService_AppendStep(t *testing.T) {
	st := newTestStore(t)
	service := NewSessionService(st)
	ctx := context.Background()

	t.Run("unknown session", func(t *testing.T) {
		_, _, err := service.AppendStep(ctx, "missing", map[string]any{"step_id": "s1"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("appends and counts steps", func(t *testing.T) {
		_, _, err := service.Ingest(ctx, map[string]any{"session_id": "sess-steps"})
		require.NoError(t, err)

		total, _, err := service.AppendStep(ctx, "sess-steps", map[string]any{"step_id": "step-1", "tool_name": "search"})
		require.NoError(t, err)
		assert.Equal(t, 1, total)

		total, normalized, err := service.AppendStep(ctx, "sess-steps", map[string]any{
			"step_id":    "step-2",
			"tool_name":  "http_get",
			"tool_input": map[string]any{"url": "https://example.com"},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, total)

		steps, _ := normalized["steps"].([]map[string]any)
		require.Len(t, steps, 2)
		assert.Equal(t, "url='https://example.com'", steps[1]["tool_input"])

		stored, err := st.LoadSession("sess-steps")
		require.NoError(t, err)
		assert.Equal(t, float64(2), stored["total_steps"])
	})

	t.Run("reactivates completed session", func(t *testing.T) {
		_, _, err := service.Ingest(ctx, map[string]any{"session_id": "sess-react"})
		require.NoError(t, err)
		_, err = service.Complete(ctx, "sess-react", map[string]any{"ended_at": models.NowISO()})
		require.NoError(t, err)

		_, normalized, err := service.AppendStep(ctx, "sess-react", map[string]any{"step_id": "late-step"})
		require.NoError(t, err)
		assert.Equal(t, "active", normalized["status"])

		stored, err := st.LoadSession("sess-react")
		require.NoError(t, err)
		assert.Equal(t, "active", stored["status"])
	})
}

func TestSessionService_Complete(t *testing.T) {
	st := newTestStore(t)
	service := NewSessionService(st)
	ctx := context.Background()

	t.Run("unknown session", func(t *testing.T) {
		_, err := service.Complete(ctx, "missing", map[string]any{})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("merges report and keeps streamed steps", func(t *testing.T) {
		_, _, err := service.Ingest(ctx, map[string]any{"session_id": "sess-done"})
		require.NoError(t, err)
		_, _, err = service.AppendStep(ctx, "sess-done", map[string]any{"step_id": "step-1"})
		require.NoError(t, err)
		_, _, err = service.AppendStep(ctx, "sess-done", map[string]any{"step_id": "step-2"})
		require.NoError(t, err)

		normalized, err := service.Complete(ctx, "sess-done", map[string]any{
			"ended_at":         models.NowISO(),
			"overall_quality":  "EXCELLENT",
			"efficiency_score": float64(95),
			"security_score":   float64(100),
			"total_steps":      float64(40),
		})
		require.NoError(t, err)
		assert.Equal(t, "completed", normalized["status"])
		assert.Equal(t, "EXCELLENT", normalized["overall_quality"])
		// The stored step list is authoritative over the payload's count.
		assert.Equal(t, 2, normalized["total_steps"])
		steps, _ := normalized["steps"].([]map[string]any)
		assert.Len(t, steps, 2)
	})

	t.Run("payload steps replace stored steps", func(t *testing.T) {
		_, _, err := service.Ingest(ctx, map[string]any{"session_id": "sess-replace"})
		require.NoError(t, err)
		_, _, err = service.AppendStep(ctx, "sess-replace", map[string]any{"step_id": "old-step"})
		require.NoError(t, err)

		normalized, err := service.Complete(ctx, "sess-replace", map[string]any{
			"ended_at": models.NowISO(),
			"steps": []any{
				map[string]any{"step_id": "old-step", "tool_name": "final"},
				map[string]any{"step_id": "new-step"},
			},
		})
		require.NoError(t, err)
		steps, _ := normalized["steps"].([]map[string]any)
		assert.Len(t, steps, 2)
	})

	t.Run("honors explicit status", func(t *testing.T) {
		_, _, err := service.Ingest(ctx, map[string]any{"session_id": "sess-term"})
		require.NoError(t, err)

		normalized, err := service.Complete(ctx, "sess-term", map[string]any{
			"ended_at": models.NowISO(),
			"status":   "terminated",
		})
		require.NoError(t, err)
		assert.Equal(t, "terminated", normalized["status"])
	})
}

func TestSessionService_GetAndList(t *testing.T) {
	st := newTestStore(t)
	service := NewSessionService(st)
	ctx := context.Background()

	_, err := service.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	for _, id := range []string{"sess-a", "sess-b", "sess-c"} {
		_, _, err := service.Ingest(ctx, map[string]any{"session_id": id, "task": map[string]any{"description": "task for " + id}})
		require.NoError(t, err)
	}

	got, err := service.Get(ctx, "sess-b")
	require.NoError(t, err)
	assert.Equal(t, "task for sess-b", got["task"])
	// Display form swaps the storage keys for start_time/end_time.
	assert.Contains(t, got, "start_time")
	assert.NotContains(t, got, "started_at")

	all := service.List(ctx, 0)
	assert.Len(t, all, 3)

	limited := service.List(ctx, 2)
	assert.Len(t, limited, 2)

	assert.Len(t, service.ListAll(ctx), 3)
}

func TestSessionService_Delete(t *testing.T) {
	st := newTestStore(t)
	service := NewSessionService(st)
	ctx := context.Background()

	_, _, err := service.Ingest(ctx, map[string]any{"session_id": "sess-del"})
	require.NoError(t, err)

	require.NoError(t, service.Delete(ctx, "sess-del"))
	assert.False(t, st.SessionExists("sess-del"))
	assert.ErrorIs(t, service.Delete(ctx, "sess-del"), ErrNotFound)
}

func TestSessionService_DeleteStep(t *testing.T) {
	st := newTestStore(t)
	service := NewSessionService(st)
	ctx := context.Background()

	_, _, err := service.Ingest(ctx, map[string]any{"session_id": "sess-trim"})
	require.NoError(t, err)
	for _, stepID := range []string{"step-1", "step-2", "step-3"} {
		_, _, err := service.AppendStep(ctx, "sess-trim", map[string]any{"step_id": stepID})
		require.NoError(t, err)
	}

	t.Run("removes matching step", func(t *testing.T) {
		remaining, err := service.DeleteStep(ctx, "sess-trim", "step-2")
		require.NoError(t, err)
		assert.Equal(t, 2, remaining)

		stored, err := st.LoadSession("sess-trim")
		require.NoError(t, err)
		steps, _ := stored["steps"].([]any)
		require.Len(t, steps, 2)
		ids := []string{}
		for _, raw := range steps {
			step := raw.(map[string]any)
			ids = append(ids, step["step_id"].(string))
		}
		assert.Equal(t, []string{"step-1", "step-3"}, ids)
		assert.Equal(t, float64(2), stored["total_steps"])
	})

	t.Run("unknown step", func(t *testing.T) {
		_, err := service.DeleteStep(ctx, "sess-trim", "step-2")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unknown session", func(t *testing.T) {
		_, err := service.DeleteStep(ctx, "missing", "step-1")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
