package services

import (
	"context"
	"testing"

	"github.com/arguslabs/argus/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsService_Empty(t *testing.T) {
	st := newTestStore(t)
	service := NewStatsService(NewSessionService(st), NewRegistryService(st))

	stats := service.Stats(context.Background())
	assert.Equal(t, 0, stats.TotalSessions)
	assert.Equal(t, 0, stats.ActiveSessions)
	assert.Equal(t, 0, stats.CriticalThreats)
	assert.Equal(t, float64(0), stats.AvgEfficiency)
	assert.Equal(t, float64(100), stats.AvgSecurity)
	assert.Equal(t, 0, stats.TotalAgents)
}

func TestStatsService_Aggregates(t *testing.T) {
	st := newTestStore(t)
	sessions := NewSessionService(st)
	registry := NewRegistryService(st)
	service := NewStatsService(sessions, registry)
	ctx := context.Background()

	// One running session with no scores yet.
	_, _, err := sessions.Ingest(ctx, map[string]any{"session_id": "sess-live"})
	require.NoError(t, err)

	// One clean completed session.
	_, _, err = sessions.Ingest(ctx, map[string]any{"session_id": "sess-clean"})
	require.NoError(t, err)
	_, err = sessions.Complete(ctx, "sess-clean", map[string]any{
		"ended_at":         models.NowISO(),
		"efficiency_score": float64(80),
		"security_score":   float64(90),
	})
	require.NoError(t, err)

	// One completed session below the critical security threshold.
	_, _, err = sessions.Ingest(ctx, map[string]any{"session_id": "sess-breach"})
	require.NoError(t, err)
	_, err = sessions.Complete(ctx, "sess-breach", map[string]any{
		"ended_at":         models.NowISO(),
		"efficiency_score": float64(60),
		"security_score":   float64(50),
	})
	require.NoError(t, err)

	_, _, err = registry.Register(ctx, "stats-agent", "", "")
	require.NoError(t, err)

	stats := service.Stats(ctx)
	assert.Equal(t, 3, stats.TotalSessions)
	assert.Equal(t, 1, stats.ActiveSessions)
	assert.Equal(t, 1, stats.CriticalThreats)
	// Unscored sessions count as 0 efficiency and 100 security.
	assert.InDelta(t, (0.0+80+60)/3, stats.AvgEfficiency, 0.001)
	assert.InDelta(t, (100.0+90+50)/3, stats.AvgSecurity, 0.001)
	assert.Equal(t, 1, stats.TotalAgents)
}
