// Package e2e provides end-to-end test infrastructure for the argus
// server: a full in-process instance driven over real HTTP and WebSocket
// connections.
package e2e

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arguslabs/argus/pkg/api"
	"github.com/arguslabs/argus/pkg/config"
	"github.com/arguslabs/argus/pkg/events"
	"github.com/arguslabs/argus/pkg/services"
	"github.com/arguslabs/argus/pkg/store"
)

// TestApp boots a complete argus server for e2e testing.
type TestApp struct {
	Store       *store.FileStore
	CfgManager  *config.Manager
	ConnManager *events.ConnectionManager
	Server      *api.Server

	// Runtime
	BaseURL string // e.g. "http://127.0.0.1:54321"
	WSURL   string // e.g. "ws://127.0.0.1:54321/ws/sessions"
	APIKey  string // "" when auth is disabled

	t *testing.T
}

// testAppConfig holds options accumulated before creating the TestApp.
type testAppConfig struct {
	apiKey       string
	dashboardDir string
}

// TestAppOption configures the test app.
type TestAppOption func(*testAppConfig)

// WithAPIKey enables request authentication with the given key.
func WithAPIKey(key string) TestAppOption {
	return func(c *testAppConfig) { c.apiKey = key }
}

// WithDashboardDir serves a static dashboard bundle from dir.
func WithDashboardDir(dir string) TestAppOption {
	return func(c *testAppConfig) { c.dashboardDir = dir }
}

// NewTestApp creates and starts a full argus test instance backed by a
// temp-dir file store. Shutdown is registered via t.Cleanup automatically.
func NewTestApp(t *testing.T, opts ...TestAppOption) *TestApp {
	t.Helper()

	tc := &testAppConfig{}
	for _, opt := range opts {
		opt(tc)
	}

	// NewServer reads auth and CORS settings from the environment, and hook
	// options fall back to env vars; set them all explicitly so ambient
	// values never leak into a test.
	t.Setenv("ARGUS_API_KEY", tc.apiKey)
	t.Setenv("ARGUS_CORS_ORIGINS", "")
	t.Setenv("ARGUS_MODE", "")
	t.Setenv("ARGUS_DASHBOARD_URL", "")
	t.Setenv("ARGUS_JUDGE_API_KEY", "")

	// 1. File store in a per-test workspace.
	st, err := store.New(t.TempDir())
	require.NoError(t, err)

	// 2. Runtime config.
	cfgManager := config.NewManager(st.ConfigPath())

	// 3. Domain services.
	sessionService := services.NewSessionService(st)
	registryService := services.NewRegistryService(st)
	statsService := services.NewStatsService(sessionService, registryService)
	auditService := services.NewAuditService(st)
	swarmService := services.NewSwarmService(st)
	snapshotService := services.NewSnapshotService(sessionService, registryService)

	// 4. WebSocket manager with its periodic refresh loop.
	connManager := events.NewConnectionManager(snapshotService, 10*time.Second)
	runCtx, stopRun := context.WithCancel(context.Background())
	go connManager.Run(runCtx)

	// 5. HTTP server on an OS-assigned port.
	server := api.NewServer(
		cfgManager, st,
		sessionService, registryService, statsService, auditService, swarmService,
		connManager,
	)
	if tc.dashboardDir != "" {
		server.SetDashboardDir(tc.dashboardDir)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		_ = server.StartWithListener(ln)
	}()

	addr := ln.Addr().String()

	app := &TestApp{
		Store:       st,
		CfgManager:  cfgManager,
		ConnManager: connManager,
		Server:      server,
		BaseURL:     fmt.Sprintf("http://%s", addr),
		WSURL:       fmt.Sprintf("ws://%s/ws/sessions", addr),
		APIKey:      tc.apiKey,
		t:           t,
	}

	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		stopRun()
	})

	return app
}
