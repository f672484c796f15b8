package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arguslabs/argus/pkg/config"
	"github.com/arguslabs/argus/pkg/events"
	"github.com/arguslabs/argus/pkg/services"
	"github.com/arguslabs/argus/pkg/store"
)

// newTestServer builds a full server over a throwaway store with real
// services behind it.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	st, err := store.New(t.TempDir())
	require.NoError(t, err)

	cfgManager := config.NewManager(st.ConfigPath())
	sessionService := services.NewSessionService(st)
	registryService := services.NewRegistryService(st)
	snapshotService := services.NewSnapshotService(sessionService, registryService)

	return NewServer(
		cfgManager,
		st,
		sessionService,
		registryService,
		services.NewStatsService(sessionService, registryService),
		services.NewAuditService(st),
		services.NewSwarmService(st),
		events.NewConnectionManager(snapshotService, time.Second),
	)
}

// doRequest runs one request through the full middleware and router stack.
func doRequest(s *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestServerRoutes(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		method     string
		target     string
		wantStatus int
	}{
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/api/sessions", http.StatusOK},
		{http.MethodGet, "/api/agents", http.StatusOK},
		{http.MethodGet, "/api/stats", http.StatusOK},
		{http.MethodGet, "/api/audit-logs", http.StatusOK},
		{http.MethodGet, "/api/swarms", http.StatusOK},
		{http.MethodGet, "/api/config", http.StatusOK},
		{http.MethodGet, "/api/sessions/nope", http.StatusNotFound},
		{http.MethodDelete, "/api/sessions/nope", http.StatusNotFound},
		{http.MethodGet, "/api/does-not-exist", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rec := doRequest(s, tt.method, tt.target, "")
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestUnknownRouteEnveloped(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/does-not-exist", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "detail")
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "argus_sessions_ingested_total")
}

func TestSplitOrigins(t *testing.T) {
	assert.Equal(t,
		[]string{"http://localhost:5173", "http://localhost:3000"},
		splitOrigins(" http://localhost:5173 ,http://localhost:3000,"))
	assert.Nil(t, splitOrigins(""))
}

func TestServerShutdownWithoutStart(t *testing.T) {
	s := newTestServer(t)
	assert.NoError(t, s.Shutdown(t.Context()))
}
