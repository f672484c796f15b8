// Package api provides the HTTP and WebSocket surface of the monitor:
// hook ingest, the agent registry, dashboard read models, runtime
// configuration and live session updates. Handlers stay thin and delegate
// to pkg/services.
package api

import (
	"context"
	"net"
	"net/http"
	"os"
	"strings"

	echo "github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arguslabs/argus/pkg/config"
	"github.com/arguslabs/argus/pkg/events"
	"github.com/arguslabs/argus/pkg/services"
	"github.com/arguslabs/argus/pkg/store"
)

// defaultCORSOrigins covers the Vite dev server and common local dashboard
// ports when ARGUS_CORS_ORIGINS is unset.
const defaultCORSOrigins = "http://localhost:5173,http://localhost:3000,http://localhost:3001"

// Server is the HTTP API server.
type Server struct {
	echo *echo.Echo

	cfgManager *config.Manager
	store      *store.FileStore

	sessionService  *services.SessionService
	registryService *services.RegistryService
	statsService    *services.StatsService
	auditService    *services.AuditService
	swarmService    *services.SwarmService

	connManager *events.ConnectionManager

	httpServer *http.Server

	// apiKey enables request authentication when non-empty.
	apiKey string

	// dashboardDir serves a built dashboard bundle when set.
	dashboardDir string

	promHandler http.Handler
}

// NewServer creates the API server with all routes and middleware
// registered. ARGUS_API_KEY and ARGUS_CORS_ORIGINS are read from the
// environment.
func NewServer(
	cfgManager *config.Manager,
	fileStore *store.FileStore,
	sessionService *services.SessionService,
	registryService *services.RegistryService,
	statsService *services.StatsService,
	auditService *services.AuditService,
	swarmService *services.SwarmService,
	connManager *events.ConnectionManager,
) *Server {
	s := &Server{
		echo:            echo.New(),
		cfgManager:      cfgManager,
		store:           fileStore,
		sessionService:  sessionService,
		registryService: registryService,
		statsService:    statsService,
		auditService:    auditService,
		swarmService:    swarmService,
		connManager:     connManager,
		apiKey:          os.Getenv("ARGUS_API_KEY"),
		promHandler:     promhttp.Handler(),
	}

	origins := os.Getenv("ARGUS_CORS_ORIGINS")
	if origins == "" {
		origins = defaultCORSOrigins
	}

	// Order matters: the logger sees every request, the envelope renders
	// every error below it (auth rejections included), and panics are
	// recovered innermost so they surface as enveloped 500s.
	s.echo.Use(requestLogger())
	s.echo.Use(errorEnvelope())
	s.echo.Use(corsHeaders(splitOrigins(origins)))
	s.echo.Use(securityHeaders())
	s.echo.Use(apiKeyAuth(s.apiKey))
	s.echo.Use(recoverPanics())

	s.registerRoutes()

	return s
}

func (s *Server) registerRoutes() {
	e := s.echo

	e.GET("/", s.rootHandler)
	e.GET("/health", s.healthHandler)
	e.GET("/metrics", s.metricsHandler)

	// Hook endpoints used by the capture script.
	e.POST("/api/agents/register", s.registerAgentHandler)
	e.POST("/api/sessions/ingest", s.ingestSessionHandler)
	e.POST("/api/sessions/:id/step", s.appendStepHandler)
	e.POST("/api/sessions/:id/complete", s.completeSessionHandler)

	// Session read and admin endpoints.
	e.GET("/api/sessions", s.listSessionsHandler)
	e.GET("/api/sessions/:id", s.getSessionHandler)
	e.DELETE("/api/sessions/:id", s.deleteSessionHandler)
	e.DELETE("/api/sessions/:id/steps/:step_id", s.deleteStepHandler)

	// Registry endpoints.
	e.GET("/api/agents", s.listAgentsHandler)
	e.GET("/api/agents/:id", s.getAgentHandler)
	e.DELETE("/api/agents/:id", s.deleteAgentHandler)

	// Dashboard read models.
	e.GET("/api/stats", s.statsHandler)
	e.GET("/api/audit-logs", s.auditLogsHandler)
	e.GET("/api/swarms", s.listSwarmsHandler)
	e.GET("/api/swarms/:id", s.getSwarmHandler)

	// Runtime configuration.
	e.GET("/api/config", s.getConfigHandler)
	e.PUT("/api/config", s.updateConfigHandler)

	// Live updates.
	e.GET("/ws/sessions", s.wsHandler)
}

// Start begins serving HTTP requests on the given address. Blocks until
// the server stops.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.echo,
	}
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// StartWithListener serves on an already-bound listener. Used by tests
// that need an OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler: s.echo,
	}
	err := s.httpServer.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// metricsHandler handles GET /metrics.
func (s *Server) metricsHandler(c *echo.Context) error {
	s.promHandler.ServeHTTP(c.Response(), c.Request())
	return nil
}

// splitOrigins parses a comma-separated origin list, trimming whitespace
// and dropping empty entries.
func splitOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
