package api

import (
	"fmt"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/arguslabs/argus/pkg/version"
)

const (
	healthStatusHealthy   = "healthy"
	healthStatusDegraded  = "degraded"
	healthStatusUnhealthy = "unhealthy"
)

// rootHandler handles GET /.
// Serves the dashboard index when a dashboard is configured, otherwise a
// liveness banner.
func (s *Server) rootHandler(c *echo.Context) error {
	if s.dashboardDir != "" {
		return s.dashboardHandler(c)
	}
	return c.JSON(http.StatusOK, &BannerResponse{Status: "online", Service: "Argus API"})
}

// healthHandler handles GET /health.
// Probes the session store for writability and reports per-component
// status. Returns 503 when any component is unhealthy so load balancers
// stop routing traffic here.
func (s *Server) healthHandler(c *echo.Context) error {
	checks := make(map[string]HealthCheck)
	status := healthStatusHealthy

	if err := s.store.ProbeWrite(); err != nil {
		checks["store"] = HealthCheck{
			Status:  healthStatusUnhealthy,
			Message: fmt.Sprintf("store not writable: %v", err),
		}
		status = healthStatusUnhealthy
	} else {
		checks["store"] = HealthCheck{Status: healthStatusHealthy}
	}

	if s.connManager == nil {
		checks["websocket"] = HealthCheck{
			Status:  healthStatusDegraded,
			Message: "connection manager not configured",
		}
		if status == healthStatusHealthy {
			status = healthStatusDegraded
		}
	} else {
		checks["websocket"] = HealthCheck{Status: healthStatusHealthy}
	}

	code := http.StatusOK
	if status == healthStatusUnhealthy {
		code = http.StatusServiceUnavailable
	}

	return c.JSON(code, &HealthResponse{
		Status:  status,
		Version: version.GitCommit,
		Checks:  checks,
	})
}
