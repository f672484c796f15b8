package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"
)

// statsHandler handles GET /api/stats.
func (s *Server) statsHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.statsService.Stats(c.Request().Context()))
}

// auditLogsHandler handles GET /api/audit-logs.
// Returns the session history expanded into a flat event feed, newest
// session first.
func (s *Server) auditLogsHandler(c *echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	return c.JSON(http.StatusOK, s.auditService.Events(c.Request().Context(), limit))
}

// listSwarmsHandler handles GET /api/swarms.
func (s *Server) listSwarmsHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.swarmService.List(c.Request().Context()))
}

// getSwarmHandler handles GET /api/swarms/:id.
func (s *Server) getSwarmHandler(c *echo.Context) error {
	swarmID := c.Param("id")
	if swarmID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "swarm id is required")
	}

	detail, err := s.swarmService.Get(c.Request().Context(), swarmID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, detail)
}
