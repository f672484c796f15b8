package api

import (
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// registerAgentHandler handles POST /api/agents/register.
// Called by the capture hook at agent startup. Registration is idempotent
// on the agent name, so repeated starts return the existing entry.
func (s *Server) registerAgentHandler(c *echo.Context) error {
	var req RegisterAgentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := req.Validate(); err != nil {
		return mapServiceError(err)
	}

	entry, created, err := s.registryService.Register(c.Request().Context(), req.Name, req.SourceFile, req.TaskDescription)
	if err != nil {
		return mapServiceError(err)
	}

	if created {
		slog.Info("Agent registered", "agent", entry.Name, "id", entry.ID)
	}
	return c.JSON(http.StatusOK, entry)
}

// listAgentsHandler handles GET /api/agents.
func (s *Server) listAgentsHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.registryService.List(c.Request().Context()))
}

// getAgentHandler handles GET /api/agents/:id.
func (s *Server) getAgentHandler(c *echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "agent id is required")
	}

	entry, err := s.registryService.Get(c.Request().Context(), id)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, entry)
}

// deleteAgentHandler handles DELETE /api/agents/:id.
func (s *Server) deleteAgentHandler(c *echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "agent id is required")
	}

	if err := s.registryService.Delete(c.Request().Context(), id); err != nil {
		return mapServiceError(err)
	}

	slog.Info("Agent removed from registry", "id", id)
	return c.JSON(http.StatusOK, &DeleteResponse{Status: "deleted", ID: id})
}
