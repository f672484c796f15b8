package api

import (
	"log/slog"
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"
)

// ingestSessionHandler handles POST /api/sessions/ingest.
// Creates a session record or resumes an existing one under the same id.
// The response is the full stored record, including prior steps, so a
// reconnecting hook can continue numbering where it left off.
func (s *Server) ingestSessionHandler(c *echo.Context) error {
	var payload map[string]any
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	doc, resumed, err := s.sessionService.Ingest(c.Request().Context(), payload)
	if err != nil {
		return mapServiceError(err)
	}

	if resumed {
		slog.Info("Session resumed", "session_id", doc["session_id"], "agent", doc["agent_name"])
	} else {
		slog.Info("Session started", "session_id", doc["session_id"], "agent", doc["agent_name"])
	}
	return c.JSON(http.StatusOK, doc)
}

// appendStepHandler handles POST /api/sessions/:id/step.
func (s *Server) appendStepHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}

	var step map[string]any
	if err := c.Bind(&step); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	total, session, err := s.sessionService.AppendStep(c.Request().Context(), sessionID, step)
	if err != nil {
		return mapServiceError(err)
	}

	s.broadcastSession(session)

	return c.JSON(http.StatusOK, &StepAppendResponse{Status: "ok", TotalSteps: total})
}

// completeSessionHandler handles POST /api/sessions/:id/complete.
// Merges the final report over the stored record and broadcasts the
// completed session to dashboard clients.
func (s *Server) completeSessionHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}

	var payload map[string]any
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	session, err := s.sessionService.Complete(c.Request().Context(), sessionID, payload)
	if err != nil {
		return mapServiceError(err)
	}

	s.broadcastSession(session)

	slog.Info("Session completed", "session_id", sessionID, "status", session["status"])
	return c.JSON(http.StatusOK, &CompleteResponse{Status: "ok", SessionID: sessionID})
}

// listSessionsHandler handles GET /api/sessions.
func (s *Server) listSessionsHandler(c *echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	sessions := s.sessionService.List(c.Request().Context(), limit)
	return c.JSON(http.StatusOK, sessions)
}

// getSessionHandler handles GET /api/sessions/:id.
func (s *Server) getSessionHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}

	session, err := s.sessionService.Get(c.Request().Context(), sessionID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, session)
}

// deleteSessionHandler handles DELETE /api/sessions/:id.
func (s *Server) deleteSessionHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}

	if err := s.sessionService.Delete(c.Request().Context(), sessionID); err != nil {
		return mapServiceError(err)
	}

	slog.Info("Session deleted", "session_id", sessionID)
	return c.JSON(http.StatusOK, &DeleteResponse{Status: "deleted", ID: sessionID})
}

// deleteStepHandler handles DELETE /api/sessions/:id/steps/:step_id.
func (s *Server) deleteStepHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}
	stepID := c.Param("step_id")
	if stepID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "step id is required")
	}

	remaining, err := s.sessionService.DeleteStep(c.Request().Context(), sessionID, stepID)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, &StepDeleteResponse{OK: true, Remaining: remaining})
}

// broadcastSession pushes one normalized session to WebSocket clients.
func (s *Server) broadcastSession(session map[string]any) {
	if s.connManager == nil {
		return
	}
	s.connManager.BroadcastSessionUpdate(session)
}
