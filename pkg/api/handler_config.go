package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/arguslabs/argus/pkg/config"
)

// apiVersion is reported in the config runtime block.
const apiVersion = "1.0.0"

// getConfigHandler handles GET /api/config.
// Returns the effective configuration plus a _runtime block describing
// the server and its store on disk.
func (s *Server) getConfigHandler(c *echo.Context) error {
	out := s.cfgManager.Current().Map()

	sessions, stepFiles, issueFiles := s.store.Counts()
	out["_runtime"] = map[string]any{
		"api_version":          apiVersion,
		"log_directory":        s.store.BaseDir(),
		"sessions_directory":   s.store.SessionsDir(),
		"total_session_files":  sessions,
		"total_agent_files":    s.store.RegistryCount(),
		"total_step_log_files": stepFiles,
		"total_issue_files":    issueFiles,
		"config_file":          s.cfgManager.Path(),
		"config_exists":        s.cfgManager.Exists(),
	}
	return c.JSON(http.StatusOK, out)
}

// updateConfigHandler handles PUT /api/config.
// Applies recognized keys, persists the result, and reports what changed.
func (s *Server) updateConfigHandler(c *echo.Context) error {
	var updates map[string]any
	if err := c.Bind(&updates); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	applied, cfg, err := s.cfgManager.Apply(updates)
	if err != nil {
		switch {
		case errors.Is(err, config.ErrNoValidKeys):
			return echo.NewHTTPError(http.StatusBadRequest, "No valid config keys provided")
		case errors.Is(err, config.ErrInvalidValue):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			slog.Error("Config update failed", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
		}
	}

	slog.Info("Config updated", "keys", applied)
	return c.JSON(http.StatusOK, &ConfigUpdateResponse{
		Status:      "updated",
		UpdatedKeys: applied,
		Config:      cfg.Map(),
	})
}
