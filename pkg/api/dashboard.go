package api

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	echo "github.com/labstack/echo/v5"
)

const (
	cacheNever = "no-cache"
	// Vite emits content-hashed filenames under assets/, safe to cache
	// indefinitely.
	cacheForever = "public, max-age=31536000, immutable"
)

// SetDashboardDir enables serving a built dashboard bundle from dir.
// An empty dir, or one without an index.html, leaves the API running
// without a dashboard so a missing build does not swallow 404s.
func (s *Server) SetDashboardDir(dir string) {
	if dir == "" {
		return
	}
	if _, err := os.Stat(filepath.Join(dir, "index.html")); err != nil {
		slog.Warn("Dashboard directory has no index.html, not serving dashboard", "dir", dir)
		return
	}
	s.dashboardDir = dir
	s.setupDashboardRoutes()
}

// setupDashboardRoutes registers the SPA catch-all. Registered API routes
// keep priority over the wildcard.
func (s *Server) setupDashboardRoutes() {
	if s.dashboardDir == "" {
		return
	}
	s.echo.GET("/*", s.dashboardHandler)
}

// dashboardHandler serves the dashboard bundle. Files that exist on disk
// are served directly; unknown non-API paths fall back to index.html for
// client-side routing.
func (s *Server) dashboardHandler(c *echo.Context) error {
	path := c.Request().URL.Path
	if strings.HasPrefix(path, "/api/") {
		return echo.NewHTTPError(http.StatusNotFound, http.StatusText(http.StatusNotFound))
	}

	rel := strings.TrimPrefix(filepath.Clean("/"+path), "/")
	target := filepath.Join(s.dashboardDir, rel)
	if info, err := os.Stat(target); err == nil && !info.IsDir() {
		cache := cacheNever
		if strings.HasPrefix(path, "/assets/") {
			cache = cacheForever
		}
		c.Response().Header().Set("Cache-Control", cache)
		http.ServeFile(c.Response(), c.Request(), target)
		return nil
	}

	c.Response().Header().Set("Cache-Control", cacheNever)
	http.ServeFile(c.Response(), c.Request(), filepath.Join(s.dashboardDir, "index.html"))
	return nil
}
