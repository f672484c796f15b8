package api

import (
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v5"
)

// authExempt lists API paths the capture hook may call before it has been
// issued credentials.
var authExempt = map[string]bool{
	"/api/agents/register": true,
}

// apiKeyAuth rejects /api requests that do not carry the configured key.
// An empty key disables authentication entirely. The WebSocket endpoint
// performs its own check so it can close the socket with a policy code
// instead of failing the upgrade with an opaque HTTP error.
func apiKeyAuth(apiKey string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			if apiKey == "" {
				return next(c)
			}
			path := c.Request().URL.Path
			if !strings.HasPrefix(path, "/api/") || authExempt[path] {
				return next(c)
			}
			if requestKey(c) != apiKey {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or missing API key")
			}
			return next(c)
		}
	}
}

// requestKey extracts the API key from the X-API-Key header, falling back
// to the api_key query parameter for clients that cannot set headers.
func requestKey(c *echo.Context) string {
	if key := c.Request().Header.Get("X-API-Key"); key != "" {
		return key
	}
	return c.QueryParam("api_key")
}
