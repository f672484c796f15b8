package api

import (
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"
)

// wsStatusUnauthorized is the close code sent to clients that connect
// without valid credentials, mirroring the 401 on the REST surface.
const wsStatusUnauthorized = websocket.StatusCode(4001)

// wsHandler handles GET /ws/sessions.
// Upgrades to a WebSocket and hands the connection to the manager, which
// sends the initial state snapshot and then live updates. The credential
// check runs after the upgrade so rejected clients receive a close frame
// with a policy code rather than a failed handshake.
func (s *Server) wsHandler(c *echo.Context) error {
	if s.connManager == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "WebSocket not available")
	}

	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		// Origin checking happens in the CORS middleware.
		InsecureSkipVerify: true,
	})
	if err != nil {
		// Accept has already written the HTTP error response.
		slog.Warn("WebSocket upgrade failed", "error", err)
		return nil
	}

	if s.apiKey != "" && requestKey(c) != s.apiKey {
		conn.Close(wsStatusUnauthorized, "Unauthorized")
		return nil
	}

	s.connManager.HandleConnection(c.Request().Context(), conn)
	return nil
}
