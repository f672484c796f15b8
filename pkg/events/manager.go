package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/arguslabs/argus/pkg/metrics"
)

// updateInterval is how often connected clients receive a full state
// refresh. Mutation broadcasts arrive immediately; the periodic frame makes
// dashboards converge even when a broadcast was dropped.
const updateInterval = 5 * time.Second

// Snapshot is the dashboard state carried by initial and update frames.
type Snapshot struct {
	Sessions []map[string]any
	Agents   []map[string]any
}

// SnapshotProvider supplies the session and agent lists for initial and
// update frames. Implemented by services.SnapshotService.
type SnapshotProvider interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// ConnectionManager tracks WebSocket dashboard clients and fans frames out
// to them. Each process has one ConnectionManager instance.
type ConnectionManager struct {
	// Active connections: connection_id → *Connection
	connections map[string]*Connection
	mu          sync.RWMutex

	provider SnapshotProvider

	// Write timeout for WebSocket sends
	writeTimeout time.Duration

	// Update ticker period; shortened by tests.
	interval time.Duration
}

// Connection represents a single WebSocket client. Cancelling ctx unwinds
// the read loop in HandleConnection, whose deferred cleanup removes the
// connection from the manager.
type Connection struct {
	ID     string
	Conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
}

// NewConnectionManager creates a new ConnectionManager.
func NewConnectionManager(provider SnapshotProvider, writeTimeout time.Duration) *ConnectionManager {
	return &ConnectionManager{
		connections:  make(map[string]*Connection),
		provider:     provider,
		writeTimeout: writeTimeout,
		interval:     updateInterval,
	}
}

// HandleConnection manages the lifecycle of a single WebSocket connection.
// Called by the WebSocket HTTP handler after upgrade. Blocks until the
// connection closes.
//
// The client receives an initial frame immediately, then update frames from
// the Run ticker and session_update frames from mutation broadcasts. The
// read loop answers "ping" text frames with a pong and discards everything
// else.
func (m *ConnectionManager) HandleConnection(parentCtx context.Context, conn *websocket.Conn) {
	connID := uuid.New().String()
	ctx, cancel := context.WithCancel(parentCtx)

	c := &Connection{
		ID:     connID,
		Conn:   conn,
		ctx:    ctx,
		cancel: cancel,
	}

	m.registerConnection(c)
	defer m.unregisterConnection(c)

	m.sendState(ctx, c, EventTypeInitial)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			// Connection closed or errored; exit the read loop.
			return
		}
		if string(data) == "ping" {
			m.sendJSON(c, PongPayload{Type: EventTypePong})
		}
	}
}

// Run pushes a full state refresh to every connected client on a fixed
// interval. Blocks until ctx is cancelled; started once alongside the HTTP
// server.
func (m *ConnectionManager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.ActiveConnections() == 0 {
				continue
			}
			m.broadcastState(ctx, EventTypeUpdate)
		}
	}
}

// BroadcastSessionUpdate pushes one session's normalized record to every
// connected client. Called by the API layer after each session mutation.
func (m *ConnectionManager) BroadcastSessionUpdate(session map[string]any) {
	data, err := json.Marshal(SessionUpdatePayload{Type: EventTypeSessionUpdate, Session: session})
	if err != nil {
		slog.Warn("Failed to marshal session update", "error", err)
		return
	}
	m.broadcast(data)
}

// ActiveConnections returns the count of active WebSocket connections.
func (m *ConnectionManager) ActiveConnections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// sendState builds a snapshot and sends it to a single connection.
func (m *ConnectionManager) sendState(ctx context.Context, c *Connection, typ string) {
	snap, err := m.provider.Snapshot(ctx)
	if err != nil {
		// Send the frame anyway. A degraded snapshot beats a dashboard
		// stuck waiting for its initial state.
		slog.Error("Dashboard snapshot failed", "error", err)
	}
	m.sendJSON(c, statePayload(typ, snap))
}

// broadcastState builds one snapshot and fans it out to all connections.
func (m *ConnectionManager) broadcastState(ctx context.Context, typ string) {
	snap, err := m.provider.Snapshot(ctx)
	if err != nil {
		slog.Error("Dashboard snapshot failed", "error", err)
		return
	}
	data, err := json.Marshal(statePayload(typ, snap))
	if err != nil {
		slog.Warn("Failed to marshal state frame", "error", err)
		return
	}
	m.broadcast(data)
}

// broadcast sends raw bytes to every connection. A failed send drops the
// connection by cancelling its context; the owning HandleConnection
// goroutine then unregisters it.
func (m *ConnectionManager) broadcast(data []byte) {
	// Snapshot connection pointers under the lock, then release before
	// sending. This avoids holding mu.RLock during potentially slow
	// writes (up to writeTimeout per connection), which would stall
	// connection register/unregister operations.
	m.mu.RLock()
	conns := make([]*Connection, 0, len(m.connections))
	for _, c := range m.connections {
		conns = append(conns, c)
	}
	m.mu.RUnlock()

	for _, c := range conns {
		if err := m.sendRaw(c, data); err != nil {
			slog.Warn("Dropping WebSocket client after failed send",
				"connection_id", c.ID, "error", err)
			c.cancel()
		}
	}
	metrics.Broadcasts.Inc()
}

// registerConnection adds a connection to the tracking map.
func (m *ConnectionManager) registerConnection(c *Connection) {
	m.mu.Lock()
	m.connections[c.ID] = c
	m.mu.Unlock()
	metrics.WSConnections.Inc()
}

// unregisterConnection removes a connection and closes it.
func (m *ConnectionManager) unregisterConnection(c *Connection) {
	m.mu.Lock()
	delete(m.connections, c.ID)
	m.mu.Unlock()
	metrics.WSConnections.Dec()

	c.cancel()
	_ = c.Conn.Close(websocket.StatusNormalClosure, "")
}

// sendJSON marshals and sends a JSON message to a single connection.
func (m *ConnectionManager) sendJSON(c *Connection, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("Failed to marshal WebSocket message",
			"connection_id", c.ID, "error", err)
		return
	}
	if err := m.sendRaw(c, data); err != nil {
		slog.Warn("Failed to send WebSocket message",
			"connection_id", c.ID, "error", err)
	}
}

// sendRaw sends raw bytes to a single connection with a write timeout.
func (m *ConnectionManager) sendRaw(c *Connection, data []byte) error {
	writeCtx, cancel := context.WithTimeout(c.ctx, m.writeTimeout)
	defer cancel()
	return c.Conn.Write(writeCtx, websocket.MessageText, data)
}
