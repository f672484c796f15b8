package events

// StatePayload is the payload for initial and update frames: the whole
// dashboard state in one message.
type StatePayload struct {
	Type     string           `json:"type"`     // EventTypeInitial or EventTypeUpdate
	Sessions []map[string]any `json:"sessions"` // normalized sessions, most recent first
	Agents   []map[string]any `json:"agents"`   // agent registry entries
}

// SessionUpdatePayload is the payload for session_update frames.
// Published after every session mutation so dashboards refresh a single
// row without waiting for the next periodic update.
type SessionUpdatePayload struct {
	Type    string         `json:"type"`    // always EventTypeSessionUpdate
	Session map[string]any `json:"session"` // normalized session record
}

// PongPayload answers a client "ping" text frame.
type PongPayload struct {
	Type string `json:"type"` // always EventTypePong
}

// statePayload builds a StatePayload, replacing nil slices so frames always
// carry JSON arrays, never null.
func statePayload(typ string, snap Snapshot) StatePayload {
	if snap.Sessions == nil {
		snap.Sessions = []map[string]any{}
	}
	if snap.Agents == nil {
		snap.Agents = []map[string]any{}
	}
	return StatePayload{Type: typ, Sessions: snap.Sessions, Agents: snap.Agents}
}
