// Package events delivers real-time dashboard updates over WebSocket.
//
// Frame protocol (server → client), discriminated by the "type" field:
//
//	initial         full state snapshot, sent once right after accept
//	update          full state refresh, pushed on a fixed interval
//	session_update  one normalized session record, pushed after every
//	                ingest, step append, or completion write
//	pong            reply to a client "ping" text frame
//
// Client → server traffic is a bare "ping" text frame; anything else is
// ignored. There are no channels or subscriptions: every connected client
// sees every frame. Fan-out is per process; cross-host distribution is out
// of scope.
package events

// Frame types (the "type" field of every server → client message).
const (
	EventTypeInitial       = "initial"
	EventTypeUpdate        = "update"
	EventTypeSessionUpdate = "session_update"
	EventTypePong          = "pong"
)
