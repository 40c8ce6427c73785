package sse

// Stream-level event names. Scheduler events use their own type names
// (child_started, child_completed, ...) as the SSE event name.
const (
	// EventTypeConnected is sent when a client successfully connects.
	EventTypeConnected = "connected"
	// EventTypeKeepAlive is used for keep-alive comments.
	EventTypeKeepAlive = "keepalive"
	// EventTypeMessage is the default event name for unnamed frames.
	EventTypeMessage = "message"
)

// Frame is one SSE event written to a client.
type Frame struct {
	// Event is the SSE event name. Empty means the default "message".
	Event string
	// Data is the payload, written as a single data line.
	Data []byte
}
