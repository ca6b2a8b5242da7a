package domain

// StreamStatus describes the connection state of one symbol's stream.
type StreamStatus string

// Stream states. A symbol transitions connected -> disconnected on drop,
// back to connected after a successful retry, and to failed once the
// bounded retry budget is exhausted.
const (
	StreamConnected    StreamStatus = "connected"
	StreamDisconnected StreamStatus = "disconnected"
	StreamFailed       StreamStatus = "failed"
	StreamStopped      StreamStatus = "stopped"
)

// StreamState is a point-in-time snapshot of one symbol's ingestion state,
// as surfaced by status queries.
type StreamState struct {
	Symbol     string
	Status     StreamStatus
	LastSeen   int64 // timestamp of the last tick observed, Unix ms; 0 if none
	Buffered   int   // ticks buffered but not yet flushed
	Dropped    uint64
	Reconnects int
}
