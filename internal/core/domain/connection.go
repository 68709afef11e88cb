package domain

import "time"

// ConnectionState is the lifecycle position of the stream subscription.
type ConnectionState string

const (
	ConnectionStateConnecting ConnectionState = "connecting"
	ConnectionStateStreaming  ConnectionState = "streaming"
	ConnectionStateBackoff    ConnectionState = "backoff"
	ConnectionStateTerminated ConnectionState = "terminated"
)

// Connection describes the current connection attempt.
type Connection struct {
	ID        string
	State     ConnectionState
	Attempt   uint64
	Since     time.Time
	LastChunk time.Time
	Backoff   time.Duration
	Err       error
}
