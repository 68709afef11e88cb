package health

import (
	"time"

	"github.com/vietddude/firehose/internal/core/domain"
)

// Status represents the health status.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusCritical Status = "critical"
)

// StaleAfter marks a streaming connection degraded when no chunk has
// arrived for this long. Keepalives arrive every 30s.
const StaleAfter = 45 * time.Second

// StateSource exposes the current connection.
type StateSource interface {
	State() domain.Connection
}

// Report is the detailed health view of the stream.
type Report struct {
	Status    Status                 `json:"status"`
	State     domain.ConnectionState `json:"state"`
	ConnID    string                 `json:"conn_id,omitempty"`
	Attempt   uint64                 `json:"attempt"`
	Since     time.Time              `json:"since"`
	LastChunk time.Time              `json:"last_chunk,omitempty"`
	Backoff   string                 `json:"backoff,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// Evaluate derives a Report from a connection snapshot.
func Evaluate(conn domain.Connection, now time.Time) Report {
	r := Report{
		Status:    StatusHealthy,
		State:     conn.State,
		ConnID:    conn.ID,
		Attempt:   conn.Attempt,
		Since:     conn.Since,
		LastChunk: conn.LastChunk,
	}
	if conn.Backoff > 0 {
		r.Backoff = conn.Backoff.String()
	}
	if conn.Err != nil {
		r.Error = conn.Err.Error()
	}

	switch conn.State {
	case domain.ConnectionStateTerminated:
		r.Status = StatusCritical
	case domain.ConnectionStateConnecting, domain.ConnectionStateBackoff:
		r.Status = StatusDegraded
	case domain.ConnectionStateStreaming:
		last := conn.LastChunk
		if last.IsZero() {
			last = conn.Since
		}
		if now.Sub(last) > StaleAfter {
			r.Status = StatusDegraded
		}
	}
	return r
}
