package reconnect

import (
	"time"

	"github.com/vietddude/firehose/internal/core/domain"
)

// State is an alias for domain.ConnectionState for internal use.
type State = domain.ConnectionState

// ValidTransitions defines allowed state transitions.
// Key is the current state, value is the list of valid next states.
var ValidTransitions = map[State][]State{
	domain.ConnectionStateConnecting: {
		domain.ConnectionStateStreaming,
		domain.ConnectionStateBackoff,
		domain.ConnectionStateTerminated,
	},
	domain.ConnectionStateStreaming: {
		domain.ConnectionStateBackoff,
		domain.ConnectionStateTerminated,
	},
	domain.ConnectionStateBackoff: {
		domain.ConnectionStateConnecting,
		domain.ConnectionStateTerminated,
	},
	domain.ConnectionStateTerminated: {},
}

// CanTransition checks if a transition from one state to another is valid.
func CanTransition(from, to State) bool {
	for _, target := range ValidTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// Transition represents a state change with metadata.
type Transition struct {
	From      State
	To        State
	Reason    string
	Timestamp time.Time
}

// NewTransition creates a new transition record.
func NewTransition(from, to State, reason string, at time.Time) Transition {
	return Transition{
		From:      from,
		To:        to,
		Reason:    reason,
		Timestamp: at,
	}
}

// IsValid returns true if this transition is allowed by the state machine.
func (t Transition) IsValid() bool {
	return CanTransition(t.From, t.To)
}

// StateDescription returns a human-readable description of a state.
func StateDescription(s State) string {
	switch s {
	case domain.ConnectionStateConnecting:
		return "Connecting - signing request and opening stream"
	case domain.ConnectionStateStreaming:
		return "Streaming - receiving chunks"
	case domain.ConnectionStateBackoff:
		return "Backoff - waiting before reconnect"
	case domain.ConnectionStateTerminated:
		return "Terminated - no further reconnects"
	default:
		return "Unknown state"
	}
}
