package reconnect

import (
	"time"
)

// Action determines what the supervisor does after a failure.
type Action int

const (
	ActionReconnect Action = iota
	ActionFatal
)

// Decision is the outcome of applying a Policy to an ErrorClass.
type Decision struct {
	Action Action
	Delay  time.Duration
}

// Policy holds the reconnect delays per failure class.
type Policy struct {
	// ErrorDelay applies to ErrorRetry and StatusRetry alike.
	ErrorDelay time.Duration
	// RateLimitDelay applies to RateLimited.
	RateLimitDelay time.Duration
}

// DefaultPolicy follows the streaming API's reconnect guidance.
func DefaultPolicy() Policy {
	return Policy{
		ErrorDelay:     5 * time.Second,
		RateLimitDelay: 60 * time.Second,
	}
}

// Decide maps a failure class to a reconnect decision.
func (p Policy) Decide(class ErrorClass) Decision {
	// ErrorRetry and StatusRetry share one rule; only their log lines differ.
	retryAfterError := Decision{Action: ActionReconnect, Delay: p.ErrorDelay}

	switch class {
	case TcpRetry:
		return Decision{Action: ActionReconnect}
	case ErrorRetry, StatusRetry:
		return retryAfterError
	case RateLimited:
		return Decision{Action: ActionReconnect, Delay: p.RateLimitDelay}
	default:
		return Decision{Action: ActionFatal}
	}
}
