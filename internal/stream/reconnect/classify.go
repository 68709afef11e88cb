package reconnect

import (
	"github.com/vietddude/firehose/internal/core/domain"
)

// ErrorClass is the severity of a connection failure.
type ErrorClass int

const (
	// Invalid means the request itself is wrong; retrying cannot help.
	Invalid ErrorClass = iota
	// TcpRetry covers connections dropped mid-flight.
	TcpRetry
	// ErrorRetry covers failures to reach or talk to the host.
	ErrorRetry
	// StatusRetry covers any other HTTP error status.
	StatusRetry
	// RateLimited means the server asked us to slow down (HTTP 420).
	RateLimited
)

// String returns the string representation of ErrorClass
func (c ErrorClass) String() string {
	switch c {
	case Invalid:
		return "invalid"
	case TcpRetry:
		return "tcp_retry"
	case ErrorRetry:
		return "error_retry"
	case StatusRetry:
		return "status_retry"
	case RateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// StatusEnhanceYourCalm is the streaming API's rate-limit status.
const StatusEnhanceYourCalm = 420

// Classify maps a transport failure to its ErrorClass. Transport codes
// are checked before the HTTP status.
func Classify(err *domain.TransportError) ErrorClass {
	switch err.Code {
	case domain.CodeResolveHost,
		domain.CodeConnect,
		domain.CodeOperationTimeout,
		domain.CodeBadContentEncoding,
		domain.CodeRemoteFileNotFound:
		return ErrorRetry
	case domain.CodeGotNothing,
		domain.CodePartialFile,
		domain.CodeSendError,
		domain.CodeRecvError:
		return TcpRetry
	}

	switch err.Status {
	case StatusEnhanceYourCalm:
		return RateLimited
	case 404, 406, 413, 416:
		return Invalid
	}
	return StatusRetry
}
