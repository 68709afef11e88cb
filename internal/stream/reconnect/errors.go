package reconnect

import (
	"errors"
	"fmt"
)

// ErrIdleTimeout is raised when no chunk arrives within the idle timeout.
var ErrIdleTimeout = errors.New("no data received within idle timeout")

// FatalError ends the stream: the failure was classified as not
// retryable.
type FatalError struct {
	Class ErrorClass
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal stream failure (%s): %v", e.Class, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// DefectError wraps a failure outside the transport taxonomy. There is no
// recovery for it; callers are expected to abort.
type DefectError struct {
	Err error
}

func (e *DefectError) Error() string {
	return fmt.Sprintf("unexpected stream failure: %v", e.Err)
}

func (e *DefectError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err ended the stream on a classified failure.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// IsDefect reports whether err is outside the failure taxonomy.
func IsDefect(err error) bool {
	var de *DefectError
	return errors.As(err, &de)
}
