package domain

import (
	"context"
	"errors"
	"fmt"
)

// TransportCode identifies the transport-level cause of a failed or
// interrupted streaming connection.
type TransportCode int

const (
	CodeNone TransportCode = iota
	CodeResolveHost
	CodeConnect
	CodeOperationTimeout
	CodeBadContentEncoding
	CodeRemoteFileNotFound
	CodeGotNothing
	CodePartialFile
	CodeSendError
	CodeRecvError
	CodeHTTPReturnedError
)

var transportCodeNames = map[TransportCode]string{
	CodeNone:               "none",
	CodeResolveHost:        "resolve_host",
	CodeConnect:            "connect",
	CodeOperationTimeout:   "operation_timeout",
	CodeBadContentEncoding: "bad_content_encoding",
	CodeRemoteFileNotFound: "remote_file_not_found",
	CodeGotNothing:         "got_nothing",
	CodePartialFile:        "partial_file",
	CodeSendError:          "send_error",
	CodeRecvError:          "recv_error",
	CodeHTTPReturnedError:  "http_returned_error",
}

func (c TransportCode) String() string {
	if s, ok := transportCodeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// TransportError is a failure raised by the chunk source. Status is the
// HTTP status code when one was received, 0 otherwise.
type TransportError struct {
	Code   TransportCode
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("transport %s (http %d): %v", e.Code, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("transport %s (http %d)", e.Code, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("transport %s: %v", e.Code, e.Err)
	default:
		return fmt.Sprintf("transport %s", e.Code)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewStatusError builds the failure for a non-200 response.
func NewStatusError(status int, body string) *TransportError {
	var err error
	if body != "" {
		err = errors.New(body)
	}
	return &TransportError{Code: CodeHTTPReturnedError, Status: status, Err: err}
}

// Stream is one live connection yielding body chunks. Next returns io.EOF
// when the server ends the response cleanly.
type Stream interface {
	Next(ctx context.Context) (string, error)
	Close() error
}

// Dialer opens a fresh Stream. Every reconnect calls Dial again.
type Dialer interface {
	Dial(ctx context.Context) (Stream, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context) (Stream, error)

func (f DialerFunc) Dial(ctx context.Context) (Stream, error) {
	return f(ctx)
}
