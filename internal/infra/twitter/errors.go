package twitter

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net"

	"github.com/vietddude/firehose/internal/core/domain"
)

// dialFailure maps an error from http.Client.Do to a transport failure.
// Context cancellation passes through untouched.
func dialFailure(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &domain.TransportError{Code: domain.CodeResolveHost, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &domain.TransportError{Code: domain.CodeOperationTimeout, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.TransportError{Code: domain.CodeOperationTimeout, Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch opErr.Op {
		case "dial":
			return &domain.TransportError{Code: domain.CodeConnect, Err: err}
		case "write":
			return &domain.TransportError{Code: domain.CodeSendError, Err: err}
		case "read":
			return &domain.TransportError{Code: domain.CodeRecvError, Err: err}
		}
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		// Server hung up before sending a response.
		return &domain.TransportError{Code: domain.CodeGotNothing, Err: err}
	}
	return &domain.TransportError{Code: domain.CodeNone, Err: err}
}

// readFailure maps an error from reading the response body. received is
// the number of body bytes read before the error.
func readFailure(err error, received int64) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, io.EOF) {
		if received == 0 {
			return &domain.TransportError{Code: domain.CodeGotNothing, Err: err}
		}
		return io.EOF
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return &domain.TransportError{Code: domain.CodePartialFile, Err: err}
	}

	var corrupt flate.CorruptInputError
	if errors.Is(err, gzip.ErrHeader) || errors.Is(err, gzip.ErrChecksum) || errors.As(err, &corrupt) {
		return &domain.TransportError{Code: domain.CodeBadContentEncoding, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &domain.TransportError{Code: domain.CodeOperationTimeout, Err: err}
	}
	return &domain.TransportError{Code: domain.CodeRecvError, Err: err}
}
