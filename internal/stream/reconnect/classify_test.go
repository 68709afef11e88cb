package reconnect

import (
	"testing"
	"time"

	"github.com/vietddude/firehose/internal/core/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		code   domain.TransportCode
		status int
		expect ErrorClass
	}{
		{"resolve host", domain.CodeResolveHost, 0, ErrorRetry},
		{"connect failure", domain.CodeConnect, 0, ErrorRetry},
		{"operation timeout", domain.CodeOperationTimeout, 0, ErrorRetry},
		{"bad content encoding", domain.CodeBadContentEncoding, 0, ErrorRetry},
		{"remote file not found", domain.CodeRemoteFileNotFound, 0, ErrorRetry},
		{"got nothing", domain.CodeGotNothing, 0, TcpRetry},
		{"partial file", domain.CodePartialFile, 0, TcpRetry},
		{"send error", domain.CodeSendError, 0, TcpRetry},
		{"recv error", domain.CodeRecvError, 0, TcpRetry},
		{"enhance your calm", domain.CodeHTTPReturnedError, 420, RateLimited},
		{"not found", domain.CodeHTTPReturnedError, 404, Invalid},
		{"not acceptable", domain.CodeHTTPReturnedError, 406, Invalid},
		{"too long", domain.CodeHTTPReturnedError, 413, Invalid},
		{"range unacceptable", domain.CodeHTTPReturnedError, 416, Invalid},
		{"server error", domain.CodeHTTPReturnedError, 500, StatusRetry},
		{"unauthorized", domain.CodeHTTPReturnedError, 401, StatusRetry},
		{"service unavailable", domain.CodeHTTPReturnedError, 503, StatusRetry},
		{"unmatched code", domain.CodeNone, 0, StatusRetry},
		// Transport codes win over the status.
		{"recv error with status", domain.CodeRecvError, 404, TcpRetry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &domain.TransportError{Code: tt.code, Status: tt.status}
			if got := Classify(err); got != tt.expect {
				t.Errorf("Classify(%v) = %s, want %s", err, got, tt.expect)
			}
		})
	}
}

func TestPolicyDecide(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		class  ErrorClass
		action Action
		delay  time.Duration
	}{
		{TcpRetry, ActionReconnect, 0},
		{ErrorRetry, ActionReconnect, 5 * time.Second},
		{StatusRetry, ActionReconnect, 5 * time.Second},
		{RateLimited, ActionReconnect, 60 * time.Second},
		{Invalid, ActionFatal, 0},
		{ErrorClass(99), ActionFatal, 0},
	}

	for _, tt := range tests {
		got := p.Decide(tt.class)
		if got.Action != tt.action || got.Delay != tt.delay {
			t.Errorf("Decide(%s) = %+v, want {%v %v}", tt.class, got, tt.action, tt.delay)
		}
	}
}

func TestCanTransition(t *testing.T) {
	if !CanTransition(domain.ConnectionStateBackoff, domain.ConnectionStateConnecting) {
		t.Error("backoff -> connecting should be allowed")
	}
	if CanTransition(domain.ConnectionStateTerminated, domain.ConnectionStateConnecting) {
		t.Error("terminated is final")
	}
	if CanTransition(domain.ConnectionStateStreaming, domain.ConnectionStateConnecting) {
		t.Error("streaming must pass through backoff before reconnecting")
	}
}
