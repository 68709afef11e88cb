package cli

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vietddude/firehose/internal/core/domain"
	"github.com/vietddude/firehose/internal/stream/health"
)

type fixedSource struct{ conn domain.Connection }

func (s fixedSource) State() domain.Connection { return s.conn }

func TestFetchReport(t *testing.T) {
	src := fixedSource{conn: domain.Connection{
		ID:      "c1",
		State:   domain.ConnectionStateBackoff,
		Attempt: 2,
		Backoff: 5 * time.Second,
	}}
	srv := httptest.NewServer(health.NewServer(src, 0).Handler())
	defer srv.Close()

	report, err := fetchReport(strings.TrimPrefix(srv.URL, "http://"))
	if err != nil {
		t.Fatalf("fetchReport() error = %v", err)
	}
	if report.Status != health.StatusDegraded {
		t.Errorf("Status = %s, want degraded", report.Status)
	}
	if report.ConnID != "c1" || report.Attempt != 2 || report.Backoff != "5s" {
		t.Errorf("report = %+v", report)
	}
}

func TestFormatTime(t *testing.T) {
	if got := formatTime(time.Time{}); got != "-" {
		t.Errorf("formatTime(zero) = %q, want -", got)
	}
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if got := formatTime(ts); got != "2026-01-02T03:04:05Z" {
		t.Errorf("formatTime() = %q", got)
	}
}
