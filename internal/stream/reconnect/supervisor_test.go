package reconnect

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"go.uber.org/goleak"

	"github.com/vietddude/firehose/internal/core/domain"
)

// script describes one connection handed out by fakeDialer. The zero value
// connects and then blocks until cancelled.
type script struct {
	dialErr error
	chunks  []string
	endErr  error
}

type fakeDialer struct {
	mu      sync.Mutex
	scripts []script
	n       int
	dials   chan int
	active  atomic.Int32
	overlap atomic.Bool
}

func newFakeDialer(scripts ...script) *fakeDialer {
	return &fakeDialer{scripts: scripts, dials: make(chan int, 100)}
}

func (d *fakeDialer) Dial(ctx context.Context) (domain.Stream, error) {
	d.mu.Lock()
	i := d.n
	d.n++
	var sc script
	if i < len(d.scripts) {
		sc = d.scripts[i]
	}
	d.mu.Unlock()

	d.dials <- i
	if sc.dialErr != nil {
		return nil, sc.dialErr
	}
	if d.active.Add(1) > 1 {
		d.overlap.Store(true)
	}
	return &fakeStream{dialer: d, chunks: sc.chunks, endErr: sc.endErr}, nil
}

type fakeStream struct {
	dialer *fakeDialer
	chunks []string
	endErr error
	closed atomic.Bool
}

func (s *fakeStream) Next(ctx context.Context) (string, error) {
	if len(s.chunks) > 0 {
		c := s.chunks[0]
		s.chunks = s.chunks[1:]
		return c, nil
	}
	if s.endErr != nil {
		return "", s.endErr
	}
	<-ctx.Done()
	return "", ctx.Err()
}

func (s *fakeStream) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.dialer.active.Add(-1)
	}
	return nil
}

func waitDial(t *testing.T, d *fakeDialer, want int) {
	t.Helper()
	select {
	case got := <-d.dials:
		if got != want {
			t.Fatalf("dial #%d, want #%d", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for dial #%d", want)
	}
}

func expectNoDial(t *testing.T, d *fakeDialer) {
	t.Helper()
	select {
	case got := <-d.dials:
		t.Fatalf("unexpected dial #%d", got)
	case <-time.After(100 * time.Millisecond):
	}
}

type harness struct {
	sup    *Supervisor
	clk    *testclock.Clock
	out    chan string
	done   chan error
	cancel context.CancelFunc

	mu          sync.Mutex
	transitions []Transition
}

func startSupervisor(t *testing.T, d *fakeDialer) *harness {
	t.Helper()
	return startSupervisorWithOutput(t, d, make(chan string, 16))
}

func startSupervisorWithOutput(t *testing.T, d *fakeDialer, out chan string) *harness {
	t.Helper()
	h := &harness{
		clk:  testclock.NewClock(time.Now()),
		out:  out,
		done: make(chan error, 1),
	}
	h.sup = NewSupervisor(d, Config{Clock: h.clk})
	h.sup.SetStateChangeCallback(func(tr Transition) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.transitions = append(h.transitions, tr)
	})

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- h.sup.Run(ctx, h.out) }()
	return h
}

func (h *harness) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return")
		return nil
	}
}

func (h *harness) states() []State {
	h.mu.Lock()
	defer h.mu.Unlock()
	states := make([]State, 0, len(h.transitions))
	for _, tr := range h.transitions {
		states = append(states, tr.To)
	}
	return states
}

func TestSupervisorTcpRetryReconnectsImmediately(t *testing.T) {
	d := newFakeDialer(
		script{chunks: []string{"a"}, endErr: &domain.TransportError{Code: domain.CodeRecvError}},
	)
	h := startSupervisor(t, d)

	waitDial(t, d, 0)
	if got := <-h.out; got != "a" {
		t.Fatalf("chunk = %q, want %q", got, "a")
	}
	// No clock advance: the second dial must not wait on a timer.
	waitDial(t, d, 1)

	h.cancel()
	if err := h.wait(t); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if d.overlap.Load() {
		t.Error("two connections were open at the same time")
	}
}

func TestSupervisorRateLimitedWaitsSixtySeconds(t *testing.T) {
	d := newFakeDialer(script{dialErr: domain.NewStatusError(420, "")})
	h := startSupervisor(t, d)

	waitDial(t, d, 0)
	if err := h.clk.WaitAdvance(59*time.Second, 2*time.Second, 1); err != nil {
		t.Fatal(err)
	}
	expectNoDial(t, d)
	if got := h.sup.State(); got.State != domain.ConnectionStateBackoff || got.Backoff != time.Minute {
		t.Errorf("State() = %s/%v, want backoff/1m", got.State, got.Backoff)
	}

	h.clk.Advance(time.Second)
	waitDial(t, d, 1)
	expectNoDial(t, d)

	h.cancel()
	if err := h.wait(t); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []State{
		domain.ConnectionStateBackoff,
		domain.ConnectionStateConnecting,
		domain.ConnectionStateStreaming,
		domain.ConnectionStateTerminated,
	}
	got := h.states()
	if len(got) != len(want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("transition %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestSupervisorErrorAndStatusRetryShareDelay(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"connect failure", &domain.TransportError{Code: domain.CodeConnect}},
		{"server error", domain.NewStatusError(503, "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newFakeDialer(script{dialErr: tt.err})
			h := startSupervisor(t, d)

			waitDial(t, d, 0)
			if err := h.clk.WaitAdvance(4*time.Second, 2*time.Second, 1); err != nil {
				t.Fatal(err)
			}
			expectNoDial(t, d)
			h.clk.Advance(time.Second)
			waitDial(t, d, 1)

			h.cancel()
			if err := h.wait(t); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
		})
	}
}

func TestSupervisorCancelDuringBackoff(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	d := newFakeDialer(script{dialErr: domain.NewStatusError(500, "")})
	h := startSupervisor(t, d)

	waitDial(t, d, 0)
	if err := h.clk.WaitAdvance(time.Second, 2*time.Second, 1); err != nil {
		t.Fatal(err)
	}

	h.cancel()
	if err := h.wait(t); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// The backoff timer must be released along with Run.
	if err := h.clk.WaitAdvance(time.Millisecond, 200*time.Millisecond, 1); err == nil {
		t.Error("backoff timer still registered after Run returned")
	}

	h.clk.Advance(time.Minute)
	expectNoDial(t, d)
	if got := h.sup.State().State; got != domain.ConnectionStateTerminated {
		t.Errorf("State() = %s, want terminated", got)
	}
}

func TestSupervisorInvalidIsFatal(t *testing.T) {
	d := newFakeDialer(script{dialErr: domain.NewStatusError(404, "Not Found")})
	h := startSupervisor(t, d)

	waitDial(t, d, 0)
	err := h.wait(t)

	var fe *FatalError
	if !errors.As(err, &fe) {
		t.Fatalf("Run() error = %v, want *FatalError", err)
	}
	if fe.Class != Invalid {
		t.Errorf("FatalError.Class = %s, want invalid", fe.Class)
	}
	expectNoDial(t, d)
	h.cancel()
}

func TestSupervisorIdleTimeoutReconnects(t *testing.T) {
	d := newFakeDialer(script{chunks: []string{"x"}})
	h := startSupervisor(t, d)

	waitDial(t, d, 0)
	<-h.out

	if err := h.clk.WaitAdvance(89*time.Second, 2*time.Second, 1); err != nil {
		t.Fatal(err)
	}
	expectNoDial(t, d)
	h.clk.Advance(time.Second)
	waitDial(t, d, 1)

	h.cancel()
	if err := h.wait(t); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if d.overlap.Load() {
		t.Error("two connections were open at the same time")
	}
}

func TestSupervisorSlowConsumerIsNotIdle(t *testing.T) {
	for trial := 0; trial < 10; trial++ {
		d := newFakeDialer(script{chunks: []string{"a", "b", "c"}})
		h := startSupervisorWithOutput(t, d, make(chan string))

		waitDial(t, d, 0)
		// LastChunk is set once "a" is in hand and the send is pending.
		deadline := time.Now().Add(2 * time.Second)
		for h.sup.State().LastChunk.IsZero() {
			if time.Now().After(deadline) {
				t.Fatal("first chunk never received")
			}
			time.Sleep(time.Millisecond)
		}

		// The consumer stalls far past the idle timeout with data queued.
		h.clk.Advance(2 * DefaultIdleTimeout)

		for _, want := range []string{"a", "b", "c"} {
			select {
			case got := <-h.out:
				if got != want {
					t.Fatalf("trial %d: chunk = %q, want %q", trial, got, want)
				}
			case <-time.After(2 * time.Second):
				t.Fatalf("trial %d: no chunk %q", trial, want)
			}
		}
		expectNoDial(t, d)

		h.cancel()
		if err := h.wait(t); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	}
}

func TestSupervisorCleanEndReconnects(t *testing.T) {
	d := newFakeDialer(script{chunks: []string{"a", "b"}, endErr: io.EOF})
	h := startSupervisor(t, d)

	waitDial(t, d, 0)
	waitDial(t, d, 1)
	if a, b := <-h.out, <-h.out; a != "a" || b != "b" {
		t.Errorf("chunks = %q %q, want a b", a, b)
	}

	h.cancel()
	if err := h.wait(t); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestSupervisorUnknownFailureIsDefect(t *testing.T) {
	d := newFakeDialer(script{dialErr: errors.New("nil map write")})
	h := startSupervisor(t, d)

	waitDial(t, d, 0)
	err := h.wait(t)
	if !IsDefect(err) {
		t.Fatalf("Run() error = %v, want *DefectError", err)
	}
	if IsFatal(err) {
		t.Error("defect reported as fatal")
	}
	h.cancel()
}

func TestSupervisorTransitionSequence(t *testing.T) {
	d := newFakeDialer(
		script{dialErr: &domain.TransportError{Code: domain.CodeGotNothing}},
		script{chunks: []string{"a"}, endErr: io.EOF},
		script{dialErr: domain.NewStatusError(416, "")},
	)
	h := startSupervisor(t, d)

	for i := 0; i < 3; i++ {
		waitDial(t, d, i)
	}
	if err := h.wait(t); !IsFatal(err) {
		t.Fatalf("Run() error = %v, want fatal", err)
	}
	h.cancel()

	want := []State{
		domain.ConnectionStateBackoff, // got nothing, immediate retry
		domain.ConnectionStateConnecting,
		domain.ConnectionStateStreaming,
		domain.ConnectionStateBackoff, // clean end
		domain.ConnectionStateConnecting,
		domain.ConnectionStateTerminated, // 416
	}
	got := h.states()
	if len(got) != len(want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("transition %d = %s, want %s", i, got[i], want[i])
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for i := 1; i < len(h.transitions); i++ {
		if h.transitions[i].From != h.transitions[i-1].To {
			t.Errorf("transition %d starts at %s, previous ended at %s",
				i, h.transitions[i].From, h.transitions[i-1].To)
		}
	}
}

func TestSupervisorReturnOnEOF(t *testing.T) {
	d := newFakeDialer(script{chunks: []string{"a"}, endErr: io.EOF})
	sup := NewSupervisor(d, Config{Clock: testclock.NewClock(time.Now()), ReturnOnEOF: true})

	out := make(chan string, 1)
	if err := sup.Run(context.Background(), out); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := <-out; got != "a" {
		t.Errorf("chunk = %q, want a", got)
	}
	waitDial(t, d, 0)
	expectNoDial(t, d)
	if got := sup.State().State; got != domain.ConnectionStateTerminated {
		t.Errorf("State() = %s, want terminated", got)
	}
}
