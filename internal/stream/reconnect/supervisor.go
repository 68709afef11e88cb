// Package reconnect keeps a streaming connection alive: it classifies
// connection failures and redials with the delay each class calls for.
package reconnect

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"

	"github.com/vietddude/firehose/internal/core/domain"
	"github.com/vietddude/firehose/internal/stream/metrics"
)

// DefaultIdleTimeout is the streaming API's stall interval. The server
// sends a keepalive at least every 30s, so three missed keepalives mean
// the connection is dead.
const DefaultIdleTimeout = 90 * time.Second

// Config holds supervisor settings.
type Config struct {
	IdleTimeout time.Duration
	Policy      Policy
	Clock       clock.Clock
	Logger      *slog.Logger
	// ReturnOnEOF makes Run return nil when a stream ends cleanly
	// instead of reconnecting. Used for finite captures.
	ReturnOnEOF bool
}

// Supervisor owns the single live connection to the stream.
type Supervisor struct {
	dialer      domain.Dialer
	idleTimeout time.Duration
	policy      Policy
	clock       clock.Clock
	log         *slog.Logger
	returnOnEOF bool

	mu            sync.RWMutex
	conn          domain.Connection
	stateCallback func(Transition)
}

// NewSupervisor creates a Supervisor. Zero config fields take defaults.
func NewSupervisor(dialer domain.Dialer, cfg Config) *Supervisor {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Policy == (Policy{}) {
		cfg.Policy = DefaultPolicy()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Supervisor{
		dialer:      dialer,
		idleTimeout: cfg.IdleTimeout,
		policy:      cfg.Policy,
		clock:       cfg.Clock,
		log:         cfg.Logger.With("component", "supervisor"),
		returnOnEOF: cfg.ReturnOnEOF,
		conn:        domain.Connection{State: domain.ConnectionStateConnecting},
	}
}

// SetStateChangeCallback registers a callback for state changes. It runs
// on the supervisor goroutine.
func (s *Supervisor) SetStateChangeCallback(fn func(Transition)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stateCallback = fn
}

// State returns a snapshot of the current connection.
func (s *Supervisor) State() domain.Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn
}

// Run streams chunks into out until ctx is cancelled or a failure ends
// the stream. It returns nil on cancellation, a *FatalError for a
// non-retryable failure, and a *DefectError for anything outside the
// transport taxonomy. Run does not close out.
func (s *Supervisor) Run(ctx context.Context, out chan<- string) error {
	for attempt := uint64(1); ; attempt++ {
		id := uuid.NewString()
		s.beginAttempt(id, attempt)
		log := s.log.With("conn_id", id, "attempt", attempt)

		err := s.stream(ctx, log, out)
		if ctx.Err() != nil {
			s.transition(domain.ConnectionStateTerminated, "cancelled", nil)
			return nil
		}
		if s.returnOnEOF && isCleanEnd(err) {
			log.Info("Stream ended")
			s.transition(domain.ConnectionStateTerminated, "stream ended", nil)
			return nil
		}

		delay, err := s.decide(log, err)
		if err != nil {
			s.transition(domain.ConnectionStateTerminated, err.Error(), err)
			return err
		}

		s.setBackoff(delay)
		s.transition(domain.ConnectionStateBackoff, delay.String(), nil)
		metrics.BackoffSeconds.Observe(delay.Seconds())
		if delay > 0 {
			wait := s.clock.NewTimer(delay)
			select {
			case <-wait.Chan():
			case <-ctx.Done():
				wait.Stop()
				s.transition(domain.ConnectionStateTerminated, "cancelled", nil)
				return nil
			}
		}
	}
}

// stream runs one connection. It always returns a non-nil error
// describing why the connection ended.
func (s *Supervisor) stream(ctx context.Context, log *slog.Logger, out chan<- string) error {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	st, err := s.dialer.Dial(connCtx)
	if err != nil {
		return err
	}
	s.transition(domain.ConnectionStateStreaming, "connected", nil)
	log.Info("Stream connected")

	chunks := make(chan string)
	errc := make(chan error, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			chunk, err := st.Next(connCtx)
			if err != nil {
				errc <- err
				return
			}
			select {
			case chunks <- chunk:
			case <-connCtx.Done():
				errc <- connCtx.Err()
				return
			}
		}
	}()
	// The reader must be gone before the next Dial.
	defer func() {
		cancel()
		if err := st.Close(); err != nil {
			log.Debug("Closing stream", "error", err)
		}
		wg.Wait()
	}()

	idle := s.clock.NewTimer(s.idleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errc:
			return err
		case <-idle.Chan():
			return ErrIdleTimeout
		case chunk := <-chunks:
			// The idle timer measures network silence only; it is paused
			// while downstream is slow to accept the chunk.
			if !idle.Stop() {
				select {
				case <-idle.Chan():
				default:
				}
			}
			s.touch()
			metrics.ChunksReceived.Inc()
			metrics.BytesReceived.Add(float64(len(chunk)))

			select {
			case out <- chunk:
			case <-ctx.Done():
				return ctx.Err()
			}
			idle.Reset(s.idleTimeout)
		}
	}
}

// decide turns the reason a connection ended into a reconnect delay, or
// into the error that ends the stream.
func (s *Supervisor) decide(log *slog.Logger, err error) (time.Duration, error) {
	if errors.Is(err, ErrIdleTimeout) {
		log.Warn("Reconnecting after timeout", "idle_timeout", s.idleTimeout)
		metrics.Reconnects.WithLabelValues("timeout").Inc()
		return 0, nil
	}

	var te *domain.TransportError
	if !errors.As(err, &te) {
		if isCleanEnd(err) {
			log.Info("Stream ended, reconnecting")
			metrics.Reconnects.WithLabelValues("eof").Inc()
			return 0, nil
		}
		log.Error("Unexpected stream failure", "error", err)
		return 0, &DefectError{Err: err}
	}

	class := Classify(te)
	decision := s.policy.Decide(class)
	log = log.With("class", class.String(), "error", err)

	switch class {
	case TcpRetry:
		log.Warn("Reconnecting after TCP error")
	case ErrorRetry:
		log.Warn("Transport error, waiting to retry", "code", te.Code.String(), "delay", decision.Delay)
	case StatusRetry:
		log.Warn("HTTP error status, waiting to retry", "status", te.Status, "delay", decision.Delay)
	case RateLimited:
		log.Warn("Rate limited, waiting to retry", "delay", decision.Delay)
	default:
		log.Error("Invalid request, giving up", "status", te.Status)
	}

	if decision.Action == ActionFatal {
		return 0, &FatalError{Class: class, Err: err}
	}
	metrics.Reconnects.WithLabelValues(class.String()).Inc()
	return decision.Delay, nil
}

// isCleanEnd reports whether the server closed the stream normally.
func isCleanEnd(err error) bool {
	var te *domain.TransportError
	return errors.Is(err, io.EOF) && !errors.As(err, &te)
}

func (s *Supervisor) beginAttempt(id string, attempt uint64) {
	if attempt == 1 {
		s.mu.Lock()
		s.conn = domain.Connection{
			ID:      id,
			State:   domain.ConnectionStateConnecting,
			Attempt: attempt,
			Since:   s.clock.Now(),
		}
		s.mu.Unlock()
		metrics.ConnectionState.WithLabelValues(string(domain.ConnectionStateTerminated)).Set(0)
		metrics.ConnectionState.WithLabelValues(string(domain.ConnectionStateConnecting)).Set(1)
		return
	}

	s.mu.Lock()
	s.conn.ID = id
	s.conn.Attempt = attempt
	s.conn.Backoff = 0
	s.mu.Unlock()
	s.transition(domain.ConnectionStateConnecting, "reconnect", nil)
}

func (s *Supervisor) setBackoff(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.Backoff = d
}

func (s *Supervisor) touch() {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.LastChunk = now
}

func (s *Supervisor) transition(to State, reason string, err error) {
	now := s.clock.Now()

	s.mu.Lock()
	from := s.conn.State
	t := NewTransition(from, to, reason, now)
	if !t.IsValid() {
		s.mu.Unlock()
		s.log.Error("Invalid connection state transition", "from", from, "to", to, "reason", reason)
		return
	}
	s.conn.State = to
	s.conn.Since = now
	s.conn.Err = err
	cb := s.stateCallback
	s.mu.Unlock()

	metrics.ConnectionState.WithLabelValues(string(from)).Set(0)
	metrics.ConnectionState.WithLabelValues(string(to)).Set(1)
	s.log.Debug("Connection state changed", "from", from, "to", to, "reason", reason)
	if cb != nil {
		cb(t)
	}
}
