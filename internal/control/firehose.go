package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/juju/clock"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/firehose/internal/core/config"
	"github.com/vietddude/firehose/internal/core/domain"
	"github.com/vietddude/firehose/internal/infra/replay"
	"github.com/vietddude/firehose/internal/infra/twitter"
	"github.com/vietddude/firehose/internal/stream/decode"
	"github.com/vietddude/firehose/internal/stream/filter"
	"github.com/vietddude/firehose/internal/stream/health"
	"github.com/vietddude/firehose/internal/stream/lines"
	"github.com/vietddude/firehose/internal/stream/reconnect"
)

const (
	chunkBuffer  = 64
	lineBuffer   = 256
	recordBuffer = 256
)

// Firehose is the main application struct that manages the stream lifecycle.
type Firehose struct {
	cfg          Config
	supervisor   *reconnect.Supervisor
	sharder      *decode.Sharder
	healthServer *health.Server
	builder      *twitter.RequestBuilder
	records      chan domain.Record
	log          *slog.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

// Config holds the application configuration.
type Config struct {
	Port        int
	Stream      config.StreamConfig
	Credentials twitter.Credentials
	Decode      config.DecodeConfig
	Backoff     config.BackoffConfig
	Replay      config.ReplayConfig
	TweetsOnly  bool        // CLI flag
	Clock       clock.Clock // nil uses the wall clock
}

// NewFirehose creates a Firehose reading the live endpoint, or a capture
// file when cfg.Replay.Path is set.
func NewFirehose(cfg Config) (*Firehose, error) {
	if cfg.Replay.Path != "" {
		slog.Info("Replaying capture", "path", cfg.Replay.Path, "interval", cfg.Replay.Interval, "loop", cfg.Replay.Loop)
		return NewWithDialer(&replay.Dialer{Path: cfg.Replay.Path, Interval: cfg.Replay.Interval}, cfg), nil
	}

	if err := cfg.Credentials.Validate(); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", err)
	}
	builder := twitter.NewRequestBuilder(cfg.Credentials)
	source := twitter.NewSource(twitter.SourceConfig{
		URL:       cfg.Stream.URL,
		Method:    cfg.Stream.Method,
		Params:    cfg.Stream.Params,
		ChunkSize: cfg.Stream.ChunkSize,
	}, builder)
	slog.Info("Using streaming endpoint", "source", source.String(), "method", cfg.Stream.Method)

	f := NewWithDialer(source, cfg)
	f.builder = builder
	return f, nil
}

// NewWithDialer creates a Firehose over an arbitrary source.
func NewWithDialer(dialer domain.Dialer, cfg Config) *Firehose {
	log := slog.Default().With("component", "firehose")

	sup := reconnect.NewSupervisor(dialer, reconnect.Config{
		IdleTimeout: cfg.Stream.IdleTimeout,
		Policy: reconnect.Policy{
			ErrorDelay:     cfg.Backoff.ErrorRetry,
			RateLimitDelay: cfg.Backoff.RateLimited,
		},
		Clock:       cfg.Clock,
		ReturnOnEOF: cfg.Replay.Path != "" && !cfg.Replay.Loop,
	})
	sup.SetStateChangeCallback(func(tr reconnect.Transition) {
		log.Debug("Connection state changed", "from", tr.From, "to", tr.To, "reason", tr.Reason)
	})

	sharder := decode.NewSharder(decode.Config{
		Shards: cfg.Decode.Shards,
		Buffer: cfg.Decode.Buffer,
	})

	f := &Firehose{
		cfg:        cfg,
		supervisor: sup,
		sharder:    sharder,
		records:    make(chan domain.Record, recordBuffer),
		log:        log,
	}
	if cfg.Port > 0 {
		f.healthServer = health.NewServer(f, cfg.Port)
	}
	return f
}

// State returns the current connection snapshot.
func (f *Firehose) State() domain.Connection {
	return f.supervisor.State()
}

// Records returns the output sequence. It is closed when the stream stops,
// after which Wait reports why.
func (f *Firehose) Records() <-chan domain.Record {
	return f.records
}

// Start launches the pipeline and returns immediately.
func (f *Firehose) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started {
		return errors.New("firehose already started")
	}
	f.started = true

	ctx, f.cancel = context.WithCancel(ctx)
	f.done = make(chan struct{})

	// Start Health Server
	if f.healthServer != nil {
		go func() {
			if err := f.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				f.log.Error("Health server failed", "error", err)
			}
		}()
	}

	tweetsOnly := f.cfg.TweetsOnly || f.cfg.Stream.TweetsOnly
	chunks := make(chan string, chunkBuffer)
	lineCh := make(chan string, lineBuffer)
	decoded := make(chan domain.Record, recordBuffer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(chunks)
		return f.supervisor.Run(gctx, chunks)
	})
	g.Go(func() error {
		defer close(lineCh)
		return lines.Run(gctx, chunks, lineCh)
	})
	g.Go(func() error {
		defer close(decoded)
		return f.sharder.Run(gctx, lineCh, decoded)
	})
	g.Go(func() error {
		if tweetsOnly {
			return filter.Tweets(gctx, decoded, f.records)
		}
		return forward(gctx, decoded, f.records)
	})

	f.log.Info("Firehose started", "shards", f.sharder.Shards(), "tweets_only", tweetsOnly)

	go func() {
		err := g.Wait()
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			err = nil
		}
		f.err = err
		close(f.records)
		close(f.done)

		if err != nil {
			f.log.Error("Firehose stopped", "error", err)
		} else {
			f.log.Info("Firehose stopped")
		}
	}()
	return nil
}

// Wait blocks until the pipeline stops. It returns nil after Stop or at
// the end of a finite capture, a *reconnect.FatalError when the server
// rejected the request, and a *reconnect.DefectError for anything else.
func (f *Firehose) Wait() error {
	f.mu.Lock()
	done := f.done
	f.mu.Unlock()
	if done == nil {
		return errors.New("firehose not started")
	}
	<-done
	return f.err
}

// Stop cancels the pipeline and waits for it to drain.
func (f *Firehose) Stop(ctx context.Context) error {
	f.log.Info("Stopping Firehose...")

	f.mu.Lock()
	cancel, done := f.cancel, f.done
	f.mu.Unlock()

	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
			return fmt.Errorf("pipeline did not stop: %w", ctx.Err())
		}
	}

	if f.builder != nil {
		f.builder.Close()
	}

	// Stop Health Server
	if f.healthServer != nil {
		return f.healthServer.Stop(ctx)
	}
	return nil
}

func forward(ctx context.Context, in <-chan domain.Record, out chan<- domain.Record) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r, ok := <-in:
			if !ok {
				return nil
			}
			select {
			case out <- r:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
