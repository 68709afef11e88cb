// Package decode decodes stream lines into records on a fixed set of
// concurrent shards.
//
// Lines are assigned round-robin: the n-th line (0-indexed) goes to shard
// n mod Shards. Each shard decodes in arrival order, so ordering holds
// within a shard but not across shards once results are merged.
package decode

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/firehose/internal/core/domain"
	"github.com/vietddude/firehose/internal/stream/filter"
	"github.com/vietddude/firehose/internal/stream/metrics"
)

// DefaultBuffer is the per-shard queue depth.
const DefaultBuffer = 64

// DecodeError reports a line that could not be decoded. It never stops a
// shard.
type DecodeError struct {
	Seq   uint64
	Shard int
	Line  string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode line %d on shard %d: %v", e.Seq, e.Shard, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Config holds sharder settings.
type Config struct {
	// Shards is the number of decode workers. 0 means runtime.NumCPU().
	Shards int
	// Buffer is the queue depth of each shard. 0 means DefaultBuffer.
	Buffer int
	// OnError, if set, is called from the shard goroutine for every
	// line that fails to decode.
	OnError func(*DecodeError)
	Logger  *slog.Logger
}

// Sharder fans lines out to decode shards and merges the results.
type Sharder struct {
	shards  int
	buffer  int
	onError func(*DecodeError)
	log     *slog.Logger
}

// NewSharder creates a Sharder.
func NewSharder(cfg Config) *Sharder {
	if cfg.Shards <= 0 {
		cfg.Shards = runtime.NumCPU()
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultBuffer
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Sharder{
		shards:  cfg.Shards,
		buffer:  cfg.Buffer,
		onError: cfg.OnError,
		log:     cfg.Logger.With("component", "decoder"),
	}
}

// Shards returns the number of decode lanes.
func (s *Sharder) Shards() int {
	return s.shards
}

// ShardFor returns the shard for the line at position seq.
func ShardFor(seq uint64, shards int) int {
	return int(seq % uint64(shards))
}

type job struct {
	seq  uint64
	line string
}

// Run decodes lines from in until it closes, writing records to out.
// Run returns once every shard has drained. It does not close out.
func (s *Sharder) Run(ctx context.Context, in <-chan string, out chan<- domain.Record) error {
	g, ctx := errgroup.WithContext(ctx)

	lanes := make([]chan job, s.shards)
	for i := range lanes {
		lanes[i] = make(chan job, s.buffer)
		lane, shard := lanes[i], i
		g.Go(func() error {
			return s.work(ctx, shard, lane, out)
		})
	}

	// The counter lives on this goroutine only.
	g.Go(func() error {
		defer func() {
			for _, lane := range lanes {
				close(lane)
			}
		}()

		var seq uint64
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case line, ok := <-in:
				if !ok {
					return nil
				}
				lane := lanes[ShardFor(seq, s.shards)]
				select {
				case lane <- job{seq: seq, line: line}:
				case <-ctx.Done():
					return ctx.Err()
				}
				seq++
			}
		}
	})

	return g.Wait()
}

func (s *Sharder) work(ctx context.Context, shard int, lane <-chan job, out chan<- domain.Record) error {
	label := strconv.Itoa(shard)
	for j := range lane {
		value, err := Line(j.line)
		if err != nil {
			metrics.DecodeErrors.WithLabelValues(label).Inc()
			derr := &DecodeError{Seq: j.seq, Shard: shard, Line: j.line, Err: err}
			s.log.Debug("Dropping undecodable line", "seq", j.seq, "shard", shard, "error", err)
			if s.onError != nil {
				s.onError(derr)
			}
			continue
		}
		metrics.RecordsDecoded.WithLabelValues(label).Inc()

		rec := domain.Record{Value: value, Seq: j.seq, Shard: shard}
		rec.IsTweet = filter.IsTweet(rec)
		if rec.IsTweet {
			metrics.TweetsDecoded.Inc()
		}

		select {
		case out <- rec:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Line decodes one line into a JSON value.
func Line(line string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(line), &v); err != nil {
		return nil, err
	}
	return v, nil
}
