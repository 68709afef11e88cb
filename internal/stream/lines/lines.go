// Package lines rebuilds delimiter-terminated lines from arbitrarily
// fragmented body chunks.
package lines

import (
	"bytes"
	"context"
	"log/slog"
	"strings"

	"github.com/vietddude/firehose/internal/stream/metrics"
)

// Delimiter terminates every record on the stream.
const Delimiter = "\r\n"

var delim = []byte(Delimiter)

// minLineLength is the shortest line that can hold a record. Anything
// shorter is keepalive noise.
const minLineLength = 3

// Reconstructor carries partial content across chunk boundaries.
// It is not safe for concurrent use.
type Reconstructor struct {
	buf []byte
	// scanned is how much of buf is known to hold no delimiter.
	scanned int
}

// New creates an empty Reconstructor.
func New() *Reconstructor {
	return &Reconstructor{}
}

// Push appends a chunk and returns every line it completes, delimiter
// included, in arrival order.
func (r *Reconstructor) Push(chunk string) []string {
	if chunk == "" {
		return nil
	}
	r.buf = append(r.buf, chunk...)

	var out []string
	start := 0
	from := r.scanned
	for {
		i := bytes.Index(r.buf[from:], delim)
		if i < 0 {
			break
		}
		end := from + i + len(delim)
		out = append(out, string(r.buf[start:end]))
		start = end
		from = end
	}

	if start > 0 {
		n := copy(r.buf, r.buf[start:])
		r.buf = r.buf[:n]
	}
	// A trailing '\r' may pair with a '\n' at the head of the next chunk.
	r.scanned = len(r.buf)
	if r.scanned > 0 && r.buf[r.scanned-1] == delim[0] {
		r.scanned--
	}
	return out
}

// Flush returns the pending partial line when the source has ended.
func (r *Reconstructor) Flush() (string, bool) {
	if len(r.buf) == 0 {
		return "", false
	}
	line := string(r.buf)
	r.buf = r.buf[:0]
	r.scanned = 0
	return line, true
}

// Pending reports the number of buffered bytes not yet emitted.
func (r *Reconstructor) Pending() int {
	return len(r.buf)
}

// IsKeepalive reports whether a reconstructed line carries no record.
func IsKeepalive(line string) bool {
	if len(line) < minLineLength {
		return true
	}
	return strings.Trim(line, Delimiter) == ""
}

// Run reads chunks from in until it is closed, writing every non-keepalive
// line to out. A trailing partial line is emitted when in closes. Run does
// not close out.
func Run(ctx context.Context, in <-chan string, out chan<- string) error {
	r := New()
	log := slog.Default().With("component", "lines")

	emit := func(line string) error {
		if IsKeepalive(line) {
			metrics.KeepalivesDropped.Inc()
			return nil
		}
		metrics.LinesReconstructed.Inc()
		select {
		case out <- line:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-in:
			if !ok {
				if line, ok := r.Flush(); ok {
					log.Debug("Flushing partial line at end of source", "bytes", len(line))
					return emit(line)
				}
				return nil
			}
			for _, line := range r.Push(chunk) {
				if err := emit(line); err != nil {
					return err
				}
			}
		}
	}
}
