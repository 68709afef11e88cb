// Package replay serves recorded stream captures from disk in place of
// the live endpoint.
package replay

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/vietddude/firehose/internal/core/domain"
)

// maxLineSize bounds a single recorded line.
const maxLineSize = 1024 * 1024

// Dialer opens a capture file: one JSON document per line. Each Dial
// starts from the top of the file.
type Dialer struct {
	Path string
	// Interval paces emitted lines. 0 emits as fast as the reader pulls.
	Interval time.Duration
}

// Dial opens the capture.
func (d *Dialer) Dial(ctx context.Context) (domain.Stream, error) {
	f, err := os.Open(d.Path)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}

	limit := rate.Inf
	if d.Interval > 0 {
		limit = rate.Every(d.Interval)
	}

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	return &fileStream{
		file:    f,
		scanner: sc,
		limiter: rate.NewLimiter(limit, 1),
	}, nil
}

type fileStream struct {
	file    *os.File
	scanner *bufio.Scanner
	limiter *rate.Limiter
}

// Next returns the next recorded line with the stream delimiter appended,
// or io.EOF once the capture is exhausted.
func (s *fileStream) Next(ctx context.Context) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return "", fmt.Errorf("read capture: %w", err)
		}
		return "", io.EOF
	}
	return s.scanner.Text() + "\r\n", nil
}

func (s *fileStream) Close() error {
	return s.file.Close()
}
