package twitter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/vietddude/firehose/internal/core/domain"
)

// DefaultChunkSize bounds a single body read.
const DefaultChunkSize = 16 * 1024

// maxErrorBody caps how much of an error response is kept for logging.
const maxErrorBody = 512

// SourceConfig describes the streaming endpoint.
type SourceConfig struct {
	URL       string
	Method    string
	Params    map[string]string
	ChunkSize int
}

// Source dials the streaming endpoint. It implements domain.Dialer.
type Source struct {
	cfg     SourceConfig
	params  url.Values
	builder *RequestBuilder
	log     *slog.Logger
}

// NewSource creates a Source signing requests with builder.
func NewSource(cfg SourceConfig, builder *RequestBuilder) *Source {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	params := url.Values{}
	for k, v := range cfg.Params {
		params.Set(k, v)
	}
	return &Source{
		cfg:     cfg,
		params:  params,
		builder: builder,
		log:     slog.Default().With("component", "source", "url", cfg.URL),
	}
}

// Dial signs a fresh request and opens the stream.
func (s *Source) Dial(ctx context.Context) (domain.Stream, error) {
	req, err := s.builder.Build(ctx, s.cfg.Method, s.cfg.URL, s.params)
	if err != nil {
		return nil, err
	}

	resp, err := s.builder.Client().Do(req)
	if err != nil {
		return nil, dialFailure(err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		s.log.Debug("Stream rejected", "status", resp.StatusCode, "body", string(body))
		return nil, domain.NewStatusError(resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return &bodyStream{
		body: resp.Body,
		buf:  make([]byte, s.cfg.ChunkSize),
	}, nil
}

// String identifies the source in logs.
func (s *Source) String() string {
	return fmt.Sprintf("%s %s", s.cfg.Method, s.cfg.URL)
}

// bodyStream yields the response body one read at a time.
type bodyStream struct {
	body     io.ReadCloser
	buf      []byte
	received int64
	pending  error
}

func (b *bodyStream) Next(ctx context.Context) (string, error) {
	if b.pending != nil {
		return "", b.pending
	}
	for {
		n, err := b.body.Read(b.buf)
		if n > 0 {
			b.received += int64(n)
			if err != nil {
				b.pending = b.fail(ctx, err)
			}
			return string(b.buf[:n]), nil
		}
		if err != nil {
			b.pending = b.fail(ctx, err)
			return "", b.pending
		}
	}
}

func (b *bodyStream) fail(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return readFailure(err, b.received)
}

func (b *bodyStream) Close() error {
	return b.body.Close()
}
