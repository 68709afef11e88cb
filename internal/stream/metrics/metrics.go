package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChunksReceived tracks raw body fragments read from the stream
	ChunksReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "firehose_chunks_received_total",
			Help: "Total number of body chunks received",
		},
	)

	// BytesReceived tracks raw body bytes read from the stream
	BytesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "firehose_bytes_received_total",
			Help: "Total number of body bytes received",
		},
	)

	// LinesReconstructed tracks complete lines handed to the decoder
	LinesReconstructed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "firehose_lines_total",
			Help: "Total number of lines reconstructed from chunks",
		},
	)

	// KeepalivesDropped tracks keepalive lines filtered before decode
	KeepalivesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "firehose_keepalives_total",
			Help: "Total number of keepalive lines dropped",
		},
	)

	// RecordsDecoded tracks decoded records per shard
	RecordsDecoded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "firehose_records_decoded_total",
			Help: "Total number of records decoded",
		},
		[]string{"shard"},
	)

	// DecodeErrors tracks lines that failed to decode per shard
	DecodeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "firehose_decode_errors_total",
			Help: "Total number of lines that failed to decode",
		},
		[]string{"shard"},
	)

	// TweetsDecoded tracks decoded records that are tweets
	TweetsDecoded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "firehose_tweets_total",
			Help: "Total number of tweets decoded",
		},
	)

	// Reconnects tracks reconnect decisions by failure class
	Reconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "firehose_reconnects_total",
			Help: "Total number of reconnect attempts by failure class",
		},
		[]string{"class"},
	)

	// BackoffSeconds tracks the delay chosen before each reconnect
	BackoffSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "firehose_backoff_seconds",
			Help:    "Delay applied before reconnecting",
			Buckets: []float64{0, 1, 5, 15, 60, 120},
		},
	)

	// ConnectionState reports 1 for the current state, 0 for the others
	ConnectionState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "firehose_connection_state",
			Help: "Current connection state of the stream",
		},
		[]string{"state"},
	)
)
