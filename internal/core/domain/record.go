package domain

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// TimestampField is the attribute that distinguishes a tweet from
// control messages (delete notices, limit notices, warnings).
const TimestampField = "timestamp_ms"

// ErrNotTweet is returned when a record carries no timestamp attribute.
var ErrNotTweet = errors.New("record is not a tweet")

// Record is one decoded line of the stream.
type Record struct {
	// Value is the decoded JSON document.
	Value any

	// Seq is the position of the source line in the stream (0-indexed,
	// per pipeline run). Shard is Seq mod the shard count.
	Seq   uint64
	Shard int

	IsTweet bool
}

// Fields returns the top-level object of the record, or nil when the
// document is not a JSON object.
func (r Record) Fields() map[string]any {
	m, _ := r.Value.(map[string]any)
	return m
}

// HasTimestamp reports whether the record carries the tweet timestamp.
func (r Record) HasTimestamp() bool {
	fields := r.Fields()
	if fields == nil {
		return false
	}
	_, ok := fields[TimestampField]
	return ok
}

// Timestamp parses the millisecond timestamp of a tweet.
func (r Record) Timestamp() (time.Time, error) {
	fields := r.Fields()
	if fields == nil {
		return time.Time{}, ErrNotTweet
	}
	raw, ok := fields[TimestampField]
	if !ok {
		return time.Time{}, ErrNotTweet
	}

	var ms int64
	switch v := raw.(type) {
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse %s: %w", TimestampField, err)
		}
		ms = n
	case float64:
		ms = int64(v)
	default:
		return time.Time{}, fmt.Errorf("unexpected %s type %T", TimestampField, raw)
	}
	return time.UnixMilli(ms), nil
}

// String returns the tweet id when present.
func (r Record) String() string {
	if id, ok := r.Fields()["id_str"].(string); ok {
		return id
	}
	return fmt.Sprintf("record#%d", r.Seq)
}
