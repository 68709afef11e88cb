// Package filter separates tweets from the control messages interleaved
// on the stream.
package filter

import (
	"context"

	"github.com/vietddude/firehose/internal/core/domain"
)

// IsTweet reports whether a decoded record is a tweet.
func IsTweet(r domain.Record) bool {
	return r.HasTimestamp()
}

// Tweets forwards tweets from in to out until in closes. It does not
// close out.
func Tweets(ctx context.Context, in <-chan domain.Record, out chan<- domain.Record) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r, ok := <-in:
			if !ok {
				return nil
			}
			if !IsTweet(r) {
				continue
			}
			select {
			case out <- r:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
