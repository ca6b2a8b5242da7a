package domain

import (
	"errors"
	"time"
)

// Timeframe identifies a fixed-width resampling interval.
type Timeframe string

// Supported timeframes.
const (
	Timeframe1s Timeframe = "1s"
	Timeframe1m Timeframe = "1m"
	Timeframe5m Timeframe = "5m"
)

// AllTimeframes lists every timeframe the resampler materializes,
// in increasing interval width.
var AllTimeframes = []Timeframe{Timeframe1s, Timeframe1m, Timeframe5m}

// ErrInvalidTimeframe is returned when parsing an unsupported timeframe.
var ErrInvalidTimeframe = errors.New("invalid timeframe")

// ParseTimeframe validates a timeframe string.
func ParseTimeframe(s string) (Timeframe, error) {
	switch Timeframe(s) {
	case Timeframe1s, Timeframe1m, Timeframe5m:
		return Timeframe(s), nil
	}
	return "", ErrInvalidTimeframe
}

// Duration returns the interval width.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case Timeframe1s:
		return time.Second
	case Timeframe1m:
		return time.Minute
	case Timeframe5m:
		return 5 * time.Minute
	}
	return 0
}

// Millis returns the interval width in milliseconds.
func (tf Timeframe) Millis() int64 {
	return tf.Duration().Milliseconds()
}

// BucketStart floors a millisecond timestamp to the start of its bucket.
func (tf Timeframe) BucketStart(timestampMs int64) int64 {
	width := tf.Millis()
	if width == 0 {
		return timestampMs
	}
	return (timestampMs / width) * width
}

// BucketEnd returns the exclusive end boundary of the bucket containing
// the given timestamp.
func (tf Timeframe) BucketEnd(timestampMs int64) int64 {
	return tf.BucketStart(timestampMs) + tf.Millis()
}
