package domain

import "fmt"

// Bar is an OHLC aggregate of all ticks inside one fixed time bucket.
// (Symbol, Timeframe, BucketStart) is the primary key: re-resampling the
// same bucket replaces the stored row rather than inserting a duplicate.
// A bucket with zero ticks never materializes a bar.
type Bar struct {
	Symbol      string
	Timeframe   Timeframe
	BucketStart int64 // bucket start, Unix milliseconds, floored to the interval
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      float64
}

// Validate checks the OHLC invariants: low <= open,close <= high and
// non-negative volume.
func (b *Bar) Validate() error {
	if b.Symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrInvalidBar)
	}
	if _, err := ParseTimeframe(string(b.Timeframe)); err != nil {
		return fmt.Errorf("%w: timeframe %q", ErrInvalidBar, b.Timeframe)
	}
	if b.Low > b.Open || b.Low > b.Close || b.High < b.Open || b.High < b.Close {
		return fmt.Errorf("%w: low=%v open=%v close=%v high=%v", ErrInvalidBar, b.Low, b.Open, b.Close, b.High)
	}
	if b.Volume < 0 {
		return fmt.Errorf("%w: negative volume %v", ErrInvalidBar, b.Volume)
	}
	return nil
}

// ErrInvalidBar is returned when a bar violates its invariants.
var ErrInvalidBar = fmt.Errorf("invalid bar")
