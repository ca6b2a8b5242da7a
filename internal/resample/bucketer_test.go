package resample

import (
	"testing"

	"market-tick-lab/internal/domain"
)

func tick(ts int64, price, size float64) *domain.Tick {
	return &domain.Tick{Symbol: "btcusdt", Timestamp: ts, Price: price, Size: size}
}

func TestBucketTicks_Empty(t *testing.T) {
	if got := BucketTicks(nil, "btcusdt", domain.Timeframe1s); got != nil {
		t.Fatalf("expected nil for empty input, got %d bars", len(got))
	}
}

func TestBucketTicks_OHLCWithinOneBucket(t *testing.T) {
	ticks := []*domain.Tick{
		tick(1000, 100, 1),
		tick(1200, 105, 2),
		tick(1400, 95, 3),
		tick(1900, 101, 4),
	}

	bars := BucketTicks(ticks, "btcusdt", domain.Timeframe1s)
	if len(bars) != 1 {
		t.Fatalf("expected 1 bar, got %d", len(bars))
	}

	bar := bars[0]
	if bar.BucketStart != 1000 {
		t.Errorf("BucketStart = %d, want 1000", bar.BucketStart)
	}
	if bar.Open != 100 || bar.High != 105 || bar.Low != 95 || bar.Close != 101 {
		t.Errorf("OHLC = %v/%v/%v/%v, want 100/105/95/101", bar.Open, bar.High, bar.Low, bar.Close)
	}
	if bar.Volume != 10 {
		t.Errorf("Volume = %v, want 10", bar.Volume)
	}
	if err := bar.Validate(); err != nil {
		t.Errorf("bar fails validation: %v", err)
	}
}

func TestBucketTicks_GapBucketsProduceNothing(t *testing.T) {
	// Ticks in buckets [1000,2000) and [5000,6000); the buckets between
	// must not materialize.
	ticks := []*domain.Tick{
		tick(1500, 100, 1),
		tick(5500, 200, 1),
	}

	bars := BucketTicks(ticks, "btcusdt", domain.Timeframe1s)
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if bars[0].BucketStart != 1000 || bars[1].BucketStart != 5000 {
		t.Errorf("bucket starts = %d, %d, want 1000, 5000", bars[0].BucketStart, bars[1].BucketStart)
	}
}

func TestBucketTicks_BoundaryTickOpensNextBucket(t *testing.T) {
	// Bucket end is exclusive: a tick at exactly 2000 belongs to [2000,3000).
	ticks := []*domain.Tick{
		tick(1999, 100, 1),
		tick(2000, 200, 1),
	}

	bars := BucketTicks(ticks, "btcusdt", domain.Timeframe1s)
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if bars[0].Close != 100 || bars[1].Open != 200 {
		t.Errorf("boundary tick landed in the wrong bucket: close=%v open=%v", bars[0].Close, bars[1].Open)
	}
}

func TestBucketTicks_SortedByBucketStart(t *testing.T) {
	var ticks []*domain.Tick
	for i := int64(0); i < 20; i++ {
		ticks = append(ticks, tick(i*1000, float64(i), 1))
	}

	bars := BucketTicks(ticks, "btcusdt", domain.Timeframe5m)
	for i := 1; i < len(bars); i++ {
		if bars[i].BucketStart <= bars[i-1].BucketStart {
			t.Fatalf("bars not sorted at index %d", i)
		}
	}
}

func TestBucketTicks_SingleTickBar(t *testing.T) {
	bars := BucketTicks([]*domain.Tick{tick(60_000, 42, 0.5)}, "btcusdt", domain.Timeframe1m)
	if len(bars) != 1 {
		t.Fatalf("expected 1 bar, got %d", len(bars))
	}
	bar := bars[0]
	if bar.Open != 42 || bar.High != 42 || bar.Low != 42 || bar.Close != 42 {
		t.Errorf("single-tick OHLC = %v/%v/%v/%v, want all 42", bar.Open, bar.High, bar.Low, bar.Close)
	}
	if bar.Volume != 0.5 {
		t.Errorf("Volume = %v, want 0.5", bar.Volume)
	}
}
