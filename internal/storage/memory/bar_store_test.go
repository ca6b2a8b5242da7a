package memory

import (
	"context"
	"errors"
	"testing"

	"market-tick-lab/internal/domain"
	"market-tick-lab/internal/storage"
)

func TestBarStore_UpsertReplacesExisting(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	bar := &domain.Bar{
		Symbol: "btcusdt", Timeframe: domain.Timeframe1m, BucketStart: 60000,
		Open: 100, High: 110, Low: 90, Close: 105, Volume: 10,
	}
	if err := store.Upsert(ctx, bar); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	// Same key, new aggregate values: must replace, not duplicate.
	bar2 := *bar
	bar2.Close = 108
	bar2.Volume = 12
	if err := store.Upsert(ctx, &bar2); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	bars, err := store.Recent(ctx, "btcusdt", domain.Timeframe1m, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(bars) != 1 {
		t.Fatalf("Expected 1 bar after upsert, got %d", len(bars))
	}
	if bars[0].Close != 108 || bars[0].Volume != 12 {
		t.Errorf("Expected replaced values, got close=%v volume=%v", bars[0].Close, bars[0].Volume)
	}
}

func TestBarStore_RejectsInvalidBar(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	bad := &domain.Bar{
		Symbol: "btcusdt", Timeframe: domain.Timeframe1m, BucketStart: 0,
		Open: 100, High: 90, Low: 95, Close: 100, Volume: 1, // high < open
	}
	err := store.Upsert(ctx, bad)
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestBarStore_RecentOrderAndLimit(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	for _, start := range []int64{180000, 60000, 120000} {
		bar := &domain.Bar{
			Symbol: "btcusdt", Timeframe: domain.Timeframe1m, BucketStart: start,
			Open: 1, High: 1, Low: 1, Close: 1, Volume: 1,
		}
		if err := store.Upsert(ctx, bar); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	bars, _ := store.Recent(ctx, "btcusdt", domain.Timeframe1m, 2)
	if len(bars) != 2 {
		t.Fatalf("Expected 2 bars, got %d", len(bars))
	}
	if bars[0].BucketStart != 120000 || bars[1].BucketStart != 180000 {
		t.Errorf("Expected [120000 180000], got [%d %d]", bars[0].BucketStart, bars[1].BucketStart)
	}
}

func TestBarStore_TimeframesIsolated(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	for _, tf := range []domain.Timeframe{domain.Timeframe1s, domain.Timeframe1m} {
		bar := &domain.Bar{
			Symbol: "btcusdt", Timeframe: tf, BucketStart: 60000,
			Open: 1, High: 1, Low: 1, Close: 1, Volume: 1,
		}
		if err := store.Upsert(ctx, bar); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	bars, _ := store.Recent(ctx, "btcusdt", domain.Timeframe1s, 10)
	if len(bars) != 1 {
		t.Errorf("Expected 1 bar for 1s timeframe, got %d", len(bars))
	}
}

func TestBarStore_MaxBucketStart(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	_, err := store.MaxBucketStart(ctx, "btcusdt", domain.Timeframe1m)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for empty store, got %v", err)
	}

	for _, start := range []int64{60000, 180000, 120000} {
		bar := &domain.Bar{
			Symbol: "btcusdt", Timeframe: domain.Timeframe1m, BucketStart: start,
			Open: 1, High: 1, Low: 1, Close: 1, Volume: 1,
		}
		if err := store.Upsert(ctx, bar); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	max, err := store.MaxBucketStart(ctx, "btcusdt", domain.Timeframe1m)
	if err != nil {
		t.Fatalf("MaxBucketStart failed: %v", err)
	}
	if max != 180000 {
		t.Errorf("Expected 180000, got %d", max)
	}
}

func TestBarStore_Since(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	for _, start := range []int64{60000, 120000, 180000} {
		bar := &domain.Bar{
			Symbol: "btcusdt", Timeframe: domain.Timeframe1m, BucketStart: start,
			Open: 1, High: 1, Low: 1, Close: 1, Volume: 1,
		}
		if err := store.Upsert(ctx, bar); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	bars, err := store.Since(ctx, "btcusdt", domain.Timeframe1m, 120000)
	if err != nil {
		t.Fatalf("Since failed: %v", err)
	}
	if len(bars) != 2 {
		t.Errorf("Expected 2 bars, got %d", len(bars))
	}
}
