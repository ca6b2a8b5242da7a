package memory

import (
	"context"
	"testing"

	"market-tick-lab/internal/domain"
	"market-tick-lab/internal/storage"
)

func TestTickStore_InsertBatchAndRecent(t *testing.T) {
	store := NewTickStore()
	ctx := context.Background()

	ticks := []*domain.Tick{
		{Symbol: "btcusdt", Timestamp: 1000, Price: 100.0, Size: 1.0},
		{Symbol: "btcusdt", Timestamp: 2000, Price: 101.0, Size: 2.0},
		{Symbol: "ethusdt", Timestamp: 1500, Price: 10.0, Size: 5.0},
	}

	if err := store.InsertBatch(ctx, ticks); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	result, err := store.RecentBySymbol(ctx, "btcusdt", 10)
	if err != nil {
		t.Fatalf("RecentBySymbol failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("Expected 2 ticks, got %d", len(result))
	}
	if result[0].Timestamp != 1000 || result[1].Timestamp != 2000 {
		t.Errorf("Expected chronological order, got %d, %d", result[0].Timestamp, result[1].Timestamp)
	}
}

func TestTickStore_ArrivalOrderPreservedOnEqualTimestamps(t *testing.T) {
	store := NewTickStore()
	ctx := context.Background()

	ticks := []*domain.Tick{
		{Symbol: "btcusdt", Timestamp: 1000, Price: 100.0, Size: 1.0},
		{Symbol: "btcusdt", Timestamp: 1000, Price: 101.0, Size: 1.0},
		{Symbol: "btcusdt", Timestamp: 1000, Price: 102.0, Size: 1.0},
	}

	if err := store.InsertBatch(ctx, ticks); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	result, _ := store.RecentBySymbol(ctx, "btcusdt", 10)
	if len(result) != 3 {
		t.Fatalf("Expected 3 ticks, got %d", len(result))
	}
	for i, want := range []float64{100.0, 101.0, 102.0} {
		if result[i].Price != want {
			t.Errorf("tick %d: expected price %v, got %v", i, want, result[i].Price)
		}
	}
}

func TestTickStore_RecentLimit(t *testing.T) {
	store := NewTickStore()
	ctx := context.Background()

	var ticks []*domain.Tick
	for i := 0; i < 10; i++ {
		ticks = append(ticks, &domain.Tick{Symbol: "btcusdt", Timestamp: int64(1000 + i), Price: float64(i)})
	}
	if err := store.InsertBatch(ctx, ticks); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	result, _ := store.RecentBySymbol(ctx, "btcusdt", 3)
	if len(result) != 3 {
		t.Fatalf("Expected 3 ticks, got %d", len(result))
	}
	// Most recent 3, still chronological
	if result[0].Timestamp != 1007 || result[2].Timestamp != 1009 {
		t.Errorf("Expected ticks 1007..1009, got %d..%d", result[0].Timestamp, result[2].Timestamp)
	}
}

func TestTickStore_Since(t *testing.T) {
	store := NewTickStore()
	ctx := context.Background()

	ticks := []*domain.Tick{
		{Symbol: "btcusdt", Timestamp: 1000, Price: 1},
		{Symbol: "btcusdt", Timestamp: 2000, Price: 2},
		{Symbol: "btcusdt", Timestamp: 3000, Price: 3},
	}
	if err := store.InsertBatch(ctx, ticks); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	result, err := store.Since(ctx, "btcusdt", 2000, 0)
	if err != nil {
		t.Fatalf("Since failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("Expected 2 ticks, got %d", len(result))
	}
	if result[0].Timestamp != 2000 {
		t.Errorf("Expected first tick at 2000, got %d", result[0].Timestamp)
	}
}

func TestTickStore_InvalidInput(t *testing.T) {
	store := NewTickStore()
	ctx := context.Background()

	err := store.InsertBatch(ctx, []*domain.Tick{{Symbol: "", Timestamp: 1}})
	if err != storage.ErrInvalidInput {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestTickStore_Symbols(t *testing.T) {
	store := NewTickStore()
	ctx := context.Background()

	ticks := []*domain.Tick{
		{Symbol: "ethusdt", Timestamp: 1000, Price: 1},
		{Symbol: "btcusdt", Timestamp: 1000, Price: 1},
	}
	if err := store.InsertBatch(ctx, ticks); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	symbols, err := store.Symbols(ctx)
	if err != nil {
		t.Fatalf("Symbols failed: %v", err)
	}
	if len(symbols) != 2 || symbols[0] != "btcusdt" || symbols[1] != "ethusdt" {
		t.Errorf("Expected sorted [btcusdt ethusdt], got %v", symbols)
	}
}
