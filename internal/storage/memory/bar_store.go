package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"market-tick-lab/internal/domain"
	"market-tick-lab/internal/storage"
)

// BarStore is an in-memory implementation of storage.BarStore.
type BarStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Bar // keyed by (symbol, timeframe, bucket_start)
}

// NewBarStore creates a new in-memory bar store.
func NewBarStore() *BarStore {
	return &BarStore{
		data: make(map[string]*domain.Bar),
	}
}

// barKey generates the unique key for a bar.
func barKey(symbol string, tf domain.Timeframe, bucketStart int64) string {
	return fmt.Sprintf("%s|%s|%d", symbol, tf, bucketStart)
}

// Upsert inserts or replaces a single bar (last-writer-wins on the key).
func (s *BarStore) Upsert(_ context.Context, bar *domain.Bar) error {
	if bar == nil {
		return storage.ErrInvalidInput
	}
	if err := bar.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *bar
	s.data[barKey(bar.Symbol, bar.Timeframe, bar.BucketStart)] = &copy
	return nil
}

// UpsertBulk inserts or replaces multiple bars atomically.
func (s *BarStore) UpsertBulk(_ context.Context, bars []*domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	for _, bar := range bars {
		if bar == nil {
			return storage.ErrInvalidInput
		}
		if err := bar.Validate(); err != nil {
			return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, bar := range bars {
		copy := *bar
		s.data[barKey(bar.Symbol, bar.Timeframe, bar.BucketStart)] = &copy
	}
	return nil
}

// Recent retrieves up to limit most recent bars, chronological order.
func (s *BarStore) Recent(_ context.Context, symbol string, tf domain.Timeframe, limit int) ([]*domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ordered := s.orderedLocked(symbol, tf)
	if limit > 0 && len(ordered) > limit {
		ordered = ordered[len(ordered)-limit:]
	}
	return ordered, nil
}

// Since retrieves bars with bucket_start >= sinceMs, chronological order.
func (s *BarStore) Since(_ context.Context, symbol string, tf domain.Timeframe, sinceMs int64) ([]*domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Bar
	for _, bar := range s.orderedLocked(symbol, tf) {
		if bar.BucketStart >= sinceMs {
			result = append(result, bar)
		}
	}
	return result, nil
}

// MaxBucketStart returns the latest materialized bucket start.
func (s *BarStore) MaxBucketStart(_ context.Context, symbol string, tf domain.Timeframe) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := false
	var max int64
	for _, bar := range s.data {
		if bar.Symbol != symbol || bar.Timeframe != tf {
			continue
		}
		if !found || bar.BucketStart > max {
			max = bar.BucketStart
			found = true
		}
	}
	if !found {
		return 0, storage.ErrNotFound
	}
	return max, nil
}

// orderedLocked returns copies of the matching bars ordered by bucket start.
// Caller must hold at least a read lock.
func (s *BarStore) orderedLocked(symbol string, tf domain.Timeframe) []*domain.Bar {
	var result []*domain.Bar
	for _, bar := range s.data {
		if bar.Symbol == symbol && bar.Timeframe == tf {
			copy := *bar
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].BucketStart < result[j].BucketStart
	})
	return result
}

var _ storage.BarStore = (*BarStore)(nil)
