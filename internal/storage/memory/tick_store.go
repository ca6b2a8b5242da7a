package memory

import (
	"context"
	"sort"
	"sync"

	"market-tick-lab/internal/domain"
	"market-tick-lab/internal/storage"
)

// TickStore is an in-memory implementation of storage.TickStore.
// Ticks are kept per symbol in insertion order; a monotonically increasing
// sequence number preserves arrival order across equal timestamps.
type TickStore struct {
	mu   sync.RWMutex
	data map[string][]storedTick
	seq  uint64
}

type storedTick struct {
	tick domain.Tick
	seq  uint64
}

// NewTickStore creates a new in-memory tick store.
func NewTickStore() *TickStore {
	return &TickStore{
		data: make(map[string][]storedTick),
	}
}

// InsertBatch appends a batch of ticks atomically.
func (s *TickStore) InsertBatch(_ context.Context, ticks []*domain.Tick) error {
	if len(ticks) == 0 {
		return nil
	}
	for _, t := range ticks {
		if t == nil || t.Symbol == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range ticks {
		s.seq++
		s.data[t.Symbol] = append(s.data[t.Symbol], storedTick{tick: *t, seq: s.seq})
	}
	return nil
}

// RecentBySymbol retrieves up to limit most recent ticks, chronological order.
func (s *TickStore) RecentBySymbol(_ context.Context, symbol string, limit int) ([]*domain.Tick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ordered := s.sortedLocked(symbol)
	if limit > 0 && len(ordered) > limit {
		ordered = ordered[len(ordered)-limit:]
	}

	result := make([]*domain.Tick, 0, len(ordered))
	for _, st := range ordered {
		copy := st.tick
		result = append(result, &copy)
	}
	return result, nil
}

// Since retrieves ticks with timestamp >= sinceMs in chronological order.
func (s *TickStore) Since(_ context.Context, symbol string, sinceMs int64, limit int) ([]*domain.Tick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Tick
	for _, st := range s.sortedLocked(symbol) {
		if st.tick.Timestamp < sinceMs {
			continue
		}
		copy := st.tick
		result = append(result, &copy)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

// Symbols lists all symbols with stored ticks, sorted.
func (s *TickStore) Symbols(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	symbols := make([]string, 0, len(s.data))
	for sym, ticks := range s.data {
		if len(ticks) > 0 {
			symbols = append(symbols, sym)
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// sortedLocked returns the symbol's ticks ordered by (timestamp, seq).
// Caller must hold at least a read lock.
func (s *TickStore) sortedLocked(symbol string) []storedTick {
	src := s.data[symbol]
	ordered := make([]storedTick, len(src))
	copy(ordered, src)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].tick.Timestamp != ordered[j].tick.Timestamp {
			return ordered[i].tick.Timestamp < ordered[j].tick.Timestamp
		}
		return ordered[i].seq < ordered[j].seq
	})
	return ordered
}

var _ storage.TickStore = (*TickStore)(nil)
