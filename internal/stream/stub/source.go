package stub

import (
	"context"
	"sync"

	"market-tick-lab/internal/domain"
)

// StubTickSource replays scripted ticks per symbol for testing.
// Implements stream.Source.
type StubTickSource struct {
	mu       sync.Mutex
	scripted map[string][]domain.Tick
	channels map[string]chan domain.Tick
}

// NewStubTickSource creates a stub source with the given scripted ticks.
func NewStubTickSource(ticks map[string][]domain.Tick) *StubTickSource {
	scripted := make(map[string][]domain.Tick, len(ticks))
	for sym, ts := range ticks {
		scripted[sym] = append([]domain.Tick(nil), ts...)
	}
	return &StubTickSource{
		scripted: scripted,
		channels: make(map[string]chan domain.Tick),
	}
}

// Subscribe returns a channel that first replays any scripted ticks for
// the symbol, then stays open for ticks pushed via Push until the context
// is cancelled or Close is called.
func (s *StubTickSource) Subscribe(ctx context.Context, symbol string) (<-chan domain.Tick, error) {
	s.mu.Lock()
	ch := make(chan domain.Tick, 1024)
	s.channels[symbol] = ch
	scripted := s.scripted[symbol]
	s.mu.Unlock()

	go func() {
		for _, t := range scripted {
			select {
			case ch <- t:
			case <-ctx.Done():
				return
			}
		}
		<-ctx.Done()
	}()

	return ch, nil
}

// Push delivers a live tick to an active subscription.
func (s *StubTickSource) Push(tick domain.Tick) {
	s.mu.Lock()
	ch := s.channels[tick.Symbol]
	s.mu.Unlock()
	if ch != nil {
		ch <- tick
	}
}

// Close closes a symbol's channel, simulating a permanent stream end.
func (s *StubTickSource) Close(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.channels[symbol]; ok {
		close(ch)
		delete(s.channels, symbol)
	}
}
