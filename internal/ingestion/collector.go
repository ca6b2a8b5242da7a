// Package ingestion absorbs per-symbol tick streams into bounded
// in-memory buffers and hands them to storage in periodic batches.
package ingestion

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"market-tick-lab/internal/domain"
	"market-tick-lab/internal/storage"
	"market-tick-lab/internal/stream"
)

// ErrAlreadyActive is returned when subscribing a symbol that is already
// active with a conflicting configuration.
var ErrAlreadyActive = errors.New("symbol already active with conflicting configuration")

// Defaults used when options leave the corresponding field zero.
const (
	DefaultFlushInterval  = 1 * time.Second
	DefaultBufferCapacity = 10000

	// DefaultQuickThreshold is the cumulative tick count at which a
	// symbol with no bars yet requests one immediate resample pass.
	DefaultQuickThreshold = 20
)

// Collector owns all per-symbol ingestion state: the tick buffer, the
// stream subscription, and the connection status. Per-symbol state is
// independently locked so a slow flush for one symbol never stalls
// ingestion for another.
type Collector struct {
	source        stream.Source
	tickStore     storage.TickStore
	flushInterval time.Duration
	capacity      int
	quickThresh   int
	onTick        func(domain.Tick)  // synchronous per-tick hook (alert evaluation)
	onQuickFlush  func(symbol string) // fired once per symbol after threshold crossing
	logger        *log.Logger

	mu      sync.RWMutex
	symbols map[string]*symbolState
	started time.Time
	runCtx  context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// symbolState is the mutable per-symbol record. Its mutex guards only
// this symbol; the collector's map mutex is never held during I/O.
type symbolState struct {
	mu         sync.Mutex
	buf        []domain.Tick // current buffer generation, arrival order
	dropped    uint64
	lastSeen   int64
	status     domain.StreamStatus
	reconnects int
	totalTicks int
	quickFired bool
	capacity   int
	cancel     context.CancelFunc
}

// CollectorOptions contains configuration for creating a Collector.
type CollectorOptions struct {
	Source          stream.Source
	TickStore       storage.TickStore
	FlushInterval   time.Duration
	BufferCapacity  int
	QuickThreshold  int
	OnTick          func(domain.Tick)
	OnQuickResample func(symbol string)
	Logger          *log.Logger
}

// NewCollector creates a new collector.
func NewCollector(opts CollectorOptions) *Collector {
	flushInterval := opts.FlushInterval
	if flushInterval == 0 {
		flushInterval = DefaultFlushInterval
	}
	capacity := opts.BufferCapacity
	if capacity == 0 {
		capacity = DefaultBufferCapacity
	}
	quickThresh := opts.QuickThreshold
	if quickThresh == 0 {
		quickThresh = DefaultQuickThreshold
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Collector{
		source:        opts.Source,
		tickStore:     opts.TickStore,
		flushInterval: flushInterval,
		capacity:      capacity,
		quickThresh:   quickThresh,
		onTick:        opts.OnTick,
		onQuickFlush:  opts.OnQuickResample,
		logger:        logger,
		symbols:       make(map[string]*symbolState),
	}
}

// Start subscribes the given symbols and begins the flush loop.
// Safe to call again with additional symbols; already-active symbols are
// skipped. The collector runs until Stop or context cancellation.
func (c *Collector) Start(ctx context.Context, symbols []string) error {
	c.mu.Lock()
	if c.cancel == nil {
		runCtx, cancel := context.WithCancel(ctx)
		c.runCtx = runCtx
		c.cancel = cancel
		c.started = time.Now()
		c.wg.Add(1)
		go c.flushLoop(runCtx)
	}
	runCtx := c.runCtx
	c.mu.Unlock()

	for _, sym := range symbols {
		if err := c.Subscribe(runCtx, sym); err != nil && !errors.Is(err, ErrAlreadyActive) {
			return err
		}
	}
	return nil
}

// Subscribe registers a symbol and starts consuming its stream.
// Idempotent for an already-active symbol with the same configuration.
func (c *Collector) Subscribe(ctx context.Context, symbol string) error {
	return c.SubscribeBuffered(ctx, symbol, c.capacity)
}

// SubscribeBuffered is Subscribe with an explicit buffer capacity for the
// symbol. Re-subscribing an active symbol with a different capacity
// returns ErrAlreadyActive.
func (c *Collector) SubscribeBuffered(ctx context.Context, symbol string, capacity int) error {
	if symbol == "" {
		return errors.New("subscribe: empty symbol")
	}
	if capacity <= 0 {
		capacity = c.capacity
	}

	c.mu.Lock()
	if st, exists := c.symbols[symbol]; exists {
		defer c.mu.Unlock()
		if st.capacity != capacity {
			return ErrAlreadyActive
		}
		return nil
	}

	subCtx, cancel := context.WithCancel(ctx)
	st := &symbolState{
		status:   domain.StreamDisconnected,
		capacity: capacity,
		cancel:   cancel,
	}
	c.symbols[symbol] = st
	c.mu.Unlock()

	ticks, err := c.source.Subscribe(subCtx, symbol)
	if err != nil {
		cancel()
		c.mu.Lock()
		delete(c.symbols, symbol)
		c.mu.Unlock()
		return err
	}

	c.wg.Add(1)
	go c.consume(subCtx, symbol, st, ticks)

	c.logger.Printf("[collector] subscribed %s", symbol)
	return nil
}

// consume drains one symbol's tick channel into its buffer.
func (c *Collector) consume(ctx context.Context, symbol string, st *symbolState, ticks <-chan domain.Tick) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case tick, ok := <-ticks:
			if !ok {
				// Channel closed by the source: permanent failure unless
				// we are shutting down.
				if ctx.Err() == nil {
					c.SetStreamStatus(symbol, domain.StreamFailed)
				}
				return
			}
			c.ingest(symbol, st, tick)
		}
	}
}

// ingest appends one tick to the symbol buffer. Never blocks the stream:
// over capacity, the oldest not-yet-flushed tick is dropped and counted.
func (c *Collector) ingest(symbol string, st *symbolState, tick domain.Tick) {
	st.mu.Lock()
	st.buf = append(st.buf, tick)
	if len(st.buf) > st.capacity {
		over := len(st.buf) - st.capacity
		st.buf = st.buf[over:]
		st.dropped += uint64(over)
	}
	st.lastSeen = tick.Timestamp
	st.totalTicks++
	fireQuick := false
	if !st.quickFired && st.totalTicks >= c.quickThresh {
		st.quickFired = true
		fireQuick = true
	}
	st.mu.Unlock()

	if c.onTick != nil {
		c.onTick(tick)
	}
	if fireQuick && c.onQuickFlush != nil {
		c.onQuickFlush(symbol)
	}
}

// flushLoop drains buffers to storage on the configured cadence.
func (c *Collector) flushLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.FlushAll(context.Background())
		}
	}
}

// FlushAll flushes every symbol's buffer. A failure for one symbol is
// logged and retried next cycle; it never blocks the other symbols.
func (c *Collector) FlushAll(ctx context.Context) {
	c.mu.RLock()
	states := make(map[string]*symbolState, len(c.symbols))
	for sym, st := range c.symbols {
		states[sym] = st
	}
	c.mu.RUnlock()

	for sym, st := range states {
		if err := c.flushSymbol(ctx, sym, st); err != nil {
			c.logger.Printf("[collector] flush %s failed, will retry: %v", sym, err)
		}
	}
}

// flushSymbol atomically swaps out the current buffer generation and
// writes it as one batch. Ticks arriving during the store write land in
// the next generation; on failure the batch is requeued at the front so
// arrival order is preserved.
func (c *Collector) flushSymbol(ctx context.Context, symbol string, st *symbolState) error {
	st.mu.Lock()
	batch := st.buf
	st.buf = nil
	st.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	ticks := make([]*domain.Tick, len(batch))
	for i := range batch {
		ticks[i] = &batch[i]
	}

	if err := c.tickStore.InsertBatch(ctx, ticks); err != nil {
		// Requeue in front of anything that arrived meanwhile, re-applying
		// the capacity bound.
		st.mu.Lock()
		st.buf = append(batch, st.buf...)
		if len(st.buf) > st.capacity {
			over := len(st.buf) - st.capacity
			st.buf = st.buf[over:]
			st.dropped += uint64(over)
		}
		st.mu.Unlock()
		return err
	}
	return nil
}

// SetStreamStatus records a connection-state transition for a symbol.
// Intended as the stream.StatusFunc for the WebSocket client.
func (c *Collector) SetStreamStatus(symbol string, status domain.StreamStatus) {
	c.mu.RLock()
	st := c.symbols[symbol]
	c.mu.RUnlock()
	if st == nil {
		return
	}

	st.mu.Lock()
	if status == domain.StreamConnected && st.status == domain.StreamDisconnected {
		st.reconnects++
	}
	st.status = status
	st.mu.Unlock()

	c.logger.Printf("[collector] %s stream %s", symbol, status)
}

// Status returns a snapshot of every symbol's stream state, keyed by symbol.
func (c *Collector) Status() map[string]domain.StreamState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]domain.StreamState, len(c.symbols))
	for sym, st := range c.symbols {
		st.mu.Lock()
		result[sym] = domain.StreamState{
			Symbol:     sym,
			Status:     st.status,
			LastSeen:   st.lastSeen,
			Buffered:   len(st.buf),
			Dropped:    st.dropped,
			Reconnects: st.reconnects,
		}
		st.mu.Unlock()
	}
	return result
}

// Uptime reports time since Start; zero if never started.
func (c *Collector) Uptime() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.started.IsZero() {
		return 0
	}
	return time.Since(c.started)
}

// UnsubscribeAll stops all streams, flushes remaining buffered ticks and
// releases per-symbol state. Safe to call if collection never started.
func (c *Collector) UnsubscribeAll(ctx context.Context) {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	states := make(map[string]*symbolState, len(c.symbols))
	for sym, st := range c.symbols {
		states[sym] = st
	}
	c.mu.Unlock()

	for _, st := range states {
		if st.cancel != nil {
			st.cancel()
		}
	}

	c.wg.Wait()

	// Final flush of whatever remains buffered.
	for sym, st := range states {
		if err := c.flushSymbol(ctx, sym, st); err != nil {
			c.logger.Printf("[collector] final flush %s failed: %v", sym, err)
		}
		st.mu.Lock()
		st.status = domain.StreamStopped
		st.mu.Unlock()
	}

	c.mu.Lock()
	c.symbols = make(map[string]*symbolState)
	c.started = time.Time{}
	c.runCtx = nil
	c.mu.Unlock()

	if len(states) > 0 {
		c.logger.Printf("[collector] stopped %d symbols", len(states))
	}
}
