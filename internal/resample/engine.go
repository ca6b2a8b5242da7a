package resample

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"market-tick-lab/internal/domain"
	"market-tick-lab/internal/storage"
)

// DefaultInterval is the periodic resample cadence.
const DefaultInterval = 10 * time.Second

type watermarkKey struct {
	symbol    string
	timeframe domain.Timeframe
}

// Engine drives periodic resampling of stored ticks into bars.
//
// For each (symbol, timeframe) it keeps a watermark: the exclusive end of
// the latest finalized bucket. Each pass reads ticks at or after the
// watermark, so a finalized bucket is recomputed only from a superset of
// the ticks that produced it, and the keyed upsert replaces the old row.
// After a restart the watermark is re-derived from the latest stored
// bucket start, which re-finalizes at most one bucket.
type Engine struct {
	tickStore  storage.TickStore
	barStore   storage.BarStore
	timeframes []domain.Timeframe
	interval   time.Duration
	onBars     func(symbol string, count int)
	logger     *log.Logger

	mu         sync.Mutex
	watermarks map[watermarkKey]int64

	runMu  sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// EngineOptions contains configuration for creating an Engine.
type EngineOptions struct {
	TickStore  storage.TickStore
	BarStore   storage.BarStore
	Timeframes []domain.Timeframe // defaults to domain.AllTimeframes
	Interval   time.Duration      // defaults to DefaultInterval
	OnBars     func(symbol string, count int)
	Logger     *log.Logger
}

// NewEngine creates a new resample engine.
func NewEngine(opts EngineOptions) *Engine {
	timeframes := opts.Timeframes
	if len(timeframes) == 0 {
		timeframes = domain.AllTimeframes
	}
	interval := opts.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Engine{
		tickStore:  opts.TickStore,
		barStore:   opts.BarStore,
		timeframes: timeframes,
		interval:   interval,
		onBars:     opts.OnBars,
		logger:     logger,
		watermarks: make(map[watermarkKey]int64),
	}
}

// Start begins the periodic resample loop. It runs until Stop or context
// cancellation.
func (e *Engine) Start(ctx context.Context) {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				e.RunOnce(runCtx)
			}
		}
	}()

	e.logger.Printf("[resample] started, interval=%s timeframes=%v", e.interval, e.timeframes)
}

// Stop halts the periodic loop and waits for an in-flight pass to finish.
// Safe to call if the engine never started.
func (e *Engine) Stop() {
	e.runMu.Lock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.runMu.Unlock()
	e.wg.Wait()
}

// RunOnce resamples every symbol that has stored ticks, all timeframes.
// A failure for one (symbol, timeframe) pair is logged and retried on the
// next pass; it never blocks the remaining pairs.
func (e *Engine) RunOnce(ctx context.Context) {
	symbols, err := e.tickStore.Symbols(ctx)
	if err != nil {
		e.logger.Printf("[resample] list symbols failed: %v", err)
		return
	}

	for _, sym := range symbols {
		e.ResampleSymbol(ctx, sym)
	}
}

// ResampleSymbol resamples one symbol across all configured timeframes.
// This is also the on-demand entry used when a fresh symbol crosses the
// quick-resample threshold.
func (e *Engine) ResampleSymbol(ctx context.Context, symbol string) {
	total := 0
	for _, tf := range e.timeframes {
		n, err := e.resamplePair(ctx, symbol, tf)
		if err != nil {
			e.logger.Printf("[resample] %s %s failed, will retry: %v", symbol, tf, err)
			continue
		}
		total += n
	}

	if total > 0 && e.onBars != nil {
		e.onBars(symbol, total)
	}
}

// resamplePair runs one resample pass for a single (symbol, timeframe)
// pair and returns the number of bars upserted. The watermark advances
// only after a successful upsert, so failed passes are re-run over the
// same tick range.
func (e *Engine) resamplePair(ctx context.Context, symbol string, tf domain.Timeframe) (int, error) {
	watermark, err := e.watermarkFor(ctx, symbol, tf)
	if err != nil {
		return 0, err
	}

	ticks, err := e.tickStore.Since(ctx, symbol, watermark, 0)
	if err != nil {
		return 0, err
	}
	if len(ticks) == 0 {
		return 0, nil
	}

	bars := BucketTicks(ticks, symbol, tf)
	if len(bars) == 0 {
		return 0, nil
	}

	if err := e.barStore.UpsertBulk(ctx, bars); err != nil {
		return 0, err
	}

	// Finalize every bucket that can no longer receive earlier ticks:
	// those whose end is at or before the last observed timestamp. The
	// trailing bucket stays open and is recomputed next pass.
	lastSeen := ticks[len(ticks)-1].Timestamp
	next := watermark
	for _, bar := range bars {
		end := bar.BucketStart + tf.Millis()
		if end <= lastSeen && end > next {
			next = end
		}
	}

	if next != watermark {
		e.mu.Lock()
		e.watermarks[watermarkKey{symbol, tf}] = next
		e.mu.Unlock()
	}
	return len(bars), nil
}

// watermarkFor returns the current watermark for a pair, seeding it from
// storage on first use. With no stored bars the watermark is zero, which
// makes the first pass read the symbol's full tick history.
func (e *Engine) watermarkFor(ctx context.Context, symbol string, tf domain.Timeframe) (int64, error) {
	key := watermarkKey{symbol, tf}

	e.mu.Lock()
	wm, ok := e.watermarks[key]
	e.mu.Unlock()
	if ok {
		return wm, nil
	}

	// Crash recovery: resume from the latest stored bucket. Reading from
	// its start re-finalizes at most that one bucket, from a superset of
	// its original ticks.
	maxStart, err := e.barStore.MaxBucketStart(ctx, symbol, tf)
	switch {
	case err == nil:
		wm = maxStart
	case errors.Is(err, storage.ErrNotFound):
		wm = 0
	default:
		return 0, err
	}

	e.mu.Lock()
	e.watermarks[key] = wm
	e.mu.Unlock()
	return wm, nil
}
